package service

import (
	"context"
	"time"

	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

// StatsService computes read-side transparency rollups over the ledger.
// Nothing here mutates state; totals come from the transactions table, with
// the cached project aggregate alongside for reconciliation.
type StatsService struct {
	txRepo      *storage.TransactionRepository
	projectRepo *storage.ProjectRepository
	logger      *logging.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(
	txRepo *storage.TransactionRepository,
	projectRepo *storage.ProjectRepository,
	logger *logging.Logger,
) *StatsService {
	return &StatsService{
		txRepo:      txRepo,
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// ActivityWindow is confirmed inbound activity over one lookback window.
type ActivityWindow struct {
	ConfirmedCount int64 `json:"confirmedCount"`
	TotalSats      int64 `json:"totalSats"`
}

// ProjectStats is the transparency rollup for one project.
type ProjectStats struct {
	ProjectID           string `json:"projectId"`
	RaisedAmountSats    int64  `json:"raisedAmountSats"`
	LedgerTotalSats     int64  `json:"ledgerTotalSats"`
	ConfirmedCount      int64  `json:"confirmedCount"`
	DistinctSupporters  int64  `json:"distinctSupporters"`
	AverageDonationSats int64  `json:"averageDonationSats"`
	ContributorCount    int    `json:"contributorCount"`

	Last24h ActivityWindow `json:"last24h"`
	Last7d  ActivityWindow `json:"last7d"`
	Last30d ActivityWindow `json:"last30d"`
}

// GetProjectStats aggregates confirmed ledger activity for a project. A
// mismatch between the cached raised amount and the ledger total is logged
// but still returned so callers can surface it.
func (s *StatsService) GetProjectStats(ctx context.Context, projectID string) (*ProjectStats, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	allTime, err := s.txRepo.StatsForEntity(ctx, types.EntityProject, projectID, time.Time{})
	if err != nil {
		return nil, err
	}

	stats := &ProjectStats{
		ProjectID:          projectID,
		RaisedAmountSats:   project.RaisedAmountSats,
		LedgerTotalSats:    allTime.TotalSats,
		ConfirmedCount:     allTime.ConfirmedCount,
		DistinctSupporters: allTime.DistinctSupporters,
		ContributorCount:   project.ContributorCount,
	}
	if allTime.ConfirmedCount > 0 {
		stats.AverageDonationSats = allTime.TotalSats / allTime.ConfirmedCount
	}

	now := time.Now().UTC()
	windows := []struct {
		since  time.Time
		target *ActivityWindow
	}{
		{now.Add(-24 * time.Hour), &stats.Last24h},
		{now.AddDate(0, 0, -7), &stats.Last7d},
		{now.AddDate(0, 0, -30), &stats.Last30d},
	}
	for _, w := range windows {
		windowStats, err := s.txRepo.StatsForEntity(ctx, types.EntityProject, projectID, w.since)
		if err != nil {
			return nil, err
		}
		w.target.ConfirmedCount = windowStats.ConfirmedCount
		w.target.TotalSats = windowStats.TotalSats
	}

	if stats.RaisedAmountSats != stats.LedgerTotalSats {
		s.logger.WithFields(map[string]interface{}{
			"project_id":  projectID,
			"cached_sats": stats.RaisedAmountSats,
			"ledger_sats": stats.LedgerTotalSats,
		}).Warn("Cached raised amount diverges from ledger total")
	}

	return stats, nil
}
