package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funding-ledger/internal/config"
	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

const testAddress = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

type integrationEnv struct {
	db             *storage.PostgresDB
	profileService *ProfileService
	projectService *ProjectService
	walletService  *WalletService
	ledgerService  *LedgerService
	postService    *PostService
	budgetService  *BudgetService
	statsService   *StatsService
	milestoneRepo  *storage.MilestoneRepository
}

// setupIntegration wires the full service stack against a real database.
// Skipped in short mode and when no database is reachable.
func setupIntegration(t *testing.T) *integrationEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := storage.RunMigrations(cfg.Database.Postgres.DatabaseURL(), "../../migrations"); err != nil {
		t.Skipf("Migrations failed: %v", err)
	}

	logger := logging.NewLogger(logging.LevelError, logging.FormatText)

	profileRepo := storage.NewProfileRepository(db)
	projectRepo := storage.NewProjectRepository(db)
	walletRepo := storage.NewWalletRepository(db)
	txRepo := storage.NewTransactionRepository(db)
	milestoneRepo := storage.NewMilestoneRepository(db)
	periodRepo := storage.NewBudgetPeriodRepository(db)
	postRepo := storage.NewPostRepository(db)

	refValidator := NewReferenceValidator(profileRepo, projectRepo, postRepo, walletRepo, logger)
	budgetService := NewBudgetService(db, walletRepo, periodRepo, logger)

	return &integrationEnv{
		db:             db,
		profileService: NewProfileService(db, profileRepo, refValidator, logger),
		projectService: NewProjectService(db, projectRepo, refValidator, logger),
		walletService:  NewWalletService(db, walletRepo, refValidator, budgetService, 3, logger),
		ledgerService:  NewLedgerService(db, txRepo, projectRepo, walletRepo, milestoneRepo, refValidator, budgetService, logger),
		postService:    NewPostService(db, postRepo, profileRepo, refValidator, nil, 2, 0, logger),
		budgetService:  budgetService,
		statsService:   NewStatsService(txRepo, projectRepo, logger),
		milestoneRepo:  milestoneRepo,
	}
}

func (env *integrationEnv) createProfile(t *testing.T, ctx context.Context) *models.Profile {
	t.Helper()
	profile, err := env.profileService.CreateProfile(ctx, &models.Profile{
		Username:    fmt.Sprintf("user-%s", uuid.New().String()[:8]),
		DisplayName: "Test User",
	})
	require.NoError(t, err)
	return profile
}

func (env *integrationEnv) createProject(t *testing.T, ctx context.Context, ownerID string, goal int64) *models.Project {
	t.Helper()
	project, err := env.projectService.CreateProject(ctx, &models.Project{
		OwnerProfileID: ownerID,
		Slug:           fmt.Sprintf("project-%s", uuid.New().String()[:8]),
		Title:          "Test Project",
		GoalAmountSats: &goal,
	})
	require.NoError(t, err)
	return project
}

func TestDonationLifecycle(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	donor := env.createProfile(t, ctx)
	owner := env.createProfile(t, ctx)
	project := env.createProject(t, ctx, owner.ID, 100_000)

	tx, err := env.ledgerService.CreateTransaction(ctx, &models.Transaction{
		AmountSats:     30_000,
		FromEntityType: types.EntityProfile,
		FromEntityID:   donor.ID,
		ToEntityType:   types.EntityProject,
		ToEntityID:     project.ID,
	}, donor.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, tx.Status)
	assert.NotEmpty(t, tx.Verification)

	// Pending entries do not touch the cached aggregate.
	got, err := env.projectService.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.RaisedAmountSats)
	assert.Equal(t, 0, got.ContributorCount)

	_, err = env.ledgerService.UpdateTransactionStatus(ctx, tx.ID, types.StatusConfirmed, "operator")
	require.NoError(t, err)

	got, err = env.projectService.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30_000), got.RaisedAmountSats)
	assert.Equal(t, 1, got.ContributorCount)

	// Compensating reversal rolls the aggregate back.
	_, err = env.ledgerService.UpdateTransactionStatus(ctx, tx.ID, types.StatusFailed, "operator")
	require.NoError(t, err)

	got, err = env.projectService.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.RaisedAmountSats)
	assert.Equal(t, 0, got.ContributorCount)

	// Failed is terminal.
	_, err = env.ledgerService.UpdateTransactionStatus(ctx, tx.ID, types.StatusConfirmed, "operator")
	require.Error(t, err)
	catErr, ok := err.(*apperrors.CategorizedError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConflict, catErr.Code)

	// The full history is auditable.
	final, err := env.ledgerService.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, final.AuditTrail, 3)
	assert.Equal(t, "created", final.AuditTrail[0].Action)

	verified, err := env.ledgerService.VerifyTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestListTransactionsStatusFilterCoversBothDirections(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	subject := env.createProfile(t, ctx)
	peer := env.createProfile(t, ctx)

	// One confirmed inbound and one pending outbound for the same entity.
	inbound, err := env.ledgerService.CreateTransaction(ctx, &models.Transaction{
		AmountSats:     5_000,
		FromEntityType: types.EntityProfile,
		FromEntityID:   peer.ID,
		ToEntityType:   types.EntityProfile,
		ToEntityID:     subject.ID,
		Status:         types.StatusConfirmed,
	}, peer.ID)
	require.NoError(t, err)

	_, err = env.ledgerService.CreateTransaction(ctx, &models.Transaction{
		AmountSats:     7_000,
		FromEntityType: types.EntityProfile,
		FromEntityID:   subject.ID,
		ToEntityType:   types.EntityProfile,
		ToEntityID:     peer.ID,
		Status:         types.StatusPending,
	}, subject.ID)
	require.NoError(t, err)

	confirmed := types.StatusConfirmed
	txs, err := env.ledgerService.ListTransactionsByEntity(ctx, types.EntityProfile, subject.ID,
		&storage.TransactionFilters{Status: &confirmed})
	require.NoError(t, err)

	// The filter must also exclude outbound rows, not just inbound ones.
	require.Len(t, txs, 1)
	assert.Equal(t, inbound.ID, txs[0].ID)

	unfiltered, err := env.ledgerService.ListTransactionsByEntity(ctx, types.EntityProfile, subject.ID, nil)
	require.NoError(t, err)
	assert.Len(t, unfiltered, 2)
}

func TestVerifyTransactionAfterRoundTrip(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	donor := env.createProfile(t, ctx)
	owner := env.createProfile(t, ctx)
	project := env.createProject(t, ctx, owner.ID, 100_000)

	tx, err := env.ledgerService.CreateTransaction(ctx, &models.Transaction{
		AmountSats:     12_345,
		FromEntityType: types.EntityProfile,
		FromEntityID:   donor.ID,
		ToEntityType:   types.EntityProject,
		ToEntityID:     project.ID,
	}, donor.ID)
	require.NoError(t, err)

	// VerifyTransaction recomputes the hash over the row as stored, so a
	// timestamp precision mismatch between Go and the column would fail here.
	verified, err := env.ledgerService.VerifyTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestDanglingReferenceRejected(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	donor := env.createProfile(t, ctx)

	_, err := env.ledgerService.CreateTransaction(ctx, &models.Transaction{
		AmountSats:     10_000,
		FromEntityType: types.EntityProfile,
		FromEntityID:   donor.ID,
		ToEntityType:   types.EntityProject,
		ToEntityID:     uuid.New().String(),
	}, donor.ID)
	require.Error(t, err)

	catErr, ok := err.(*apperrors.CategorizedError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeReference, catErr.Code)
}

func TestGoalMilestones(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	donor := env.createProfile(t, ctx)
	owner := env.createProfile(t, ctx)
	project := env.createProject(t, ctx, owner.ID, 100_000)

	goal := int64(100_000)
	wallet, err := env.walletService.CreateWallet(ctx, &models.Wallet{
		WalletType:     types.WalletAddress,
		Value:          testAddress,
		Label:          "campaign goal",
		BehaviorType:   types.BehaviorOneTimeGoal,
		GoalAmountSats: &goal,
	}, types.EntityProject, project.ID)
	require.NoError(t, err)

	donate := func(amount int64) {
		t.Helper()
		_, err := env.ledgerService.CreateTransaction(ctx, &models.Transaction{
			AmountSats:     amount,
			FromEntityType: types.EntityProfile,
			FromEntityID:   donor.ID,
			ToEntityType:   types.EntityProject,
			ToEntityID:     project.ID,
			Status:         types.StatusConfirmed,
		}, donor.ID)
		require.NoError(t, err)
	}

	donate(30_000)

	milestones, err := env.milestoneRepo.ListByWallet(ctx, wallet.ID)
	require.NoError(t, err)
	require.Len(t, milestones, 1)
	assert.Equal(t, 25, milestones[0].MilestonePercent)

	// 30k + 30k crosses 50% but must not re-record 25%.
	donate(30_000)

	milestones, err = env.milestoneRepo.ListByWallet(ctx, wallet.ID)
	require.NoError(t, err)
	require.Len(t, milestones, 2)
	assert.Equal(t, 25, milestones[0].MilestonePercent)
	assert.Equal(t, 50, milestones[1].MilestonePercent)

	// Overshooting the goal records the remaining thresholds once.
	donate(100_000)

	milestones, err = env.milestoneRepo.ListByWallet(ctx, wallet.ID)
	require.NoError(t, err)
	require.Len(t, milestones, 4)
	assert.Equal(t, 100, milestones[3].MilestonePercent)
}

func TestActiveWalletCap(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	owner := env.createProfile(t, ctx)

	newWallet := func() (*models.Wallet, error) {
		return env.walletService.CreateWallet(ctx, &models.Wallet{
			WalletType: types.WalletAddress,
			Value:      testAddress,
			Label:      "spending",
		}, types.EntityProfile, owner.ID)
	}

	var last *models.Wallet
	for i := 0; i < 3; i++ {
		w, err := newWallet()
		require.NoError(t, err)
		last = w
	}

	_, err := newWallet()
	require.Error(t, err)
	catErr, ok := err.(*apperrors.CategorizedError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeLimitExceeded, catErr.Code)

	// Deactivating frees a slot.
	require.NoError(t, env.walletService.DeactivateWallet(ctx, last.ID))

	_, err = newWallet()
	assert.NoError(t, err)
}

func TestBudgetSpendTracking(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	spender := env.createProfile(t, ctx)
	recipient := env.createProfile(t, ctx)

	budget := int64(50_000)
	periodType := types.PeriodMonthly
	startDay := 1
	wallet, err := env.walletService.CreateWallet(ctx, &models.Wallet{
		WalletType:       types.WalletAddress,
		Value:            testAddress,
		Label:            "groceries",
		BehaviorType:     types.BehaviorRecurringBudget,
		BudgetAmountSats: &budget,
		BudgetPeriod:     &periodType,
		BudgetStartDay:   &startDay,
	}, types.EntityProfile, spender.ID)
	require.NoError(t, err)

	// Wallet creation opens the first window.
	periods, err := env.budgetService.PeriodHistory(ctx, wallet.ID, 10)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, types.PeriodActive, periods[0].Status)
	assert.Equal(t, int64(0), periods[0].AmountSpent)

	tx, err := env.ledgerService.CreateTransaction(ctx, &models.Transaction{
		AmountSats:     10_000,
		FromEntityType: types.EntityProfile,
		FromEntityID:   spender.ID,
		ToEntityType:   types.EntityProfile,
		ToEntityID:     recipient.ID,
		Status:         types.StatusConfirmed,
	}, spender.ID)
	require.NoError(t, err)

	periods, err = env.budgetService.PeriodHistory(ctx, wallet.ID, 10)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, int64(10_000), periods[0].AmountSpent)

	// Reversing the debit hands the spend back.
	_, err = env.ledgerService.UpdateTransactionStatus(ctx, tx.ID, types.StatusCancelled, "operator")
	require.NoError(t, err)

	periods, err = env.budgetService.PeriodHistory(ctx, wallet.ID, 10)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, int64(0), periods[0].AmountSpent)
}

func TestPostFanOutAndRateLimit(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	author := env.createProfile(t, ctx)
	other := env.createProfile(t, ctx)

	post, err := env.postService.CreatePostWithVisibility(ctx, author.ID, "first update",
		[]types.TimelineType{types.TimelineCommunity, types.TimelineProfile},
		[]*string{nil, &author.ID})
	require.NoError(t, err)

	visibilities, err := env.postService.ListVisibilities(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, visibilities, 2)

	timeline, err := env.postService.GetTimeline(ctx, types.TimelineProfile, author.ID, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, timeline)
	assert.Equal(t, post.ID, timeline[0].ID)

	// Second post fits the limit of two per hour.
	_, err = env.postService.CreatePostWithVisibility(ctx, author.ID, "second update",
		[]types.TimelineType{types.TimelineCommunity}, []*string{nil})
	require.NoError(t, err)

	// Third trips it.
	_, err = env.postService.CreatePostWithVisibility(ctx, author.ID, "third update",
		[]types.TimelineType{types.TimelineCommunity}, []*string{nil})
	require.Error(t, err)
	catErr, ok := err.(*apperrors.CategorizedError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeRateLimitExceeded, catErr.Code)

	// The limit is per author.
	_, err = env.postService.CreatePostWithVisibility(ctx, other.ID, "unrelated",
		[]types.TimelineType{types.TimelineCommunity}, []*string{nil})
	require.NoError(t, err)

	// Fan-out to a dangling owner aborts the whole write.
	danglingID := uuid.New().String()
	_, err = env.postService.CreatePostWithVisibility(ctx, other.ID, "half valid",
		[]types.TimelineType{types.TimelineCommunity, types.TimelineProject},
		[]*string{nil, &danglingID})
	require.Error(t, err)
	catErr, ok = err.(*apperrors.CategorizedError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeReference, catErr.Code)
}

// TestCommunityTimelineCacheGrowingLimits reads the cached community feed
// with a small limit first and a larger one second. The first read must not
// pin the cache to its own page size.
func TestCommunityTimelineCacheGrowingLimits(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := logging.NewLogger(logging.LevelError, logging.FormatText)
	profileRepo := storage.NewProfileRepository(env.db)
	projectRepo := storage.NewProjectRepository(env.db)
	walletRepo := storage.NewWalletRepository(env.db)
	postRepo := storage.NewPostRepository(env.db)
	refValidator := NewReferenceValidator(profileRepo, projectRepo, postRepo, walletRepo, logger)
	svc := NewPostService(env.db, postRepo, profileRepo, refValidator, storage.NewRedisCacheFromClient(client), 100, time.Minute, logger)

	created := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		author := env.createProfile(t, ctx)
		post, err := svc.CreatePostWithVisibility(ctx, author.ID, fmt.Sprintf("community update %d", i),
			[]types.TimelineType{types.TimelineCommunity}, []*string{nil})
		require.NoError(t, err)
		created = append(created, post.ID)
	}

	first, err := svc.GetCommunityTimeline(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := svc.GetCommunityTimeline(ctx, 50, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(second), 4)
	seen := make(map[string]bool, len(second))
	for _, post := range second {
		seen[post.ID] = true
	}
	for _, id := range created {
		assert.True(t, seen[id], "post %s missing from the larger read", id)
	}
}

func TestDeletedPostsDoNotCountTowardLimit(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	author := env.createProfile(t, ctx)

	post, err := env.postService.CreatePostWithVisibility(ctx, author.ID, "soon gone",
		[]types.TimelineType{types.TimelineCommunity}, []*string{nil})
	require.NoError(t, err)

	_, err = env.postService.CreatePostWithVisibility(ctx, author.ID, "stays",
		[]types.TimelineType{types.TimelineCommunity}, []*string{nil})
	require.NoError(t, err)

	require.NoError(t, env.postService.DeletePost(ctx, post.ID))

	_, err = env.postService.CreatePostWithVisibility(ctx, author.ID, "fits again",
		[]types.TimelineType{types.TimelineCommunity}, []*string{nil})
	assert.NoError(t, err)
}

func TestProjectStats(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	donorA := env.createProfile(t, ctx)
	donorB := env.createProfile(t, ctx)
	owner := env.createProfile(t, ctx)
	project := env.createProject(t, ctx, owner.ID, 200_000)

	for _, donation := range []struct {
		donor  string
		amount int64
	}{
		{donorA.ID, 40_000},
		{donorB.ID, 20_000},
		{donorA.ID, 10_000},
	} {
		_, err := env.ledgerService.CreateTransaction(ctx, &models.Transaction{
			AmountSats:     donation.amount,
			FromEntityType: types.EntityProfile,
			FromEntityID:   donation.donor,
			ToEntityType:   types.EntityProject,
			ToEntityID:     project.ID,
			Status:         types.StatusConfirmed,
		}, donation.donor)
		require.NoError(t, err)
	}

	stats, err := env.statsService.GetProjectStats(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70_000), stats.RaisedAmountSats)
	assert.Equal(t, int64(70_000), stats.LedgerTotalSats)
	assert.Equal(t, int64(3), stats.ConfirmedCount)
	assert.Equal(t, int64(2), stats.DistinctSupporters)
	assert.Equal(t, 3, stats.ContributorCount)
	assert.Equal(t, int64(70_000), stats.Last24h.TotalSats)
}

func TestBudgetPeriodRolling(t *testing.T) {
	env := setupIntegration(t)
	ctx := context.Background()

	spender := env.createProfile(t, ctx)

	budget := int64(50_000)
	periodType := types.PeriodWeekly
	startDay := 1
	wallet, err := env.walletService.CreateWallet(ctx, &models.Wallet{
		WalletType:       types.WalletAddress,
		Value:            testAddress,
		Label:            "weekly allowance",
		BehaviorType:     types.BehaviorRecurringBudget,
		BudgetAmountSats: &budget,
		BudgetPeriod:     &periodType,
		BudgetStartDay:   &startDay,
	}, types.EntityProfile, spender.ID)
	require.NoError(t, err)

	// Rolling three weeks ahead closes the stale window plus the gap weeks
	// and leaves one active window containing the target instant.
	future := time.Now().UTC().AddDate(0, 0, 21)
	require.NoError(t, env.budgetService.RollWalletPeriod(ctx, wallet.ID, future))

	periods, err := env.budgetService.PeriodHistory(ctx, wallet.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, periods)

	var active []*models.BudgetPeriod
	for _, p := range periods {
		if p.Status == types.PeriodActive {
			active = append(active, p)
		} else {
			require.NotNil(t, p.CompletionRate)
		}
	}
	require.Len(t, active, 1)
	assert.False(t, active[0].PeriodStart.After(future))
	assert.True(t, active[0].PeriodEnd.After(future))
}
