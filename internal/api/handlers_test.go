package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/service"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

// Stubs implementing the service interfaces; only the methods a test
// exercises carry behavior, everything else returns not found.

type stubProfileService struct {
	profiles map[string]*models.Profile
}

func (s *stubProfileService) CreateProfile(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	profile.ID = "generated-id"
	return profile, nil
}

func (s *stubProfileService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return nil, apperrors.NewNotFoundError("profile", id)
}

func (s *stubProfileService) GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error) {
	for _, p := range s.profiles {
		if p.Username == username {
			return p, nil
		}
	}
	return nil, apperrors.NewNotFoundError("profile", username)
}

func (s *stubProfileService) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	return nil
}

func (s *stubProfileService) RetireProfile(ctx context.Context, id string) error { return nil }
func (s *stubProfileService) DeleteProfile(ctx context.Context, id string) error { return nil }

func (s *stubProfileService) ListProfiles(ctx context.Context, limit, offset int) ([]*models.Profile, error) {
	return nil, nil
}

type stubLedgerService struct {
	lastActor string
}

func (s *stubLedgerService) CreateTransaction(ctx context.Context, t *models.Transaction, actor string) (*models.Transaction, error) {
	s.lastActor = actor
	t.ID = "tx-1"
	if t.Status == "" {
		t.Status = types.StatusPending
	}
	return t, nil
}

func (s *stubLedgerService) UpdateTransactionStatus(ctx context.Context, id string, status types.TransactionStatus, actor string) (*models.Transaction, error) {
	if !types.ValidTransactionStatus(status) {
		return nil, apperrors.NewValidationError("status", "unknown status")
	}
	return &models.Transaction{ID: id, Status: status}, nil
}

func (s *stubLedgerService) DeleteTransaction(ctx context.Context, id string, actor string) error {
	return nil
}

func (s *stubLedgerService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return nil, apperrors.NewNotFoundError("transaction", id)
}

func (s *stubLedgerService) ListTransactionsByEntity(ctx context.Context, entityType types.EntityType, entityID string, filters *storage.TransactionFilters) ([]*models.Transaction, error) {
	return nil, nil
}

func (s *stubLedgerService) VerifyTransaction(ctx context.Context, id string) (bool, error) {
	return true, nil
}

type stubPostService struct{}

func (s *stubPostService) CreatePostWithVisibility(ctx context.Context, authorProfileID, content string, timelineTypes []types.TimelineType, ownerIDs []*string) (*models.Post, error) {
	if len(timelineTypes) != len(ownerIDs) {
		return nil, apperrors.NewArityMismatchError(len(timelineTypes), len(ownerIDs))
	}
	return &models.Post{ID: "post-1", AuthorProfileID: authorProfileID, Content: content}, nil
}

func (s *stubPostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	return nil, apperrors.NewNotFoundError("post", id)
}

func (s *stubPostService) GetTimeline(ctx context.Context, timelineType types.TimelineType, ownerID string, limit, offset int) ([]*models.Post, error) {
	return nil, nil
}

func (s *stubPostService) GetCommunityTimeline(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return []*models.Post{{ID: "post-1", Content: "hello"}}, nil
}

func (s *stubPostService) DeletePost(ctx context.Context, id string) error { return nil }

func (s *stubPostService) ListVisibilities(ctx context.Context, postID string) ([]*models.PostVisibility, error) {
	return nil, nil
}

type noopProjectService struct{}

func (noopProjectService) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	return project, nil
}
func (noopProjectService) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return nil, apperrors.NewNotFoundError("project", id)
}
func (noopProjectService) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	return nil, apperrors.NewNotFoundError("project", slug)
}
func (noopProjectService) UpdateProject(ctx context.Context, project *models.Project) error {
	return nil
}
func (noopProjectService) DeleteProject(ctx context.Context, id string) error { return nil }
func (noopProjectService) ListProjectsByOwner(ctx context.Context, ownerProfileID string, limit, offset int) ([]*models.Project, error) {
	return nil, nil
}
func (noopProjectService) ListProjects(ctx context.Context, limit, offset int) ([]*models.Project, error) {
	return nil, nil
}

type noopWalletService struct{}

func (noopWalletService) CreateWallet(ctx context.Context, wallet *models.Wallet, ownerType types.EntityType, ownerID string) (*models.Wallet, error) {
	return wallet, nil
}
func (noopWalletService) GetWallet(ctx context.Context, id string) (*models.Wallet, error) {
	return nil, apperrors.NewNotFoundError("wallet", id)
}
func (noopWalletService) ListWalletsByOwner(ctx context.Context, ownerType types.EntityType, ownerID string) ([]*models.Wallet, error) {
	return nil, nil
}
func (noopWalletService) UpdateWallet(ctx context.Context, wallet *models.Wallet) error { return nil }
func (noopWalletService) DeactivateWallet(ctx context.Context, id string) error         { return nil }
func (noopWalletService) DeleteWallet(ctx context.Context, id string) error             { return nil }
func (noopWalletService) RepointOwnership(ctx context.Context, ownershipID string, ownerType types.EntityType, ownerID string) error {
	return nil
}

type noopBudgetService struct{}

func (noopBudgetService) SweepDuePeriods(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
func (noopBudgetService) PeriodHistory(ctx context.Context, walletID string, limit int) ([]*models.BudgetPeriod, error) {
	return nil, nil
}

type noopBalanceService struct{}

func (noopBalanceService) RecordBalance(ctx context.Context, walletID string, result *service.BalanceResult) (*models.Wallet, error) {
	return nil, apperrors.NewNotFoundError("wallet", walletID)
}
func (noopBalanceService) RefreshBalance(ctx context.Context, walletID string) (*models.Wallet, error) {
	return nil, apperrors.NewCooldownError(walletID, 30)
}

type noopStatsService struct{}

func (noopStatsService) GetProjectStats(ctx context.Context, projectID string) (*service.ProjectStats, error) {
	return nil, apperrors.NewNotFoundError("project", projectID)
}

type noopMilestoneReader struct{}

func (noopMilestoneReader) ListByWallet(ctx context.Context, walletID string) ([]*models.GoalMilestone, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *stubLedgerService) {
	t.Helper()

	ledger := &stubLedgerService{}
	profiles := &stubProfileService{profiles: map[string]*models.Profile{
		"p1": {ID: "p1", Username: "satoshi", DisplayName: "Satoshi"},
	}}

	srv := NewServer(
		&ServerConfig{Host: "127.0.0.1", Port: "0", ActorRPS: 1000, Burst: 1000},
		profiles,
		noopProjectService{},
		noopWalletService{},
		ledger,
		&stubPostService{},
		noopBudgetService{},
		noopBalanceService{},
		noopStatsService{},
		noopMilestoneReader{},
		nil,
	)
	return srv, ledger
}

func doRequest(srv *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "funding-ledger", body["service"])
}

func TestGetProfile(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("existing profile", func(t *testing.T) {
		rec := doRequest(srv, http.MethodGet, "/api/profiles/p1", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var profile models.Profile
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
		assert.Equal(t, "satoshi", profile.Username)
	})

	t.Run("missing profile maps to 404", func(t *testing.T) {
		rec := doRequest(srv, http.MethodGet, "/api/profiles/nope", nil, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, apperrors.CodeNotFound, body.Error.Code)
	})
}

func TestCreateTransaction(t *testing.T) {
	srv, ledger := newTestServer(t)

	payload := map[string]interface{}{
		"amountSats":     int64(50_000),
		"fromEntityType": "profile",
		"fromEntityId":   "p1",
		"toEntityType":   "project",
		"toEntityId":     "pr1",
	}

	rec := doRequest(srv, http.MethodPost, "/api/transactions", payload,
		map[string]string{"X-Actor-ID": "p1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var tx models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	assert.Equal(t, int64(50_000), tx.AmountSats)
	assert.Equal(t, types.StatusPending, tx.Status)
	assert.Equal(t, "p1", ledger.lastActor)
}

func TestCreatePost(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("valid fan-out", func(t *testing.T) {
		owner := "p1"
		payload := map[string]interface{}{
			"authorProfileId":  "p1",
			"content":          "launch day",
			"timelineTypes":    []string{"community", "profile"},
			"timelineOwnerIds": []*string{nil, &owner},
		}

		rec := doRequest(srv, http.MethodPost, "/api/posts", payload, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("mismatched arrays map to 400", func(t *testing.T) {
		payload := map[string]interface{}{
			"authorProfileId":  "p1",
			"content":          "launch day",
			"timelineTypes":    []string{"community", "profile"},
			"timelineOwnerIds": []*string{nil},
		}

		rec := doRequest(srv, http.MethodPost, "/api/posts", payload, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, apperrors.CodeArityMismatch, body.Error.Code)
	})

	t.Run("author falls back to actor header", func(t *testing.T) {
		payload := map[string]interface{}{
			"content":          "from header",
			"timelineTypes":    []string{"community"},
			"timelineOwnerIds": []*string{nil},
		}

		rec := doRequest(srv, http.MethodPost, "/api/posts", payload,
			map[string]string{"X-Actor-ID": "p1"})
		require.Equal(t, http.StatusCreated, rec.Code)

		var post models.Post
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
		assert.Equal(t, "p1", post.AuthorProfileID)
	})

	t.Run("no author anywhere maps to 400", func(t *testing.T) {
		payload := map[string]interface{}{
			"content":          "orphan",
			"timelineTypes":    []string{"community"},
			"timelineOwnerIds": []*string{nil},
		}

		rec := doRequest(srv, http.MethodPost, "/api/posts", payload, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCommunityTimeline(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/timelines/community", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Posts []*models.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Posts, 1)
	assert.Equal(t, "hello", body.Posts[0].Content)
}

func TestBalanceRefreshCooldownStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/wallets/w1/balance/refresh", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperrors.CodeCooldown, body.Error.Code)
}

func TestPerActorRateLimit(t *testing.T) {
	limiter := NewRateLimiter(1, 1)

	assert.True(t, limiter.getLimiter("actor-a").Allow())
	assert.False(t, limiter.getLimiter("actor-a").Allow())
	assert.True(t, limiter.getLimiter("actor-b").Allow())
}
