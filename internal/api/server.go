// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/service"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

// Service interfaces for dependency injection and testing

// ProfileServiceInterface defines the interface for profile operations
type ProfileServiceInterface interface {
	CreateProfile(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, profile *models.Profile) error
	RetireProfile(ctx context.Context, id string) error
	DeleteProfile(ctx context.Context, id string) error
	ListProfiles(ctx context.Context, limit, offset int) ([]*models.Profile, error)
}

// ProjectServiceInterface defines the interface for project operations
type ProjectServiceInterface interface {
	CreateProject(ctx context.Context, project *models.Project) (*models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjectsByOwner(ctx context.Context, ownerProfileID string, limit, offset int) ([]*models.Project, error)
	ListProjects(ctx context.Context, limit, offset int) ([]*models.Project, error)
}

// WalletServiceInterface defines the interface for wallet operations
type WalletServiceInterface interface {
	CreateWallet(ctx context.Context, wallet *models.Wallet, ownerType types.EntityType, ownerID string) (*models.Wallet, error)
	GetWallet(ctx context.Context, id string) (*models.Wallet, error)
	ListWalletsByOwner(ctx context.Context, ownerType types.EntityType, ownerID string) ([]*models.Wallet, error)
	UpdateWallet(ctx context.Context, wallet *models.Wallet) error
	DeactivateWallet(ctx context.Context, id string) error
	DeleteWallet(ctx context.Context, id string) error
	RepointOwnership(ctx context.Context, ownershipID string, ownerType types.EntityType, ownerID string) error
}

// LedgerServiceInterface defines the interface for ledger operations
type LedgerServiceInterface interface {
	CreateTransaction(ctx context.Context, t *models.Transaction, actor string) (*models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status types.TransactionStatus, actor string) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string, actor string) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactionsByEntity(ctx context.Context, entityType types.EntityType, entityID string, filters *storage.TransactionFilters) ([]*models.Transaction, error)
	VerifyTransaction(ctx context.Context, id string) (bool, error)
}

// PostServiceInterface defines the interface for post operations
type PostServiceInterface interface {
	CreatePostWithVisibility(ctx context.Context, authorProfileID, content string, timelineTypes []types.TimelineType, ownerIDs []*string) (*models.Post, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	GetTimeline(ctx context.Context, timelineType types.TimelineType, ownerID string, limit, offset int) ([]*models.Post, error)
	GetCommunityTimeline(ctx context.Context, limit, offset int) ([]*models.Post, error)
	DeletePost(ctx context.Context, id string) error
	ListVisibilities(ctx context.Context, postID string) ([]*models.PostVisibility, error)
}

// BudgetServiceInterface defines the interface for budget period operations
type BudgetServiceInterface interface {
	SweepDuePeriods(ctx context.Context, now time.Time) (int, error)
	PeriodHistory(ctx context.Context, walletID string, limit int) ([]*models.BudgetPeriod, error)
}

// BalanceServiceInterface defines the interface for balance operations
type BalanceServiceInterface interface {
	RecordBalance(ctx context.Context, walletID string, result *service.BalanceResult) (*models.Wallet, error)
	RefreshBalance(ctx context.Context, walletID string) (*models.Wallet, error)
}

// StatsServiceInterface defines the interface for stats operations
type StatsServiceInterface interface {
	GetProjectStats(ctx context.Context, projectID string) (*service.ProjectStats, error)
}

// MilestoneReader lists reached goal milestones for a wallet
type MilestoneReader interface {
	ListByWallet(ctx context.Context, walletID string) ([]*models.GoalMilestone, error)
}

// Server represents the HTTP API server.
type Server struct {
	router         *mux.Router
	httpServer     *http.Server
	profileService ProfileServiceInterface
	projectService ProjectServiceInterface
	walletService  WalletServiceInterface
	ledgerService  LedgerServiceInterface
	postService    PostServiceInterface
	budgetService  BudgetServiceInterface
	balanceService BalanceServiceInterface
	statsService   StatsServiceInterface
	milestones     MilestoneReader
	db             *storage.PostgresDB
	config         *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	ActorRPS        int
	Burst           int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	profileService ProfileServiceInterface,
	projectService ProjectServiceInterface,
	walletService WalletServiceInterface,
	ledgerService LedgerServiceInterface,
	postService PostServiceInterface,
	budgetService BudgetServiceInterface,
	balanceService BalanceServiceInterface,
	statsService StatsServiceInterface,
	milestones MilestoneReader,
	db *storage.PostgresDB,
) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		profileService: profileService,
		projectService: projectService,
		walletService:  walletService,
		ledgerService:  ledgerService,
		postService:    postService,
		budgetService:  budgetService,
		balanceService: balanceService,
		statsService:   statsService,
		milestones:     milestones,
		db:             db,
		config:         config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.ActorRPS, s.config.Burst)

	// Middleware order matters
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Profile endpoints
	api.HandleFunc("/profiles", s.handleCreateProfile).Methods("POST")
	api.HandleFunc("/profiles", s.handleListProfiles).Methods("GET")
	api.HandleFunc("/profiles/username/{username}", s.handleGetProfileByUsername).Methods("GET")
	api.HandleFunc("/profiles/{id}", s.handleGetProfile).Methods("GET")
	api.HandleFunc("/profiles/{id}", s.handleUpdateProfile).Methods("PUT")
	api.HandleFunc("/profiles/{id}", s.handleDeleteProfile).Methods("DELETE")
	api.HandleFunc("/profiles/{id}/retire", s.handleRetireProfile).Methods("POST")
	api.HandleFunc("/profiles/{id}/projects", s.handleListProjectsByOwner).Methods("GET")

	// Project endpoints
	api.HandleFunc("/projects", s.handleCreateProject).Methods("POST")
	api.HandleFunc("/projects", s.handleListProjects).Methods("GET")
	api.HandleFunc("/projects/slug/{slug}", s.handleGetProjectBySlug).Methods("GET")
	api.HandleFunc("/projects/{id}", s.handleGetProject).Methods("GET")
	api.HandleFunc("/projects/{id}", s.handleUpdateProject).Methods("PUT")
	api.HandleFunc("/projects/{id}", s.handleDeleteProject).Methods("DELETE")
	api.HandleFunc("/projects/{id}/stats", s.handleGetProjectStats).Methods("GET")

	// Wallet endpoints
	api.HandleFunc("/wallets", s.handleCreateWallet).Methods("POST")
	api.HandleFunc("/wallets/{id}", s.handleGetWallet).Methods("GET")
	api.HandleFunc("/wallets/{id}", s.handleUpdateWallet).Methods("PUT")
	api.HandleFunc("/wallets/{id}", s.handleDeleteWallet).Methods("DELETE")
	api.HandleFunc("/wallets/{id}/deactivate", s.handleDeactivateWallet).Methods("POST")
	api.HandleFunc("/wallets/{id}/balance", s.handleRecordBalance).Methods("POST")
	api.HandleFunc("/wallets/{id}/balance/refresh", s.handleRefreshBalance).Methods("POST")
	api.HandleFunc("/wallets/{id}/periods", s.handleListBudgetPeriods).Methods("GET")
	api.HandleFunc("/wallets/{id}/milestones", s.handleListMilestones).Methods("GET")
	api.HandleFunc("/ownerships/{id}", s.handleRepointOwnership).Methods("PUT")
	api.HandleFunc("/owners/{ownerType}/{ownerId}/wallets", s.handleListWalletsByOwner).Methods("GET")

	// Transaction endpoints
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods("POST")
	api.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods("GET")
	api.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods("DELETE")
	api.HandleFunc("/transactions/{id}/status", s.handleUpdateTransactionStatus).Methods("PUT")
	api.HandleFunc("/transactions/{id}/verify", s.handleVerifyTransaction).Methods("GET")
	api.HandleFunc("/owners/{ownerType}/{ownerId}/transactions", s.handleListTransactionsByEntity).Methods("GET")

	// Post and timeline endpoints
	api.HandleFunc("/posts", s.handleCreatePost).Methods("POST")
	api.HandleFunc("/posts/{id}", s.handleGetPost).Methods("GET")
	api.HandleFunc("/posts/{id}", s.handleDeletePost).Methods("DELETE")
	api.HandleFunc("/posts/{id}/visibilities", s.handleListVisibilities).Methods("GET")
	api.HandleFunc("/timelines/community", s.handleGetCommunityTimeline).Methods("GET")
	api.HandleFunc("/timelines/{type}/{ownerId}", s.handleGetTimeline).Methods("GET")

	// Budget sweep (cron-style external trigger)
	api.HandleFunc("/budget/sweep", s.handleSweepBudgetPeriods).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"service": "funding-ledger",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
