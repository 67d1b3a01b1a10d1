package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

const balanceCooldownKeyPrefix = "balance:cooldown:"

// BalanceResult is what an external lookup returns for an address or xpub.
type BalanceResult struct {
	BalanceBTC decimal.Decimal `json:"balanceBtc"`
	TxCount    int             `json:"txCount"`
}

// BalanceLookup resolves an address or xpub to its on-chain balance. The
// core never talks to the network itself; implementations live outside.
type BalanceLookup interface {
	Lookup(ctx context.Context, walletType types.WalletType, value string) (*BalanceResult, error)
}

// BalanceService stores externally refreshed wallet balances behind a
// per-wallet cooldown so upstream APIs are not hammered.
type BalanceService struct {
	walletRepo *storage.WalletRepository
	cache      *storage.RedisCache
	lookup     BalanceLookup
	cooldown   time.Duration
	logger     *logging.Logger
}

// NewBalanceService creates a new balance service. lookup may be nil when
// only direct RecordBalance calls are expected.
func NewBalanceService(
	walletRepo *storage.WalletRepository,
	cache *storage.RedisCache,
	lookup BalanceLookup,
	cooldown time.Duration,
	logger *logging.Logger,
) *BalanceService {
	return &BalanceService{
		walletRepo: walletRepo,
		cache:      cache,
		lookup:     lookup,
		cooldown:   cooldown,
		logger:     logger,
	}
}

// acquireCooldown takes the wallet's refresh slot or reports how long until
// it frees up.
func (s *BalanceService) acquireCooldown(ctx context.Context, walletID string) error {
	if s.cache == nil {
		return nil
	}

	key := balanceCooldownKeyPrefix + walletID
	acquired, err := s.cache.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.cooldown)
	if err != nil {
		return apperrors.NewInternalError("failed to check balance cooldown", err)
	}
	if !acquired {
		retryAfter := int(s.cooldown.Seconds())
		if ttl, err := s.cache.TTL(ctx, key); err == nil && ttl > 0 {
			retryAfter = int(ttl.Seconds())
		}
		return apperrors.NewCooldownError(walletID, retryAfter)
	}

	return nil
}

// RecordBalance stores a lookup result for a wallet, subject to the
// per-wallet cooldown.
func (s *BalanceService) RecordBalance(ctx context.Context, walletID string, result *BalanceResult) (*models.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}

	if err := s.acquireCooldown(ctx, walletID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.walletRepo.RecordBalance(ctx, walletID, result.BalanceBTC, result.TxCount, now); err != nil {
		return nil, err
	}

	wallet.BalanceBTC = result.BalanceBTC
	wallet.TxCount = result.TxCount
	wallet.LastRefreshed = &now

	s.logger.WithFields(map[string]interface{}{
		"wallet_id":   walletID,
		"balance_btc": result.BalanceBTC.String(),
		"tx_count":    result.TxCount,
	}).Info("Recorded wallet balance")

	return wallet, nil
}

// RefreshBalance performs the external lookup and stores the result. Fails
// with CooldownError when the wallet was refreshed within the window.
func (s *BalanceService) RefreshBalance(ctx context.Context, walletID string) (*models.Wallet, error) {
	if s.lookup == nil {
		return nil, apperrors.NewInternalError("no balance lookup configured", nil)
	}

	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}

	if err := s.acquireCooldown(ctx, walletID); err != nil {
		return nil, err
	}

	result, err := s.lookup.Lookup(ctx, wallet.WalletType, wallet.Value)
	if err != nil {
		return nil, apperrors.NewInternalError("balance lookup failed", err)
	}

	now := time.Now().UTC()
	if err := s.walletRepo.RecordBalance(ctx, walletID, result.BalanceBTC, result.TxCount, now); err != nil {
		return nil, err
	}

	wallet.BalanceBTC = result.BalanceBTC
	wallet.TxCount = result.TxCount
	wallet.LastRefreshed = &now

	return wallet, nil
}
