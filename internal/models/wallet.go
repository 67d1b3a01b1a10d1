package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/funding-ledger/internal/types"
)

// Wallet represents a Bitcoin address or extended-public-key record with an
// optional behavioral mode (recurring budget or one-time goal).
// BalanceBTC is a cached value refreshed by an external lookup, never
// computed by the core.
type Wallet struct {
	ID           string             `json:"id" db:"id"`
	WalletType   types.WalletType   `json:"walletType" db:"wallet_type"`
	Value        string             `json:"value" db:"value"` // address or xpub
	Label        string             `json:"label" db:"label"`
	Category     string             `json:"category,omitempty" db:"category"`
	Icon         string             `json:"icon,omitempty" db:"icon"`
	BehaviorType types.BehaviorType `json:"behaviorType" db:"behavior_type"`
	BalanceBTC   decimal.Decimal    `json:"balanceBtc" db:"balance_btc"`
	TxCount      int                `json:"txCount" db:"tx_count"`

	// Goal fields (behavior_type = one_time_goal)
	GoalAmountSats *int64     `json:"goalAmountSats,omitempty" db:"goal_amount_sats"`
	GoalDeadline   *time.Time `json:"goalDeadline,omitempty" db:"goal_deadline"`

	// Budget fields (behavior_type = recurring_budget)
	BudgetAmountSats *int64                  `json:"budgetAmountSats,omitempty" db:"budget_amount_sats"`
	BudgetPeriod     *types.BudgetPeriodType `json:"budgetPeriod,omitempty" db:"budget_period"`
	BudgetStartDay   *int                    `json:"budgetStartDay,omitempty" db:"budget_start_day"`

	Active        bool       `json:"active" db:"active"`
	LastRefreshed *time.Time `json:"lastRefreshed,omitempty" db:"last_refreshed"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

// WalletOwnership links a wallet to one owning entity. The owner reference
// is polymorphic (OwnerType selects the target table), so referential
// integrity is enforced by the write-path services, not by a foreign key.
type WalletOwnership struct {
	ID        string           `json:"id" db:"id"`
	WalletID  string           `json:"walletId" db:"wallet_id"`
	OwnerType types.EntityType `json:"ownerType" db:"owner_type"`
	OwnerID   string           `json:"ownerId" db:"owner_id"`
	Active    bool             `json:"active" db:"active"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
}

// BudgetPeriod is one spend-tracking window of a recurring-budget wallet.
// Unique on (wallet_id, period_start); exactly one active row per wallet.
type BudgetPeriod struct {
	ID             string                   `json:"id" db:"id"`
	WalletID       string                   `json:"walletId" db:"wallet_id"`
	PeriodStart    time.Time                `json:"periodStart" db:"period_start"`
	PeriodEnd      time.Time                `json:"periodEnd" db:"period_end"`
	AmountSpent    int64                    `json:"amountSpentSats" db:"amount_spent_sats"`
	Status         types.BudgetPeriodStatus `json:"status" db:"status"`
	CompletionRate *decimal.Decimal         `json:"completionRate,omitempty" db:"completion_rate"`
	CreatedAt      time.Time                `json:"createdAt" db:"created_at"`
}

// GoalMilestone records a one-time "N% of goal reached" event for a
// one_time_goal wallet. Unique on (wallet_id, milestone_percent), which is
// what makes milestone detection idempotent under redelivery.
type GoalMilestone struct {
	ID               string    `json:"id" db:"id"`
	WalletID         string    `json:"walletId" db:"wallet_id"`
	MilestonePercent int       `json:"milestonePercent" db:"milestone_percent"`
	ReachedAt        time.Time `json:"reachedAt" db:"reached_at"`
}
