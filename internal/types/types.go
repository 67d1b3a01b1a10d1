// Package types provides common type definitions for the funding ledger system.
package types

// EntityType tags the table a polymorphic reference points at.
// The set is closed: organizations are deliberately not a valid owner
// or transaction endpoint in this deployment.
type EntityType string

const (
	// EntityProfile references a row in the profiles table
	EntityProfile EntityType = "profile"
	// EntityProject references a row in the projects table
	EntityProject EntityType = "project"
)

// ValidEntityType reports whether t names a known entity table.
func ValidEntityType(t EntityType) bool {
	return t == EntityProfile || t == EntityProject
}

// WalletType represents how a wallet identifies funds on chain
type WalletType string

const (
	// WalletAddress represents a single Bitcoin address
	WalletAddress WalletType = "address"
	// WalletXpub represents an extended public key covering derived addresses
	WalletXpub WalletType = "xpub"
)

// BehaviorType represents a wallet's operating mode
type BehaviorType string

const (
	// BehaviorGeneral represents a plain balance-tracking wallet
	BehaviorGeneral BehaviorType = "general"
	// BehaviorRecurringBudget represents a wallet with rolling spend windows
	BehaviorRecurringBudget BehaviorType = "recurring_budget"
	// BehaviorOneTimeGoal represents a wallet saving toward a fixed goal
	BehaviorOneTimeGoal BehaviorType = "one_time_goal"
)

// TransactionStatus represents the lifecycle state of a ledger entry
type TransactionStatus string

const (
	// StatusPending represents a transaction awaiting processing
	StatusPending TransactionStatus = "pending"
	// StatusProcessing represents a transaction being settled
	StatusProcessing TransactionStatus = "processing"
	// StatusConfirmed represents a settled transaction; the only state
	// that counts toward cached aggregates
	StatusConfirmed TransactionStatus = "confirmed"
	// StatusFailed represents a transaction that did not settle
	StatusFailed TransactionStatus = "failed"
	// StatusCancelled represents a transaction withdrawn by the caller
	StatusCancelled TransactionStatus = "cancelled"
)

// ValidTransactionStatus reports whether s is a known lifecycle state.
func ValidTransactionStatus(s TransactionStatus) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusConfirmed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TimelineType represents where a post visibility row points
type TimelineType string

const (
	// TimelineProfile displays a post on a profile timeline
	TimelineProfile TimelineType = "profile"
	// TimelineProject displays a post on a project timeline
	TimelineProject TimelineType = "project"
	// TimelineCommunity displays a post on the global community timeline
	TimelineCommunity TimelineType = "community"
)

// BudgetPeriodType represents the length of a recurring budget window
type BudgetPeriodType string

const (
	// PeriodWeekly rolls budget windows every 7 days
	PeriodWeekly BudgetPeriodType = "weekly"
	// PeriodMonthly rolls budget windows every calendar month
	PeriodMonthly BudgetPeriodType = "monthly"
)

// BudgetPeriodStatus represents whether a budget window is still accumulating
type BudgetPeriodStatus string

const (
	// PeriodActive is the single open window per wallet
	PeriodActive BudgetPeriodStatus = "active"
	// PeriodCompleted is a closed, rolled-over window
	PeriodCompleted BudgetPeriodStatus = "completed"
)

// ProfileStatus represents the lifecycle of a profile record
type ProfileStatus string

const (
	// ProfileActive is the normal state
	ProfileActive ProfileStatus = "active"
	// ProfileRetired soft-retires a profile; the row survives while
	// references to it exist
	ProfileRetired ProfileStatus = "retired"
)

const (
	// MaxActiveWallets caps active wallet ownerships per owning entity
	MaxActiveWallets = 10

	// MaxSupplySats is the total Bitcoin supply in satoshis; no single
	// transaction amount may exceed it
	MaxSupplySats int64 = 21_000_000 * 100_000_000

	// SatsPerBTC converts between satoshis and BTC
	SatsPerBTC int64 = 100_000_000
)

// MilestonePercents is the closed set of goal thresholds that fire events.
var MilestonePercents = []int{25, 50, 75, 100}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
