package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/funding-ledger/internal/types"
)

// Transaction is one ledger entry of value movement between two typed
// entities. Both endpoints use the polymorphic (type, id) reference pattern.
type Transaction struct {
	ID             string                  `json:"id" db:"id"`
	AmountSats     int64                   `json:"amountSats" db:"amount_sats"`
	FromEntityType types.EntityType        `json:"fromEntityType" db:"from_entity_type"`
	FromEntityID   string                  `json:"fromEntityId" db:"from_entity_id"`
	ToEntityType   types.EntityType        `json:"toEntityType" db:"to_entity_type"`
	ToEntityID     string                  `json:"toEntityId" db:"to_entity_id"`
	PaymentMethod  string                  `json:"paymentMethod" db:"payment_method"`
	Status         types.TransactionStatus `json:"status" db:"status"`
	Memo           string                  `json:"memo,omitempty" db:"memo"`
	AuditTrail     []AuditEvent            `json:"auditTrail,omitempty" db:"audit_trail"`
	Verification   string                  `json:"verificationHash" db:"verification_hash"`
	CreatedAt      time.Time               `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time               `json:"updatedAt" db:"updated_at"`
}

// AuditEvent is one entry of a transaction's audit trail JSON.
type AuditEvent struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	From   string    `json:"from,omitempty"`
	To     string    `json:"to,omitempty"`
}

// verificationPayload is the canonical subset of fields covered by the
// verification hash. Field order is fixed by the struct definition, so
// marshalling is deterministic.
type verificationPayload struct {
	ID             string `json:"id"`
	AmountSats     int64  `json:"amount_sats"`
	FromEntityType string `json:"from_entity_type"`
	FromEntityID   string `json:"from_entity_id"`
	ToEntityType   string `json:"to_entity_type"`
	ToEntityID     string `json:"to_entity_id"`
	CreatedAt      string `json:"created_at"`
}

// hashTimeFormat pins the hashed timestamp to microsecond precision, the
// most a timestamptz column stores. Hashing at nanosecond precision would
// break verification on the first read-back.
const hashTimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// ComputeVerificationHash derives the SHA-256 integrity hash over the
// immutable fields of the transaction.
func (t *Transaction) ComputeVerificationHash() string {
	payload := verificationPayload{
		ID:             t.ID,
		AmountSats:     t.AmountSats,
		FromEntityType: string(t.FromEntityType),
		FromEntityID:   t.FromEntityID,
		ToEntityType:   string(t.ToEntityType),
		ToEntityID:     t.ToEntityID,
		CreatedAt:      t.CreatedAt.UTC().Truncate(time.Microsecond).Format(hashTimeFormat),
	}

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the verification hash and compares it to the stored one.
func (t *Transaction) Verify() bool {
	return t.Verification == t.ComputeVerificationHash()
}
