package models

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus tracks a payout through the external payment rail.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "PENDING"
	PayoutConfirmed PayoutStatus = "CONFIRMED"
	PayoutFailed    PayoutStatus = "FAILED"
)

// PayoutTransaction is the audit record for one settlement transfer.
// It is inserted as PENDING before the payment rail is invoked and
// updated once the call returns, so the trail exists even when the rail
// itself is flaky. FAILED rows are the input to manual reconciliation.
type PayoutTransaction struct {
	ID          uuid.UUID    `json:"id"`
	DuelID      uuid.UUID    `json:"duel_id"`
	Wallet      string       `json:"wallet"`
	Amount      int64        `json:"amount"`
	Status      PayoutStatus `json:"status"`
	TxRef       string       `json:"tx_ref,omitempty"`
	FailReason  string       `json:"fail_reason,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	ConfirmedAt *time.Time   `json:"confirmed_at,omitempty"`
}
