package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind is the kind of state change a movement records.
type MovementKind string

const (
	MovementDeposit    MovementKind = "DEPOSIT"
	MovementWithdrawal MovementKind = "WITHDRAWAL"
	MovementActivate   MovementKind = "ACTIVATE"
	MovementDeactivate MovementKind = "DEACTIVATE"
)

// Valid reports whether k is one of the known kinds.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementDeposit, MovementWithdrawal, MovementActivate, MovementDeactivate:
		return true
	}
	return false
}

// Monetary reports whether the kind moves money.
func (k MovementKind) Monetary() bool {
	return k == MovementDeposit || k == MovementWithdrawal
}

// ParseMovementKind parses a kind case-insensitively.
func ParseMovementKind(s string) (MovementKind, error) {
	k := MovementKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", &ErrValidation{Field: "kind", Message: fmt.Sprintf("unknown movement kind %q", s)}
	}
	return k, nil
}

// ============================================================
// Movements (ledger entries)
// ============================================================

// Movement is an immutable ledger entry. BalanceAfter is the account's
// current balance right after the movement was applied.
type Movement struct {
	ID           int64           `json:"id"`
	AccountID    int64           `json:"account_id"`
	Kind         MovementKind    `json:"kind"`
	Value        decimal.Decimal `json:"value"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	OccurredAt   time.Time       `json:"occurred_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BalanceBefore derives the balance the account had before this movement.
func (m *Movement) BalanceBefore() decimal.Decimal {
	switch m.Kind {
	case MovementDeposit:
		return m.BalanceAfter.Sub(m.Value)
	case MovementWithdrawal:
		return m.BalanceAfter.Add(m.Value)
	default:
		return m.BalanceAfter
	}
}

// MovementDetail is a movement enriched for callers and reports.
type MovementDetail struct {
	Movement
	BalanceBefore decimal.Decimal `json:"balance_before"`
	AccountNumber string          `json:"account_number,omitempty"`
	ClientName    string          `json:"client_name,omitempty"`
}

// NewMovementDetail builds the enriched view of m.
func NewMovementDetail(m Movement, accountNumber, clientName string) MovementDetail {
	return MovementDetail{
		Movement:      m,
		BalanceBefore: m.BalanceBefore(),
		AccountNumber: accountNumber,
		ClientName:    clientName,
	}
}

// MovementEvent is published after a movement commits.
type MovementEvent struct {
	EventID       string          `json:"event_id"`
	MovementID    int64           `json:"movement_id"`
	AccountID     int64           `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	Kind          MovementKind    `json:"kind"`
	Value         decimal.Decimal `json:"value"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
