package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Account number length bounds.
const (
	AccountNumberMinLen = 10
	AccountNumberMaxLen = 30
)

// ============================================================
// Accounts
// ============================================================

// Account is a bank account owned by exactly one client.
// CurrentBalance is only changed through Deposit and Withdraw.
type Account struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	Type           string          `json:"type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Active         bool            `json:"active"`
	Deleted        bool            `json:"deleted"`
	ClientID       int64           `json:"client_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewAccount opens an active account whose current balance starts at the
// initial balance.
func NewAccount(in AccountInput, now time.Time) *Account {
	return &Account{
		Number:         in.Number,
		Type:           in.Type,
		InitialBalance: in.InitialBalance,
		CurrentBalance: in.InitialBalance,
		Active:         true,
		ClientID:       in.ClientID,
		CreatedAt:      now,
	}
}

// Deposit adds amount to the current balance.
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ErrInvalidAmount{Amount: amount}
	}
	a.CurrentBalance = a.CurrentBalance.Add(amount)
	return nil
}

// Withdraw subtracts amount from the current balance. The balance is left
// untouched when it does not cover amount.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ErrInvalidAmount{Amount: amount}
	}
	if a.CurrentBalance.LessThan(amount) {
		return &ErrInsufficientFunds{Available: a.CurrentBalance, Required: amount}
	}
	a.CurrentBalance = a.CurrentBalance.Sub(amount)
	return nil
}

// AccountInput carries the fields needed to open an account.
type AccountInput struct {
	Number         string
	Type           string
	InitialBalance decimal.Decimal
	ClientID       int64
}

// Validate checks the field-level constraints of an account opening.
func (in AccountInput) Validate() error {
	if n := len(in.Number); n < AccountNumberMinLen || n > AccountNumberMaxLen {
		return &ErrValidation{
			Field:   "number",
			Message: fmt.Sprintf("must have between %d and %d characters", AccountNumberMinLen, AccountNumberMaxLen),
		}
	}
	if in.Type == "" {
		return &ErrValidation{Field: "type", Message: "is required"}
	}
	if len(in.Type) > 50 {
		return &ErrValidation{Field: "type", Message: "must not exceed 50 characters"}
	}
	if in.InitialBalance.IsNegative() {
		return &ErrValidation{Field: "initial_balance", Message: "must be greater than or equal to zero"}
	}
	if in.ClientID <= 0 {
		return &ErrValidation{Field: "client_id", Message: "is required"}
	}
	return nil
}
