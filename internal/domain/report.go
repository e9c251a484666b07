package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by report periods.
const DateLayout = "2006-01-02"

// ============================================================
// Reports
// ============================================================

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// From returns the first instant of the start day.
func (r DateRange) From() time.Time {
	y, m, d := r.Start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.Start.Location())
}

// To returns the last instant of the end day.
func (r DateRange) To() time.Time {
	y, m, d := r.End.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), r.End.Location())
}

// Period renders the range for report payloads.
func (r DateRange) Period() *ReportPeriod {
	return &ReportPeriod{From: r.Start.Format(DateLayout), To: r.End.Format(DateLayout)}
}

// ReportPeriod represents the date range of a report.
type ReportPeriod struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AccountMovementsReport lists one account's movements in a period.
type AccountMovementsReport struct {
	AccountID      int64            `json:"account_id"`
	AccountNumber  string           `json:"account_number"`
	AccountType    string           `json:"account_type"`
	ClientName     string           `json:"client_name"`
	InitialBalance decimal.Decimal  `json:"initial_balance"`
	CurrentBalance decimal.Decimal  `json:"current_balance"`
	Period         *ReportPeriod    `json:"period"`
	TotalMovements int              `json:"total_movements"`
	Movements      []MovementDetail `json:"movements"`
}

// AccountMovementGroup is one account's slice of a client report.
type AccountMovementGroup struct {
	AccountID     int64            `json:"account_id"`
	AccountNumber string           `json:"account_number"`
	AccountType   string           `json:"account_type"`
	Active        bool             `json:"active"`
	Movements     []MovementDetail `json:"movements"`
}

// ClientMovementsReport lists a client's movements in a period grouped by account.
type ClientMovementsReport struct {
	ClientID       int64                  `json:"client_id"`
	ClientName     string                 `json:"client_name"`
	Identification string                 `json:"identification"`
	Period         *ReportPeriod          `json:"period"`
	TotalMovements int                    `json:"total_movements"`
	Accounts       []AccountMovementGroup `json:"accounts"`
}

// AccountSummary is one line of the accounts summary.
type AccountSummary struct {
	AccountID      int64           `json:"account_id"`
	AccountNumber  string          `json:"account_number"`
	AccountType    string          `json:"account_type"`
	ClientName     string          `json:"client_name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Active         bool            `json:"active"`
	MovementCount  int             `json:"movement_count"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AccountsSummaryReport covers every non-deleted account.
type AccountsSummaryReport struct {
	Period        *ReportPeriod    `json:"period"`
	TotalAccounts int              `json:"total_accounts"`
	Accounts      []AccountSummary `json:"accounts"`
}
