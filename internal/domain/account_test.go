package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewAccount_StartsActiveAtInitialBalance(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	a := NewAccount(AccountInput{Number: "4787580000", Type: "Ahorro", InitialBalance: dec("1000.00"), ClientID: 7}, now)

	if !a.Active || a.Deleted {
		t.Errorf("expected active, non-deleted account, got %+v", a)
	}
	if !a.CurrentBalance.Equal(dec("1000")) {
		t.Errorf("expected current balance 1000, got %s", a.CurrentBalance)
	}
	if !a.CreatedAt.Equal(now) {
		t.Errorf("expected created at %v, got %v", now, a.CreatedAt)
	}
}

func TestAccount_DepositAndWithdraw(t *testing.T) {
	a := &Account{CurrentBalance: dec("1000.00")}

	if err := a.Deposit(dec("250.50")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !a.CurrentBalance.Equal(dec("1250.50")) {
		t.Fatalf("expected 1250.50, got %s", a.CurrentBalance)
	}

	err := a.Withdraw(dec("1300"))
	var insufficient *ErrInsufficientFunds
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !a.CurrentBalance.Equal(dec("1250.50")) {
		t.Errorf("balance must be untouched after failed withdraw, got %s", a.CurrentBalance)
	}
	if !insufficient.Available.Equal(dec("1250.50")) || !insufficient.Required.Equal(dec("1300")) {
		t.Errorf("unexpected error detail: %v", insufficient)
	}

	if err := a.Withdraw(dec("1250.50")); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !a.CurrentBalance.IsZero() {
		t.Errorf("expected zero balance, got %s", a.CurrentBalance)
	}
}

func TestAccount_RejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []string{"0", "-1", "-0.01"} {
		a := &Account{CurrentBalance: dec("10")}

		var invalid *ErrInvalidAmount
		if err := a.Deposit(dec(amount)); !errors.As(err, &invalid) {
			t.Errorf("deposit %s: expected ErrInvalidAmount, got %v", amount, err)
		}
		if err := a.Withdraw(dec(amount)); !errors.As(err, &invalid) {
			t.Errorf("withdraw %s: expected ErrInvalidAmount, got %v", amount, err)
		}
		if !a.CurrentBalance.Equal(dec("10")) {
			t.Errorf("balance changed to %s", a.CurrentBalance)
		}
	}
}

func TestAccountInput_Validate(t *testing.T) {
	valid := AccountInput{Number: "4787580000", Type: "Ahorro", InitialBalance: dec("0"), ClientID: 1}

	tests := []struct {
		name  string
		edit  func(*AccountInput)
		field string
	}{
		{"valid", func(*AccountInput) {}, ""},
		{"short number", func(in *AccountInput) { in.Number = "123" }, "number"},
		{"long number", func(in *AccountInput) { in.Number = strings.Repeat("1", 31) }, "number"},
		{"missing type", func(in *AccountInput) { in.Type = "" }, "type"},
		{"long type", func(in *AccountInput) { in.Type = strings.Repeat("x", 51) }, "type"},
		{"negative balance", func(in *AccountInput) { in.InitialBalance = dec("-5") }, "initial_balance"},
		{"missing client", func(in *AccountInput) { in.ClientID = 0 }, "client_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.edit(&in)
			err := in.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var ve *ErrValidation
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestClientInput_Validate(t *testing.T) {
	in := ClientInput{Person: Person{Name: "Jose Lema", Identification: "1712345678"}}

	if err := in.Validate(false); err != nil {
		t.Errorf("update without password should pass, got %v", err)
	}
	var ve *ErrValidation
	if err := in.Validate(true); !errors.As(err, &ve) || ve.Field != "password" {
		t.Errorf("expected password validation error, got %v", err)
	}

	in.Person.Age = -1
	if err := in.Validate(false); !errors.As(err, &ve) || ve.Field != "age" {
		t.Errorf("expected age validation error, got %v", err)
	}
}

func TestAccount_DepositThenWithdrawRestoresBalance(t *testing.T) {
	for _, start := range []string{"0", "0.01", "1000.00"} {
		for _, amount := range []string{"0.01", "0.10", "1", "123.45", "999999.99"} {
			a := &Account{CurrentBalance: dec(start)}

			if err := a.Deposit(dec(amount)); err != nil {
				t.Fatalf("deposit %s: %v", amount, err)
			}
			if err := a.Withdraw(dec(amount)); err != nil {
				t.Fatalf("withdraw %s: %v", amount, err)
			}
			if !a.CurrentBalance.Equal(dec(start)) {
				t.Errorf("start %s, amount %s: expected %s back, got %s", start, amount, start, a.CurrentBalance)
			}
		}
	}
}
