package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/account-ledger/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Accounts
// ============================================================

// CreateAccount opens an active account for an active client.
func (s *LedgerService) CreateAccount(ctx context.Context, in domain.AccountInput) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CreateAccount")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", in.ClientID))

	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !in.InitialBalance.Equal(in.InitialBalance.Round(moneyScale)) {
		return nil, &domain.ErrValidation{Field: "initial_balance", Message: fmt.Sprintf("must have at most %d decimal places", moneyScale)}
	}

	client, err := s.store.GetClient(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.Active || client.Deleted {
		return nil, &domain.ErrBusinessRule{Message: "cannot create account for inactive client"}
	}

	if _, err := s.store.GetAccountByNumber(ctx, in.Number); err == nil {
		return nil, &domain.ErrBusinessRule{Message: "account already exists with number: " + in.Number}
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("check existing account: %w", err)
	}

	created, err := s.store.CreateAccount(ctx, domain.NewAccount(in, s.now()))
	if err != nil {
		return nil, asBusinessRule(err)
	}

	s.logger.Info("account created",
		zap.Int64("account_id", created.ID),
		zap.Int64("client_id", created.ClientID),
		zap.String("initial_balance", created.InitialBalance.StringFixed(moneyScale)),
	)
	return created, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	return s.store.GetAccount(ctx, accountID)
}

func (s *LedgerService) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetAccountByNumber")
	defer span.End()

	return s.store.GetAccountByNumber(ctx, number)
}

func (s *LedgerService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListAccounts")
	defer span.End()

	return s.store.ListAccounts(ctx)
}

func (s *LedgerService) ListAccountsByClient(ctx context.Context, clientID int64) ([]domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListAccountsByClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID))

	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return s.store.ListAccountsByClient(ctx, clientID)
}

// ActivateAccount records an ACTIVATE movement on an inactive account.
func (s *LedgerService) ActivateAccount(ctx context.Context, accountID int64) (*domain.MovementDetail, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ActivateAccount")
	defer span.End()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Deleted {
		return nil, &domain.ErrBusinessRule{Message: msgDeletedAccount}
	}
	if account.Active {
		return nil, &domain.ErrBusinessRule{Message: "account is already active"}
	}
	return s.RegisterMovement(ctx, accountID, domain.MovementActivate, nil)
}

// DeactivateAccount records a DEACTIVATE movement on an active account.
func (s *LedgerService) DeactivateAccount(ctx context.Context, accountID int64) (*domain.MovementDetail, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.DeactivateAccount")
	defer span.End()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Deleted {
		return nil, &domain.ErrBusinessRule{Message: msgDeletedAccount}
	}
	if !account.Active {
		return nil, &domain.ErrBusinessRule{Message: "account is already inactive"}
	}
	return s.RegisterMovement(ctx, accountID, domain.MovementDeactivate, nil)
}

// DepositByNumber deposits into the account with the given number.
func (s *LedgerService) DepositByNumber(ctx context.Context, number string, amount decimal.Decimal) (*domain.MovementDetail, error) {
	return s.movementByNumber(ctx, "LedgerService.DepositByNumber", number, domain.MovementDeposit, amount)
}

// WithdrawByNumber withdraws from the account with the given number.
func (s *LedgerService) WithdrawByNumber(ctx context.Context, number string, amount decimal.Decimal) (*domain.MovementDetail, error) {
	return s.movementByNumber(ctx, "LedgerService.WithdrawByNumber", number, domain.MovementWithdrawal, amount)
}

func (s *LedgerService) movementByNumber(ctx context.Context, spanName, number string, kind domain.MovementKind, amount decimal.Decimal) (*domain.MovementDetail, error) {
	ctx, span := ledgerTracer.Start(ctx, spanName)
	defer span.End()

	account, err := s.store.GetAccountByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.RegisterMovement(ctx, account.ID, kind, &amount)
}
