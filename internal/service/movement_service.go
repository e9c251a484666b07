package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/account-ledger/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Movement queries
// ============================================================

func (s *LedgerService) GetMovement(ctx context.Context, movementID int64) (*domain.MovementDetail, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetMovement")
	defer span.End()
	span.SetAttributes(attribute.Int64("movement.id", movementID))

	m, err := s.store.GetMovement(ctx, movementID)
	if err != nil {
		return nil, err
	}
	account, err := s.store.GetAccount(ctx, m.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load movement account: %w", err)
	}
	detail := domain.NewMovementDetail(*m, account.Number, s.clientName(ctx, account.ClientID))
	return &detail, nil
}

// ListMovements returns the whole ledger, newest first.
func (s *LedgerService) ListMovements(ctx context.Context) ([]domain.MovementDetail, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListMovements")
	defer span.End()

	movements, err := s.store.ListMovements(ctx)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, movements)
}

func (s *LedgerService) ListMovementsByAccount(ctx context.Context, accountID int64) ([]domain.MovementDetail, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListMovementsByAccount")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	movements, err := s.store.ListMovementsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	name := s.clientName(ctx, account.ClientID)
	out := make([]domain.MovementDetail, 0, len(movements))
	for _, m := range movements {
		out = append(out, domain.NewMovementDetail(m, account.Number, name))
	}
	return out, nil
}

func (s *LedgerService) ListMovementsByClient(ctx context.Context, clientID int64) ([]domain.MovementDetail, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListMovementsByClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID))

	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	var (
		accounts  []domain.Account
		movements []domain.Movement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.store.ListAccountsByClient(gctx, clientID)
		return err
	})
	g.Go(func() error {
		var err error
		movements, err = s.store.ListMovementsByClient(gctx, clientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	numbers := accountNumbers(accounts)
	out := make([]domain.MovementDetail, 0, len(movements))
	for _, m := range movements {
		out = append(out, domain.NewMovementDetail(m, numbers[m.AccountID], client.Name()))
	}
	return out, nil
}

// describe enriches movements spanning any number of accounts.
func (s *LedgerService) describe(ctx context.Context, movements []domain.Movement) ([]domain.MovementDetail, error) {
	var (
		accounts []domain.Account
		clients  []domain.Client
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.store.ListAccounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		clients, err = s.store.ListClients(gctx, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	names := clientNames(clients)

	out := make([]domain.MovementDetail, 0, len(movements))
	for _, m := range movements {
		a := byID[m.AccountID]
		out = append(out, domain.NewMovementDetail(m, a.Number, names[a.ClientID]))
	}
	return out, nil
}

func accountNumbers(accounts []domain.Account) map[int64]string {
	numbers := make(map[int64]string, len(accounts))
	for _, a := range accounts {
		numbers[a.ID] = a.Number
	}
	return numbers
}

func clientNames(clients []domain.Client) map[int64]string {
	names := make(map[int64]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name()
	}
	return names
}
