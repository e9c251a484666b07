package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/boddenberg/account-ledger/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Client Lifecycle
// ============================================================

// DeactivateClient deactivates every active account of the client, one
// transaction per account in ascending account ID order, then marks the
// client inactive. It stops at the first failing account; accounts already
// processed stay deactivated and the client flag is left unchanged.
// Deleted accounts are skipped even when still flagged active, so they never
// stop the cascade.
func (s *LedgerService) DeactivateClient(ctx context.Context, clientID int64) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.DeactivateClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID))

	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return err
	}
	accounts, err := s.store.ListAccountsByClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("list client accounts: %w", err)
	}

	deactivated := 0
	for _, a := range accounts {
		// Deleted accounts are terminal and never touched by a cascade.
		if !a.Active || a.Deleted {
			continue
		}
		if _, err := s.RegisterMovement(ctx, a.ID, domain.MovementDeactivate, nil); err != nil {
			s.logger.Error("client deactivation stopped",
				zap.Int64("client_id", clientID),
				zap.Int64("account_id", a.ID),
				zap.Int("accounts_deactivated", deactivated),
				zap.Error(err),
			)
			return err
		}
		deactivated++
	}

	if err := s.store.SetClientActive(ctx, clientID, false); err != nil {
		return fmt.Errorf("deactivate client: %w", err)
	}
	s.metrics.IncrCascade("deactivate")

	s.logger.Info("client deactivated",
		zap.Int64("client_id", clientID),
		zap.Int("accounts_deactivated", deactivated),
	)
	return nil
}

// ActivateClient marks the client active. Accounts are not touched.
func (s *LedgerService) ActivateClient(ctx context.Context, clientID int64) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ActivateClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID))

	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return err
	}
	if err := s.store.SetClientActive(ctx, clientID, true); err != nil {
		return fmt.Errorf("activate client: %w", err)
	}

	s.logger.Info("client activated", zap.Int64("client_id", clientID))
	return nil
}

// ValidateActivation lists the client's accounts so a caller can choose
// which ones to reactivate. It does not mutate anything.
func (s *LedgerService) ValidateActivation(ctx context.Context, clientID int64) (*domain.ActivationStatus, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ValidateActivation")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID))

	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAccountsByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list client accounts: %w", err)
	}

	status := &domain.ActivationStatus{
		ClientID:     client.ID,
		ClientActive: client.Active,
		Accounts:     make([]domain.ActivationAccount, 0, len(accounts)),
	}
	for _, a := range accounts {
		status.Accounts = append(status.Accounts, domain.ActivationAccount{
			ID:      a.ID,
			Number:  a.Number,
			Type:    a.Type,
			Active:  a.Active,
			Deleted: a.Deleted,
		})
	}

	if client.Active {
		status.Message = "client is already active"
	} else {
		status.Message = "client is inactive, select the accounts to reactivate"
	}
	return status, nil
}

// ActivateClientWithAccounts checks that every requested account belongs
// to the client before changing anything, then activates the inactive ones
// in the order given and marks the client active. Duplicate IDs are
// processed once.
func (s *LedgerService) ActivateClientWithAccounts(ctx context.Context, clientID int64, accountIDs []int64) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ActivateClientWithAccounts")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("client.id", clientID),
		attribute.Int("accounts.requested", len(accountIDs)),
	)

	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return err
	}
	accounts, err := s.store.ListAccountsByClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("list client accounts: %w", err)
	}

	owned := make(map[int64]bool, len(accounts))
	for _, a := range accounts {
		owned[a.ID] = a.Active
	}

	selected := make([]int64, 0, len(accountIDs))
	seen := make(map[int64]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		if _, ok := owned[id]; !ok {
			return &domain.ErrBusinessRule{Message: "account does not belong to client: " + strconv.FormatInt(id, 10)}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		selected = append(selected, id)
	}

	activated := 0
	for _, id := range selected {
		if owned[id] {
			continue
		}
		if _, err := s.RegisterMovement(ctx, id, domain.MovementActivate, nil); err != nil {
			s.logger.Error("client activation stopped",
				zap.Int64("client_id", clientID),
				zap.Int64("account_id", id),
				zap.Int("accounts_activated", activated),
				zap.Error(err),
			)
			return err
		}
		activated++
	}

	if err := s.store.SetClientActive(ctx, clientID, true); err != nil {
		return fmt.Errorf("activate client: %w", err)
	}
	s.metrics.IncrCascade("activate")

	s.logger.Info("client activated with accounts",
		zap.Int64("client_id", clientID),
		zap.Int("accounts_activated", activated),
	)
	return nil
}
