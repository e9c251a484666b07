package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/account-ledger/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const passwordCost = bcrypt.DefaultCost

// ============================================================
// Clients
// ============================================================

// CreateClient registers an active client with a hashed password.
func (s *LedgerService) CreateClient(ctx context.Context, in domain.ClientInput) (*domain.Client, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CreateClient")
	defer span.End()

	if err := in.Validate(true); err != nil {
		return nil, err
	}
	if err := s.identificationAvailable(ctx, in.Person.Identification, 0); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.CreateClient(ctx, &domain.Client{
		Person:       in.Person,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, asBusinessRule(err)
	}

	s.logger.Info("client created",
		zap.Int64("client_id", created.ID),
		zap.String("identification", created.Person.Identification),
	)
	return created, nil
}

func (s *LedgerService) GetClient(ctx context.Context, clientID int64) (*domain.Client, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID))

	return s.store.GetClient(ctx, clientID)
}

func (s *LedgerService) GetClientByIdentification(ctx context.Context, identification string) (*domain.Client, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetClientByIdentification")
	defer span.End()

	return s.store.GetClientByIdentification(ctx, identification)
}

func (s *LedgerService) ListClients(ctx context.Context, activeOnly bool) ([]domain.Client, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListClients")
	defer span.End()

	return s.store.ListClients(ctx, activeOnly)
}

// UpdateClient replaces the client's identity. The password is re-hashed
// only when a new one is given.
func (s *LedgerService) UpdateClient(ctx context.Context, clientID int64, in domain.ClientInput) (*domain.Client, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID))

	if err := in.Validate(false); err != nil {
		return nil, err
	}
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if in.Person.Identification != client.Person.Identification {
		if err := s.identificationAvailable(ctx, in.Person.Identification, clientID); err != nil {
			return nil, err
		}
	}

	client.Person = in.Person
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), passwordCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		client.PasswordHash = string(hash)
	}

	updated, err := s.store.UpdateClient(ctx, client)
	if err != nil {
		return nil, asBusinessRule(err)
	}

	s.logger.Info("client updated", zap.Int64("client_id", clientID))
	return updated, nil
}

func (s *LedgerService) identificationAvailable(ctx context.Context, identification string, exceptID int64) error {
	existing, err := s.store.GetClientByIdentification(ctx, identification)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("check existing client: %w", err)
	}
	if existing.ID != exceptID {
		return &domain.ErrBusinessRule{Message: "client already exists with identification: " + identification}
	}
	return nil
}
