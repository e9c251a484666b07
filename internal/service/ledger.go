// Package service provides the business logic layer (use cases).
// LedgerService is the only writer of account balances and activation
// state: every change goes through RegisterMovement and leaves exactly one
// movement in the ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/boddenberg/account-ledger/internal/infra/observability"
	"github.com/boddenberg/account-ledger/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// Messages of the movement preconditions.
const (
	msgDeletedAccount  = "deleted accounts cannot operate"
	msgInactiveAccount = "account inactive, only activation allowed"
	msgInvalidValue    = "movement value must be greater than zero"
)

// moneyScale is the number of decimal places persisted for amounts.
const moneyScale = 2

// LedgerService orchestrates movements, client lifecycle cascades and
// reports on top of a transactional LedgerStore.
type LedgerService struct {
	store   port.LedgerStore
	events  port.EventPublisher
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
	loc     *time.Location
}

// Option customizes a LedgerService.
type Option func(*LedgerService)

// WithClock replaces the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithLocation sets the location calendar dates are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *LedgerService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(store port.LedgerStore, events port.EventPublisher, metrics *observability.Metrics, logger *zap.Logger, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:   store,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reports whether the store is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Location is where report dates are evaluated.
func (s *LedgerService) Location() *time.Location {
	return s.loc
}

// ============================================================
// Movement Recorder
// ============================================================

// RegisterMovement applies kind to the account and records it, stamped now.
// value is required for DEPOSIT and WITHDRAWAL and ignored otherwise.
func (s *LedgerService) RegisterMovement(ctx context.Context, accountID int64, kind domain.MovementKind, value *decimal.Decimal) (*domain.MovementDetail, error) {
	return s.RegisterMovementAt(ctx, accountID, kind, value, time.Time{})
}

// RegisterMovementAt is RegisterMovement with an explicit movement
// timestamp. A zero occurredAt means now.
func (s *LedgerService) RegisterMovementAt(ctx context.Context, accountID int64, kind domain.MovementKind, value *decimal.Decimal, occurredAt time.Time) (*domain.MovementDetail, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.RegisterMovement")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("account.id", accountID),
		attribute.String("movement.kind", string(kind)),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("register_movement", time.Since(start))
	}()

	now := s.now()
	if occurredAt.IsZero() {
		occurredAt = now
	}

	var (
		reason  = observability.ReasonStore
		saved   *domain.Account
		created *domain.Movement
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		account, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			if isNotFound(err) {
				reason = observability.ReasonNotFound
			}
			return err
		}

		amount, rejected, err := applyMovement(account, kind, value)
		if err != nil {
			reason = rejected
			return err
		}

		saved, err = tx.SaveAccount(ctx, account)
		if err != nil {
			return fmt.Errorf("save account: %w", err)
		}

		// balance_after comes from the persisted row, not the in-memory copy.
		created, err = tx.InsertMovement(ctx, &domain.Movement{
			AccountID:    saved.ID,
			Kind:         kind,
			Value:        amount,
			BalanceAfter: saved.CurrentBalance,
			OccurredAt:   occurredAt,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("insert movement: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "movement rejected")
		s.metrics.IncrRejected(reason)
		s.logger.Warn("movement rejected",
			zap.Int64("account_id", accountID),
			zap.String("kind", string(kind)),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrMovement(kind)
	span.SetAttributes(attribute.Int64("movement.id", created.ID))

	clientName := s.clientName(ctx, saved.ClientID)
	detail := domain.NewMovementDetail(*created, saved.Number, clientName)

	s.logger.Info("movement registered",
		zap.Int64("movement_id", created.ID),
		zap.Int64("account_id", saved.ID),
		zap.String("kind", string(kind)),
		zap.String("value", created.Value.StringFixed(moneyScale)),
		zap.String("balance_after", created.BalanceAfter.StringFixed(moneyScale)),
	)

	s.publish(ctx, &detail)
	return &detail, nil
}

// applyMovement checks the preconditions in order and mutates account. It
// returns the movement value and, on failure, the rejection reason.
func applyMovement(account *domain.Account, kind domain.MovementKind, value *decimal.Decimal) (decimal.Decimal, string, error) {
	if account.Deleted {
		return decimal.Zero, observability.ReasonDeleted, &domain.ErrBusinessRule{Message: msgDeletedAccount}
	}
	if kind != domain.MovementActivate && !account.Active {
		return decimal.Zero, observability.ReasonInactive, &domain.ErrBusinessRule{Message: msgInactiveAccount}
	}

	switch kind {
	case domain.MovementDeposit, domain.MovementWithdrawal:
		amount, err := movementValue(value)
		if err != nil {
			return decimal.Zero, observability.ReasonInvalidAmount, err
		}
		if kind == domain.MovementDeposit {
			err = account.Deposit(amount)
		} else {
			err = account.Withdraw(amount)
		}
		if err != nil {
			return decimal.Zero, rejectionReason(err), &domain.ErrBusinessRule{Err: err}
		}
		return amount, "", nil
	case domain.MovementActivate:
		account.Active = true
	case domain.MovementDeactivate:
		account.Active = false
	default:
		return decimal.Zero, observability.ReasonInvalidAmount,
			&domain.ErrBusinessRule{Message: fmt.Sprintf("unknown movement kind: %q", kind)}
	}
	return decimal.Zero, "", nil
}

func movementValue(value *decimal.Decimal) (decimal.Decimal, error) {
	if value == nil || !value.IsPositive() {
		amount := decimal.Zero
		if value != nil {
			amount = *value
		}
		return decimal.Zero, &domain.ErrBusinessRule{Message: msgInvalidValue, Err: &domain.ErrInvalidAmount{Amount: amount}}
	}
	if value.Exponent() < -moneyScale && !value.Equal(value.Round(moneyScale)) {
		return decimal.Zero, &domain.ErrBusinessRule{
			Message: fmt.Sprintf("movement value must have at most %d decimal places", moneyScale),
			Err:     &domain.ErrInvalidAmount{Amount: *value},
		}
	}
	return value.Round(moneyScale), nil
}

func rejectionReason(err error) string {
	var insufficient *domain.ErrInsufficientFunds
	if errors.As(err, &insufficient) {
		return observability.ReasonInsufficientFunds
	}
	return observability.ReasonInvalidAmount
}

// publish broadcasts the committed movement. Failures are logged and
// counted; the movement stays committed.
func (s *LedgerService) publish(ctx context.Context, detail *domain.MovementDetail) {
	event := &domain.MovementEvent{
		EventID:       uuid.NewString(),
		MovementID:    detail.ID,
		AccountID:     detail.AccountID,
		AccountNumber: detail.AccountNumber,
		Kind:          detail.Kind,
		Value:         detail.Value,
		BalanceBefore: detail.BalanceBefore,
		BalanceAfter:  detail.BalanceAfter,
		OccurredAt:    detail.OccurredAt,
	}

	if err := s.events.PublishMovement(context.WithoutCancel(ctx), event); err != nil {
		s.metrics.IncrEvent("failed")
		s.logger.Warn("movement event not published",
			zap.Int64("movement_id", detail.ID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncrEvent("published")
}

// clientName resolves the owner's name for enrichment. A lookup failure
// only costs the name.
func (s *LedgerService) clientName(ctx context.Context, clientID int64) string {
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		s.logger.Warn("client lookup failed", zap.Int64("client_id", clientID), zap.Error(err))
		return ""
	}
	return client.Name()
}

func isNotFound(err error) bool {
	var nf *domain.ErrNotFound
	return errors.As(err, &nf)
}

// asBusinessRule surfaces persistence-time uniqueness conflicts as business
// rule violations that keep the conflict as their cause.
func asBusinessRule(err error) error {
	var conflict *domain.ErrConflict
	if errors.As(err, &conflict) {
		return &domain.ErrBusinessRule{Message: conflict.Message, Err: conflict}
	}
	return err
}
