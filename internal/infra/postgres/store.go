package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/boddenberg/account-ledger/internal/infra/resilience"
	"github.com/boddenberg/account-ledger/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

// Store implements port.LedgerStore.
type Store struct {
	db           *sql.DB
	bulkhead     *resilience.Bulkhead
	queryTimeout time.Duration
	logger       *zap.Logger
}

// NewStore creates a Postgres-backed ledger store. The bulkhead caps the
// number of concurrent write transactions; queryTimeout bounds read queries.
func NewStore(db *sql.DB, bulkhead *resilience.Bulkhead, queryTimeout time.Duration, logger *zap.Logger) *Store {
	return &Store{db: db, bulkhead: bulkhead, queryTimeout: queryTimeout, logger: logger}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// readCtx bounds a read query by the configured timeout.
func (s *Store) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// ============================================================
// Transactions
// ============================================================

// InTx runs fn inside a READ COMMITTED transaction. Row locks taken by
// LockAccount are held until commit or rollback.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	ctx, span := tracer.Start(ctx, "Postgres.InTx")
	defer span.End()

	return s.bulkhead.Do(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return fmt.Errorf("begin ledger tx: %w", err)
		}
		defer tx.Rollback()

		if err := fn(ctx, &ledgerTx{tx: tx}); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			s.logger.Error("postgres: commit failed", zap.Error(err))
			return fmt.Errorf("commit ledger tx: %w", err)
		}
		return nil
	})
}

type ledgerTx struct {
	tx *sql.Tx
}

const accountColumns = `id, number, type, initial_balance, current_balance, active, deleted, client_id, created_at`

func (t *ledgerTx) LockAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Postgres.LockAccount")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	row := t.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapError(err, "lock account", "account", strconv.FormatInt(accountID, 10))
	}
	return a, nil
}

func (t *ledgerTx) SaveAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Postgres.SaveAccount")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", account.ID))

	row := t.tx.QueryRowContext(ctx,
		`UPDATE accounts SET current_balance = $1, active = $2 WHERE id = $3 RETURNING `+accountColumns,
		account.CurrentBalance, account.Active, account.ID)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapError(err, "save account", "account", strconv.FormatInt(account.ID, 10))
	}
	return a, nil
}

func (t *ledgerTx) InsertMovement(ctx context.Context, m *domain.Movement) (*domain.Movement, error) {
	ctx, span := tracer.Start(ctx, "Postgres.InsertMovement")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", m.AccountID), attribute.String("movement.kind", string(m.Kind)))

	stored := *m
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO movements (account_id, kind, value, balance_after, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		m.AccountID, string(m.Kind), m.Value, m.BalanceAfter, m.OccurredAt, m.CreatedAt,
	).Scan(&stored.ID)
	if err != nil {
		return nil, mapError(err, "insert movement", "movement", strconv.FormatInt(m.AccountID, 10))
	}
	return &stored, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(
		&a.ID, &a.Number, &a.Type, &a.InitialBalance, &a.CurrentBalance,
		&a.Active, &a.Deleted, &a.ClientID, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
