package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/boddenberg/account-ledger/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// CreateAccount inserts an account. A duplicate number surfaces as
// *domain.ErrConflict.
func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateAccount")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", a.ClientID))

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO accounts (number, type, initial_balance, current_balance, active, deleted, client_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+accountColumns,
		a.Number, a.Type, a.InitialBalance, a.CurrentBalance, a.Active, a.Deleted, a.ClientID, a.CreatedAt,
	)
	created, err := scanAccount(row)
	if err != nil {
		return nil, mapError(err, "create account", "account", a.Number)
	}
	return created, nil
}

func (s *Store) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
	if err != nil {
		return nil, mapError(err, "get account", "account", strconv.FormatInt(accountID, 10))
	}
	return a, nil
}

func (s *Store) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetAccountByNumber")
	defer span.End()

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE number = $1`, number))
	if err != nil {
		return nil, mapError(err, "get account by number", "account", number)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListAccounts")
	defer span.End()

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return collectAccounts(rows)
}

func (s *Store) ListAccountsByClient(ctx context.Context, clientID int64) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListAccountsByClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID))

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE client_id = $1 ORDER BY id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list accounts by client: %w", err)
	}
	return collectAccounts(rows)
}

func collectAccounts(rows *sql.Rows) ([]domain.Account, error) {
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}
