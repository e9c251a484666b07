package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

const movementColumns = `m.id, m.account_id, m.kind, m.value, m.balance_after, m.occurred_at, m.created_at`

func scanMovement(row rowScanner) (*domain.Movement, error) {
	var (
		m    domain.Movement
		kind string
	)
	if err := row.Scan(&m.ID, &m.AccountID, &kind, &m.Value, &m.BalanceAfter, &m.OccurredAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Kind = domain.MovementKind(kind)
	return &m, nil
}

func (s *Store) GetMovement(ctx context.Context, movementID int64) (*domain.Movement, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetMovement")
	defer span.End()
	span.SetAttributes(attribute.Int64("movement.id", movementID))

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	m, err := scanMovement(s.db.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM movements m WHERE m.id = $1`, movementID))
	if err != nil {
		return nil, mapError(err, "get movement", "movement", strconv.FormatInt(movementID, 10))
	}
	return m, nil
}

func (s *Store) ListMovements(ctx context.Context) ([]domain.Movement, error) {
	return s.queryMovements(ctx, "Postgres.ListMovements",
		`SELECT `+movementColumns+` FROM movements m ORDER BY m.occurred_at DESC, m.id DESC`)
}

func (s *Store) ListMovementsByAccount(ctx context.Context, accountID int64) ([]domain.Movement, error) {
	return s.queryMovements(ctx, "Postgres.ListMovementsByAccount",
		`SELECT `+movementColumns+` FROM movements m
		WHERE m.account_id = $1
		ORDER BY m.occurred_at DESC, m.id DESC`, accountID)
}

func (s *Store) ListMovementsByClient(ctx context.Context, clientID int64) ([]domain.Movement, error) {
	return s.queryMovements(ctx, "Postgres.ListMovementsByClient",
		`SELECT `+movementColumns+` FROM movements m
		JOIN accounts a ON a.id = m.account_id
		WHERE a.client_id = $1
		ORDER BY m.occurred_at DESC, m.id DESC`, clientID)
}

func (s *Store) ListMovementsByAccountInRange(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Movement, error) {
	return s.queryMovements(ctx, "Postgres.ListMovementsByAccountInRange",
		`SELECT `+movementColumns+` FROM movements m
		WHERE m.account_id = $1 AND m.occurred_at >= $2 AND m.occurred_at <= $3
		ORDER BY m.occurred_at ASC, m.id ASC`, accountID, from, to)
}

func (s *Store) ListMovementsByClientInRange(ctx context.Context, clientID int64, from, to time.Time) ([]domain.Movement, error) {
	return s.queryMovements(ctx, "Postgres.ListMovementsByClientInRange",
		`SELECT `+movementColumns+` FROM movements m
		JOIN accounts a ON a.id = m.account_id
		WHERE a.client_id = $1 AND m.occurred_at >= $2 AND m.occurred_at <= $3
		ORDER BY m.account_id ASC, m.occurred_at ASC, m.id ASC`, clientID, from, to)
}

// CountMovementsInRange returns the number of movements per account ID.
// Accounts without movements in the range are absent from the map.
func (s *Store) CountMovementsInRange(ctx context.Context, from, to time.Time) (map[int64]int, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CountMovementsInRange")
	defer span.End()

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, COUNT(*) FROM movements
		WHERE occurred_at >= $1 AND occurred_at <= $2
		GROUP BY account_id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("count movements: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			accountID int64
			n         int
		)
		if err := rows.Scan(&accountID, &n); err != nil {
			return nil, fmt.Errorf("scan movement count: %w", err)
		}
		counts[accountID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement counts: %w", err)
	}
	return counts, nil
}

func (s *Store) queryMovements(ctx context.Context, spanName, query string, args ...any) ([]domain.Movement, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	return collectMovements(rows)
}

func collectMovements(rows *sql.Rows) ([]domain.Movement, error) {
	defer rows.Close()

	movements := make([]domain.Movement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		movements = append(movements, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movements: %w", err)
	}
	return movements, nil
}
