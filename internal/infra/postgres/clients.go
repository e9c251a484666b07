package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/boddenberg/account-ledger/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

const clientColumns = `id, name, gender, age, identification, address, phone, password_hash, active, deleted, created_at`

func scanClient(row rowScanner) (*domain.Client, error) {
	var c domain.Client
	if err := row.Scan(
		&c.ID, &c.Person.Name, &c.Person.Gender, &c.Person.Age, &c.Person.Identification,
		&c.Person.Address, &c.Person.Phone, &c.PasswordHash, &c.Active, &c.Deleted, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateClient inserts a client. A duplicate identification surfaces as
// *domain.ErrConflict.
func (s *Store) CreateClient(ctx context.Context, c *domain.Client) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateClient")
	defer span.End()

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO clients (name, gender, age, identification, address, phone, password_hash, active, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+clientColumns,
		c.Person.Name, c.Person.Gender, c.Person.Age, c.Person.Identification,
		c.Person.Address, c.Person.Phone, c.PasswordHash, c.Active, c.Deleted, c.CreatedAt,
	)
	created, err := scanClient(row)
	if err != nil {
		return nil, mapError(err, "create client", "client", c.Person.Identification)
	}
	return created, nil
}

func (s *Store) GetClient(ctx context.Context, clientID int64) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID))

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	c, err := scanClient(s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, clientID))
	if err != nil {
		return nil, mapError(err, "get client", "client", strconv.FormatInt(clientID, 10))
	}
	return c, nil
}

func (s *Store) GetClientByIdentification(ctx context.Context, identification string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetClientByIdentification")
	defer span.End()

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	c, err := scanClient(s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE identification = $1`, identification))
	if err != nil {
		return nil, mapError(err, "get client by identification", "client", identification)
	}
	return c, nil
}

func (s *Store) ListClients(ctx context.Context, activeOnly bool) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListClients")
	defer span.End()

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	query := `SELECT ` + clientColumns + ` FROM clients`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]domain.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return clients, nil
}

// UpdateClient rewrites the identity fields and password hash.
func (s *Store) UpdateClient(ctx context.Context, c *domain.Client) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateClient")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", c.ID))

	row := s.db.QueryRowContext(ctx,
		`UPDATE clients
		SET name = $1, gender = $2, age = $3, identification = $4, address = $5, phone = $6, password_hash = $7
		WHERE id = $8
		RETURNING `+clientColumns,
		c.Person.Name, c.Person.Gender, c.Person.Age, c.Person.Identification,
		c.Person.Address, c.Person.Phone, c.PasswordHash, c.ID,
	)
	updated, err := scanClient(row)
	if err != nil {
		return nil, mapError(err, "update client", "client", strconv.FormatInt(c.ID, 10))
	}
	return updated, nil
}

func (s *Store) SetClientActive(ctx context.Context, clientID int64, active bool) error {
	ctx, span := tracer.Start(ctx, "Postgres.SetClientActive")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID), attribute.Bool("client.active", active))

	res, err := s.db.ExecContext(ctx, `UPDATE clients SET active = $1 WHERE id = $2`, active, clientID)
	if err != nil {
		return fmt.Errorf("set client active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set client active: %w", err)
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "client", ID: strconv.FormatInt(clientID, 10)}
	}
	return nil
}
