package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/boddenberg/account-ledger/internal/domain"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the store translates.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

var constraintMessages = map[string]string{
	"clients_identification_key": "client already exists with this identification",
	"accounts_number_key":        "account already exists with this number",
}

// mapError translates driver errors into domain errors. op names the
// failed operation for wrapped infrastructure errors.
func mapError(err error, op, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			msg, ok := constraintMessages[pqErr.Constraint]
			if !ok {
				msg = fmt.Sprintf("%s violates unique constraint %s", resource, pqErr.Constraint)
			}
			return &domain.ErrConflict{Message: msg}
		case codeForeignKeyViolation:
			return &domain.ErrNotFound{Resource: "referenced row", ID: pqErr.Constraint}
		case codeCheckViolation:
			return &domain.ErrBusinessRule{Message: fmt.Sprintf("%s violates constraint %s", resource, pqErr.Constraint)}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
