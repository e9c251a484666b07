package port

import (
	"context"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"
)

// ClientStore handles client data operations.
type ClientStore interface {
	CreateClient(ctx context.Context, client *domain.Client) (*domain.Client, error)
	GetClient(ctx context.Context, clientID int64) (*domain.Client, error)
	GetClientByIdentification(ctx context.Context, identification string) (*domain.Client, error)
	ListClients(ctx context.Context, activeOnly bool) ([]domain.Client, error)
	UpdateClient(ctx context.Context, client *domain.Client) (*domain.Client, error)
	SetClientActive(ctx context.Context, clientID int64, active bool) error
}

// AccountStore handles account data operations. Lists are ordered by
// account ID ascending.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	ListAccountsByClient(ctx context.Context, clientID int64) ([]domain.Account, error)
}

// MovementStore reads the ledger. Range queries are inclusive on both ends
// and ordered by account ID, then movement timestamp ascending. Unbounded
// listings are newest first.
type MovementStore interface {
	GetMovement(ctx context.Context, movementID int64) (*domain.Movement, error)
	ListMovements(ctx context.Context) ([]domain.Movement, error)
	ListMovementsByAccount(ctx context.Context, accountID int64) ([]domain.Movement, error)
	ListMovementsByClient(ctx context.Context, clientID int64) ([]domain.Movement, error)
	ListMovementsByAccountInRange(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Movement, error)
	ListMovementsByClientInRange(ctx context.Context, clientID int64, from, to time.Time) ([]domain.Movement, error)
	CountMovementsInRange(ctx context.Context, from, to time.Time) (map[int64]int, error)
}
