// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/account-ledger/internal/domain"
)

// LedgerStore is the transactional persistence of clients, accounts and
// movements. Implemented by the Postgres adapter and the in-memory adapter.
type LedgerStore interface {
	ClientStore
	AccountStore
	MovementStore

	// InTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// LedgerTx is the write side of a ledger transaction.
type LedgerTx interface {
	// LockAccount loads the account and holds its row lock until the
	// transaction ends.
	LockAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	// SaveAccount persists balance and active state and returns the stored row.
	SaveAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)
	// InsertMovement appends a movement and returns it with its ID assigned.
	InsertMovement(ctx context.Context, movement *domain.Movement) (*domain.Movement, error)
}

// EventPublisher broadcasts committed movements to downstream consumers.
type EventPublisher interface {
	PublishMovement(ctx context.Context, event *domain.MovementEvent) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
