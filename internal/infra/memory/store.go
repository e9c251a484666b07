// Package memory provides an in-process ledger store. It backs the
// STORE_BACKEND=memory mode and the service and integration tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/boddenberg/account-ledger/internal/port"
)

// Store keeps clients, accounts and movements in maps guarded by one
// RWMutex. A transaction holds the write lock for its whole duration, which
// serializes every read-modify-write on accounts.
type Store struct {
	mu        sync.RWMutex
	clients   map[int64]domain.Client
	accounts  map[int64]domain.Account
	movements []domain.Movement

	nextClientID   int64
	nextAccountID  int64
	nextMovementID int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		clients:  make(map[int64]domain.Client),
		accounts: make(map[int64]domain.Account),
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ============================================================
// Transactions
// ============================================================

// InTx buffers the writes made through tx and applies them only when fn
// succeeds and the context is still alive. Movement IDs are assigned at
// insert time, so a rolled-back transaction leaves a gap like a Postgres
// sequence does.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, accounts: make(map[int64]domain.Account)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}

	for id, a := range tx.accounts {
		s.accounts[id] = a
	}
	s.movements = append(s.movements, tx.movements...)
	return nil
}

type memTx struct {
	store     *Store
	accounts  map[int64]domain.Account
	movements []domain.Movement
}

func (t *memTx) LockAccount(_ context.Context, accountID int64) (*domain.Account, error) {
	if a, ok := t.accounts[accountID]; ok {
		return &a, nil
	}
	a, ok := t.store.accounts[accountID]
	if !ok {
		return nil, notFound("account", accountID)
	}
	return &a, nil
}

func (t *memTx) SaveAccount(_ context.Context, account *domain.Account) (*domain.Account, error) {
	stored, ok := t.store.accounts[account.ID]
	if !ok {
		return nil, notFound("account", account.ID)
	}
	if account.CurrentBalance.IsNegative() {
		return nil, &domain.ErrBusinessRule{Message: "current balance must not be negative"}
	}
	stored.CurrentBalance = account.CurrentBalance
	stored.Active = account.Active
	t.accounts[stored.ID] = stored
	return &stored, nil
}

func (t *memTx) InsertMovement(_ context.Context, m *domain.Movement) (*domain.Movement, error) {
	if _, ok := t.store.accounts[m.AccountID]; !ok {
		return nil, notFound("account", m.AccountID)
	}
	t.store.nextMovementID++
	stored := *m
	stored.ID = t.store.nextMovementID
	t.movements = append(t.movements, stored)
	return &stored, nil
}

// ============================================================
// Clients
// ============================================================

func (s *Store) CreateClient(_ context.Context, c *domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identificationTaken(c.Person.Identification, 0) {
		return nil, &domain.ErrConflict{Message: "client already exists with identification: " + c.Person.Identification}
	}
	s.nextClientID++
	stored := *c
	stored.ID = s.nextClientID
	s.clients[stored.ID] = stored
	return &stored, nil
}

func (s *Store) GetClient(_ context.Context, clientID int64) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, notFound("client", clientID)
	}
	return &c, nil
}

func (s *Store) GetClientByIdentification(_ context.Context, identification string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients {
		if c.Person.Identification == identification {
			return &c, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "client", ID: identification}
}

func (s *Store) ListClients(_ context.Context, activeOnly bool) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Client) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) UpdateClient(_ context.Context, c *domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.clients[c.ID]
	if !ok {
		return nil, notFound("client", c.ID)
	}
	if s.identificationTaken(c.Person.Identification, c.ID) {
		return nil, &domain.ErrConflict{Message: "client already exists with identification: " + c.Person.Identification}
	}
	stored.Person = c.Person
	stored.PasswordHash = c.PasswordHash
	s.clients[stored.ID] = stored
	return &stored, nil
}

func (s *Store) SetClientActive(_ context.Context, clientID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return notFound("client", clientID)
	}
	c.Active = active
	s.clients[clientID] = c
	return nil
}

func (s *Store) identificationTaken(identification string, exceptID int64) bool {
	for id, c := range s.clients {
		if id != exceptID && c.Person.Identification == identification {
			return true
		}
	}
	return false
}

// ============================================================
// Accounts
// ============================================================

func (s *Store) CreateAccount(_ context.Context, a *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[a.ClientID]; !ok {
		return nil, notFound("client", a.ClientID)
	}
	for _, existing := range s.accounts {
		if existing.Number == a.Number {
			return nil, &domain.ErrConflict{Message: "account already exists with number: " + a.Number}
		}
	}
	s.nextAccountID++
	stored := *a
	stored.ID = s.nextAccountID
	s.accounts[stored.ID] = stored
	return &stored, nil
}

func (s *Store) GetAccount(_ context.Context, accountID int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, notFound("account", accountID)
	}
	return &a, nil
}

func (s *Store) GetAccountByNumber(_ context.Context, number string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Number == number {
			return &a, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "account", ID: number}
}

func (s *Store) ListAccounts(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterAccounts(func(domain.Account) bool { return true }), nil
}

func (s *Store) ListAccountsByClient(_ context.Context, clientID int64) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterAccounts(func(a domain.Account) bool { return a.ClientID == clientID }), nil
}

func (s *Store) filterAccounts(keep func(domain.Account) bool) []domain.Account {
	out := make([]domain.Account, 0)
	for _, a := range s.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Account) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// SeedAccount stores an account as-is, bypassing creation rules. Used to
// load fixtures such as deleted accounts, which no ledger operation produces.
func (s *Store) SeedAccount(a domain.Account) *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == 0 {
		s.nextAccountID++
		a.ID = s.nextAccountID
	} else if a.ID > s.nextAccountID {
		s.nextAccountID = a.ID
	}
	s.accounts[a.ID] = a
	return &a
}

// SeedMovement appends a movement as-is. Used to load historical fixtures.
func (s *Store) SeedMovement(m domain.Movement) *domain.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMovementID++
	m.ID = s.nextMovementID
	s.movements = append(s.movements, m)
	return &m
}

// ============================================================
// Movements
// ============================================================

func (s *Store) GetMovement(_ context.Context, movementID int64) (*domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.movements {
		if m.ID == movementID {
			return &m, nil
		}
	}
	return nil, notFound("movement", movementID)
}

func (s *Store) ListMovements(_ context.Context) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterMovements(func(domain.Movement) bool { return true }, newestFirst), nil
}

func (s *Store) ListMovementsByAccount(_ context.Context, accountID int64) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterMovements(func(m domain.Movement) bool { return m.AccountID == accountID }, newestFirst), nil
}

func (s *Store) ListMovementsByClient(_ context.Context, clientID int64) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterMovements(func(m domain.Movement) bool {
		return s.accounts[m.AccountID].ClientID == clientID
	}, newestFirst), nil
}

func (s *Store) ListMovementsByAccountInRange(_ context.Context, accountID int64, from, to time.Time) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterMovements(func(m domain.Movement) bool {
		return m.AccountID == accountID && inRange(m.OccurredAt, from, to)
	}, byAccountThenTime), nil
}

func (s *Store) ListMovementsByClientInRange(_ context.Context, clientID int64, from, to time.Time) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterMovements(func(m domain.Movement) bool {
		return s.accounts[m.AccountID].ClientID == clientID && inRange(m.OccurredAt, from, to)
	}, byAccountThenTime), nil
}

func (s *Store) CountMovementsInRange(_ context.Context, from, to time.Time) (map[int64]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int)
	for _, m := range s.movements {
		if inRange(m.OccurredAt, from, to) {
			counts[m.AccountID]++
		}
	}
	return counts, nil
}

func (s *Store) filterMovements(keep func(domain.Movement) bool, order func(a, b domain.Movement) int) []domain.Movement {
	out := make([]domain.Movement, 0)
	for _, m := range s.movements {
		if keep(m) {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, order)
	return out
}

func newestFirst(a, b domain.Movement) int {
	if c := b.OccurredAt.Compare(a.OccurredAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func byAccountThenTime(a, b domain.Movement) int {
	if c := cmp.Compare(a.AccountID, b.AccountID); c != 0 {
		return c
	}
	if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

func notFound(resource string, id int64) error {
	return &domain.ErrNotFound{Resource: resource, ID: strconv.FormatInt(id, 10)}
}
