package service_test

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/boddenberg/account-ledger/internal/infra/memory"
	"github.com/boddenberg/account-ledger/internal/infra/observability"
	"github.com/boddenberg/account-ledger/internal/port"
	"github.com/boddenberg/account-ledger/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Fakes ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.MovementEvent
	err    error
}

func (p *recordingPublisher) PublishMovement(_ context.Context, e *domain.MovementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

// failingStore fails LockAccount for one account, simulating a store error
// in the middle of a cascade.
type failingStore struct {
	*memory.Store
	failAccountID int64
}

func (s *failingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		return fn(ctx, &failingTx{LedgerTx: tx, failAccountID: s.failAccountID})
	})
}

type failingTx struct {
	port.LedgerTx
	failAccountID int64
}

func (t *failingTx) LockAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	if accountID == t.failAccountID {
		return nil, errors.New("lock wait timeout")
	}
	return t.LedgerTx.LockAccount(ctx, accountID)
}

// --- Helpers ---

var testNow = time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *service.LedgerService
	store   *memory.Store
	events  *recordingPublisher
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	return newFixtureWithStore(t, store, store)
}

func newFixtureWithStore(t *testing.T, mem *memory.Store, ledger port.LedgerStore) *fixture {
	t.Helper()
	events := &recordingPublisher{}
	metrics := observability.NewMetrics()
	svc := service.NewLedgerService(ledger, events, metrics, zap.NewNop(),
		service.WithClock(func() time.Time { return testNow }),
	)
	return &fixture{svc: svc, store: mem, events: events, metrics: metrics}
}

func (f *fixture) client(t *testing.T, name, identification string) *domain.Client {
	t.Helper()
	c, err := f.store.CreateClient(context.Background(), &domain.Client{
		Person:    domain.Person{Name: name, Identification: identification},
		Active:    true,
		CreatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c
}

func (f *fixture) account(t *testing.T, clientID int64, number, balance string, active bool) *domain.Account {
	t.Helper()
	b := dec(balance)
	return f.store.SeedAccount(domain.Account{
		Number:         number,
		Type:           "savings",
		InitialBalance: b,
		CurrentBalance: b,
		Active:         active,
		ClientID:       clientID,
		CreatedAt:      testNow,
	})
}

func (f *fixture) movements(t *testing.T, accountID int64) []domain.Movement {
	t.Helper()
	ms, err := f.store.ListMovementsByAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	return ms
}

func (f *fixture) balance(t *testing.T, accountID int64) decimal.Decimal {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return a.CurrentBalance
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func requireBusinessRule(t *testing.T, err error, contains string) *domain.ErrBusinessRule {
	t.Helper()
	var br *domain.ErrBusinessRule
	if !errors.As(err, &br) {
		t.Fatalf("expected ErrBusinessRule, got %T: %v", err, err)
	}
	if contains != "" && !strings.Contains(br.Error(), contains) {
		t.Errorf("expected message containing %q, got %q", contains, br.Error())
	}
	return br
}

// --- Tests ---

func TestRegisterMovement_DepositAndWithdrawScenario(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Jose Lema", "1234567890")
	acc := f.account(t, c.ID, "ACC-001", "1000.00", true)
	ctx := context.Background()

	dep, err := f.svc.RegisterMovement(ctx, acc.ID, domain.MovementDeposit, ptr(dec("250.50")))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !dep.BalanceAfter.Equal(dec("1250.50")) {
		t.Errorf("expected balance_after 1250.50, got %s", dep.BalanceAfter)
	}
	if !dep.BalanceBefore.Equal(dec("1000.00")) {
		t.Errorf("expected balance_before 1000.00, got %s", dep.BalanceBefore)
	}
	if dep.ClientName != "Jose Lema" || dep.AccountNumber != "ACC-001" {
		t.Errorf("unexpected enrichment: %q %q", dep.ClientName, dep.AccountNumber)
	}

	_, err = f.svc.RegisterMovement(ctx, acc.ID, domain.MovementWithdrawal, ptr(dec("1300.00")))
	var insufficient *domain.ErrInsufficientFunds
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	requireBusinessRule(t, err, "insufficient funds")
	if got := f.balance(t, acc.ID); !got.Equal(dec("1250.50")) {
		t.Errorf("balance changed after failed withdrawal: %s", got)
	}

	wd, err := f.svc.RegisterMovement(ctx, acc.ID, domain.MovementWithdrawal, ptr(dec("1250.50")))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !wd.BalanceAfter.IsZero() {
		t.Errorf("expected balance_after 0.00, got %s", wd.BalanceAfter)
	}

	ms := f.movements(t, acc.ID)
	if len(ms) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(ms))
	}
	// newest first
	if ms[0].Kind != domain.MovementWithdrawal || ms[1].Kind != domain.MovementDeposit {
		t.Errorf("unexpected kinds: %s, %s", ms[0].Kind, ms[1].Kind)
	}
	if !ms[1].BalanceAfter.Equal(dec("1250.50")) {
		t.Errorf("deposit balance_after = %s", ms[1].BalanceAfter)
	}
}

func TestRegisterMovement_AccountNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RegisterMovement(context.Background(), 99, domain.MovementDeposit, ptr(dec("10")))
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if nf.Resource != "account" || nf.ID != "99" {
		t.Errorf("unexpected not found: %+v", nf)
	}
}

func TestRegisterMovement_DeletedAccountRejectsEveryKind(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Ana", "111")
	acc := f.store.SeedAccount(domain.Account{
		Number: "0000000001", Type: "checking",
		InitialBalance: dec("50"), CurrentBalance: dec("50"),
		Active: false, Deleted: true, ClientID: c.ID, CreatedAt: testNow,
	})

	kinds := []domain.MovementKind{
		domain.MovementDeposit, domain.MovementWithdrawal,
		domain.MovementActivate, domain.MovementDeactivate,
	}
	for _, k := range kinds {
		_, err := f.svc.RegisterMovement(context.Background(), acc.ID, k, ptr(dec("1")))
		requireBusinessRule(t, err, "deleted accounts cannot operate")
	}

	got, _ := f.store.GetAccount(context.Background(), acc.ID)
	if got.Active || !got.CurrentBalance.Equal(dec("50")) {
		t.Errorf("deleted account mutated: %+v", got)
	}
	if n := len(f.movements(t, acc.ID)); n != 0 {
		t.Errorf("expected no movements, got %d", n)
	}
}

func TestRegisterMovement_InactiveAccountOnlyAllowsActivation(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Ana", "111")
	acc := f.account(t, c.ID, "0000000002", "80.00", false)
	ctx := context.Background()

	for _, k := range []domain.MovementKind{domain.MovementDeposit, domain.MovementWithdrawal, domain.MovementDeactivate} {
		_, err := f.svc.RegisterMovement(ctx, acc.ID, k, ptr(dec("5")))
		requireBusinessRule(t, err, "account inactive, only activation allowed")
	}
	if got := f.balance(t, acc.ID); !got.Equal(dec("80")) {
		t.Errorf("balance changed: %s", got)
	}

	m, err := f.svc.RegisterMovement(ctx, acc.ID, domain.MovementActivate, nil)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !m.Value.IsZero() || !m.BalanceAfter.Equal(dec("80")) || !m.BalanceBefore.Equal(dec("80")) {
		t.Errorf("unexpected activation movement: %+v", m)
	}
	got, _ := f.store.GetAccount(ctx, acc.ID)
	if !got.Active {
		t.Error("expected account active after ACTIVATE")
	}
}

func TestRegisterMovement_DeletedCheckedBeforeInactive(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Ana", "111")
	acc := f.store.SeedAccount(domain.Account{
		Number: "0000000003", Active: false, Deleted: true, ClientID: c.ID,
	})

	_, err := f.svc.RegisterMovement(context.Background(), acc.ID, domain.MovementDeposit, ptr(dec("1")))
	requireBusinessRule(t, err, "deleted")
}

func TestRegisterMovement_InvalidValues(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Ana", "111")
	acc := f.account(t, c.ID, "0000000004", "10.00", true)

	tests := []struct {
		name  string
		kind  domain.MovementKind
		value *decimal.Decimal
	}{
		{"deposit missing value", domain.MovementDeposit, nil},
		{"deposit zero", domain.MovementDeposit, ptr(decimal.Zero)},
		{"withdraw negative", domain.MovementWithdrawal, ptr(dec("-5"))},
		{"deposit three decimals", domain.MovementDeposit, ptr(dec("1.005"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RegisterMovement(context.Background(), acc.ID, tt.kind, tt.value)
			requireBusinessRule(t, err, "")
			var invalid *domain.ErrInvalidAmount
			if !errors.As(err, &invalid) {
				t.Errorf("expected ErrInvalidAmount in chain, got %v", err)
			}
		})
	}

	if n := len(f.movements(t, acc.ID)); n != 0 {
		t.Errorf("expected no movements, got %d", n)
	}
	snap := f.metrics.GetLedgerSnapshot()
	if snap.RejectedByReason[observability.ReasonInvalidAmount] != int64(len(tests)) {
		t.Errorf("expected %d invalid_amount rejections, got %v", len(tests), snap.RejectedByReason)
	}
}

func TestRegisterMovement_UnknownKind(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Ana", "111")
	acc := f.account(t, c.ID, "0000000005", "10.00", true)

	_, err := f.svc.RegisterMovement(context.Background(), acc.ID, domain.MovementKind("TRANSFER"), ptr(dec("1")))
	requireBusinessRule(t, err, "unknown movement kind")
}

func TestRegisterMovement_DeactivateKeepsBalance(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Ana", "111")
	acc := f.account(t, c.ID, "0000000006", "42.10", true)

	m, err := f.svc.RegisterMovement(context.Background(), acc.ID, domain.MovementDeactivate, ptr(dec("99")))
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if !m.Value.IsZero() {
		t.Errorf("expected zero value, got %s", m.Value)
	}
	if !m.BalanceAfter.Equal(dec("42.10")) {
		t.Errorf("expected balance_after 42.10, got %s", m.BalanceAfter)
	}
}

func TestRegisterMovement_OccurredAt(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Ana", "111")
	acc := f.account(t, c.ID, "0000000007", "0", true)
	ctx := context.Background()

	m, err := f.svc.RegisterMovement(ctx, acc.ID, domain.MovementDeposit, ptr(dec("1")))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !m.OccurredAt.Equal(testNow) || !m.CreatedAt.Equal(testNow) {
		t.Errorf("expected timestamps at now, got %v / %v", m.OccurredAt, m.CreatedAt)
	}

	at := time.Date(2026, 1, 20, 9, 30, 0, 0, time.UTC)
	m, err = f.svc.RegisterMovementAt(ctx, acc.ID, domain.MovementDeposit, ptr(dec("1")), at)
	if err != nil {
		t.Fatalf("deposit at: %v", err)
	}
	if !m.OccurredAt.Equal(at) || !m.CreatedAt.Equal(testNow) {
		t.Errorf("unexpected timestamps: %v / %v", m.OccurredAt, m.CreatedAt)
	}
}

func TestRegisterMovement_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Ana", "111")
	acc := f.account(t, c.ID, "0000000008", "100.00", true)

	m, err := f.svc.RegisterMovement(context.Background(), acc.ID, domain.MovementWithdrawal, ptr(dec("30")))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if len(f.events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.events.events))
	}
	e := f.events.events[0]
	if e.EventID == "" || e.MovementID != m.ID || e.AccountNumber != "0000000008" {
		t.Errorf("unexpected event: %+v", e)
	}
	if !e.BalanceBefore.Equal(dec("100")) || !e.BalanceAfter.Equal(dec("70")) {
		t.Errorf("unexpected event balances: %s -> %s", e.BalanceBefore, e.BalanceAfter)
	}
}

func TestRegisterMovement_PublishFailureKeepsMovement(t *testing.T) {
	f := newFixture(t)
	f.events.err = &domain.ErrCircuitOpen{Service: "redis"}
	c := f.client(t, "Ana", "111")
	acc := f.account(t, c.ID, "0000000009", "100.00", true)

	if _, err := f.svc.RegisterMovement(context.Background(), acc.ID, domain.MovementDeposit, ptr(dec("1"))); err != nil {
		t.Fatalf("expected movement to succeed, got %v", err)
	}
	if n := len(f.movements(t, acc.ID)); n != 1 {
		t.Errorf("expected 1 movement, got %d", n)
	}
	snap := f.metrics.GetLedgerSnapshot()
	if snap.EventsFailed != 1 || snap.EventsPublished != 0 {
		t.Errorf("unexpected event counters: %+v", snap)
	}
	if snap.MovementsByKind["DEPOSIT"] != 1 {
		t.Errorf("expected 1 deposit counted, got %v", snap.MovementsByKind)
	}
}

func TestRegisterMovement_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Ana", "111")
	acc := f.account(t, c.ID, "0000000010", "100.00", true)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.RegisterMovement(context.Background(), acc.ID, domain.MovementWithdrawal, ptr(dec("10"))); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 10 {
		t.Errorf("expected 10 successful withdrawals, got %d", ok)
	}
	if got := f.balance(t, acc.ID); !got.IsZero() {
		t.Errorf("expected balance 0, got %s", got)
	}
	if n := len(f.movements(t, acc.ID)); n != 10 {
		t.Errorf("expected 10 movements, got %d", n)
	}
}

func TestRegisterMovement_RandomSequenceKeepsBalanceChain(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "Jose Lema", "1234567890")
	acc := f.account(t, c.ID, "ACC-RAND-01", "100.00", true)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(20260115))

	expected := dec("100.00")
	for i := 0; i < 200; i++ {
		amount := decimal.New(rng.Int63n(50000)+1, -2)
		kind := domain.MovementDeposit
		if rng.Intn(2) == 0 {
			kind = domain.MovementWithdrawal
		}

		m, err := f.svc.RegisterMovement(ctx, acc.ID, kind, ptr(amount))
		switch {
		case kind == domain.MovementWithdrawal && amount.GreaterThan(expected):
			var insufficient *domain.ErrInsufficientFunds
			if !errors.As(err, &insufficient) {
				t.Fatalf("step %d: expected ErrInsufficientFunds withdrawing %s from %s, got %v", i, amount, expected, err)
			}
		case err != nil:
			t.Fatalf("step %d: %s %s: %v", i, kind, amount, err)
		default:
			if kind == domain.MovementDeposit {
				expected = expected.Add(amount)
			} else {
				expected = expected.Sub(amount)
			}
			if !m.BalanceAfter.Equal(expected) {
				t.Fatalf("step %d: expected balance_after %s, got %s", i, expected, m.BalanceAfter)
			}
		}

		if got := f.balance(t, acc.ID); got.IsNegative() || !got.Equal(expected) {
			t.Fatalf("step %d: expected balance %s, got %s", i, expected, got)
		}
	}

	ms := f.movements(t, acc.ID)
	slices.Reverse(ms)
	if len(ms) == 0 {
		t.Fatal("expected committed movements")
	}
	previous := dec("100.00")
	for i, m := range ms {
		if !m.BalanceBefore().Equal(previous) {
			t.Fatalf("movement %d: balance before %s does not match previous balance after %s", i, m.BalanceBefore(), previous)
		}
		if m.BalanceAfter.IsNegative() {
			t.Fatalf("movement %d: negative balance %s", i, m.BalanceAfter)
		}
		previous = m.BalanceAfter
	}
	if !previous.Equal(expected) {
		t.Errorf("expected final balance %s, got %s", expected, previous)
	}
}
