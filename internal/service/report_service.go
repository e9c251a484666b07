package service

import (
	"context"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Reports
// ============================================================

// dateRange validates a report period. Dates are calendar days in the
// service location; the end day may lie in the future.
func (s *LedgerService) dateRange(start, end time.Time) (domain.DateRange, error) {
	r := domain.DateRange{Start: s.day(start), End: s.day(end)}
	if r.Start.After(r.End) {
		return r, &domain.ErrBusinessRule{Message: "start date must not be after end date"}
	}
	if r.Start.After(s.day(s.now())) {
		return r, &domain.ErrBusinessRule{Message: "start date must not be in the future"}
	}
	return r, nil
}

func (s *LedgerService) day(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// MovementsByAccountAndRange reports one account's movements between the
// start of start's day and the end of end's day.
func (s *LedgerService) MovementsByAccountAndRange(ctx context.Context, accountID int64, start, end time.Time) (*domain.AccountMovementsReport, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.MovementsByAccountAndRange")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	began := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("report_account_movements", time.Since(began))
	}()

	r, err := s.dateRange(start, end)
	if err != nil {
		return nil, err
	}
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var (
		clientName string
		movements  []domain.Movement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		clientName = s.clientName(gctx, account.ClientID)
		return nil
	})
	g.Go(func() error {
		var err error
		movements, err = s.store.ListMovementsByAccountInRange(gctx, accountID, r.From(), r.To())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &domain.AccountMovementsReport{
		AccountID:      account.ID,
		AccountNumber:  account.Number,
		AccountType:    account.Type,
		ClientName:     clientName,
		InitialBalance: account.InitialBalance,
		CurrentBalance: account.CurrentBalance,
		Period:         r.Period(),
		TotalMovements: len(movements),
		Movements:      make([]domain.MovementDetail, 0, len(movements)),
	}
	for _, m := range movements {
		report.Movements = append(report.Movements, domain.NewMovementDetail(m, account.Number, clientName))
	}
	return report, nil
}

// MovementsByClientAndRange reports the client's movements in the period
// grouped by account. Accounts without movements in the period are left out.
func (s *LedgerService) MovementsByClientAndRange(ctx context.Context, clientID int64, start, end time.Time) (*domain.ClientMovementsReport, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.MovementsByClientAndRange")
	defer span.End()
	span.SetAttributes(attribute.Int64("client.id", clientID))

	began := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("report_client_movements", time.Since(began))
	}()

	r, err := s.dateRange(start, end)
	if err != nil {
		return nil, err
	}
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	var (
		accounts  []domain.Account
		movements []domain.Movement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.store.ListAccountsByClient(gctx, clientID)
		return err
	})
	g.Go(func() error {
		var err error
		movements, err = s.store.ListMovementsByClientInRange(gctx, clientID, r.From(), r.To())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	report := &domain.ClientMovementsReport{
		ClientID:       client.ID,
		ClientName:     client.Name(),
		Identification: client.Person.Identification,
		Period:         r.Period(),
		TotalMovements: len(movements),
		Accounts:       make([]domain.AccountMovementGroup, 0),
	}

	// movements arrive ordered by account, then time.
	for _, m := range movements {
		n := len(report.Accounts)
		if n == 0 || report.Accounts[n-1].AccountID != m.AccountID {
			a := byID[m.AccountID]
			report.Accounts = append(report.Accounts, domain.AccountMovementGroup{
				AccountID:     m.AccountID,
				AccountNumber: a.Number,
				AccountType:   a.Type,
				Active:        a.Active,
				Movements:     make([]domain.MovementDetail, 0),
			})
			n++
		}
		group := &report.Accounts[n-1]
		group.Movements = append(group.Movements, domain.NewMovementDetail(m, group.AccountNumber, client.Name()))
	}
	return report, nil
}

// AccountsSummary lists every non-deleted account with its movement count
// in the period, zero included.
func (s *LedgerService) AccountsSummary(ctx context.Context, start, end time.Time) (*domain.AccountsSummaryReport, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AccountsSummary")
	defer span.End()

	began := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("report_accounts_summary", time.Since(began))
	}()

	r, err := s.dateRange(start, end)
	if err != nil {
		return nil, err
	}

	var (
		accounts []domain.Account
		clients  []domain.Client
		counts   map[int64]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.store.ListAccounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		clients, err = s.store.ListClients(gctx, false)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.store.CountMovementsInRange(gctx, r.From(), r.To())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := clientNames(clients)
	report := &domain.AccountsSummaryReport{
		Period:   r.Period(),
		Accounts: make([]domain.AccountSummary, 0, len(accounts)),
	}
	for _, a := range accounts {
		if a.Deleted {
			continue
		}
		report.Accounts = append(report.Accounts, domain.AccountSummary{
			AccountID:      a.ID,
			AccountNumber:  a.Number,
			AccountType:    a.Type,
			ClientName:     names[a.ClientID],
			InitialBalance: a.InitialBalance,
			CurrentBalance: a.CurrentBalance,
			Active:         a.Active,
			MovementCount:  counts[a.ID],
			CreatedAt:      a.CreatedAt,
		})
	}
	report.TotalAccounts = len(report.Accounts)
	return report, nil
}
