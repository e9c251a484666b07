package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/boddenberg/account-ledger/internal/handler"
	"github.com/boddenberg/account-ledger/internal/infra/cache"
	"github.com/boddenberg/account-ledger/internal/infra/events"
	"github.com/boddenberg/account-ledger/internal/infra/memory"
	"github.com/boddenberg/account-ledger/internal/infra/observability"
	"github.com/boddenberg/account-ledger/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	svc := service.NewLedgerService(memory.NewStore(), events.NopPublisher{}, metrics, logger)

	idem := cache.New[*handler.CachedResponse](time.Minute)
	t.Cleanup(idem.Close)

	srv := httptest.NewServer(handler.NewRouter(svc, metrics, logger, handler.RouterConfig{Idempotency: idem}))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// TestIntegration_FullFlow drives a client and account through movements,
// a deactivation cascade, a selective reactivation and the reports.
func TestIntegration_FullFlow(t *testing.T) {
	srv := newServer(t)

	// --- Client ---
	var client domain.Client
	status := call(t, srv, http.MethodPost, "/v1/clients", map[string]any{
		"name": "Jose Lema", "gender": "M", "age": 40, "identification": "1712345678",
		"address": "Otavalo sn y principal", "phone": "098254785", "password": "1234",
	}, &client)
	require.Equal(t, http.StatusCreated, status)
	require.NotZero(t, client.ID)

	status = call(t, srv, http.MethodPost, "/v1/clients", map[string]any{
		"name": "Other", "identification": "1712345678", "password": "9999",
	}, nil)
	assert.Equal(t, http.StatusConflict, status, "duplicate identification")

	// --- Accounts ---
	var savings, checking domain.Account
	status = call(t, srv, http.MethodPost, "/v1/accounts", map[string]any{
		"number": "4787580001", "type": "Ahorro", "initial_balance": "1000.00", "client_id": client.ID,
	}, &savings)
	require.Equal(t, http.StatusCreated, status)
	status = call(t, srv, http.MethodPost, "/v1/accounts", map[string]any{
		"number": "4787580002", "type": "Corriente", "initial_balance": "50", "client_id": client.ID,
	}, &checking)
	require.Equal(t, http.StatusCreated, status)

	// --- Movements ---
	var m domain.MovementDetail
	status = call(t, srv, http.MethodPost, "/v1/movements", map[string]any{
		"account_id": savings.ID, "kind": "DEPOSIT", "value": "250.50",
	}, &m)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, decimal.RequireFromString("1250.50").Equal(m.BalanceAfter))
	assert.True(t, decimal.RequireFromString("1000.00").Equal(m.BalanceBefore))

	status = call(t, srv, http.MethodPost, "/v1/movements", map[string]any{
		"account_id": savings.ID, "kind": "WITHDRAWAL", "value": "1300",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status, "insufficient funds")

	status = call(t, srv, http.MethodPost, "/v1/accounts/by-number/4787580001/withdraw", map[string]any{
		"amount": "1250.50",
	}, &m)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, m.BalanceAfter.IsZero())

	var acc domain.Account
	call(t, srv, http.MethodGet, fmt.Sprintf("/v1/accounts/%d", savings.ID), nil, &acc)
	assert.True(t, acc.CurrentBalance.IsZero())

	// --- Deactivation cascade ---
	status = call(t, srv, http.MethodPost, fmt.Sprintf("/v1/clients/%d/deactivate", client.ID), nil, nil)
	require.Equal(t, http.StatusOK, status)

	var accounts []domain.Account
	call(t, srv, http.MethodGet, fmt.Sprintf("/v1/clients/%d/accounts", client.ID), nil, &accounts)
	require.Len(t, accounts, 2)
	for _, a := range accounts {
		assert.False(t, a.Active, "account %s should be inactive", a.Number)
	}

	status = call(t, srv, http.MethodPost, "/v1/movements", map[string]any{
		"account_id": checking.ID, "kind": "DEPOSIT", "value": "10",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status, "inactive account rejects deposits")

	var activation domain.ActivationStatus
	call(t, srv, http.MethodGet, fmt.Sprintf("/v1/clients/%d/activation", client.ID), nil, &activation)
	assert.False(t, activation.ClientActive)
	assert.Len(t, activation.Accounts, 2)

	// --- Selective reactivation ---
	status = call(t, srv, http.MethodPost, fmt.Sprintf("/v1/clients/%d/activation", client.ID), map[string]any{
		"account_ids": []int64{checking.ID},
	}, nil)
	require.Equal(t, http.StatusOK, status)

	call(t, srv, http.MethodGet, fmt.Sprintf("/v1/accounts/%d", checking.ID), nil, &acc)
	assert.True(t, acc.Active)
	call(t, srv, http.MethodGet, fmt.Sprintf("/v1/accounts/%d", savings.ID), nil, &acc)
	assert.False(t, acc.Active)

	// --- Movement history ---
	var movements []domain.MovementDetail
	call(t, srv, http.MethodGet, fmt.Sprintf("/v1/clients/%d/movements", client.ID), nil, &movements)
	// deposit, withdrawal, two deactivations, one activation
	assert.Len(t, movements, 5)

	// --- Reports ---
	today := time.Now().UTC().Format(domain.DateLayout)
	var report domain.AccountMovementsReport
	status = call(t, srv, http.MethodGet,
		fmt.Sprintf("/v1/reports/accounts/%d?start=%s&end=%s", savings.ID, today, today), nil, &report)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, report.TotalMovements)

	var byClient domain.ClientMovementsReport
	status = call(t, srv, http.MethodGet,
		fmt.Sprintf("/v1/reports/clients/%d?start=%s&end=%s", client.ID, today, today), nil, &byClient)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5, byClient.TotalMovements)
	assert.Len(t, byClient.Accounts, 2)

	var summary domain.AccountsSummaryReport
	status = call(t, srv, http.MethodGet, "/v1/reports/accounts-summary?start=2026-01-01&end=2026-01-31", nil, &summary)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, summary.Accounts, 2)
	for _, s := range summary.Accounts {
		assert.Zero(t, s.MovementCount)
	}
}

func TestIntegration_NotFound(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/v1/clients/404", nil},
		{http.MethodGet, "/v1/accounts/404", nil},
		{http.MethodGet, "/v1/movements/404", nil},
		{http.MethodPost, "/v1/movements", map[string]any{"account_id": 404, "kind": "DEPOSIT", "value": "1"}},
		{http.MethodPost, "/v1/clients/404/deactivate", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, http.StatusNotFound, call(t, srv, tt.method, tt.path, tt.body, nil))
		})
	}
}
