package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/boddenberg/account-ledger/internal/infra/events"
	"github.com/boddenberg/account-ledger/internal/infra/resilience"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleEvent() *domain.MovementEvent {
	return &domain.MovementEvent{
		EventID:       "evt-1",
		MovementID:    7,
		AccountID:     1,
		AccountNumber: "ACC-0000001",
		Kind:          domain.MovementDeposit,
		Value:         decimal.RequireFromString("250.50"),
		BalanceBefore: decimal.RequireFromString("1000.00"),
		BalanceAfter:  decimal.RequireFromString("1250.50"),
		OccurredAt:    time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestRedisPublisher_PublishMovement(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	event := sampleEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectPublish("ledger.movements", payload).SetVal(1)

	pub := events.NewRedisPublisher(rdb, "ledger.movements",
		resilience.NewCircuitBreaker("redis-test", zap.NewNop()),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)

	assert.NoError(t, pub.PublishMovement(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_RetriesThenSucceeds(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	event := sampleEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectPublish("ledger.movements", payload).SetErr(errors.New("connection reset"))
	mock.ExpectPublish("ledger.movements", payload).SetVal(1)

	pub := events.NewRedisPublisher(rdb, "ledger.movements",
		resilience.NewCircuitBreaker("redis-test", zap.NewNop()),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)

	assert.NoError(t, pub.PublishMovement(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_FailureIsExternalServiceError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	event := sampleEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectPublish("ledger.movements", payload).SetErr(errors.New("connection refused"))

	pub := events.NewRedisPublisher(rdb, "ledger.movements",
		resilience.NewCircuitBreaker("redis-test", zap.NewNop()),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)

	err = pub.PublishMovement(context.Background(), event)
	var extErr *domain.ErrExternalService
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "redis", extErr.Service)
}

func TestRedisPublisher_DeadlineIsNotRetried(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	event := sampleEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	// a second Publish would find no expectation and fail with a different error
	mock.ExpectPublish("ledger.movements", payload).SetErr(context.DeadlineExceeded)

	pub := events.NewRedisPublisher(rdb, "ledger.movements",
		resilience.NewCircuitBreaker("redis-test", zap.NewNop()),
		resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)

	err = pub.PublishMovement(context.Background(), event)
	var extErr *domain.ErrExternalService
	require.ErrorAs(t, err, &extErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_OpenCircuit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	event := sampleEvent()
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	cb := resilience.NewCircuitBreaker("redis-test", zap.NewNop())
	pub := events.NewRedisPublisher(rdb, "ledger.movements", cb,
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)

	for i := 0; i < 5; i++ {
		mock.ExpectPublish("ledger.movements", payload).SetErr(errors.New("down"))
		_ = pub.PublishMovement(context.Background(), event)
	}

	err = pub.PublishMovement(context.Background(), event)
	var open *domain.ErrCircuitOpen
	assert.ErrorAs(t, err, &open)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, events.NopPublisher{}.PublishMovement(context.Background(), sampleEvent()))
}
