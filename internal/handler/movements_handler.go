package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/boddenberg/account-ledger/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Movements Handlers
// ============================================================

func registerMovementHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/movements")
		defer span.End()

		var req movementRequest
		if err := decodeAndValidate(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		kind, err := domain.ParseMovementKind(req.Kind)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.Int64("account.id", req.AccountID),
			attribute.String("movement.kind", string(kind)),
		)

		var occurredAt time.Time
		if req.OccurredAt != nil {
			occurredAt = *req.OccurredAt
		}

		movement, err := svc.RegisterMovementAt(ctx, req.AccountID, kind, req.Value, occurredAt)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, movement)
	}
}

func listMovementsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/movements")
		defer span.End()

		movements, err := svc.ListMovements(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, movements)
	}
}

func getMovementHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/movements/{movementId}")
		defer span.End()

		movementID, err := idParam(r, "movementId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		movement, err := svc.GetMovement(ctx, movementID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, movement)
	}
}
