package handler

import (
	"net/http"

	"github.com/boddenberg/account-ledger/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Reports Handlers
// GET /v1/reports/...?start=YYYY-MM-DD&end=YYYY-MM-DD
// ============================================================

func accountReportHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/accounts/{accountId}")
		defer span.End()

		accountID, err := idParam(r, "accountId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		start, end, err := dateRangeParams(r, svc.Location())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		report, err := svc.MovementsByAccountAndRange(ctx, accountID, start, end)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func clientReportHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/clients/{clientId}")
		defer span.End()

		clientID, err := idParam(r, "clientId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		start, end, err := dateRangeParams(r, svc.Location())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		report, err := svc.MovementsByClientAndRange(ctx, clientID, start, end)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func accountsSummaryHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/accounts-summary")
		defer span.End()

		start, end, err := dateRangeParams(r, svc.Location())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		report, err := svc.AccountsSummary(ctx, start, end)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
