package handler

import (
	"net/http"
	"strconv"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/boddenberg/account-ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Clients Handlers
// ============================================================

func createClientHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients")
		defer span.End()

		var req clientRequest
		if err := decodeAndValidate(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		client, err := svc.CreateClient(ctx, req.input())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, client)
	}
}

func listClientsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients")
		defer span.End()

		activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
		clients, err := svc.ListClients(ctx, activeOnly)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, clients)
	}
}

func getClientHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}")
		defer span.End()

		clientID, err := idParam(r, "clientId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		client, err := svc.GetClient(ctx, clientID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, client)
	}
}

func getClientByIdentificationHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/by-identification/{identification}")
		defer span.End()

		client, err := svc.GetClientByIdentification(ctx, chi.URLParam(r, "identification"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, client)
	}
}

func updateClientHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/clients/{clientId}")
		defer span.End()

		clientID, err := idParam(r, "clientId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		var req clientRequest
		if err := decodeAndValidate(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		client, err := svc.UpdateClient(ctx, clientID, req.input())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, client)
	}
}

func activateClientHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients/{clientId}/activate")
		defer span.End()

		clientID, err := idParam(r, "clientId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := svc.ActivateClient(ctx, clientID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "client activated", ID: clientID})
	}
}

func deactivateClientHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients/{clientId}/deactivate")
		defer span.End()

		clientID, err := idParam(r, "clientId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("client.id", clientID))

		if err := svc.DeactivateClient(ctx, clientID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "client and accounts deactivated", ID: clientID})
	}
}

func validateActivationHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/activation")
		defer span.End()

		clientID, err := idParam(r, "clientId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		status, err := svc.ValidateActivation(ctx, clientID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func activateClientWithAccountsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients/{clientId}/activation")
		defer span.End()

		clientID, err := idParam(r, "clientId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		var req activationRequest
		if err := decodeAndValidate(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("client.id", clientID), attribute.Int("accounts.requested", len(req.AccountIDs)))

		if err := svc.ActivateClientWithAccounts(ctx, clientID, req.AccountIDs); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "client and selected accounts activated", ID: clientID})
	}
}

func listClientAccountsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/accounts")
		defer span.End()

		clientID, err := idParam(r, "clientId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		accounts, err := svc.ListAccountsByClient(ctx, clientID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func listClientMovementsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/movements")
		defer span.End()

		clientID, err := idParam(r, "clientId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		movements, err := svc.ListMovementsByClient(ctx, clientID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, movements)
	}
}
