package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/account-ledger/internal/domain"
	"github.com/boddenberg/account-ledger/internal/infra/observability"
	"github.com/boddenberg/account-ledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// RouterConfig carries the optional pieces of the HTTP surface.
type RouterConfig struct {
	Idempotency        IdempotencyCache
	CORSAllowedOrigins []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.LedgerService, metrics *observability.Metrics, logger *zap.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", IdempotencyKeyHeader},
		ExposedHeaders:   []string{IdempotentReplayHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc, logger))
	r.Get("/readyz", readyzHandler(svc))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	idempotent := IdempotencyMiddleware(cfg.Idempotency, metrics, logger)

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Clients
		// =============================================
		r.Route("/clients", func(r chi.Router) {
			r.Post("/", createClientHandler(svc, logger))
			r.Get("/", listClientsHandler(svc, logger))
			r.Get("/by-identification/{identification}", getClientByIdentificationHandler(svc, logger))
			r.Get("/{clientId}", getClientHandler(svc, logger))
			r.Put("/{clientId}", updateClientHandler(svc, logger))
			r.Post("/{clientId}/activate", activateClientHandler(svc, logger))
			r.Post("/{clientId}/deactivate", deactivateClientHandler(svc, logger))
			r.Get("/{clientId}/activation", validateActivationHandler(svc, logger))
			r.Post("/{clientId}/activation", activateClientWithAccountsHandler(svc, logger))
			r.Get("/{clientId}/accounts", listClientAccountsHandler(svc, logger))
			r.Get("/{clientId}/movements", listClientMovementsHandler(svc, logger))
		})

		// =============================================
		// Accounts
		// =============================================
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", createAccountHandler(svc, logger))
			r.Get("/", listAccountsHandler(svc, logger))
			r.Get("/by-number/{number}", getAccountByNumberHandler(svc, logger))
			r.With(idempotent).Post("/by-number/{number}/deposit", depositByNumberHandler(svc, logger))
			r.With(idempotent).Post("/by-number/{number}/withdraw", withdrawByNumberHandler(svc, logger))
			r.Get("/{accountId}", getAccountHandler(svc, logger))
			r.Post("/{accountId}/activate", activateAccountHandler(svc, logger))
			r.Post("/{accountId}/deactivate", deactivateAccountHandler(svc, logger))
			r.Get("/{accountId}/movements", listAccountMovementsHandler(svc, logger))
		})

		// =============================================
		// Movements
		// =============================================
		r.Route("/movements", func(r chi.Router) {
			r.With(idempotent).Post("/", registerMovementHandler(svc, logger))
			r.Get("/", listMovementsHandler(svc, logger))
			r.Get("/{movementId}", getMovementHandler(svc, logger))
		})

		// =============================================
		// Reports
		// =============================================
		r.Route("/reports", func(r chi.Router) {
			r.Get("/accounts/{accountId}", accountReportHandler(svc, logger))
			r.Get("/clients/{clientId}", clientReportHandler(svc, logger))
			r.Get("/accounts-summary", accountsSummaryHandler(svc, logger))
		})

		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))
	})

	return r
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "ledger-api", Status: "healthy", LastChecked: now},
		}

		if svc != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			start := time.Now()
			err := svc.Ping(ctx)
			status := "healthy"
			if err != nil {
				logger.Warn("store health check failed", zap.Error(err))
				status = "unhealthy"
			}
			services = append(services, domain.ServiceHealth{
				Name: "store", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(svc *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := svc.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}
