package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/reconops/internal/service"
)

// Metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recon_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recon_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Handler exposes the engine over HTTP: the funding-initiation and read
// endpoints, the provider webhook, and the admin confirmation/pre-charge
// actions.
type Handler struct {
	ledger    service.LedgerStore
	requests  service.ChargeRequestStore
	collector *service.Collector
	writer    *service.Writer
	precharge *service.Precharger
	reporter  *service.Reporter
	auth      service.Authorizer

	adminToken string
}

func NewHandler(ledger service.LedgerStore, requests service.ChargeRequestStore,
	collector *service.Collector, writer *service.Writer, precharge *service.Precharger,
	reporter *service.Reporter, authz service.Authorizer, adminToken string) *Handler {
	return &Handler{
		ledger:     ledger,
		requests:   requests,
		collector:  collector,
		writer:     writer,
		precharge:  precharge,
		reporter:   reporter,
		auth:       authz,
		adminToken: adminToken,
	}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RequireAdmin wraps admin endpoints with the shared bearer-token check.
// Fine-grained capability checks happen per action via the Authorizer.
func (h *Handler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if h.adminToken == "" || token != h.adminToken {
			respondWithError(w, http.StatusUnauthorized, "Admin credentials required")
			return
		}
		next(w, r)
	}
}

// Helpers
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
