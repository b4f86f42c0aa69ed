package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/punchamoorthee/reconops/internal/domain"
	"github.com/punchamoorthee/reconops/internal/service"
)

func (h *Handler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := h.ledger.CreateAccount(r.Context())
	if err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/accounts", "500").Inc()
		respondWithError(w, http.StatusInternalServerError, "System error creating account")
		return
	}
	httpRequestsTotal.WithLabelValues("POST", "/accounts", "201").Inc()
	respondWithJSON(w, http.StatusCreated, map[string]int64{"account_id": id})
}

func (h *Handler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/accounts/{id}", "404").Inc()
		respondWithError(w, http.StatusNotFound, "Account not found")
		return
	}
	httpRequestsTotal.WithLabelValues("GET", "/accounts/{id}", "200").Inc()
	respondWithJSON(w, http.StatusOK, account)
}

func (h *Handler) GetAccountEntriesHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	if _, err := h.ledger.GetAccount(r.Context(), id); err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/accounts/{id}/entries", "404").Inc()
		respondWithError(w, http.StatusNotFound, "Account not found")
		return
	}
	entries, err := h.ledger.ListEntries(r.Context(), id)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/accounts/{id}/entries", "500").Inc()
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	httpRequestsTotal.WithLabelValues("GET", "/accounts/{id}/entries", "200").Inc()
	respondWithJSON(w, http.StatusOK, entries)
}

type createChargeRequestBody struct {
	AccountID     int64  `json:"account_id"`
	Amount        int64  `json:"amount"`
	DepositorName string `json:"depositor_name"`
	PaymentMethod string `json:"payment_method"`
}

// CreateChargeRequestHandler is the funding-initiation boundary: it records
// a pending intent to deposit. The collector and matcher take it from there.
func (h *Handler) CreateChargeRequestHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/charge-requests"))
	defer timer.ObserveDuration()

	var body createChargeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/charge-requests", "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	if body.Amount < domain.MinChargeAmount {
		httpRequestsTotal.WithLabelValues("POST", "/charge-requests", "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "Amount below minimum charge")
		return
	}
	if body.DepositorName == "" {
		httpRequestsTotal.WithLabelValues("POST", "/charge-requests", "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "Depositor name required")
		return
	}
	if body.PaymentMethod != domain.MethodBankTransfer && body.PaymentMethod != domain.MethodInstant {
		httpRequestsTotal.WithLabelValues("POST", "/charge-requests", "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "Unsupported payment method")
		return
	}
	if _, err := h.ledger.GetAccount(r.Context(), body.AccountID); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/charge-requests", "404").Inc()
		respondWithError(w, http.StatusNotFound, "Account not found")
		return
	}

	req := &domain.ChargeRequest{
		ID:            uuid.NewString(),
		AccountID:     body.AccountID,
		Amount:        body.Amount,
		DepositorName: body.DepositorName,
		PaymentMethod: body.PaymentMethod,
		State:         domain.StatePending,
		CreatedAt:     time.Now(),
	}
	if err := h.requests.CreateChargeRequest(r.Context(), req); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/charge-requests", "500").Inc()
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	httpRequestsTotal.WithLabelValues("POST", "/charge-requests", "201").Inc()
	respondWithJSON(w, http.StatusCreated, req)
}

func (h *Handler) GetChargeRequestHandler(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.GetChargeRequest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/charge-requests/{id}", "404").Inc()
		respondWithError(w, http.StatusNotFound, "Charge request not found")
		return
	}
	httpRequestsTotal.WithLabelValues("GET", "/charge-requests/{id}", "200").Inc()
	respondWithJSON(w, http.StatusOK, req)
}

type webhookTransactionBody struct {
	TransactionID    string `json:"transaction_id"`
	Amount           int64  `json:"amount"`
	CounterpartyName string `json:"counterparty_name"`
	ValueDate        string `json:"value_date"` // yyyyMMdd
}

// BankWebhookHandler is the provider push path. It funnels into the same
// dedup/match/commit pipeline as the poll, so a webhook delivered twice, or
// racing a poll over the same window, is harmless.
func (h *Handler) BankWebhookHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/webhook/bank-transactions"))
	defer timer.ObserveDuration()

	var body webhookTransactionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/webhook/bank-transactions", "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if body.TransactionID == "" || body.Amount <= 0 {
		httpRequestsTotal.WithLabelValues("POST", "/webhook/bank-transactions", "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "transaction_id and positive amount required")
		return
	}
	valueDate, err := time.Parse("20060102", body.ValueDate)
	if err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/webhook/bank-transactions", "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "value_date must be yyyyMMdd")
		return
	}

	inserted, err := h.collector.Ingest(r.Context(), domain.BankTransaction{
		TransactionID:    body.TransactionID,
		Direction:        "credit",
		Amount:           body.Amount,
		CounterpartyName: body.CounterpartyName,
		ValueDate:        valueDate,
	})
	if err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/webhook/bank-transactions", "500").Inc()
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	httpRequestsTotal.WithLabelValues("POST", "/webhook/bank-transactions", "200").Inc()
	respondWithJSON(w, http.StatusOK, map[string]bool{"ingested": inserted})
}

type manualConfirmBody struct {
	RequestID     string `json:"request_id"`
	TransactionID string `json:"transaction_id"`
	AdminID       string `json:"admin_id"`
}

// ManualConfirmHandler lets an authorized administrator confirm a deposit
// the matcher could not pair automatically. Confirming an already-confirmed
// request is the idempotent no-op, reported as a replay rather than an error.
func (h *Handler) ManualConfirmHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/admin/confirmations"))
	defer timer.ObserveDuration()

	var body manualConfirmBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/admin/confirmations", "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if body.RequestID == "" || body.AdminID == "" {
		httpRequestsTotal.WithLabelValues("POST", "/admin/confirmations", "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "request_id and admin_id required")
		return
	}
	if !h.auth.IsAuthorized(body.AdminID, service.ActionManualConfirm) {
		httpRequestsTotal.WithLabelValues("POST", "/admin/confirmations", "403").Inc()
		respondWithError(w, http.StatusForbidden, "Actor not authorized")
		return
	}

	req, replayed, err := h.writer.Commit(r.Context(), body.RequestID, body.TransactionID, "admin:"+body.AdminID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRequestNotFound):
			httpRequestsTotal.WithLabelValues("POST", "/admin/confirmations", "404").Inc()
			respondWithError(w, http.StatusNotFound, "Charge request not found")
		case errors.Is(err, domain.ErrTransactionClaimed):
			httpRequestsTotal.WithLabelValues("POST", "/admin/confirmations", "409").Inc()
			respondWithError(w, http.StatusConflict, "Transaction already linked to another request")
		default:
			httpRequestsTotal.WithLabelValues("POST", "/admin/confirmations", "500").Inc()
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	httpRequestsTotal.WithLabelValues("POST", "/admin/confirmations", "200").Inc()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"request":  req,
		"replayed": replayed,
	})
}

type prechargeBody struct {
	AccountID           int64  `json:"account_id"`
	Amount              int64  `json:"amount"`
	DepositorName       string `json:"depositor_name"`
	ExpectedPaymentDate string `json:"expected_payment_date"` // yyyy-MM-dd
	AdminID             string `json:"admin_id"`
}

func (h *Handler) PrechargeHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/admin/precharges"))
	defer timer.ObserveDuration()

	var body prechargeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/admin/precharges", "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	var expected *time.Time
	if body.ExpectedPaymentDate != "" {
		d, err := time.Parse("2006-01-02", body.ExpectedPaymentDate)
		if err != nil {
			httpRequestsTotal.WithLabelValues("POST", "/admin/precharges", "422").Inc()
			respondWithError(w, http.StatusUnprocessableEntity, "expected_payment_date must be yyyy-MM-dd")
			return
		}
		expected = &d
	}

	req, err := h.precharge.Precharge(r.Context(), service.PrechargeInput{
		AccountID:           body.AccountID,
		Amount:              body.Amount,
		DepositorName:       body.DepositorName,
		ExpectedPaymentDate: expected,
		Approver:            body.AdminID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			httpRequestsTotal.WithLabelValues("POST", "/admin/precharges", "403").Inc()
			respondWithError(w, http.StatusForbidden, "Actor not authorized")
		case errors.Is(err, domain.ErrAmountTooSmall), errors.Is(err, domain.ErrInvalidInput):
			httpRequestsTotal.WithLabelValues("POST", "/admin/precharges", "422").Inc()
			respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, domain.ErrAccountNotFound):
			httpRequestsTotal.WithLabelValues("POST", "/admin/precharges", "404").Inc()
			respondWithError(w, http.StatusNotFound, "Account not found")
		case errors.Is(err, domain.ErrCompensationFailed):
			// The credit is orphaned and needs manual reconciliation; tell
			// the operator loudly.
			httpRequestsTotal.WithLabelValues("POST", "/admin/precharges", "500").Inc()
			respondWithError(w, http.StatusInternalServerError, "Precharge compensation failed; manual reconciliation required")
		default:
			httpRequestsTotal.WithLabelValues("POST", "/admin/precharges", "500").Inc()
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}

	httpRequestsTotal.WithLabelValues("POST", "/admin/precharges", "201").Inc()
	respondWithJSON(w, http.StatusCreated, req)
}

type rematchBody struct {
	AdminID string `json:"admin_id"`
}

// RematchHandler re-runs matching over mirrored-but-unmatched deposits, the
// recovery path when a charge request was created after its deposit arrived
// or an auto-match commit failed transiently.
func (h *Handler) RematchHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/admin/rematch"))
	defer timer.ObserveDuration()

	var body rematchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/admin/rematch", "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if body.AdminID == "" {
		httpRequestsTotal.WithLabelValues("POST", "/admin/rematch", "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "admin_id required")
		return
	}
	if !h.auth.IsAuthorized(body.AdminID, service.ActionRematch) {
		httpRequestsTotal.WithLabelValues("POST", "/admin/rematch", "403").Inc()
		respondWithError(w, http.StatusForbidden, "Actor not authorized")
		return
	}

	matched, err := h.collector.Rematch(r.Context())
	if err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/admin/rematch", "500").Inc()
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	httpRequestsTotal.WithLabelValues("POST", "/admin/rematch", "200").Inc()
	respondWithJSON(w, http.StatusOK, map[string]int{"matched": matched})
}

func (h *Handler) UnmatchedReportHandler(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpRequestsTotal.WithLabelValues("GET", "/reports/unmatched", "422").Inc()
			respondWithError(w, http.StatusUnprocessableEntity, "as_of must be yyyy-MM-dd")
			return
		}
		asOf = parsed.Add(24*time.Hour - time.Second)
	}

	items, err := h.reporter.SweepUnmatched(r.Context(), asOf)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/reports/unmatched", "500").Inc()
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	httpRequestsTotal.WithLabelValues("GET", "/reports/unmatched", "200").Inc()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"as_of": asOf,
		"items": items,
	})
}
