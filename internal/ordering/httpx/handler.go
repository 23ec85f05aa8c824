// Package httpx exposes the ordering service's HTTP surface: the idempotent
// create/ship/cancel commands and the order query.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/emezadev/ordering-sagas/internal/ordering/app"
	"github.com/emezadev/ordering-sagas/internal/ordering/domain"
	pkghttpx "github.com/emezadev/ordering-sagas/internal/pkg/httpx"
)

type Handler struct {
	commands *app.Commands
	queries  *app.Queries
}

func NewHandler(commands *app.Commands, queries *app.Queries) *Handler {
	return &Handler{commands: commands, queries: queries}
}

// CreateOrder accepts the create-order command. The x-idempotency-key header
// is required: a retry with the same key returns the original submission.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID, err := pkghttpx.IdempotencyKey(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, "idempotency_key_required", "x-idempotency-key must be a UUID")
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	address, items := req.toDomain()
	submission, replayed, err := h.commands.CreateOrder(r.Context(), requestID, app.CreateOrderCommand{
		BuyerID:       req.BuyerID,
		BuyerName:     req.BuyerName,
		Address:       address,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
	})
	if err != nil {
		writeCommandError(w, r, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		slog.InfoContext(r.Context(), "duplicate create order replayed",
			"request_id", pkghttpx.RequestID(r.Context()), "idempotency_key", requestID)
		status = http.StatusOK
	}
	writeJSON(w, status, submission)
}

// GetOrderByID returns the order read model.
func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	view, err := h.queries.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order_not_found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ShipOrder moves a paid order to shipped.
func (h *Handler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	h.statusCommand(w, r, func(requestID, orderID uuid.UUID) (app.StatusResult, bool, error) {
		return h.commands.ShipOrder(r.Context(), requestID, app.ShipOrderCommand{OrderID: orderID})
	})
}

// CancelOrder cancels any non-terminal order.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.statusCommand(w, r, func(requestID, orderID uuid.UUID) (app.StatusResult, bool, error) {
		return h.commands.CancelOrder(r.Context(), requestID, app.CancelOrderCommand{OrderID: orderID})
	})
}

func (h *Handler) statusCommand(w http.ResponseWriter, r *http.Request, run func(requestID, orderID uuid.UUID) (app.StatusResult, bool, error)) {
	requestID, err := pkghttpx.IdempotencyKey(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, "idempotency_key_required", "x-idempotency-key must be a UUID")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	result, _, err := run(requestID, orderID)
	if err != nil {
		writeCommandError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeCommandError maps the domain error taxonomy onto HTTP statuses.
func writeCommandError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidationError(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case domain.IsInvalidStateTransition(err):
		writeError(w, http.StatusConflict, "invalid_state_transition", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", "")
	default:
		slog.ErrorContext(r.Context(), "command failed",
			"request_id", pkghttpx.RequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "command_failed", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
