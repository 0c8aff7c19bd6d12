package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JakeConal/smart-restaurant/internal/order"
	"github.com/JakeConal/smart-restaurant/internal/payment"
)

type Handler struct {
	orders   *order.Service
	payments *payment.Service
}

func NewHandler(orders *order.Service, payments *payment.Service) *Handler {
	return &Handler{orders: orders, payments: payments}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	o, err := h.orders.Create(r.Context(), req)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err)
		return
	}
	jsonResponse(w, http.StatusCreated, o)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			jsonError(w, http.StatusNotFound, err)
			return
		}
		jsonError(w, http.StatusInternalServerError, err)
		return
	}
	jsonResponse(w, http.StatusOK, o)
}

func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status    order.Status `json:"status"`
		ChangedBy string       `json:"changed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.ChangedBy == "" {
		req.ChangedBy = "staff"
	}

	o, err := h.orders.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, req.ChangedBy)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			jsonError(w, http.StatusNotFound, err)
		case errors.Is(err, order.ErrInvalidTransition):
			jsonError(w, http.StatusConflict, err)
		default:
			jsonError(w, http.StatusInternalServerError, err)
		}
		return
	}
	jsonResponse(w, http.StatusOK, o)
}

func (h *Handler) RequestBill(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RequestBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			jsonError(w, http.StatusNotFound, err)
			return
		}
		jsonError(w, http.StatusInternalServerError, err)
		return
	}
	jsonResponse(w, http.StatusOK, o)
}

func (h *Handler) SettleOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method order.PaymentMethod `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	o, err := h.payments.SettleOnSite(r.Context(), chi.URLParam(r, "id"), req.Method)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			jsonError(w, http.StatusNotFound, err)
			return
		}
		jsonError(w, http.StatusBadRequest, err)
		return
	}
	jsonResponse(w, http.StatusOK, o)
}

func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderIDs  []string `json:"order_ids"`
		ReturnURL string   `json:"return_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	orders := make([]*order.Order, 0, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		o, err := h.orders.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				jsonError(w, http.StatusNotFound, fmt.Errorf("order %s: %w", id, err))
				return
			}
			jsonError(w, http.StatusInternalServerError, err)
			return
		}
		orders = append(orders, o)
	}

	checkout := payment.ComputeCheckout(orders)
	redirect, err := h.payments.Begin(r.Context(), checkout, req.ReturnURL)
	if err != nil {
		if errors.Is(err, payment.ErrEmptyCheckout) {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		jsonError(w, http.StatusInternalServerError, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"redirect_url": redirect,
		"checkout":     checkout,
	})
}

func (h *Handler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	res, err := h.payments.VerifyReturn(r.Context(), r.URL.Query())
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrBadSignature), errors.Is(err, payment.ErrUnknownReconciliationKey):
			jsonResponse(w, http.StatusBadRequest, res)
		default:
			jsonError(w, http.StatusInternalServerError, err)
		}
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusPaymentRequired
	}
	jsonResponse(w, status, res)
}
