package handlers

import (
	"net/http"

	"github.com/AnshRaj112/coursely-backend/internal/middleware"
	"github.com/AnshRaj112/coursely-backend/internal/models"
	"github.com/AnshRaj112/coursely-backend/internal/response"
	"github.com/AnshRaj112/coursely-backend/internal/services"
)

type createOrderRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly yearly"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required,max=64"`
	PaymentID string `json:"paymentId" validate:"required,max=64"`
	Signature string `json:"signature" validate:"required,max=256"`
}

type PaymentHandler struct {
	payments *services.PaymentService
	resp     *response.Responder
}

func NewPaymentHandler(payments *services.PaymentService, resp *response.Responder) *PaymentHandler {
	return &PaymentHandler{payments: payments, resp: resp}
}

// CreateOrder handles POST /api/payments/orders.
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	order, err := h.payments.CreateOrder(r.Context(), middleware.CurrentUser(r), models.Plan(req.Plan))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusCreated, order)
}

// Verify handles POST /api/payments/verify and returns the updated subscription.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	sub, err := h.payments.VerifyPayment(r.Context(), middleware.CurrentUser(r), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "subscription": sub})
}

func (h *PaymentHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.payments.ListOrders(r.Context(), middleware.CurrentUser(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": orders})
}
