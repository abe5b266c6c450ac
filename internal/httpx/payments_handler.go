package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/payments"
)

type PaymentsHandler struct {
	Mgr *payments.Manager
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Post("/payments", h.create)
	r.Get("/payments/{id}", h.get)
	r.Post("/payments/{id}/confirm", h.confirm)
	r.Post("/payments/{id}/capture", h.capture)
	r.Post("/payments/{id}/cancel", h.cancel)
}

type createPaymentReq struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	CustomerRef string `json:"customer_ref"`
}

type paymentResp struct {
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	Amount        moneyJSON `json:"amount"`
	RefundedTotal moneyJSON `json:"refunded_total"`
	ClientSecret  string    `json:"client_secret,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CanRefund     bool      `json:"can_refund"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func paymentOut(p *payments.Payment) paymentResp {
	return paymentResp{
		PaymentID:     p.ID.String(),
		OrderID:       p.OrderID.String(),
		Status:        string(p.Status),
		Amount:        moneyOut(p.Amount),
		RefundedTotal: moneyOut(p.RefundedTotal),
		ClientSecret:  p.GatewayClientSecret,
		FailureReason: p.FailureReason,
		CanRefund:     p.CanRefund(),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (h *PaymentsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("body", "invalid json"))
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeError(w, apperr.Validationf("order_id", "must be a uuid"))
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, apperr.Validationf("user_id", "must be a uuid"))
		return
	}
	amount, err := parseMoney(req.Amount, req.Currency, "amount")
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.Mgr.ProcessPayment(r.Context(), payments.ProcessRequest{
		OrderID: orderID, UserID: userID, Amount: amount, CustomerRef: req.CustomerRef,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentOut(p))
}

func (h *PaymentsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Mgr.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentOut(p))
}

func (h *PaymentsHandler) confirm(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.Mgr.Confirm)
}

func (h *PaymentsHandler) capture(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.Mgr.Capture)
}

func (h *PaymentsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.Mgr.Cancel)
}

func (h *PaymentsHandler) command(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id uuid.UUID) (*payments.Payment, error)) {

	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := op(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentOut(p))
}
