package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/refunds"
)

type RefundsHandler struct {
	Wf *refunds.Workflow
}

func (h *RefundsHandler) Register(r *chi.Mux) {
	r.Post("/refunds", h.create)
	r.Get("/refunds/{id}", h.get)
	r.Post("/refunds/{id}/approve", h.approve)
	r.Post("/refunds/{id}/reject", h.reject)
	r.Post("/refunds/{id}/cancel", h.cancel)
	r.Get("/payments/{id}/refunds", h.listByPayment)
}

type createRefundReq struct {
	PaymentID   string `json:"payment_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by"`
	AutoApprove bool   `json:"auto_approve"`
}

type refundResp struct {
	RefundID   string    `json:"refund_id"`
	PaymentID  string    `json:"payment_id"`
	OrderID    string    `json:"order_id"`
	Status     string    `json:"status"`
	Amount     moneyJSON `json:"amount"`
	Reason     string    `json:"reason"`
	ApprovedBy string    `json:"approved_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func refundOut(rf *refunds.Refund) refundResp {
	out := refundResp{
		RefundID:  rf.ID.String(),
		PaymentID: rf.PaymentID.String(),
		OrderID:   rf.OrderID.String(),
		Status:    string(rf.Status),
		Amount:    moneyOut(rf.Amount),
		Reason:    rf.Reason,
		CreatedAt: rf.CreatedAt,
		UpdatedAt: rf.UpdatedAt,
	}
	if rf.ApprovedBy != uuid.Nil {
		out.ApprovedBy = rf.ApprovedBy.String()
	}
	return out
}

func (h *RefundsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRefundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("body", "invalid json"))
		return
	}
	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		writeError(w, apperr.Validationf("payment_id", "must be a uuid"))
		return
	}
	requestedBy, err := uuid.Parse(req.RequestedBy)
	if err != nil {
		writeError(w, apperr.Validationf("requested_by", "must be a uuid"))
		return
	}
	amount, err := parseMoney(req.Amount, req.Currency, "amount")
	if err != nil {
		writeError(w, err)
		return
	}

	rf, err := h.Wf.Create(r.Context(), refunds.CreateRequest{
		PaymentID: paymentID, Amount: amount, Reason: req.Reason,
		RequestedBy: requestedBy, AutoApprove: req.AutoApprove,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, refundOut(rf))
}

func (h *RefundsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rf, err := h.Wf.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refundOut(rf))
}

type approveReq struct {
	Approver string `json:"approver"`
}

func (h *RefundsHandler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req approveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("body", "invalid json"))
		return
	}
	approver, err := uuid.Parse(req.Approver)
	if err != nil {
		writeError(w, apperr.Validationf("approver", "must be a uuid"))
		return
	}
	rf, err := h.Wf.Approve(r.Context(), id, approver)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refundOut(rf))
}

func (h *RefundsHandler) reject(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, h.Wf.Reject)
}

func (h *RefundsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, h.Wf.Cancel)
}

type reviewReq struct {
	Note string `json:"note"`
}

func (h *RefundsHandler) close(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id uuid.UUID, note string) (*refunds.Refund, error)) {

	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req reviewReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	rf, err := op(r.Context(), id, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refundOut(rf))
}

func (h *RefundsHandler) listByPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := h.Wf.ListByPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]refundResp, 0, len(list))
	for _, rf := range list {
		out = append(out, refundOut(rf))
	}
	writeJSON(w, http.StatusOK, out)
}
