package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/orders"
	"github.com/ordercore/fulfillment/internal/tracking"
)

type OrdersHandler struct {
	Svc *orders.Service
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.create)
	r.Get("/orders/{id}", h.get)
	r.Get("/orders/{id}/status", h.status)
	r.Get("/orders/{id}/history", h.history)
	r.Post("/orders/{id}/advance", h.advance)
	r.Post("/orders/{id}/cancel", h.cancel)
}

type orderItemReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type createOrderReq struct {
	UserID   string         `json:"user_id"`
	Currency string         `json:"currency"`
	Items    []orderItemReq `json:"items"`
	Discount string         `json:"discount"`
	Tax      string         `json:"tax"`
	Shipping string         `json:"shipping"`
}

type orderResp struct {
	OrderID   string     `json:"order_id"`
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"`
	Subtotal  moneyJSON  `json:"subtotal"`
	Discount  moneyJSON  `json:"discount"`
	Tax       moneyJSON  `json:"tax"`
	Shipping  moneyJSON  `json:"shipping"`
	Total     moneyJSON  `json:"total"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func orderOut(o *orders.Order) orderResp {
	return orderResp{
		OrderID:   o.ID.String(),
		UserID:    o.UserID.String(),
		Status:    string(o.Status),
		Subtotal:  moneyOut(o.Subtotal),
		Discount:  moneyOut(o.Discount),
		Tax:       moneyOut(o.Tax),
		Shipping:  moneyOut(o.Shipping),
		Total:     moneyOut(o.Total),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("body", "invalid json"))
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, apperr.Validationf("user_id", "must be a uuid"))
		return
	}

	items := make([]orders.Item, 0, len(req.Items))
	for _, it := range req.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			writeError(w, apperr.Validationf("items.product_id", "must be a uuid"))
			return
		}
		price, err := parseMoney(it.UnitPrice, req.Currency, "items.unit_price")
		if err != nil {
			writeError(w, err)
			return
		}
		items = append(items, orders.Item{ProductID: pid, Qty: it.Qty, UnitPrice: price})
	}

	discount, err := optionalMoney(req.Discount, req.Currency, "discount")
	if err != nil {
		writeError(w, err)
		return
	}
	tax, err := optionalMoney(req.Tax, req.Currency, "tax")
	if err != nil {
		writeError(w, err)
		return
	}
	shipping, err := optionalMoney(req.Shipping, req.Currency, "shipping")
	if err != nil {
		writeError(w, err)
		return
	}

	o, err := h.Svc.Create(r.Context(), orders.CreateRequest{
		UserID:   userID,
		Currency: req.Currency,
		Items:    items,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderOut(o))
}

type advanceReq struct {
	Target string `json:"target"`
	Actor  string `json:"actor"`
	Note   string `json:"note"`
}

func (h *OrdersHandler) advance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req advanceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("body", "invalid json"))
		return
	}
	if req.Target == "" {
		writeError(w, apperr.Validationf("target", "required"))
		return
	}
	o, err := h.Svc.Advance(r.Context(), id, orders.Status(req.Target), req.Actor, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderOut(o))
}

type cancelReq struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validationf("body", "invalid json"))
		return
	}
	if req.Reason == "" {
		writeError(w, apperr.Validationf("reason", "required"))
		return
	}
	o, err := h.Svc.Cancel(r.Context(), id, req.Reason, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderOut(o))
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	o, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderOut(o))
}

// status serves from the redis cache when warm, falling back to the
// database.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := h.Svc.CachedStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(st)})
}

type historyEntryResp struct {
	Status         string    `json:"status"`
	Carrier        string    `json:"carrier,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Note           string    `json:"note,omitempty"`
	Automated      bool      `json:"automated"`
	Actor          string    `json:"actor"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.Svc.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]historyEntryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyOut(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func historyOut(e tracking.Entry) historyEntryResp {
	return historyEntryResp{
		Status:         string(e.Status),
		Carrier:        e.Carrier,
		TrackingNumber: e.TrackingNumber,
		Note:           e.Note,
		Automated:      e.Automated,
		Actor:          e.Actor,
		CreatedAt:      e.CreatedAt,
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Validationf("id", "must be a uuid")
	}
	return id, nil
}
