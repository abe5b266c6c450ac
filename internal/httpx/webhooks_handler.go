package httpx

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/webhooks"
)

// SignatureHeader carries the gateway's hex HMAC over the raw body.
const SignatureHeader = "X-Gateway-Signature"

const maxWebhookBody = 1 << 20

type WebhooksHandler struct {
	Proc *webhooks.Processor
}

func (h *WebhooksHandler) Register(r *chi.Mux) {
	r.Post("/webhooks/gateway", h.receive)
}

func (h *WebhooksHandler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, apperr.Validationf("body", "unreadable"))
		return
	}
	if err := h.Proc.Handle(r.Context(), body, r.Header.Get(SignatureHeader)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
