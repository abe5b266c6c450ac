package webhooks

import (
	"encoding/json"

	"github.com/ordercore/fulfillment/internal/apperr"
)

// Event is the parsed gateway notification. The gateway wraps every
// notification in the same envelope: an event id, a dotted type, and the
// affected object with its current status.
type Event struct {
	ID            string
	Type          string
	ObjectID      string
	Status        string
	FailureReason string
	CustomerRef   string
}

type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Customer string `json:"customer"`
			LastErr  struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

func Parse(body []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, apperr.Validationf("body", "malformed event: %v", err)
	}
	if raw.ID == "" {
		return Event{}, apperr.Validationf("id", "required")
	}
	if raw.Type == "" {
		return Event{}, apperr.Validationf("type", "required")
	}
	return Event{
		ID:            raw.ID,
		Type:          raw.Type,
		ObjectID:      raw.Data.Object.ID,
		Status:        raw.Data.Object.Status,
		FailureReason: raw.Data.Object.LastErr.Message,
		CustomerRef:   raw.Data.Object.Customer,
	}, nil
}
