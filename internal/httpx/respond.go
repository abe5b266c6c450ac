package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/money"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), map[string]string{
		"error": err.Error(),
		"kind":  apperr.Kind(err),
	})
}

func parseMoney(amount, currency, field string) (money.Money, error) {
	if amount == "" {
		return money.Money{}, apperr.Validationf(field, "required")
	}
	m, err := money.FromString(amount, currency)
	if err != nil {
		return money.Money{}, apperr.Validationf(field, "%v", err)
	}
	return m, nil
}

// optionalMoney parses an amount that may be absent, defaulting to zero
// in the given currency.
func optionalMoney(amount, currency, field string) (money.Money, error) {
	if amount == "" {
		return money.Zero(currency), nil
	}
	return parseMoney(amount, currency, field)
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func moneyOut(m money.Money) moneyJSON {
	return moneyJSON{Amount: m.StringAmount(), Currency: m.Currency()}
}
