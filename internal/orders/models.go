package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/money"
)

type Item struct {
	ProductID uuid.UUID
	Qty       int
	UnitPrice money.Money
}

// Order is the root of the order aggregate. It owns its line items and
// tracking history; Payment and Refund reference it by id only. Orders
// are never hard-deleted; cancellation is a state.
type Order struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Items    []Item
	Status   Status
	Currency string

	Subtotal money.Money
	Discount money.Money
	Tax      money.Money
	Shipping money.Money
	Total    money.Money

	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancelledAt        *time.Time
}

// validateTotals enforces total = subtotal + tax + shipping - discount,
// all in the order's single currency.
func (o *Order) validateTotals() error {
	for _, m := range []money.Money{o.Subtotal, o.Discount, o.Tax, o.Shipping, o.Total} {
		if m.Currency() != o.Currency {
			return apperr.Validationf("currency", "all monetary fields must be %s", o.Currency)
		}
		if m.IsNegative() {
			return apperr.Validationf("amount", "monetary fields must not be negative")
		}
	}

	sum, err := o.Subtotal.Add(o.Tax)
	if err != nil {
		return err
	}
	if sum, err = sum.Add(o.Shipping); err != nil {
		return err
	}
	if sum, err = sum.Sub(o.Discount); err != nil {
		return err
	}
	if !sum.Equal(o.Total) {
		return apperr.Validationf("total", "expected %s, got %s", sum, o.Total)
	}
	return nil
}

// itemSubtotal recomputes the subtotal from line items.
func (o *Order) itemSubtotal() (money.Money, error) {
	sum := money.Zero(o.Currency)
	for _, it := range o.Items {
		if it.Qty <= 0 {
			return money.Money{}, apperr.Validationf("qty", "must be positive for product %s", it.ProductID)
		}
		var err error
		if sum, err = sum.Add(it.UnitPrice.Mul(int64(it.Qty))); err != nil {
			return money.Money{}, err
		}
	}
	return sum, nil
}
