package payments

import "github.com/ordercore/fulfillment/internal/apperr"

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusInitiated         Status = "INITIATED"
	StatusProcessing        Status = "PROCESSING"
	StatusAuthorized        Status = "AUTHORIZED"
	StatusCaptured          Status = "CAPTURED"
	StatusSettled           Status = "SETTLED"
	StatusFailed            Status = "FAILED"
	StatusDeclined          Status = "DECLINED"
	StatusCancelled         Status = "CANCELLED"
	StatusExpired           Status = "EXPIRED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
	StatusRefunding         Status = "REFUNDING"
	StatusRefunded          Status = "REFUNDED"
	StatusRefundFailed      Status = "REFUND_FAILED"
	StatusUnderReview       Status = "UNDER_REVIEW"
	StatusDisputed          Status = "DISPUTED"
	StatusDisputeWon        Status = "DISPUTE_WON"
	StatusDisputeLost       Status = "DISPUTE_LOST"
	StatusChargeback        Status = "CHARGEBACK"
	StatusOnHold            Status = "ON_HOLD"
)

// props carries the three flags every payment status has. fundsTransferred
// is the monotonic one: a merge must never move it from true back to false.
type props struct {
	fundsReserved    bool
	fundsTransferred bool
	isFinal          bool
}

var statusProps = map[Status]props{
	StatusPending:           {},
	StatusInitiated:         {},
	StatusProcessing:        {},
	StatusAuthorized:        {fundsReserved: true},
	StatusCaptured:          {fundsReserved: true, fundsTransferred: true},
	StatusSettled:           {fundsReserved: true, fundsTransferred: true},
	StatusFailed:            {isFinal: true},
	StatusDeclined:          {isFinal: true},
	StatusCancelled:         {isFinal: true},
	StatusExpired:           {isFinal: true},
	StatusPartiallyRefunded: {fundsReserved: true, fundsTransferred: true},
	StatusRefunding:         {fundsReserved: true, fundsTransferred: true},
	StatusRefunded:          {fundsReserved: true, fundsTransferred: true, isFinal: true},
	StatusRefundFailed:      {fundsReserved: true, fundsTransferred: true},
	StatusUnderReview:       {fundsReserved: true},
	StatusDisputed:          {fundsReserved: true, fundsTransferred: true},
	StatusDisputeWon:        {fundsReserved: true, fundsTransferred: true, isFinal: true},
	StatusDisputeLost:       {fundsReserved: true, fundsTransferred: true, isFinal: true},
	StatusChargeback:        {fundsReserved: true, fundsTransferred: true},
	StatusOnHold:            {fundsReserved: true},
}

func (s Status) FundsReserved() bool    { return statusProps[s].fundsReserved }
func (s Status) FundsTransferred() bool { return statusProps[s].fundsTransferred }
func (s Status) IsFinal() bool          { return statusProps[s].isFinal }

var validNext = map[Status][]Status{
	StatusPending:           {StatusInitiated, StatusProcessing, StatusAuthorized, StatusCaptured, StatusSettled, StatusFailed, StatusDeclined, StatusCancelled, StatusExpired, StatusOnHold},
	StatusInitiated:         {StatusProcessing, StatusAuthorized, StatusCaptured, StatusSettled, StatusFailed, StatusDeclined, StatusCancelled, StatusExpired, StatusUnderReview},
	StatusProcessing:        {StatusAuthorized, StatusCaptured, StatusSettled, StatusFailed, StatusDeclined, StatusCancelled, StatusExpired, StatusUnderReview, StatusOnHold},
	StatusAuthorized:        {StatusCaptured, StatusSettled, StatusCancelled, StatusExpired, StatusUnderReview},
	StatusCaptured:          {StatusSettled, StatusRefunding, StatusPartiallyRefunded, StatusRefunded, StatusDisputed, StatusChargeback},
	StatusSettled:           {StatusRefunding, StatusPartiallyRefunded, StatusRefunded, StatusRefundFailed, StatusDisputed, StatusChargeback},
	StatusUnderReview:       {StatusAuthorized, StatusCaptured, StatusSettled, StatusCancelled, StatusFailed, StatusDeclined, StatusOnHold},
	StatusRefunding:         {StatusRefunded, StatusPartiallyRefunded, StatusRefundFailed},
	StatusPartiallyRefunded: {StatusRefunding, StatusRefunded, StatusRefundFailed, StatusDisputed, StatusChargeback},
	StatusRefundFailed:      {StatusRefunding, StatusPartiallyRefunded, StatusRefunded, StatusDisputed},
	StatusDisputed:          {StatusDisputeWon, StatusDisputeLost, StatusChargeback},
	StatusChargeback:        {StatusDisputeWon, StatusDisputeLost},
	StatusOnHold:            {StatusProcessing, StatusAuthorized, StatusCancelled, StatusFailed, StatusUnderReview},
	StatusFailed:            {},
	StatusDeclined:          {},
	StatusCancelled:         {},
	StatusExpired:           {},
	StatusRefunded:          {},
	StatusDisputeWon:        {},
	StatusDisputeLost:       {},
}

// CanTransitionTo reports whether a payment may move from one status to
// another. Same-state is always legal (idempotent reapply). A final
// status accepts nothing further except a dispute, and only when funds
// actually moved.
func CanTransitionTo(from, to Status) bool {
	if from == to {
		return true
	}
	if from.IsFinal() {
		return from.FundsTransferred() && (to == StatusDisputed || to == StatusChargeback)
	}
	for _, n := range validNext[from] {
		if n == to {
			return true
		}
	}
	return false
}

func AssertTransition(from, to Status) error {
	if !CanTransitionTo(from, to) {
		return &apperr.IllegalTransition{Entity: "payment", From: string(from), To: string(to)}
	}
	return nil
}

func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusInitiated, StatusProcessing, StatusAuthorized,
		StatusCaptured, StatusSettled, StatusFailed, StatusDeclined,
		StatusCancelled, StatusExpired, StatusPartiallyRefunded, StatusRefunding,
		StatusRefunded, StatusRefundFailed, StatusUnderReview, StatusDisputed,
		StatusDisputeWon, StatusDisputeLost, StatusChargeback, StatusOnHold,
	}
}
