package refunds

import (
	"strings"

	"github.com/ordercore/fulfillment/internal/apperr"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
	StatusCanceled   Status = "CANCELED"
	StatusRejected   Status = "REJECTED"
)

// A refund waits for review in PENDING, then either leaves the system
// without touching the gateway (CANCELED, REJECTED) or goes to the
// gateway and terminates in SUCCEEDED or FAILED.
var validNext = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusSucceeded, StatusCanceled, StatusRejected},
	StatusProcessing: {StatusSucceeded, StatusFailed, StatusCanceled},
	StatusSucceeded:  {},
	StatusFailed:     {},
	StatusCanceled:   {},
	StatusRejected:   {},
}

func (s Status) IsFinal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled || s == StatusRejected
}

func CanTransitionTo(from, to Status) bool {
	if from == to {
		return true
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
		return &apperr.IllegalTransition{Entity: "refund", From: string(from), To: string(to)}
	}
	return nil
}

// FromGatewayStatus maps the processor's refund vocabulary, matched
// case-insensitively. A refund the gateway has accepted but not finished
// is in flight, so anything unrecognized on an accepted refund reads as
// PROCESSING rather than a guess at an outcome.
func FromGatewayStatus(ext string) Status {
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case "succeeded":
		return StatusSucceeded
	case "failed":
		return StatusFailed
	case "canceled":
		return StatusCanceled
	case "pending", "requires_action":
		return StatusProcessing
	default:
		return StatusProcessing
	}
}

func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusProcessing, StatusSucceeded,
		StatusFailed, StatusCanceled, StatusRejected,
	}
}
