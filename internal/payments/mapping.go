package payments

import "strings"

// intentStatusMap translates the processor's payment-intent vocabulary
// into local statuses. Keys are matched case-insensitively.
//
// Unknown external statuses deliberately map to nothing: applying FAILED
// on a guess could fail a payment that is still pending on the
// processor's side. Callers log and skip instead.
var intentStatusMap = map[string]Status{
	"succeeded":               StatusSettled,
	"processing":              StatusProcessing,
	"requires_action":         StatusAuthorized,
	"requires_capture":        StatusAuthorized,
	"requires_confirmation":   StatusInitiated,
	"requires_payment_method": StatusPending,
	"canceled":                StatusCancelled,
	"payment_failed":          StatusFailed,
}

// FromGatewayStatus maps an externally reported payment status. The
// second return is false for vocabulary this system does not know.
func FromGatewayStatus(ext string) (Status, bool) {
	s, ok := intentStatusMap[strings.ToLower(strings.TrimSpace(ext))]
	return s, ok
}
