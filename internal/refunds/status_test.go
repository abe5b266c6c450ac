package refunds

import "testing"

func TestFinalRefundStatesAcceptNothing(t *testing.T) {
	t.Parallel()

	for _, from := range AllStatuses() {
		if !from.IsFinal() {
			continue
		}
		for _, to := range AllStatuses() {
			if from == to {
				continue
			}
			if CanTransitionTo(from, to) {
				t.Errorf("%s -> %s must be illegal", from, to)
			}
		}
	}
}

func TestFromGatewayStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want Status
	}{
		{"succeeded", StatusSucceeded},
		{"failed", StatusFailed},
		{"canceled", StatusCanceled},
		{"pending", StatusProcessing},
		{"requires_action", StatusProcessing},
		// status keys match case-insensitively
		{"SUCCEEDED", StatusSucceeded},
		{"Failed", StatusFailed},
		{"  succeeded ", StatusSucceeded},
		// unknown vocabulary stays in flight rather than guessing
		{"partially_refunded", StatusProcessing},
		{"", StatusProcessing},
	}
	for _, tt := range tests {
		if got := FromGatewayStatus(tt.ext); got != tt.want {
			t.Errorf("FromGatewayStatus(%q) = %s, want %s", tt.ext, got, tt.want)
		}
	}
}
