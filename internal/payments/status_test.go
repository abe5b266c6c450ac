package payments

import "testing"

func TestSameStateAlwaysLegal(t *testing.T) {
	t.Parallel()

	for _, s := range AllStatuses() {
		if !CanTransitionTo(s, s) {
			t.Errorf("%s -> %s must be legal", s, s)
		}
	}
}

func TestFinalStatesOnlyAcceptDisputes(t *testing.T) {
	t.Parallel()

	for _, from := range AllStatuses() {
		if !from.IsFinal() {
			continue
		}
		for _, to := range AllStatuses() {
			if from == to {
				continue
			}
			legal := CanTransitionTo(from, to)
			wantLegal := from.FundsTransferred() && (to == StatusDisputed || to == StatusChargeback)
			if legal != wantLegal {
				t.Errorf("%s -> %s: legal=%v, want %v", from, to, legal, wantLegal)
			}
		}
	}
}

func TestRefundedIsDisputableButClosed(t *testing.T) {
	t.Parallel()

	// fully refunded payments can still be disputed later
	if !CanTransitionTo(StatusRefunded, StatusDisputed) {
		t.Error("REFUNDED -> DISPUTED must be legal")
	}
	if !CanTransitionTo(StatusRefunded, StatusChargeback) {
		t.Error("REFUNDED -> CHARGEBACK must be legal")
	}
	// but never disputed on a payment where no funds moved
	if CanTransitionTo(StatusDeclined, StatusDisputed) {
		t.Error("DECLINED -> DISPUTED must be illegal: no funds moved")
	}
	if CanTransitionTo(StatusRefunded, StatusSettled) {
		t.Error("REFUNDED -> SETTLED must be illegal")
	}
}

func TestAdjacencyExamples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusSettled, true},
		{StatusAuthorized, StatusCaptured, true},
		{StatusAuthorized, StatusExpired, true},
		{StatusAuthorized, StatusUnderReview, true},
		{StatusAuthorized, StatusRefunded, false},
		{StatusCaptured, StatusSettled, true},
		{StatusSettled, StatusRefunding, true},
		{StatusSettled, StatusPartiallyRefunded, true},
		{StatusSettled, StatusPending, false},
		{StatusRefunding, StatusRefunded, true},
		{StatusRefunding, StatusDisputed, false},
		{StatusDisputed, StatusDisputeWon, true},
		{StatusChargeback, StatusDisputeLost, true},
		{StatusOnHold, StatusProcessing, true},
	}
	for _, tt := range tests {
		if got := CanTransitionTo(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusPropsAreTotal(t *testing.T) {
	t.Parallel()

	for _, s := range AllStatuses() {
		if _, ok := statusProps[s]; !ok {
			t.Errorf("%s has no props entry", s)
		}
		if _, ok := validNext[s]; !ok {
			t.Errorf("%s has no adjacency entry", s)
		}
	}
	if len(statusProps) != len(AllStatuses()) {
		t.Fatalf("props has %d entries, want %d", len(statusProps), len(AllStatuses()))
	}
}

func TestFromGatewayStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext   string
		want  Status
		known bool
	}{
		{"succeeded", StatusSettled, true},
		{"SUCCEEDED", StatusSettled, true},
		{" Processing ", StatusProcessing, true},
		{"requires_action", StatusAuthorized, true},
		{"requires_capture", StatusAuthorized, true},
		{"requires_confirmation", StatusInitiated, true},
		{"requires_payment_method", StatusPending, true},
		{"canceled", StatusCancelled, true},
		{"payment_failed", StatusFailed, true},
		{"something_new", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, known := FromGatewayStatus(tt.ext)
		if known != tt.known || got != tt.want {
			t.Errorf("FromGatewayStatus(%q) = (%s, %v), want (%s, %v)", tt.ext, got, known, tt.want, tt.known)
		}
	}
}

func TestMergeDecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		current, incoming Status
		applied          bool
		reason           string
	}{
		{name: "same_state_noop", current: StatusSettled, incoming: StatusSettled, reason: mergeNoop},
		{name: "stale_processing_after_settled", current: StatusSettled, incoming: StatusProcessing, reason: mergeStale},
		{name: "stale_pending_after_captured", current: StatusCaptured, incoming: StatusPending, reason: mergeStale},
		{name: "advance_processing_to_settled", current: StatusProcessing, incoming: StatusSettled, applied: true},
		{name: "advance_authorized_to_captured", current: StatusAuthorized, incoming: StatusCaptured, applied: true},
		{name: "illegal_settled_to_authorized", current: StatusSettled, incoming: StatusAuthorized, reason: mergeStale},
		{name: "illegal_cancelled_to_settled", current: StatusCancelled, incoming: StatusSettled, reason: mergeIllegal},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			applied, reason := mergeDecision(tt.current, tt.incoming)
			if applied != tt.applied {
				t.Fatalf("applied = %v, want %v", applied, tt.applied)
			}
			if !applied && reason != tt.reason {
				t.Fatalf("reason = %q, want %q", reason, tt.reason)
			}
		})
	}
}

// Monotonicity: once a status with fundsTransferred is reached, no
// external report without it can ever be applied.
func TestMergeMonotonicity(t *testing.T) {
	t.Parallel()

	for _, current := range AllStatuses() {
		if !current.FundsTransferred() {
			continue
		}
		for _, incoming := range AllStatuses() {
			if incoming.FundsTransferred() || incoming == current {
				continue
			}
			if applied, _ := mergeDecision(current, incoming); applied {
				t.Errorf("merge %s <- %s applied, regresses fundsTransferred", current, incoming)
			}
		}
	}
}
