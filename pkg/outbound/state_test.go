package outbound

import "testing"

func TestCallStateString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state CallState
		want  string
	}{
		{StateGreeting, "GREETING"},
		{StateOwnershipCheck, "OWNERSHIP_CHECK"},
		{StateInterestCheck, "INTEREST_CHECK"},
		{StateAddressConfirm, "ADDRESS_CONFIRM"},
		{StateReasonForSelling, "REASON_FOR_SELLING"},
		{StateTimeline, "TIMELINE"},
		{StatePriceExpectation, "PRICE_EXPECTATION"},
		{StateListingConsent, "LISTING_CONSENT"},
		{StateCallbackTime, "CALLBACK_TIME"},
		{StateFinalRemarks, "FINAL_REMARKS"},
		{StateEnded, "ENDED"},
		{CallState(99), "UNKNOWN"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("String(%d) = %q, want %q", int(tc.state), got, tc.want)
		}
	}
}

func TestQualificationOrder(t *testing.T) {
	t.Parallel()
	order := []CallState{
		StateAddressConfirm,
		StateReasonForSelling,
		StateTimeline,
		StatePriceExpectation,
		StateListingConsent,
	}
	for i, s := range order {
		if !s.qualification() {
			t.Errorf("%s not reported as a qualification sub-step", s)
		}
		if i+1 < len(order) {
			if next := s.nextQualification(); next != order[i+1] {
				t.Errorf("nextQualification(%s) = %s, want %s", s, next, order[i+1])
			}
		}
	}
	if next := StateListingConsent.nextQualification(); next.qualification() {
		t.Errorf("nextQualification(LISTING_CONSENT) = %s, want a non-qualification state", next)
	}

	for _, s := range []CallState{StateGreeting, StateOwnershipCheck, StateCallbackTime, StateEnded} {
		if s.qualification() {
			t.Errorf("%s wrongly reported as a qualification sub-step", s)
		}
	}
}

func TestQuestionIDs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state CallState
		want  string
	}{
		{StateAddressConfirm, "address_confirm"},
		{StateReasonForSelling, "reason_for_selling"},
		{StateTimeline, "timeline"},
		{StatePriceExpectation, "price_expectation"},
		{StateListingConsent, "listing_consent"},
		{StateCallbackTime, "callback_time"},
		{StateGreeting, ""},
		{StateEnded, ""},
	}
	for _, tc := range tests {
		if got := tc.state.questionID(); got != tc.want {
			t.Errorf("questionID(%s) = %q, want %q", tc.state, got, tc.want)
		}
	}
}
