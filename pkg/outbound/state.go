package outbound

// CallState is the conversation controller's position in the scripted
// qualification flow.
type CallState int

const (
	// StateGreeting is before the opening line has been spoken.
	StateGreeting CallState = iota
	// StateOwnershipCheck asks whether the callee still owns the property.
	StateOwnershipCheck
	// StateInterestCheck asks whether they would consider selling now.
	StateInterestCheck
	// StateAddressConfirm confirms the property address. Skipped when the
	// address was already confirmed earlier in the call.
	StateAddressConfirm
	// StateReasonForSelling asks what is prompting the sale.
	StateReasonForSelling
	// StateTimeline asks when they hope to have it sold.
	StateTimeline
	// StatePriceExpectation asks for a ballpark price.
	StatePriceExpectation
	// StateListingConsent asks whether they would list with a chosen realtor.
	StateListingConsent
	// StateCallbackTime collects the preferred callback time.
	StateCallbackTime
	// StateFinalRemarks asks for anything else before closing.
	StateFinalRemarks
	// StateEnded is terminal, reachable from every state.
	StateEnded
)

// String returns a human-readable state name.
func (s CallState) String() string {
	switch s {
	case StateGreeting:
		return "GREETING"
	case StateOwnershipCheck:
		return "OWNERSHIP_CHECK"
	case StateInterestCheck:
		return "INTEREST_CHECK"
	case StateAddressConfirm:
		return "ADDRESS_CONFIRM"
	case StateReasonForSelling:
		return "REASON_FOR_SELLING"
	case StateTimeline:
		return "TIMELINE"
	case StatePriceExpectation:
		return "PRICE_EXPECTATION"
	case StateListingConsent:
		return "LISTING_CONSENT"
	case StateCallbackTime:
		return "CALLBACK_TIME"
	case StateFinalRemarks:
		return "FINAL_REMARKS"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// qualification reports whether s is one of the qualification sub-steps.
func (s CallState) qualification() bool {
	switch s {
	case StateAddressConfirm, StateReasonForSelling, StateTimeline,
		StatePriceExpectation, StateListingConsent:
		return true
	default:
		return false
	}
}

// questionID is the stable key under which an answer at this state is
// recorded.
func (s CallState) questionID() string {
	switch s {
	case StateAddressConfirm:
		return "address_confirm"
	case StateReasonForSelling:
		return "reason_for_selling"
	case StateTimeline:
		return "timeline"
	case StatePriceExpectation:
		return "price_expectation"
	case StateListingConsent:
		return "listing_consent"
	case StateCallbackTime:
		return "callback_time"
	default:
		return ""
	}
}

// nextQualification returns the sub-step after s in the fixed order.
func (s CallState) nextQualification() CallState {
	switch s {
	case StateAddressConfirm:
		return StateReasonForSelling
	case StateReasonForSelling:
		return StateTimeline
	case StateTimeline:
		return StatePriceExpectation
	case StatePriceExpectation:
		return StateListingConsent
	default:
		return StateEnded
	}
}

// EndReason records why a call ended.
type EndReason int

const (
	EndReasonNone EndReason = iota
	EndReasonNotSelling
	EndReasonVoicemail
	EndReasonNoAnswer
	EndReasonCompleted
	EndReasonDisinterested
)

// String returns a human-readable reason name.
func (r EndReason) String() string {
	switch r {
	case EndReasonNone:
		return "none"
	case EndReasonNotSelling:
		return "not_selling"
	case EndReasonVoicemail:
		return "voicemail"
	case EndReasonNoAnswer:
		return "no_answer"
	case EndReasonCompleted:
		return "completed"
	case EndReasonDisinterested:
		return "disinterested"
	default:
		return "unknown"
	}
}

// ConversationState is the mutable per-call record. It lives for the
// duration of one call and is discarded at call end; it is never shared
// across calls.
type ConversationState struct {
	AddressConfirmed bool
	Answers          map[string]string
	CallShouldEnd    bool
	Reason           EndReason

	// clarified tracks which sub-steps already used their re-ask.
	clarified map[CallState]int
}

// NewConversationState returns an empty per-call state.
func NewConversationState() *ConversationState {
	return &ConversationState{
		Answers:   make(map[string]string),
		clarified: make(map[CallState]int),
	}
}
