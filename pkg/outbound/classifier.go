package outbound

import (
	"context"
	"encoding/json"
)

// Intent is the controller's interpretation of one user utterance. The
// language-model layer classifies; the controller decides.
type Intent int

const (
	// IntentUnknown means the classifier could not place the utterance.
	IntentUnknown Intent = iota
	// IntentAffirm is a yes-type answer to the current question.
	IntentAffirm
	// IntentDeny is a no-type answer to the current question.
	IntentDeny
	// IntentAnswer is a substantive answer (a reason, a timeline, a price,
	// a callback time).
	IntentAnswer
	// IntentVague is a non-answer like "yes", "maybe" or "I don't know"
	// where substance was expected.
	IntentVague
	// IntentVoicemail matches voicemail/auto-attendant signatures.
	IntentVoicemail
	// IntentHostile is "not interested", "remove me", or a rude response.
	IntentHostile
	// IntentBusy is "can't talk now" / "call me later".
	IntentBusy
	// IntentWhichProperty asks which property the call is about.
	IntentWhichProperty
	// IntentAlreadyListed says the property is already on the market.
	IntentAlreadyListed
	// IntentWhoAreYou asks who is calling.
	IntentWhoAreYou
	// IntentNumberSource asks how we got this phone number.
	IntentNumberSource
	// IntentOffScript is an out-of-script question (valuation, offer
	// amount, process).
	IntentOffScript
	// IntentSilence is no utterance within the turn window.
	IntentSilence
)

// String returns the classifier label for the intent.
func (i Intent) String() string {
	switch i {
	case IntentAffirm:
		return "affirm"
	case IntentDeny:
		return "deny"
	case IntentAnswer:
		return "answer"
	case IntentVague:
		return "vague"
	case IntentVoicemail:
		return "voicemail"
	case IntentHostile:
		return "hostile"
	case IntentBusy:
		return "busy"
	case IntentWhichProperty:
		return "which_property"
	case IntentAlreadyListed:
		return "already_listed"
	case IntentWhoAreYou:
		return "who_are_you"
	case IntentNumberSource:
		return "number_source"
	case IntentOffScript:
		return "off_script"
	case IntentSilence:
		return "silence"
	default:
		return "unknown"
	}
}

// IntentFromLabel maps a classifier label back to an Intent.
func IntentFromLabel(label string) Intent {
	switch label {
	case "affirm":
		return IntentAffirm
	case "deny":
		return IntentDeny
	case "answer":
		return IntentAnswer
	case "vague":
		return IntentVague
	case "voicemail":
		return IntentVoicemail
	case "hostile":
		return IntentHostile
	case "busy":
		return IntentBusy
	case "which_property":
		return IntentWhichProperty
	case "already_listed":
		return IntentAlreadyListed
	case "who_are_you":
		return IntentWhoAreYou
	case "number_source":
		return IntentNumberSource
	case "off_script":
		return IntentOffScript
	case "silence":
		return IntentSilence
	default:
		return IntentUnknown
	}
}

// ToolCall is a model-initiated tool invocation for this turn.
type ToolCall struct {
	Name string
	Args json.RawMessage
}

// Classification is the language-model layer's reading of one utterance.
type Classification struct {
	Intent Intent

	// ToolCalls the model chose to make this turn. The controller honors
	// at most the first one.
	ToolCalls []ToolCall
}

// Classifier interprets a user utterance given the current script state.
// Implementations are expected to be stateless and safe for use across
// calls; all per-call state lives in the controller.
type Classifier interface {
	Classify(ctx context.Context, state CallState, transcript string) (Classification, error)
}
