package outbound

import (
	"context"
	"encoding/json"
	"log/slog"
)

// ToolInvocation is the record of one honored tool call. Produced per
// turn, never persisted.
type ToolInvocation struct {
	Name   string
	Args   json.RawMessage
	Result string
}

// Action is the controller's decision for one turn: the lines to speak,
// in order, and any tool invocations that were honored.
type Action struct {
	Say         []string
	Invocations []ToolInvocation
	Ended       bool
}

// Controller drives the scripted qualification conversation. It owns the
// call-intent state machine: the language model classifies utterances and
// may request tools, but every transition and side effect is decided
// here, deterministically. One controller per call; not safe for
// concurrent use (the session invokes it one turn at a time).
type Controller struct {
	script Script
	tun    Tunables
	tools  *ToolSet
	logger *slog.Logger

	state CallState
	conv  *ConversationState

	// endInvoked guards the hang-up side effect: at most once per call.
	endInvoked bool

	// pendingAddressAck is set after answering "which property?"; the next
	// acknowledgment confirms the address so it is never asked again.
	pendingAddressAck bool

	// busyMode means the callee can't talk now; the only remaining goal is
	// a callback time.
	busyMode bool
}

// NewController creates a controller for one call.
func NewController(call CallContext, tun Tunables, tools *ToolSet, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		script: Script{Call: call},
		tun:    tun,
		tools:  tools,
		logger: logger,
		state:  StateGreeting,
		conv:   NewConversationState(),
	}
}

// State returns the controller's current state.
func (c *Controller) State() CallState { return c.state }

// Conversation returns the per-call mutable record.
func (c *Controller) Conversation() *ConversationState { return c.conv }

// Ended reports whether the call has reached the terminal state.
func (c *Controller) Ended() bool { return c.state == StateEnded }

// OpeningLine returns the fixed opening line and advances past the
// greeting; the ownership question is part of the opening.
func (c *Controller) OpeningLine() string {
	if c.state == StateGreeting {
		c.state = StateOwnershipCheck
	}
	return c.script.Opening()
}

// HandleTurn processes one classified utterance and returns what to do.
// Once the call should end, further turns are inert apart from reporting
// Ended; the hang-up fires at most once.
func (c *Controller) HandleTurn(ctx context.Context, cls Classification, transcript string) Action {
	if c.conv.CallShouldEnd || c.state == StateEnded {
		c.logger.Debug("turn after call end discarded", "state", c.state.String())
		return Action{Ended: true}
	}

	var action Action

	// Global short-circuits apply in every state.
	switch cls.Intent {
	case IntentVoicemail:
		c.endCall(ctx, &action, ToolDetectedAnsweringMachine, EndReasonVoicemail)
		return action
	case IntentHostile:
		action.Say = append(action.Say, c.script.RemovalAck())
		c.endCall(ctx, &action, ToolEndCall, EndReasonDisinterested)
		return action
	case IntentAlreadyListed:
		action.Say = append(action.Say, c.script.AlreadyListedAck())
		c.endCall(ctx, &action, ToolEndCall, EndReasonNotSelling)
		return action
	case IntentBusy:
		c.busyMode = true
		c.state = StateCallbackTime
		action.Say = append(action.Say, c.script.BusyAsk())
		return action
	case IntentWhichProperty:
		c.pendingAddressAck = true
		action.Say = append(action.Say, c.script.WhichProperty())
		return action
	case IntentWhoAreYou:
		// Introduce and return to the current question; no transition.
		action.Say = append(action.Say, c.script.Introduction())
		c.repeatQuestion(&action)
		return action
	case IntentNumberSource:
		action.Say = append(action.Say, c.script.NumberSource())
		c.repeatQuestion(&action)
		return action
	case IntentOffScript:
		// Deflect and repeat the current question; no transition.
		action.Say = append(action.Say, c.script.Deflection())
		if q := c.currentQuestion(); q != "" {
			action.Say = append(action.Say, q)
		}
		return action
	}

	// An acknowledgment after "which property?" confirms the address for
	// the rest of the call.
	if c.pendingAddressAck && cls.Intent == IntentAffirm {
		c.conv.AddressConfirmed = true
		c.pendingAddressAck = false
	}

	// Model-initiated tool calls: at most one per turn is honored.
	c.handleToolCalls(ctx, cls.ToolCalls, &action)
	if c.conv.CallShouldEnd {
		return action
	}

	c.advance(ctx, cls.Intent, transcript, &action)
	return action
}

// handleToolCalls executes the first model-requested tool and discards
// the rest. End-of-call tools route through endCall so the hang-up stays
// idempotent.
func (c *Controller) handleToolCalls(ctx context.Context, calls []ToolCall, action *Action) {
	if len(calls) == 0 {
		return
	}
	if len(calls) > 1 {
		c.logger.Warn("discarding extra tool calls", "honored", calls[0].Name, "discarded", len(calls)-1)
	}

	call := calls[0]
	switch call.Name {
	case ToolEndCall:
		c.endCall(ctx, action, ToolEndCall, EndReasonNotSelling)
	case ToolDetectedAnsweringMachine:
		c.endCall(ctx, action, ToolDetectedAnsweringMachine, EndReasonVoicemail)
	default:
		result, err := c.tools.Execute(ctx, call.Name, call.Args)
		if err != nil {
			// Tool failures never escape the session; logged by ToolSet.
			return
		}
		action.Invocations = append(action.Invocations, ToolInvocation{Name: call.Name, Args: call.Args, Result: result})
	}
}

// advance applies the per-state transition rules.
func (c *Controller) advance(ctx context.Context, intent Intent, transcript string, action *Action) {
	switch c.state {
	case StateOwnershipCheck:
		switch intent {
		case IntentDeny:
			action.Say = append(action.Say, c.script.NotSellingAck())
			c.endCall(ctx, action, ToolEndCall, EndReasonNotSelling)
		case IntentAffirm, IntentAnswer:
			c.state = StateInterestCheck
			action.Say = append(action.Say, c.script.Question(StateInterestCheck))
		default:
			c.repeatQuestion(action)
		}

	case StateInterestCheck:
		switch intent {
		case IntentDeny:
			action.Say = append(action.Say, c.script.NotSellingAck())
			c.endCall(ctx, action, ToolEndCall, EndReasonNotSelling)
		case IntentAffirm, IntentAnswer:
			c.enterQualification(action)
		default:
			c.repeatQuestion(action)
		}

	case StateAddressConfirm:
		switch intent {
		case IntentAffirm:
			c.conv.AddressConfirmed = true
			c.recordAnswer(c.state, transcript)
			c.nextQualificationStep(action)
		case IntentAnswer:
			// A corrected address counts as confirmation of where the
			// property is; record it and move on.
			c.conv.AddressConfirmed = true
			c.recordAnswer(c.state, transcript)
			c.nextQualificationStep(action)
		case IntentDeny:
			// The address on file is wrong. Record what they said and move
			// on without marking the address confirmed.
			c.recordAnswer(c.state, transcript)
			c.nextQualificationStep(action)
		case IntentVague:
			c.clarifyOrAdvance(transcript, action)
		default:
			c.repeatQuestion(action)
		}

	case StateReasonForSelling, StateTimeline, StatePriceExpectation:
		switch intent {
		case IntentAnswer, IntentAffirm, IntentDeny:
			c.recordAnswer(c.state, transcript)
			c.nextQualificationStep(action)
		case IntentVague:
			c.clarifyOrAdvance(transcript, action)
		default:
			c.repeatQuestion(action)
		}

	case StateListingConsent:
		switch intent {
		case IntentDeny:
			action.Say = append(action.Say, c.script.NotSellingAck())
			c.endCall(ctx, action, ToolEndCall, EndReasonNotSelling)
		case IntentAffirm, IntentAnswer:
			c.recordAnswer(c.state, transcript)
			c.state = StateCallbackTime
			action.Say = append(action.Say, c.script.WrapUpIntro(), c.script.Question(StateCallbackTime))
		case IntentVague:
			c.clarifyOrAdvance(transcript, action)
		default:
			c.repeatQuestion(action)
		}

	case StateCallbackTime:
		switch intent {
		case IntentAnswer, IntentAffirm:
			c.recordAnswer(c.state, transcript)
			if c.busyMode {
				action.Say = append(action.Say, c.script.BusyAck())
				c.endCall(ctx, action, ToolEndCall, EndReasonCompleted)
				return
			}
			c.state = StateFinalRemarks
			action.Say = append(action.Say, c.script.CallbackAck(), c.script.Question(StateFinalRemarks))
		case IntentVague:
			c.clarifyOrAdvance(transcript, action)
		default:
			c.repeatQuestion(action)
		}

	case StateFinalRemarks:
		// "No", silence past the window, or any final remark closes the
		// call politely.
		action.Say = append(action.Say, c.script.Close())
		c.endCall(ctx, action, ToolEndCall, EndReasonCompleted)

	default:
		c.repeatQuestion(action)
	}
}

// enterQualification moves into the first applicable qualification
// sub-step, skipping AddressConfirm when it is already settled.
func (c *Controller) enterQualification(action *Action) {
	action.Say = append(action.Say, c.script.QualificationIntro())
	if c.conv.AddressConfirmed {
		c.state = StateReasonForSelling
	} else {
		c.state = StateAddressConfirm
	}
	action.Say = append(action.Say, c.script.Question(c.state))
}

// nextQualificationStep advances in the fixed order, honoring the
// AddressConfirm skip. Past the last sub-step it rolls into the wrap-up.
func (c *Controller) nextQualificationStep(action *Action) {
	next := c.state.nextQualification()
	if next == StateAddressConfirm && c.conv.AddressConfirmed {
		next = next.nextQualification()
	}
	if !next.qualification() {
		c.state = StateCallbackTime
		action.Say = append(action.Say, c.script.WrapUpIntro(), c.script.Question(StateCallbackTime))
		return
	}
	c.state = next
	action.Say = append(action.Say, c.script.Question(c.state))
}

// clarifyOrAdvance issues the single clarifying re-ask for a vague
// answer, or records the vague answer and moves on when the re-ask was
// already used. Capped so the call can never stall.
func (c *Controller) clarifyOrAdvance(transcript string, action *Action) {
	if c.conv.clarified[c.state] < c.tun.MaxClarifies {
		c.conv.clarified[c.state]++
		action.Say = append(action.Say, c.script.Clarify())
		return
	}
	c.recordAnswer(c.state, transcript)
	if c.state == StateCallbackTime {
		c.state = StateFinalRemarks
		action.Say = append(action.Say, c.script.Question(StateFinalRemarks))
		return
	}
	c.nextQualificationStep(action)
}

func (c *Controller) recordAnswer(state CallState, transcript string) {
	if id := state.questionID(); id != "" {
		c.conv.Answers[id] = transcript
	}
}

func (c *Controller) repeatQuestion(action *Action) {
	if q := c.currentQuestion(); q != "" {
		action.Say = append(action.Say, q)
	}
}

func (c *Controller) currentQuestion() string {
	if c.state == StateOwnershipCheck {
		return c.script.Opening()
	}
	return c.script.Question(c.state)
}

// endCall transitions to Ended and fires the hang-up tool exactly once.
// Repeat invocations only restate that the call has ended.
func (c *Controller) endCall(ctx context.Context, action *Action, tool string, reason EndReason) {
	c.conv.CallShouldEnd = true
	if c.conv.Reason == EndReasonNone {
		c.conv.Reason = reason
	}
	c.state = StateEnded
	action.Ended = true

	if c.endInvoked {
		return
	}
	c.endInvoked = true

	result, err := c.tools.Execute(ctx, tool, nil)
	if err != nil {
		// Already logged by the tool set; the call still ends.
		return
	}
	action.Invocations = append(action.Invocations, ToolInvocation{Name: tool, Result: result})
	c.logger.Info("call ended", "reason", reason.String())
}
