package outbound

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedListener yields canned utterances in order. An empty entry is a
// silent turn.
type scriptedListener struct {
	utterances []string
	errAfter   error
	pos        int
	windows    []time.Duration
}

func (l *scriptedListener) NextUtterance(_ context.Context, window time.Duration) (string, bool, error) {
	l.windows = append(l.windows, window)
	if l.pos >= len(l.utterances) {
		if l.errAfter != nil {
			return "", false, l.errAfter
		}
		return "", true, nil
	}
	u := l.utterances[l.pos]
	l.pos++
	if u == "" {
		return "", true, nil
	}
	return u, false, nil
}

type recordingSpeaker struct {
	lines []string
	err   error
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.lines = append(s.lines, text)
	return nil
}

// intentClassifier maps exact transcripts to intents; everything else is
// an answer.
type intentClassifier struct {
	intents map[string]Intent
	err     error
	calls   int
}

func (c *intentClassifier) Classify(_ context.Context, _ CallState, transcript string) (Classification, error) {
	c.calls++
	if c.err != nil {
		return Classification{}, c.err
	}
	if intent, ok := c.intents[transcript]; ok {
		return Classification{Intent: intent}, nil
	}
	return Classification{Intent: IntentAnswer}, nil
}

func newTestSession(t *testing.T, listener Listener, speaker Speaker, classifier Classifier) (*Session, *fakeHangup) {
	t.Helper()
	hangup := &fakeHangup{}
	tools, err := NewToolSet(hangup, 0, nil)
	if err != nil {
		t.Fatalf("NewToolSet error: %v", err)
	}
	call := ParseMetadata(`{"phone_number": "+15551234567", "first_name": "John", "city": "Austin", "address": "12 Oak St"}`).
		WithRealtorDefault("Jane Smith")
	controller := NewController(call, DefaultTunables(), tools, nil)
	return NewSession(controller, classifier, speaker, listener, hangup, DefaultTunables(), nil), hangup
}

func TestSession_RunsCallToCompletion(t *testing.T) {
	t.Parallel()
	listener := &scriptedListener{utterances: []string{
		"yes I still own it",
		"sure, I'd consider it",
		"yes that's the address",
		"we're relocating",
		"in the next few months",
		"around 450",
		"yes that works",
		"tomorrow afternoon",
		"no, that's everything",
	}}
	speaker := &recordingSpeaker{}
	classifier := &intentClassifier{intents: map[string]Intent{
		"yes I still own it":     IntentAffirm,
		"sure, I'd consider it":  IntentAffirm,
		"yes that's the address": IntentAffirm,
		"yes that works":         IntentAffirm,
		"no, that's everything":  IntentDeny,
	}}
	session, hangup := newTestSession(t, listener, speaker, classifier)

	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if hangup.count() != 1 {
		t.Fatalf("hangup calls = %d, want 1", hangup.count())
	}
	if len(speaker.lines) == 0 {
		t.Fatal("nothing was spoken")
	}
	if got := speaker.lines[0]; got != (Script{Call: CallContext{FirstName: "John", City: "Austin"}}).Opening() {
		t.Errorf("first spoken line = %q, want the opening", got)
	}
}

func TestSession_FinalRemarksUsesSilenceWindow(t *testing.T) {
	t.Parallel()
	listener := &scriptedListener{utterances: []string{
		"yes",
		"yes",
		"yes",
		"relocating",
		"soon",
		"450",
		"yes",
		"tomorrow at noon",
		// Final remarks turn: silence.
	}}
	classifier := &intentClassifier{intents: map[string]Intent{"yes": IntentAffirm}}
	session, _ := newTestSession(t, listener, &recordingSpeaker{}, classifier)

	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	tun := DefaultTunables()
	last := listener.windows[len(listener.windows)-1]
	if last != tun.SilenceWindow {
		t.Errorf("final remarks window = %v, want silence window %v", last, tun.SilenceWindow)
	}
	for _, w := range listener.windows[:len(listener.windows)-1] {
		if w != tun.TurnTimeout {
			t.Errorf("mid-call window = %v, want turn timeout %v", w, tun.TurnTimeout)
		}
	}
}

func TestSession_RemoteHangupEndsCleanly(t *testing.T) {
	t.Parallel()
	listener := &scriptedListener{
		utterances: []string{"yes I own it"},
		errAfter:   ErrRemoteHangup,
	}
	classifier := &intentClassifier{intents: map[string]Intent{"yes I own it": IntentAffirm}}
	session, _ := newTestSession(t, listener, &recordingSpeaker{}, classifier)

	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run error on remote hangup: %v", err)
	}
}

func TestSession_ListenerFailureHangsUp(t *testing.T) {
	t.Parallel()
	listener := &scriptedListener{errAfter: errors.New("websocket: close 1006")}
	session, hangup := newTestSession(t, listener, &recordingSpeaker{}, &intentClassifier{})

	err := session.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from broken listener")
	}
	if hangup.count() != 1 {
		t.Fatalf("hangup calls = %d, want 1 after pipeline failure", hangup.count())
	}
}

func TestSession_SpeakerFailureHangsUp(t *testing.T) {
	t.Parallel()
	speaker := &recordingSpeaker{err: errors.New("connection reset")}
	session, hangup := newTestSession(t, &scriptedListener{}, speaker, &intentClassifier{})

	if err := session.Run(context.Background()); err == nil {
		t.Fatal("expected error when the opening cannot be spoken")
	}
	if hangup.count() != 1 {
		t.Fatalf("hangup calls = %d, want 1", hangup.count())
	}
}

func TestSession_ClassifierFailureDegradesToReask(t *testing.T) {
	t.Parallel()
	listener := &scriptedListener{utterances: []string{
		"mumble",
		"yes I own it",
	}, errAfter: ErrRemoteHangup}
	classifier := &intentClassifier{err: errors.New("model overloaded")}
	session, _ := newTestSession(t, listener, &recordingSpeaker{}, classifier)

	// The session survives classification failures; the controller simply
	// re-asks until the remote party hangs up here.
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if classifier.calls != 2 {
		t.Errorf("classifier calls = %d, want 2", classifier.calls)
	}
}

func TestSession_ClosesRegisteredResources(t *testing.T) {
	t.Parallel()
	listener := &scriptedListener{errAfter: ErrRemoteHangup}
	session, _ := newTestSession(t, listener, &recordingSpeaker{}, &intentClassifier{})

	closed := false
	session.AddCloser(closerFunc(func() error {
		closed = true
		return nil
	}))

	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !closed {
		t.Error("registered closer was not closed")
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
