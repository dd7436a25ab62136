package outbound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.uber.org/multierr"
)

// Session runs one call end to end: it speaks the opening line, then
// loops one conversational turn at a time until the controller reaches
// the terminal state or the remote party disconnects. One logical task
// per call; nothing here is shared across calls.
type Session struct {
	controller *Controller
	classifier Classifier
	speaker    Speaker
	listener   Listener
	hangup     Hanguper
	tun        Tunables
	logger     *slog.Logger

	closers []io.Closer
}

// NewSession wires a controller to the speech pipeline. Shared read-only
// resources (the classifier, the telephony client behind the pipeline)
// are passed in at construction, never pulled from package state.
func NewSession(controller *Controller, classifier Classifier, speaker Speaker, listener Listener, hangup Hanguper, tun Tunables, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		controller: controller,
		classifier: classifier,
		speaker:    speaker,
		listener:   listener,
		hangup:     hangup,
		tun:        tun,
		logger:     logger,
	}
}

// AddCloser registers a resource to close when the session finishes.
func (s *Session) AddCloser(c io.Closer) {
	s.closers = append(s.closers, c)
}

// Run drives the call to completion. Pipeline failures are not retried:
// the session hangs up, tears down, and reports the error upstream.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		err = multierr.Append(err, s.close())
	}()

	opening := s.controller.OpeningLine()
	if speakErr := s.speaker.Speak(ctx, opening); speakErr != nil {
		s.logger.Error("speaking opening line failed", "error", speakErr)
		s.hangupQuietly(ctx)
		return fmt.Errorf("speak opening: %w", speakErr)
	}
	s.logger.Info("opening line spoken", "state", s.controller.State().String())

	for !s.controller.Ended() {
		window := s.tun.TurnTimeout
		if s.controller.State() == StateFinalRemarks {
			window = s.tun.SilenceWindow
		}

		transcript, silence, listenErr := s.listener.NextUtterance(ctx, window)
		if listenErr != nil {
			if errors.Is(listenErr, ErrRemoteHangup) {
				s.logger.Info("remote participant disconnected", "state", s.controller.State().String())
				return nil
			}
			s.logger.Error("listening failed", "error", listenErr)
			s.hangupQuietly(ctx)
			return fmt.Errorf("next utterance: %w", listenErr)
		}

		cls := Classification{Intent: IntentSilence}
		if !silence {
			var clsErr error
			cls, clsErr = s.classifier.Classify(ctx, s.controller.State(), transcript)
			if clsErr != nil {
				// Classified turns degrade to "unknown": the controller
				// re-asks rather than the session dying.
				s.logger.Warn("classification failed", "error", clsErr)
				cls = Classification{Intent: IntentUnknown}
			}
		}

		action := s.controller.HandleTurn(ctx, cls, transcript)
		s.logger.Debug("turn handled",
			"intent", cls.Intent.String(),
			"state", s.controller.State().String(),
			"lines", len(action.Say))

		for _, line := range action.Say {
			if speakErr := s.speaker.Speak(ctx, line); speakErr != nil {
				s.logger.Error("speaking failed", "error", speakErr)
				s.hangupQuietly(ctx)
				return fmt.Errorf("speak: %w", speakErr)
			}
		}

		if ctx.Err() != nil {
			s.hangupQuietly(ctx)
			return ctx.Err()
		}
	}

	s.logger.Info("session finished", "reason", s.controller.Conversation().Reason.String())
	return nil
}

// hangupQuietly ends the call leg on pipeline failure paths. Hang-up
// errors are logged only; the session is already over. The hang-up gets
// its own deadline so a cancelled session context can't strand the leg.
func (s *Session) hangupQuietly(ctx context.Context) {
	if s.hangup == nil {
		return
	}
	hangCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.hangup.Hangup(hangCtx); err != nil {
		s.logger.Warn("hangup after failure", "error", err)
	}
}

func (s *Session) close() error {
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
