package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/outdial-ai/outdial/pkg/telephony"
)

// The speech pipeline (STT, TTS, voice activity and turn detection) is an
// external collaborator. The session only needs two narrow views of it.

// Speaker plays synthesized speech to the callee.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Listener yields the callee's next completed utterance. It returns
// silence=true when no utterance arrives within the window, and
// ErrRemoteHangup when the callee disconnects.
type Listener interface {
	NextUtterance(ctx context.Context, window time.Duration) (transcript string, silence bool, err error)
}

// ErrRemoteHangup is returned by a Listener when the remote party leaves.
var ErrRemoteHangup = errors.New("remote participant disconnected")

// RoomIO adapts a live room connection into the Speaker/Listener pair.
// The platform runs STT and turn detection server-side and delivers final
// transcripts as transcription events.
type RoomIO struct {
	conn           *telephony.RoomConn
	remoteIdentity string
}

// NewRoomIO wraps a room connection. remoteIdentity is the SIP
// participant whose departure ends the session.
func NewRoomIO(conn *telephony.RoomConn, remoteIdentity string) *RoomIO {
	return &RoomIO{conn: conn, remoteIdentity: remoteIdentity}
}

// Speak asks the platform to synthesize text into the room.
func (r *RoomIO) Speak(_ context.Context, text string) error {
	return r.conn.Say(text)
}

// NextUtterance reads room events until a final transcript from the
// remote participant, the silence window elapsing, or disconnect.
func (r *RoomIO) NextUtterance(ctx context.Context, window time.Duration) (string, bool, error) {
	turnCtx := ctx
	if window > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, window)
		defer cancel()
	}

	for {
		event, err := r.conn.ReadEvent(turnCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return "", true, nil
			}
			return "", false, err
		}

		switch event.Type {
		case telephony.EventTranscription:
			if event.Final && (event.Speaker == "" || event.Speaker == r.remoteIdentity) {
				return event.Text, false, nil
			}
		case telephony.EventParticipantLeft:
			if event.Participant != nil && event.Participant.Identity == r.remoteIdentity {
				return "", false, ErrRemoteHangup
			}
		case telephony.EventRoomClosed:
			return "", false, ErrRemoteHangup
		}
	}
}

// Close closes the underlying room connection.
func (r *RoomIO) Close() error {
	return r.conn.Close()
}
