package outbound

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/outdial-ai/outdial/pkg/telephony"
)

// ParticipantRemover is the slice of the platform API the hang-up needs.
type ParticipantRemover interface {
	RemoveParticipant(ctx context.Context, room, identity string) error
}

// RoomHangup removes one participant from one room. Idempotent: repeat
// calls and an already-gone participant are both no-ops.
type RoomHangup struct {
	api      ParticipantRemover
	room     string
	identity string
	logger   *slog.Logger

	done atomic.Bool
}

// NewRoomHangup binds a hang-up to a specific room participant.
func NewRoomHangup(api ParticipantRemover, room, identity string, logger *slog.Logger) *RoomHangup {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomHangup{api: api, room: room, identity: identity, logger: logger}
}

// Hangup disconnects the participant. Failures are logged and surfaced as
// HangupError but the caller is expected not to escalate them; the call
// is ending regardless.
func (h *RoomHangup) Hangup(ctx context.Context) error {
	if !h.done.CompareAndSwap(false, true) {
		h.logger.Debug("hangup already performed", "room", h.room, "identity", h.identity)
		return nil
	}

	err := h.api.RemoveParticipant(ctx, h.room, h.identity)
	if err == nil {
		h.logger.Info("participant removed", "room", h.room, "identity", h.identity)
		return nil
	}
	if telephony.IsNotFound(err) {
		h.logger.Info("participant already gone", "room", h.room, "identity", h.identity)
		return nil
	}
	h.logger.Warn("error while hanging up", "room", h.room, "identity", h.identity, "error", err)
	return NewHangupError("remove participant", err)
}
