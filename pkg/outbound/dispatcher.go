package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/outdial-ai/outdial/pkg/telephony"
)

// RoomAPI is the slice of the platform API the dispatcher uses.
type RoomAPI interface {
	CreateRoom(ctx context.Context, req telephony.CreateRoomRequest) (*telephony.Room, error)
	DeleteRoom(ctx context.Context, room string) error
	ListRooms(ctx context.Context) ([]telephony.Room, error)
	ListParticipants(ctx context.Context, room string) ([]telephony.ParticipantInfo, error)
	CreateSIPParticipant(ctx context.Context, req telephony.CreateSIPParticipantRequest) (*telephony.SIPParticipant, error)
}

// DispatchResult reports a completed dispatch.
type DispatchResult struct {
	Call        CallContext
	Room        *telephony.Room
	Participant *telephony.SIPParticipant

	// AgentJoined is the advisory join check's outcome; false only means
	// the agent had not joined yet when we looked.
	AgentJoined bool
}

// RoomStatus is one row of the active-room listing.
type RoomStatus struct {
	Room         telephony.Room
	Participants []telephony.ParticipantInfo
}

// Dispatcher creates call rooms and dials outbound SIP legs into them.
// Failures are reported, never retried: a blind redial could double-dial
// a number.
type Dispatcher struct {
	api    RoomAPI
	cfg    Config
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(api RoomAPI, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{api: api, cfg: cfg, logger: logger}
}

// Dispatch parses metadata, creates a room, and dials the SIP leg. An
// empty roomName gets a generated, per-call-unique name; raw phone digits
// alone would collide across repeat dials of the same number.
func (d *Dispatcher) Dispatch(ctx context.Context, metadata, roomName string) (*DispatchResult, error) {
	call := ParseMetadata(metadata).WithRealtorDefault(d.cfg.DefaultRealtorName)
	if call.PhoneNumber == "" {
		return nil, NewDispatchError("no phone number in metadata", nil)
	}

	if roomName == "" {
		roomName = fmt.Sprintf("%s-%s", d.cfg.RoomPrefix, uuid.NewString())
	}

	d.logger.Info("dispatching outbound call",
		"phone", call.PhoneNumber,
		"room", roomName,
		"trunk", d.cfg.TrunkID,
		"first_name", call.FirstName,
		"city", call.City)

	room, err := d.api.CreateRoom(ctx, telephony.CreateRoomRequest{Name: roomName, Metadata: metadata})
	if err != nil {
		return nil, NewDispatchError("create room", err)
	}
	d.logger.Info("room created", "room", room.Name, "sid", room.SID)

	participant, err := d.createSIPParticipant(ctx, roomName, call.PhoneNumber)
	if err != nil {
		// Tear the room down rather than leaving it empty.
		d.deleteRoomQuietly(ctx, roomName)
		if telephony.IsRingingTimeout(err) {
			return nil, NewCallNotAnsweredError(call.PhoneNumber, err)
		}
		return nil, NewDispatchError("create SIP participant", err)
	}
	d.logger.Info("SIP participant created",
		"sid", participant.ParticipantSID,
		"identity", participant.Identity)

	result := &DispatchResult{Call: call, Room: room, Participant: participant}
	result.AgentJoined = d.waitForAgent(ctx, roomName)
	return result, nil
}

// createSIPParticipant dials the SIP leg with a caller identity unique to
// this call.
func (d *Dispatcher) createSIPParticipant(ctx context.Context, roomName, phone string) (*telephony.SIPParticipant, error) {
	meta, err := json.Marshal(map[string]any{
		"phone_number": phone,
		"call_type":    "outbound",
		"created_at":   time.Now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal participant metadata: %w", err)
	}

	return d.api.CreateSIPParticipant(ctx, telephony.CreateSIPParticipantRequest{
		TrunkID:           d.cfg.TrunkID,
		CallTo:            phone,
		RoomName:          roomName,
		Identity:          "sip-user-" + uuid.NewString(),
		Name:              "Caller " + phone,
		Metadata:          string(meta),
		WaitUntilAnswered: true,
	})
}

// waitForAgent sleeps the configured grace period, then polls room
// membership for an agent participant. Best-effort monitoring only: it
// races the agent's own connection attempt and never blocks or fails the
// dispatch.
func (d *Dispatcher) waitForAgent(ctx context.Context, roomName string) bool {
	if d.cfg.JoinGracePeriod > 0 {
		select {
		case <-time.After(d.cfg.JoinGracePeriod):
		case <-ctx.Done():
			return false
		}
	}

	joined := false
	backoff := retry.WithMaxRetries(3, retry.NewConstant(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		participants, err := d.api.ListParticipants(ctx, roomName)
		if err != nil {
			return retry.RetryableError(err)
		}
		for _, p := range participants {
			if d.isAgentIdentity(p.Identity) {
				joined = true
				return nil
			}
		}
		return retry.RetryableError(fmt.Errorf("agent not in room yet"))
	})
	if err != nil {
		d.logger.Info("agent not yet connected", "room", roomName)
		return false
	}
	if joined {
		d.logger.Info("agent connected", "room", roomName)
	}
	return joined
}

func (d *Dispatcher) isAgentIdentity(identity string) bool {
	return strings.HasPrefix(identity, d.cfg.AgentIdentityPrefix) ||
		strings.Contains(strings.ToLower(identity), "agent")
}

func (d *Dispatcher) deleteRoomQuietly(ctx context.Context, roomName string) {
	if err := d.api.DeleteRoom(ctx, roomName); err != nil {
		d.logger.Warn("room teardown after failed dispatch", "room", roomName, "error", err)
	}
}

// ListActiveRooms enumerates active rooms with their participants and
// connection states.
func (d *Dispatcher) ListActiveRooms(ctx context.Context) ([]RoomStatus, error) {
	rooms, err := d.api.ListRooms(ctx)
	if err != nil {
		return nil, NewTelephonyError("list rooms", err)
	}

	out := make([]RoomStatus, 0, len(rooms))
	for _, room := range rooms {
		participants, err := d.api.ListParticipants(ctx, room.Name)
		if err != nil {
			// Keep the listing useful even when one room errors.
			d.logger.Warn("list participants", "room", room.Name, "error", err)
		}
		out = append(out, RoomStatus{Room: room, Participants: participants})
	}
	return out, nil
}
