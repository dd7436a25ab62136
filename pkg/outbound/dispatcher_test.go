package outbound

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/outdial-ai/outdial/pkg/telephony"
)

type fakeRoomAPI struct {
	createRoomErr error
	sipErr        error

	createdRooms []telephony.CreateRoomRequest
	sipRequests  []telephony.CreateSIPParticipantRequest
	deletedRooms []string

	rooms        []telephony.Room
	participants map[string][]telephony.ParticipantInfo
	listCalls    int

	// defaultParticipants are returned for rooms with no explicit entry,
	// covering generated room names.
	defaultParticipants []telephony.ParticipantInfo
}

func (f *fakeRoomAPI) CreateRoom(_ context.Context, req telephony.CreateRoomRequest) (*telephony.Room, error) {
	if f.createRoomErr != nil {
		return nil, f.createRoomErr
	}
	f.createdRooms = append(f.createdRooms, req)
	return &telephony.Room{SID: "RM_test", Name: req.Name, Metadata: req.Metadata}, nil
}

func (f *fakeRoomAPI) DeleteRoom(_ context.Context, room string) error {
	f.deletedRooms = append(f.deletedRooms, room)
	return nil
}

func (f *fakeRoomAPI) ListRooms(context.Context) ([]telephony.Room, error) {
	return f.rooms, nil
}

func (f *fakeRoomAPI) ListParticipants(_ context.Context, room string) ([]telephony.ParticipantInfo, error) {
	f.listCalls++
	if p, ok := f.participants[room]; ok {
		return p, nil
	}
	return f.defaultParticipants, nil
}

func (f *fakeRoomAPI) CreateSIPParticipant(_ context.Context, req telephony.CreateSIPParticipantRequest) (*telephony.SIPParticipant, error) {
	if f.sipErr != nil {
		return nil, f.sipErr
	}
	f.sipRequests = append(f.sipRequests, req)
	return &telephony.SIPParticipant{
		ParticipantSID: "PA_test",
		Identity:       req.Identity,
		RoomName:       req.RoomName,
	}, nil
}

func testDispatchConfig() Config {
	return Config{
		URL:                 "wss://outdial.example.com",
		APIKey:              "key",
		APISecret:           "secret",
		TrunkID:             "ST_test_trunk",
		AgentIdentityPrefix: "outbound-caller",
		RoomPrefix:          "outbound-call",
		JoinGracePeriod:     0,
		Tunables:            DefaultTunables(),
	}
}

func TestDispatcher_Dispatch(t *testing.T) {
	t.Parallel()
	api := &fakeRoomAPI{
		defaultParticipants: []telephony.ParticipantInfo{
			{Identity: "outbound-caller-1", State: telephony.ParticipantActive},
		},
	}
	d := NewDispatcher(api, testDispatchConfig(), nil)

	result, err := d.Dispatch(context.Background(), "+15551234567", "")
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}

	if len(api.createdRooms) != 1 {
		t.Fatalf("rooms created = %d, want 1", len(api.createdRooms))
	}
	roomName := api.createdRooms[0].Name
	if !strings.HasPrefix(roomName, "outbound-call-") {
		t.Errorf("room name = %q, want outbound-call prefix", roomName)
	}

	if len(api.sipRequests) != 1 {
		t.Fatalf("SIP requests = %d, want 1", len(api.sipRequests))
	}
	sip := api.sipRequests[0]
	if sip.TrunkID != "ST_test_trunk" {
		t.Errorf("trunk = %q", sip.TrunkID)
	}
	if sip.CallTo != "+15551234567" {
		t.Errorf("call to = %q", sip.CallTo)
	}
	if sip.RoomName != roomName {
		t.Errorf("SIP room = %q, dispatch room = %q", sip.RoomName, roomName)
	}
	if !strings.HasPrefix(sip.Identity, "sip-user-") {
		t.Errorf("SIP identity = %q, want sip-user prefix", sip.Identity)
	}
	if !sip.WaitUntilAnswered {
		t.Error("WaitUntilAnswered not set")
	}
	if !strings.Contains(sip.Metadata, `"call_type":"outbound"`) {
		t.Errorf("SIP metadata = %q, missing call_type", sip.Metadata)
	}

	if result.Room == nil || result.Participant == nil {
		t.Fatal("result missing room or participant")
	}
	if result.Call.PhoneNumber != "+15551234567" {
		t.Errorf("call phone = %q", result.Call.PhoneNumber)
	}
	if !result.AgentJoined {
		t.Error("AgentJoined = false with agent participant present")
	}
	if len(api.deletedRooms) != 0 {
		t.Errorf("rooms deleted on success: %v", api.deletedRooms)
	}
}

func TestDispatcher_DispatchUsesProvidedRoomName(t *testing.T) {
	t.Parallel()
	api := &fakeRoomAPI{defaultParticipants: []telephony.ParticipantInfo{
		{Identity: "outbound-caller-1", State: telephony.ParticipantActive},
	}}
	d := NewDispatcher(api, testDispatchConfig(), nil)

	if _, err := d.Dispatch(context.Background(), "+15551234567", "my-room"); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if api.createdRooms[0].Name != "my-room" {
		t.Errorf("room name = %q, want my-room", api.createdRooms[0].Name)
	}
}

func TestDispatcher_GeneratedRoomNamesAreUnique(t *testing.T) {
	t.Parallel()
	api := &fakeRoomAPI{defaultParticipants: []telephony.ParticipantInfo{
		{Identity: "outbound-caller-1", State: telephony.ParticipantActive},
	}}
	d := NewDispatcher(api, testDispatchConfig(), nil)

	for i := 0; i < 2; i++ {
		if _, err := d.Dispatch(context.Background(), "+15551234567", ""); err != nil {
			t.Fatalf("Dispatch error: %v", err)
		}
	}
	if api.createdRooms[0].Name == api.createdRooms[1].Name {
		t.Fatalf("repeat dials of the same number share room name %q", api.createdRooms[0].Name)
	}
}

func TestDispatcher_EmptyPhoneNumber(t *testing.T) {
	t.Parallel()
	api := &fakeRoomAPI{}
	d := NewDispatcher(api, testDispatchConfig(), nil)

	_, err := d.Dispatch(context.Background(), "", "")
	if !IsKind(err, ErrDispatch) {
		t.Fatalf("err = %v, want dispatch error", err)
	}
	if len(api.createdRooms) != 0 {
		t.Error("room created despite missing phone number")
	}
}

func TestDispatcher_SIPFailureTearsDownRoom(t *testing.T) {
	t.Parallel()
	api := &fakeRoomAPI{
		sipErr: &telephony.APIError{Status: 500, Message: "trunk unavailable"},
	}
	d := NewDispatcher(api, testDispatchConfig(), nil)

	_, err := d.Dispatch(context.Background(), "+15551234567", "")
	if !IsKind(err, ErrDispatch) {
		t.Fatalf("err = %v, want dispatch error", err)
	}
	if len(api.deletedRooms) != 1 {
		t.Fatalf("rooms deleted = %v, want the failed room torn down", api.deletedRooms)
	}
	// One attempt only. Redialing after a trunk failure is the operator's
	// decision, not the dispatcher's.
	if len(api.createdRooms) != 1 {
		t.Fatalf("rooms created = %d, want no retry", len(api.createdRooms))
	}
	if api.listCalls != 0 {
		t.Fatalf("join poll ran %d times after a failed dial, want none", api.listCalls)
	}
}

func TestDispatcher_RingingTimeoutIsCallNotAnswered(t *testing.T) {
	t.Parallel()
	api := &fakeRoomAPI{
		sipErr: &telephony.APIError{Status: telephony.StatusRingingTimeout, Message: "ringing timeout"},
	}
	d := NewDispatcher(api, testDispatchConfig(), nil)

	_, err := d.Dispatch(context.Background(), "+15551234567", "")
	if !IsKind(err, ErrCallNotAnswered) {
		t.Fatalf("err = %v, want call-not-answered", err)
	}
	if len(api.deletedRooms) != 1 {
		t.Fatalf("rooms deleted = %v, want teardown on no answer", api.deletedRooms)
	}
}

func TestDispatcher_AgentJoinCheckIsAdvisory(t *testing.T) {
	t.Parallel()
	cfg := testDispatchConfig()
	cfg.JoinGracePeriod = time.Millisecond

	t.Run("absent agent does not fail dispatch", func(t *testing.T) {
		api := &fakeRoomAPI{participants: map[string][]telephony.ParticipantInfo{
			"room-b": {{Identity: "sip-user-1", State: telephony.ParticipantActive}},
		}}
		d := NewDispatcher(api, cfg, nil)

		result, err := d.Dispatch(context.Background(), "+15551234567", "room-b")
		if err != nil {
			t.Fatalf("Dispatch error: %v", err)
		}
		if result.AgentJoined {
			t.Error("AgentJoined = true with no agent participant")
		}
	})

	t.Run("agent identity detected", func(t *testing.T) {
		api := &fakeRoomAPI{participants: map[string][]telephony.ParticipantInfo{
			"room-c": {
				{Identity: "sip-user-1", State: telephony.ParticipantActive},
				{Identity: "outbound-caller-7f", State: telephony.ParticipantActive},
			},
		}}
		d := NewDispatcher(api, cfg, nil)

		result, err := d.Dispatch(context.Background(), "+15551234567", "room-c")
		if err != nil {
			t.Fatalf("Dispatch error: %v", err)
		}
		if !result.AgentJoined {
			t.Error("AgentJoined = false with agent participant present")
		}
	})
}

func TestDispatcher_ListActiveRooms(t *testing.T) {
	t.Parallel()
	api := &fakeRoomAPI{
		rooms: []telephony.Room{
			{SID: "RM_1", Name: "outbound-call-a", NumParticipants: 2},
			{SID: "RM_2", Name: "outbound-call-b", NumParticipants: 1},
		},
		participants: map[string][]telephony.ParticipantInfo{
			"outbound-call-a": {
				{Identity: "sip-user-1", State: telephony.ParticipantActive},
				{Identity: "outbound-caller-1", State: telephony.ParticipantActive},
			},
			"outbound-call-b": {
				{Identity: "sip-user-2", State: telephony.ParticipantJoining},
			},
		},
	}
	d := NewDispatcher(api, testDispatchConfig(), nil)

	statuses, err := d.ListActiveRooms(context.Background())
	if err != nil {
		t.Fatalf("ListActiveRooms error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("rooms = %d, want 2", len(statuses))
	}
	if len(statuses[0].Participants) != 2 || len(statuses[1].Participants) != 1 {
		t.Fatalf("participant counts = %d/%d, want 2/1",
			len(statuses[0].Participants), len(statuses[1].Participants))
	}
}
