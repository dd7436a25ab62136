package telephony

// Room is a transient session container holding the human participant and
// the agent's media streams.
type Room struct {
	SID             string `json:"sid"`
	Name            string `json:"name"`
	Metadata        string `json:"metadata,omitempty"`
	CreationTime    int64  `json:"creation_time"`
	NumParticipants int    `json:"num_participants"`
}

// ParticipantState describes a participant's connection state.
type ParticipantState string

const (
	ParticipantJoining      ParticipantState = "joining"
	ParticipantActive       ParticipantState = "active"
	ParticipantDisconnected ParticipantState = "disconnected"
)

// ParticipantInfo describes a participant in a room.
type ParticipantInfo struct {
	SID      string           `json:"sid"`
	Identity string           `json:"identity"`
	Name     string           `json:"name,omitempty"`
	Metadata string           `json:"metadata,omitempty"`
	State    ParticipantState `json:"state"`
}

// CreateRoomRequest creates a named room. Metadata is an opaque string
// carried on the room for the lifetime of the call.
type CreateRoomRequest struct {
	Name     string `json:"name"`
	Metadata string `json:"metadata,omitempty"`
}

// CreateSIPParticipantRequest places an outbound SIP call leg into a room.
type CreateSIPParticipantRequest struct {
	TrunkID  string `json:"sip_trunk_id"`
	CallTo   string `json:"sip_call_to"`
	RoomName string `json:"room_name"`
	Identity string `json:"participant_identity"`
	Name     string `json:"participant_name,omitempty"`
	Metadata string `json:"participant_metadata,omitempty"`

	// WaitUntilAnswered blocks the request until the callee picks up or the
	// platform's ringing timeout elapses.
	WaitUntilAnswered bool `json:"wait_until_answered,omitempty"`
}

// SIPParticipant is the platform's view of a dialed call leg.
type SIPParticipant struct {
	ParticipantSID string `json:"participant_sid"`
	Identity       string `json:"participant_identity"`
	RoomName       string `json:"room_name"`
	SIPCallID      string `json:"sip_call_id,omitempty"`
}

type listRoomsRequest struct{}

type listRoomsResponse struct {
	Rooms []Room `json:"rooms"`
}

type listParticipantsRequest struct {
	Room string `json:"room"`
}

type listParticipantsResponse struct {
	Participants []ParticipantInfo `json:"participants"`
}

type roomParticipantIdentity struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

type deleteRoomRequest struct {
	Room string `json:"room"`
}
