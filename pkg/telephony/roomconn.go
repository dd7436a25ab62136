package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RoomEvent types delivered over a room connection. Transcription events
// are produced by the platform's server-side STT and turn detection; a
// final transcript marks the end of the speaker's turn.
const (
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventTranscription     = "transcription"
	EventRoomClosed        = "room_closed"
)

// RoomEvent is a single event from the room's signaling stream.
type RoomEvent struct {
	Type        string           `json:"type"`
	Participant *ParticipantInfo `json:"participant,omitempty"`

	// Transcription payload.
	Text    string `json:"text,omitempty"`
	Final   bool   `json:"final,omitempty"`
	Speaker string `json:"speaker,omitempty"`
}

type sayMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// RoomConn is a live websocket connection into a room, used by the agent
// worker to receive signaling/transcription events and to speak through
// the platform's TTS. A single internal goroutine owns all socket reads
// and pumps events into a channel, so a timed-out ReadEvent leaves the
// connection fully usable. Reads and writes are safe for one consumer
// and one writer goroutine each.
type RoomConn struct {
	conn     *websocket.Conn
	identity string
	room     string

	writeMu sync.Mutex
	closed  sync.Once

	events chan *RoomEvent
	stop   chan struct{}

	// readErr is set by the read loop before it closes events.
	readErr error
}

const (
	wsHandshakeTimeout = 10 * time.Second
	wsWriteTimeout     = 5 * time.Second
)

// ConnectRoom joins a room over websocket with the given identity. The
// caller owns the returned connection and must Close it.
func (c *Client) ConnectRoom(ctx context.Context, room, identity string) (*RoomConn, error) {
	token, err := AccessToken(c.apiKey, c.apiSecret, identity, &RoomGrant{RoomJoin: true, Room: room, CanPublish: true}, 0)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(wsURL(c.baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse platform url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rtc"
	q := u.Query()
	q.Set("room", room)
	q.Set("identity", identity)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("room connect: %v", err)}
		}
		return nil, fmt.Errorf("room connect: %w", err)
	}

	rc := &RoomConn{
		conn:     conn,
		identity: identity,
		room:     room,
		events:   make(chan *RoomEvent, 16),
		stop:     make(chan struct{}),
	}
	go rc.readLoop()
	return rc, nil
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	default:
		return base
	}
}

// Room returns the room name this connection is joined to.
func (rc *RoomConn) Room() string { return rc.room }

// Identity returns the identity this connection joined as.
func (rc *RoomConn) Identity() string { return rc.identity }

// readLoop is the connection's sole reader. It runs until the socket
// fails or Close is called; per-turn timeouts never reach the socket.
func (rc *RoomConn) readLoop() {
	defer close(rc.events)
	for {
		_, data, err := rc.conn.ReadMessage()
		if err != nil {
			rc.readErr = err
			return
		}
		var event RoomEvent
		if err := json.Unmarshal(data, &event); err != nil {
			rc.readErr = err
			return
		}
		select {
		case rc.events <- &event:
		case <-rc.stop:
			return
		}
	}
}

// ReadEvent blocks until the next room event arrives or ctx is done. A
// context deadline bounds only this wait; the connection stays usable,
// so callers can treat a timeout as a silent turn and keep listening.
func (rc *RoomConn) ReadEvent(ctx context.Context) (*RoomEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case event, ok := <-rc.events:
		if !ok {
			return nil, fmt.Errorf("read room event: %w", rc.readErr)
		}
		return event, nil
	}
}

// Say asks the platform to synthesize and play text to the room.
func (rc *RoomConn) Say(text string) error {
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()

	_ = rc.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := rc.conn.WriteJSON(sayMessage{Type: "say", Text: text}); err != nil {
		return fmt.Errorf("say: %w", err)
	}
	return nil
}

// Close shuts the connection down. Safe to call more than once.
func (rc *RoomConn) Close() error {
	var err error
	rc.closed.Do(func() {
		close(rc.stop)
		rc.writeMu.Lock()
		_ = rc.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = rc.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		rc.writeMu.Unlock()
		err = rc.conn.Close()
	})
	return err
}
