package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// StatusRingingTimeout is returned by the platform when a SIP leg with
	// wait_until_answered set was not picked up before the ringing timeout.
	StatusRingingTimeout = http.StatusRequestTimeout

	defaultRequestTimeout = 30 * time.Second

	// SIP dialing blocks until answer, so it gets a much longer timeout.
	sipRequestTimeout = 2 * time.Minute
)

// APIError is a non-2xx response from the platform API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"msg,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("telephony api: %s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("telephony api: %s (status %d)", e.Message, e.Status)
}

// IsNotFound reports whether err is an APIError for a missing resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsRingingTimeout reports whether err means the callee never answered.
func IsRingingTimeout(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == StatusRingingTimeout || apiErr.Code == "sip_ringing_timeout"
}

// Client talks to the room/SIP platform's server API. All calls are
// authenticated with short-lived JWTs minted from the API key pair.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewClient creates a platform API client. The URL may use ws:// or wss://
// (as handed out for media endpoints); it is normalized to http(s) for API
// requests.
func NewClient(url, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:    normalizeURL(url),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: sipRequestTimeout},
	}
}

// NewClientWithHTTP creates a client with a custom HTTP client.
func NewClientWithHTTP(url, apiKey, apiSecret string, httpClient *http.Client) *Client {
	c := NewClient(url, apiKey, apiSecret)
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

func normalizeURL(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")
	switch {
	case strings.HasPrefix(url, "ws://"):
		return "http://" + strings.TrimPrefix(url, "ws://")
	case strings.HasPrefix(url, "wss://"):
		return "https://" + strings.TrimPrefix(url, "wss://")
	default:
		return url
	}
}

// CreateRoom creates (or returns) a room with the given name.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	var room Room
	if err := c.do(ctx, "RoomService/CreateRoom", req, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms enumerates active rooms.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var resp listRoomsResponse
	if err := c.do(ctx, "RoomService/ListRooms", listRoomsRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// ListParticipants returns the participants currently in a room.
func (c *Client) ListParticipants(ctx context.Context, room string) ([]ParticipantInfo, error) {
	var resp listParticipantsResponse
	if err := c.do(ctx, "RoomService/ListParticipants", listParticipantsRequest{Room: room}, &resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

// RemoveParticipant disconnects a participant from a room.
func (c *Client) RemoveParticipant(ctx context.Context, room, identity string) error {
	return c.do(ctx, "RoomService/RemoveParticipant", roomParticipantIdentity{Room: room, Identity: identity}, nil)
}

// DeleteRoom tears down a room and disconnects everyone in it.
func (c *Client) DeleteRoom(ctx context.Context, room string) error {
	return c.do(ctx, "RoomService/DeleteRoom", deleteRoomRequest{Room: room}, nil)
}

// CreateSIPParticipant dials an outbound SIP call leg into a room. With
// WaitUntilAnswered set, the call blocks until pickup or the platform's
// ringing timeout (surfaced as a ringing-timeout APIError).
func (c *Client) CreateSIPParticipant(ctx context.Context, req CreateSIPParticipantRequest) (*SIPParticipant, error) {
	var participant SIPParticipant
	if err := c.do(ctx, "SIPService/CreateSIPParticipant", req, &participant); err != nil {
		return nil, err
	}
	return &participant, nil
}

func (c *Client) do(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	url := c.baseURL + "/twirp/outdial." + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}

	token, err := AccessToken(c.apiKey, c.apiSecret, "", adminGrant(), 0)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr == nil && len(data) > 0 {
			if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
				apiErr.Message = strings.TrimSpace(string(data))
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}
