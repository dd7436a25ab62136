package outbound

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TrunkIDPrefix is the required prefix for outbound SIP trunk identifiers.
const TrunkIDPrefix = "ST_"

// Config holds everything the dispatcher and agent worker need to reach
// the telephony platform.
type Config struct {
	// URL is the platform endpoint (http(s):// or ws(s)://).
	URL       string
	APIKey    string
	APISecret string

	// TrunkID is the outbound SIP trunk. Must start with TrunkIDPrefix.
	TrunkID string

	// AgentIdentityPrefix is how agent participants name themselves; the
	// dispatcher's join poll matches on it.
	AgentIdentityPrefix string

	// RoomPrefix namespaces rooms created by the dispatcher.
	RoomPrefix string

	// DefaultRealtorName is substituted when dispatch metadata carries no
	// realtor.
	DefaultRealtorName string

	// JoinGracePeriod is how long the dispatcher waits before its advisory
	// agent-join check.
	JoinGracePeriod time.Duration

	Tunables Tunables
}

// Tunables are the per-deployment conversation knobs the script leaves
// open: how many clarifying re-asks a vague answer gets, and how much
// silence ends the wrap-up.
type Tunables struct {
	// MaxClarifies caps clarifying re-asks per qualification sub-step.
	MaxClarifies int `yaml:"max_clarifies"`

	// SilenceWindow bounds how long the wrap-up waits for final remarks.
	SilenceWindow time.Duration `yaml:"silence_window"`

	// TurnTimeout bounds how long the session waits for any utterance at
	// all before treating the turn as silence.
	TurnTimeout time.Duration `yaml:"turn_timeout"`
}

// DefaultTunables returns the reference defaults: one clarifying re-ask
// and a two second silence window.
func DefaultTunables() Tunables {
	return Tunables{
		MaxClarifies:  1,
		SilenceWindow: 2 * time.Second,
		TurnTimeout:   30 * time.Second,
	}
}

// LoadFromEnv builds a Config from the environment and validates it.
// Every missing or malformed required value is a ConfigurationError.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		URL:                 strings.TrimSpace(os.Getenv("OUTDIAL_URL")),
		APIKey:              strings.TrimSpace(os.Getenv("OUTDIAL_API_KEY")),
		APISecret:           strings.TrimSpace(os.Getenv("OUTDIAL_API_SECRET")),
		TrunkID:             strings.TrimSpace(os.Getenv("SIP_OUTBOUND_TRUNK_ID")),
		AgentIdentityPrefix: envOr("OUTDIAL_AGENT_IDENTITY_PREFIX", "outbound-caller"),
		RoomPrefix:          envOr("OUTDIAL_ROOM_PREFIX", "outbound-call"),
		DefaultRealtorName:  envOr("OUTDIAL_REALTOR_NAME", "our partner realtor"),
		JoinGracePeriod:     envDurationOr("OUTDIAL_JOIN_GRACE_PERIOD", 2*time.Second),
		Tunables:            DefaultTunables(),
	}

	cfg.Tunables.MaxClarifies = envIntOr("OUTDIAL_MAX_CLARIFIES", cfg.Tunables.MaxClarifies)
	cfg.Tunables.SilenceWindow = envDurationOr("OUTDIAL_SILENCE_WINDOW", cfg.Tunables.SilenceWindow)
	cfg.Tunables.TurnTimeout = envDurationOr("OUTDIAL_TURN_TIMEOUT", cfg.Tunables.TurnTimeout)

	if path := strings.TrimSpace(os.Getenv("OUTDIAL_TUNABLES_FILE")); path != "" {
		tun, err := LoadTunablesFile(path, cfg.Tunables)
		if err != nil {
			return Config{}, err
		}
		cfg.Tunables = tun
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and the trunk prefix convention.
func (c Config) Validate() error {
	if c.URL == "" {
		return NewConfigurationError("OUTDIAL_URL is not set")
	}
	if c.APIKey == "" {
		return NewConfigurationError("OUTDIAL_API_KEY is not set")
	}
	if c.APISecret == "" {
		return NewConfigurationError("OUTDIAL_API_SECRET is not set")
	}
	if c.TrunkID == "" {
		return NewConfigurationError("SIP_OUTBOUND_TRUNK_ID is not set")
	}
	if !strings.HasPrefix(c.TrunkID, TrunkIDPrefix) {
		return NewConfigurationError(fmt.Sprintf("SIP_OUTBOUND_TRUNK_ID must start with %q", TrunkIDPrefix))
	}
	if c.Tunables.MaxClarifies < 0 {
		return NewConfigurationError("OUTDIAL_MAX_CLARIFIES must be >= 0")
	}
	if c.Tunables.SilenceWindow <= 0 {
		return NewConfigurationError("OUTDIAL_SILENCE_WINDOW must be > 0")
	}
	if c.Tunables.TurnTimeout <= 0 {
		return NewConfigurationError("OUTDIAL_TURN_TIMEOUT must be > 0")
	}
	if c.JoinGracePeriod < 0 {
		return NewConfigurationError("OUTDIAL_JOIN_GRACE_PERIOD must be >= 0")
	}
	return nil
}

// LoadTunablesFile overlays YAML tunables on top of base. Zero-valued
// fields in the file keep the base value.
func LoadTunablesFile(path string, base Tunables) (Tunables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, &Error{Kind: ErrConfiguration, Message: fmt.Sprintf("read tunables file %q", path), Err: err}
	}

	var file struct {
		MaxClarifies  *int           `yaml:"max_clarifies"`
		SilenceWindow *time.Duration `yaml:"silence_window"`
		TurnTimeout   *time.Duration `yaml:"turn_timeout"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Tunables{}, &Error{Kind: ErrConfiguration, Message: fmt.Sprintf("parse tunables file %q", path), Err: err}
	}

	out := base
	if file.MaxClarifies != nil {
		out.MaxClarifies = *file.MaxClarifies
	}
	if file.SilenceWindow != nil {
		out.SilenceWindow = *file.SilenceWindow
	}
	if file.TurnTimeout != nil {
		out.TurnTimeout = *file.TurnTimeout
	}
	return out, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
