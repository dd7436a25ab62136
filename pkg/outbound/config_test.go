package outbound

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OUTDIAL_URL", "wss://outdial.example.com")
	t.Setenv("OUTDIAL_API_KEY", "key")
	t.Setenv("OUTDIAL_API_SECRET", "secret")
	t.Setenv("SIP_OUTBOUND_TRUNK_ID", "ST_trunk")

	// Optional knobs must not leak in from the host environment.
	for _, key := range []string{
		"OUTDIAL_AGENT_IDENTITY_PREFIX",
		"OUTDIAL_ROOM_PREFIX",
		"OUTDIAL_REALTOR_NAME",
		"OUTDIAL_JOIN_GRACE_PERIOD",
		"OUTDIAL_MAX_CLARIFIES",
		"OUTDIAL_SILENCE_WINDOW",
		"OUTDIAL_TURN_TIMEOUT",
		"OUTDIAL_TUNABLES_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}
	if cfg.AgentIdentityPrefix != "outbound-caller" {
		t.Errorf("AgentIdentityPrefix = %q", cfg.AgentIdentityPrefix)
	}
	if cfg.RoomPrefix != "outbound-call" {
		t.Errorf("RoomPrefix = %q", cfg.RoomPrefix)
	}
	if cfg.JoinGracePeriod != 2*time.Second {
		t.Errorf("JoinGracePeriod = %v", cfg.JoinGracePeriod)
	}
	if cfg.Tunables != DefaultTunables() {
		t.Errorf("Tunables = %+v, want defaults", cfg.Tunables)
	}
}

func TestLoadFromEnv_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"url", "OUTDIAL_URL"},
		{"api key", "OUTDIAL_API_KEY"},
		{"api secret", "OUTDIAL_API_SECRET"},
		{"trunk", "SIP_OUTBOUND_TRUNK_ID"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, "")

			_, err := LoadFromEnv()
			if !IsKind(err, ErrConfiguration) {
				t.Fatalf("err = %v, want configuration error", err)
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Errorf("err = %v, want mention of %s", err, tc.key)
			}
		})
	}
}

func TestLoadFromEnv_TrunkPrefixEnforced(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SIP_OUTBOUND_TRUNK_ID", "trunk-without-prefix")

	_, err := LoadFromEnv()
	if !IsKind(err, ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if !strings.Contains(err.Error(), TrunkIDPrefix) {
		t.Errorf("err = %v, want mention of the required prefix", err)
	}
}

func TestLoadFromEnv_TunableOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OUTDIAL_MAX_CLARIFIES", "2")
	t.Setenv("OUTDIAL_SILENCE_WINDOW", "5s")
	t.Setenv("OUTDIAL_TURN_TIMEOUT", "45s")
	t.Setenv("OUTDIAL_JOIN_GRACE_PERIOD", "500ms")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}
	if cfg.Tunables.MaxClarifies != 2 {
		t.Errorf("MaxClarifies = %d", cfg.Tunables.MaxClarifies)
	}
	if cfg.Tunables.SilenceWindow != 5*time.Second {
		t.Errorf("SilenceWindow = %v", cfg.Tunables.SilenceWindow)
	}
	if cfg.Tunables.TurnTimeout != 45*time.Second {
		t.Errorf("TurnTimeout = %v", cfg.Tunables.TurnTimeout)
	}
	if cfg.JoinGracePeriod != 500*time.Millisecond {
		t.Errorf("JoinGracePeriod = %v", cfg.JoinGracePeriod)
	}
}

func TestLoadTunablesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	content := "max_clarifies: 3\nsilence_window: 4s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	tun, err := LoadTunablesFile(path, DefaultTunables())
	if err != nil {
		t.Fatalf("LoadTunablesFile error: %v", err)
	}
	if tun.MaxClarifies != 3 {
		t.Errorf("MaxClarifies = %d, want 3", tun.MaxClarifies)
	}
	if tun.SilenceWindow != 4*time.Second {
		t.Errorf("SilenceWindow = %v, want 4s", tun.SilenceWindow)
	}
	// Absent keys keep the base value.
	if tun.TurnTimeout != DefaultTunables().TurnTimeout {
		t.Errorf("TurnTimeout = %v, want base default", tun.TurnTimeout)
	}
}

func TestLoadTunablesFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := LoadTunablesFile(filepath.Join(t.TempDir(), "absent.yaml"), DefaultTunables())
	if !IsKind(err, ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestLoadTunablesFile_Malformed(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("max_clarifies: [not an int"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTunablesFile(path, DefaultTunables()); !IsKind(err, ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}
