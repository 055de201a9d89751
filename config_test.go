package ardw

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ardw.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Settings != DefaultSettings() {
		t.Errorf("Settings = %+v, want defaults", c.Settings)
	}
	if c.Relay.FrameRate != 30 || c.Relay.DwellTime != 500*time.Millisecond {
		t.Errorf("Relay = %+v", c.Relay)
	}
	if c.Relay.MenuTip != 20 || c.Relay.MenuEnd != 20 || c.Relay.StationaryEnd != 10 {
		t.Errorf("Relay menu thresholds = %+v", c.Relay)
	}
	if !slices.Equal(c.Relay.Autoconnect, []string{"ptr", "dmm"}) {
		t.Errorf("Autoconnect = %q", c.Relay.Autoconnect)
	}
	if c.Viewer.BoardPath != "pcbdata.json" || c.Viewer.DeviceScale != 1 {
		t.Errorf("Viewer = %+v", c.Viewer)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
[settings]
canvas_layout = "f"
board_rotation = 92
dark_mode = true

[relay]
dwell_time = "250ms"
pin_padding = 2.5
`)
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Settings.LayoutMode != LayoutFront {
		t.Errorf("LayoutMode = %q, want F", c.Settings.LayoutMode)
	}
	if c.Settings.BoardRotation != 90 {
		t.Errorf("BoardRotation = %v, want 90", c.Settings.BoardRotation)
	}
	if !c.Settings.DarkMode || !c.Settings.RenderPads {
		t.Errorf("Settings = %+v", c.Settings)
	}
	if c.Relay.DwellTime != 250*time.Millisecond || c.Relay.PinPadding != 2.5 {
		t.Errorf("Relay = %+v", c.Relay)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ARDW_RELAY_FRAME_RATE", "60")
	path := writeConfig(t, "[relay]\nframe_rate = 15\n")
	t.Setenv(ConfigEnv, path)

	c, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Relay.FrameRate != 60 {
		t.Errorf("FrameRate = %d, want 60", c.Relay.FrameRate)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct{ name, body string }{
		{"bad layout", "[settings]\ncanvas_layout = \"X\"\n"},
		{"bad bom mode", "[settings]\nbom_mode = \"diagonal\"\n"},
		{"bad toml", "[settings\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMissingConfig(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", viper.ConfigFileNotFoundError{}, true},
		{"wrapped not found", fmt.Errorf("load: %w", viper.ConfigFileNotFoundError{}), true},
		{"missing file", fmt.Errorf("open: %w", os.ErrNotExist), true},
		{"parse error", errors.New("toml: bad key"), false},
	}
	for _, tt := range tests {
		if got := missingConfig(tt.err); got != tt.want {
			t.Errorf("%s: missingConfig = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "ardw.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[relay]\naddr = \"0.0.0.0:6000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := DefaultSettings()
	s.RedrawOnDrag = false
	s.BoardRotation = 45
	s.LayoutMode = LayoutBack
	s.BOMMode = BOMTopBottom
	if err := SaveSettings(path, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Settings != s {
		t.Errorf("Settings = %+v, want %+v", c.Settings, s)
	}
	if c.Relay.Addr != "0.0.0.0:6000" {
		t.Errorf("relay section lost: Addr = %q", c.Relay.Addr)
	}
}

func TestSettingsValidate(t *testing.T) {
	s := Settings{BoardRotation: -3}
	if err := s.validate(); err != nil {
		t.Fatal(err)
	}
	if s.LayoutMode != LayoutBoth || s.BOMMode != BOMLeftRight || s.BoardRotation != 355 {
		t.Errorf("validated = %+v", s)
	}
}
