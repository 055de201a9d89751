package ardw

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration of a viewer or relay process.
type Config struct {
	Settings Settings     `mapstructure:"settings"`
	Viewer   ViewerConfig `mapstructure:"viewer"`
	Relay    RelayConfig  `mapstructure:"relay"`
}

// ViewerConfig describes the window and where its documents come from.
type ViewerConfig struct {
	Title         string  `mapstructure:"title"`
	Width         int     `mapstructure:"width"`
	Height        int     `mapstructure:"height"`
	ShowFPS       bool    `mapstructure:"show_fps"`
	Debug         bool    `mapstructure:"debug"`
	Projector     bool    `mapstructure:"projector"`
	DeviceScale   float64 `mapstructure:"device_scale"`
	BoardPath     string  `mapstructure:"board"`
	SchematicPath string  `mapstructure:"schematic"`
	SheetDir      string  `mapstructure:"sheet_dir"`
	ScreenshotDir string  `mapstructure:"screenshot_dir"`
	RelayURL      string  `mapstructure:"relay_url"`
	Script        string  `mapstructure:"script"`
}

// RelayConfig describes the relay hub. StationaryEnd bounds the probe end
// jitter while a hit menu is open. MenuTip is how far the tip may leave an
// open menu and MenuEnd how far the probe end must tilt to choose an option,
// all in device pixels. Autoconnect lists the bench tools taken as connected
// at startup.
type RelayConfig struct {
	Addr          string        `mapstructure:"addr"`
	UDPAddr       string        `mapstructure:"udp_addr"`
	EWMAAlpha     float64       `mapstructure:"ewma_alpha"`
	FrameRate     int           `mapstructure:"frame_rate"`
	DwellTime     time.Duration `mapstructure:"dwell_time"`
	Stationary    float64       `mapstructure:"stationary_threshold"`
	StationaryEnd float64       `mapstructure:"stationary_end_threshold"`
	MenuTip       float64       `mapstructure:"multi_tip_threshold"`
	MenuEnd       float64       `mapstructure:"multi_end_threshold"`
	SelectBuffer  time.Duration `mapstructure:"selection_buffer"`
	PinPadding    float64       `mapstructure:"pin_padding"`
	PeerBuffer    int           `mapstructure:"peer_buffer"`
	Autoconnect   []string      `mapstructure:"autoconnect"`
}

// ConfigEnv names the environment variable holding an explicit config path.
const ConfigEnv = "ARDW_CONFIG"

func setDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("settings.redraw_on_drag", d.RedrawOnDrag)
	v.SetDefault("settings.board_rotation", d.BoardRotation)
	v.SetDefault("settings.render_pads", d.RenderPads)
	v.SetDefault("settings.render_references", d.RenderReferences)
	v.SetDefault("settings.render_values", d.RenderValues)
	v.SetDefault("settings.render_silkscreen", d.RenderSilkscreen)
	v.SetDefault("settings.render_fabrication", d.RenderFabrication)
	v.SetDefault("settings.render_dnp_outline", d.RenderDNPOutline)
	v.SetDefault("settings.render_tracks", d.RenderTracks)
	v.SetDefault("settings.render_zones", d.RenderZones)
	v.SetDefault("settings.highlight_pin1", d.HighlightPin1)
	v.SetDefault("settings.dark_mode", d.DarkMode)
	v.SetDefault("settings.canvas_layout", string(d.LayoutMode))
	v.SetDefault("settings.bom_mode", string(d.BOMMode))

	v.SetDefault("viewer.title", "ardw")
	v.SetDefault("viewer.width", 1280)
	v.SetDefault("viewer.height", 800)
	v.SetDefault("viewer.show_fps", false)
	v.SetDefault("viewer.debug", false)
	v.SetDefault("viewer.projector", false)
	v.SetDefault("viewer.device_scale", 1.0)
	v.SetDefault("viewer.board", "pcbdata.json")
	v.SetDefault("viewer.schematic", "schdata.json")
	v.SetDefault("viewer.sheet_dir", "sheets")
	v.SetDefault("viewer.screenshot_dir", "screenshots")
	v.SetDefault("viewer.relay_url", "")
	v.SetDefault("viewer.script", "")

	v.SetDefault("relay.addr", "127.0.0.1:5000")
	v.SetDefault("relay.udp_addr", "127.0.0.1:8052")
	v.SetDefault("relay.ewma_alpha", 0.0)
	v.SetDefault("relay.frame_rate", 30)
	v.SetDefault("relay.dwell_time", 500*time.Millisecond)
	v.SetDefault("relay.stationary_threshold", 5.0)
	v.SetDefault("relay.stationary_end_threshold", 10.0)
	v.SetDefault("relay.multi_tip_threshold", 20.0)
	v.SetDefault("relay.multi_end_threshold", 20.0)
	v.SetDefault("relay.autoconnect", []string{"ptr", "dmm"})
	v.SetDefault("relay.selection_buffer", time.Second)
	v.SetDefault("relay.pin_padding", 5.0)
	v.SetDefault("relay.peer_buffer", 256)
}

// LoadConfig reads configuration from path (or $ARDW_CONFIG, or
// ./ardw.toml) with ARDW_ environment overrides. A missing file is not an
// error; every key has a default.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("ardw")
	}

	v.SetEnvPrefix("ARDW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if !missingConfig(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Settings.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// missingConfig reports whether err only says there is no config file.
func missingConfig(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// SaveSettings writes the settings section to path, creating the directory
// if needed. Other sections present in the file are preserved.
func SaveSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	v.Set("settings.redraw_on_drag", s.RedrawOnDrag)
	v.Set("settings.board_rotation", s.BoardRotation)
	v.Set("settings.render_pads", s.RenderPads)
	v.Set("settings.render_references", s.RenderReferences)
	v.Set("settings.render_values", s.RenderValues)
	v.Set("settings.render_silkscreen", s.RenderSilkscreen)
	v.Set("settings.render_fabrication", s.RenderFabrication)
	v.Set("settings.render_dnp_outline", s.RenderDNPOutline)
	v.Set("settings.render_tracks", s.RenderTracks)
	v.Set("settings.render_zones", s.RenderZones)
	v.Set("settings.highlight_pin1", s.HighlightPin1)
	v.Set("settings.dark_mode", s.DarkMode)
	v.Set("settings.canvas_layout", string(s.LayoutMode))
	v.Set("settings.bom_mode", string(s.BOMMode))

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
