package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	appName   = "rolling-sampler"
	envPrefix = "ROLLING_SAMPLER"
)

type Config struct {
	LogLevel         string        `json:"log_level" mapstructure:"log_level"`
	Hotkey           string        `json:"hotkey" mapstructure:"hotkey"`
	HotkeyDarwin     string        `json:"hotkey_darwin" mapstructure:"hotkey_darwin"`
	SaveDir          string        `json:"save_dir" mapstructure:"save_dir"`
	WindowSeconds    int           `json:"window_seconds" mapstructure:"window_seconds"`
	MaxWindowSeconds int           `json:"max_window_seconds" mapstructure:"max_window_seconds"`
	CopyPathOnSave   bool          `json:"copy_path_on_save" mapstructure:"copy_path_on_save"`
	Audio            AudioConfig   `json:"audio" mapstructure:"audio"`
	Monitor          MonitorConfig `json:"monitor" mapstructure:"monitor"`
	Notify           NotifyConfig  `json:"notify" mapstructure:"notify"`

	path string
}

type AudioConfig struct {
	InputDeviceID  string `json:"input_device_id" mapstructure:"input_device_id"`   // "" = system default
	OutputDeviceID string `json:"output_device_id" mapstructure:"output_device_id"` // "" = system default
}

type MonitorConfig struct {
	Enabled         bool            `json:"enabled" mapstructure:"enabled"`
	FramesPerBuffer int             `json:"frames_per_buffer" mapstructure:"frames_per_buffer"`
	QueueSeconds    float64         `json:"queue_seconds" mapstructure:"queue_seconds"`
	Resampler       ResamplerConfig `json:"resampler" mapstructure:"resampler"`
}

type ResamplerConfig struct {
	ChunkSize int    `json:"chunk_size" mapstructure:"chunk_size"` // 0 = derived from frames_per_buffer
	Quality   string `json:"quality" mapstructure:"quality"`       // quick, low, medium, high or very_high
}

type NotifyConfig struct {
	NATSURL string `json:"nats_url" mapstructure:"nats_url"` // "" disables publishing
	Subject string `json:"subject" mapstructure:"subject"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		Hotkey:           "Alt+G",
		HotkeyDarwin:     "Ctrl+G",
		SaveDir:          DefaultSaveDir(),
		WindowSeconds:    5,
		MaxWindowSeconds: 60,
		Monitor: MonitorConfig{
			FramesPerBuffer: 2048,
			QueueSeconds:    4,
			Resampler: ResamplerConfig{
				Quality: "medium",
			},
		},
		Notify: NotifyConfig{
			Subject: "sampler.grabs",
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("hotkey", d.Hotkey)
	v.SetDefault("hotkey_darwin", d.HotkeyDarwin)
	v.SetDefault("save_dir", d.SaveDir)
	v.SetDefault("window_seconds", d.WindowSeconds)
	v.SetDefault("max_window_seconds", d.MaxWindowSeconds)
	v.SetDefault("copy_path_on_save", d.CopyPathOnSave)

	v.SetDefault("audio.input_device_id", d.Audio.InputDeviceID)
	v.SetDefault("audio.output_device_id", d.Audio.OutputDeviceID)

	v.SetDefault("monitor.enabled", d.Monitor.Enabled)
	v.SetDefault("monitor.frames_per_buffer", d.Monitor.FramesPerBuffer)
	v.SetDefault("monitor.queue_seconds", d.Monitor.QueueSeconds)
	v.SetDefault("monitor.resampler.chunk_size", d.Monitor.Resampler.ChunkSize)
	v.SetDefault("monitor.resampler.quality", d.Monitor.Resampler.Quality)

	v.SetDefault("notify.nats_url", d.Notify.NATSURL)
	v.SetDefault("notify.subject", d.Notify.Subject)
}

// NewViper returns a viper instance reading the JSON file at path, with
// ROLLING_SAMPLER_* environment overrides (e.g. ROLLING_SAMPLER_MONITOR_ENABLED).
func NewViper(path string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config at path, falling back to defaults when the file
// does not exist.
func Load(path string) (*Config, error) {
	return Decode(NewViper(path))
}

// Decode reads v's config file (if any) and returns the validated result.
func Decode(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	cfg.path = v.ConfigFileUsed()
	return &cfg, nil
}

// Watch reloads the config whenever its file changes. fn receives the new
// config, or the error that prevented loading it.
func Watch(v *viper.Viper, fn func(*Config, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(Decode(v))
	})
	v.WatchConfig()
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Save writes the config to the file it was loaded from, or to Path().
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = Path()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// File returns the path Save writes to.
func (c *Config) File() string {
	if c.path == "" {
		return Path()
	}
	return c.path
}

// SetFile changes where Save writes.
func (c *Config) SetFile(path string) { c.path = path }

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// Path returns the platform-specific config file path
func Path() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, appName, "config.json")
}

// DefaultSaveDir returns the user's desktop directory.
func DefaultSaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Desktop")
}
