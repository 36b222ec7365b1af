// Package config loads handraw settings from a YAML file, a .env file and
// HANDRAW_* environment variables, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Landmark sources.
const (
	SourceCamera = "camera"
	SourceClient = "client"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DataDir   string          `yaml:"data_dir"`
	Source    string          `yaml:"source"`
	Camera    CameraConfig    `yaml:"camera"`
	Drawing   DrawingConfig   `yaml:"drawing"`
	Export    ExportConfig    `yaml:"export"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tray      TrayConfig      `yaml:"tray"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	StreamFPS int    `yaml:"stream_fps"`
}

// CameraConfig configures server-side capture.
type CameraConfig struct {
	DeviceID int  `yaml:"device_id"`
	Width    int  `yaml:"width"`
	Height   int  `yaml:"height"`
	FPS      int  `yaml:"fps"`
	Mirror   bool `yaml:"mirror"`
}

// DrawingConfig holds the canvas size and the gesture constants.
type DrawingConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	PinchThreshold float64 `yaml:"pinch_threshold"`
	EraserScale    float64 `yaml:"eraser_scale"`
}

// ExportConfig configures where exports are written.
type ExportConfig struct {
	Dir           string `yaml:"dir"`
	Prefix        string `yaml:"prefix"`
	ThumbnailSize uint   `yaml:"thumbnail_size"`
}

// LogConfig selects the zap preset.
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TrayConfig toggles the system tray menu.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DiscoveryConfig toggles mDNS advertisement.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	dataDir := ".handraw"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".handraw")
	}

	return Config{
		Server:  ServerConfig{Addr: ":8080", StreamFPS: 15},
		DataDir: dataDir,
		Source:  SourceCamera,
		Camera: CameraConfig{
			DeviceID: 0,
			Width:    1280,
			Height:   720,
			FPS:      30,
			Mirror:   true,
		},
		Drawing: DrawingConfig{
			Width:          1280,
			Height:         720,
			PinchThreshold: 40,
			EraserScale:    2,
		},
		Export: ExportConfig{
			Prefix:        "handraw",
			ThumbnailSize: 256,
		},
		Log:     LogConfig{Mode: "production"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads the YAML file at path (a missing file is not an error), then a
// .env file in the working directory, then HANDRAW_* variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// Missing .env is the common case.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = filepath.Join(cfg.DataDir, "exports")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv("HANDRAW_ADDR", c.Server.Addr)
	c.Server.StaticDir = getEnv("HANDRAW_STATIC_DIR", c.Server.StaticDir)
	c.DataDir = getEnv("HANDRAW_DATA_DIR", c.DataDir)
	c.Source = getEnv("HANDRAW_SOURCE", c.Source)
	c.Export.Dir = getEnv("HANDRAW_EXPORT_DIR", c.Export.Dir)
	c.Log.Mode = getEnv("HANDRAW_LOG_MODE", c.Log.Mode)

	var err error
	if c.Camera.DeviceID, err = getEnvInt("HANDRAW_CAMERA_ID", c.Camera.DeviceID); err != nil {
		return err
	}
	if c.Drawing.PinchThreshold, err = getEnvFloat("HANDRAW_PINCH_THRESHOLD", c.Drawing.PinchThreshold); err != nil {
		return err
	}
	if c.Camera.Mirror, err = getEnvBool("HANDRAW_MIRROR", c.Camera.Mirror); err != nil {
		return err
	}
	if c.Tray.Enabled, err = getEnvBool("HANDRAW_TRAY", c.Tray.Enabled); err != nil {
		return err
	}
	if c.Discovery.Enabled, err = getEnvBool("HANDRAW_DISCOVERY", c.Discovery.Enabled); err != nil {
		return err
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Source != SourceCamera && c.Source != SourceClient {
		return fmt.Errorf("source must be %q or %q, got %q", SourceCamera, SourceClient, c.Source)
	}
	if c.Drawing.Width <= 0 || c.Drawing.Height <= 0 {
		return fmt.Errorf("drawing size must be positive, got %dx%d", c.Drawing.Width, c.Drawing.Height)
	}
	if c.Drawing.PinchThreshold <= 0 {
		return fmt.Errorf("pinch_threshold must be positive, got %v", c.Drawing.PinchThreshold)
	}
	if c.Drawing.EraserScale <= 0 {
		return fmt.Errorf("eraser_scale must be positive, got %v", c.Drawing.EraserScale)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera fps must be positive, got %d", c.Camera.FPS)
	}
	if c.Export.Prefix == "" {
		return errors.New("export prefix must not be empty")
	}
	if filepath.Base(c.Export.Prefix) != c.Export.Prefix || strings.HasPrefix(c.Export.Prefix, ".") {
		return fmt.Errorf("export prefix must be a plain file name, got %q", c.Export.Prefix)
	}
	return nil
}

// DBPath returns the SQLite file location inside DataDir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "handraw.db")
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
