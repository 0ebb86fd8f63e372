package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// AIConfig describes the external language-model endpoint used by the
// generation runner.
type AIConfig struct {
	// Endpoint is the HTTP URL of the completion service.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Model is the model identifier sent with each request.
	Model string `yaml:"model" json:"model"`
	// CooldownSeconds is the minimum gap between generation runs per course.
	CooldownSeconds int `yaml:"cooldown_seconds" json:"cooldown_seconds"`
	// TimeoutSeconds bounds a single generation request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// PageConfig is the default page geometry for new lesson pages, in pixels.
type PageConfig struct {
	WidthPx      int `yaml:"width_px" json:"width_px"`
	HeightPx     int `yaml:"height_px" json:"height_px"`
	MarginTop    int `yaml:"margin_top" json:"margin_top"`
	MarginRight  int `yaml:"margin_right" json:"margin_right"`
	MarginBottom int `yaml:"margin_bottom" json:"margin_bottom"`
	MarginLeft   int `yaml:"margin_left" json:"margin_left"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used when rendering imported timestamps.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataPath is the SQLite database file holding course rows.
	DataPath string `yaml:"data_path" json:"data_path"`

	// FlushCron is a cron-style schedule string (e.g. "@every 30s") that
	// drives the autosave flush of staged section drafts.
	FlushCron string `yaml:"flush_cron" json:"flush_cron"`

	// Page holds the default lesson-page geometry.
	Page PageConfig `yaml:"page" json:"page"`

	// AI configures the external generation service.
	AI AIConfig `yaml:"ai" json:"ai"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		Timezone: "Europe/Berlin",
		DataPath: "./var/coursebuilder.db",
		FlushCron: "@every 30s",
		Page: PageConfig{
			WidthPx:      794,
			HeightPx:     1123,
			MarginTop:    96,
			MarginRight:  64,
			MarginBottom: 96,
			MarginLeft:   64,
		},
		AI: AIConfig{
			Endpoint:        "",
			Model:           "course-writer-v1",
			CooldownSeconds: 30,
			TimeoutSeconds:  60,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.DataPath == "" {
		c.DataPath = def.DataPath
	}
	if c.FlushCron == "" {
		c.FlushCron = def.FlushCron
	}
	if c.Page.WidthPx <= 0 {
		c.Page.WidthPx = def.Page.WidthPx
	}
	if c.Page.HeightPx <= 0 {
		c.Page.HeightPx = def.Page.HeightPx
	}
	if c.Page.MarginTop < 0 {
		c.Page.MarginTop = def.Page.MarginTop
	}
	if c.Page.MarginRight < 0 {
		c.Page.MarginRight = def.Page.MarginRight
	}
	if c.Page.MarginBottom < 0 {
		c.Page.MarginBottom = def.Page.MarginBottom
	}
	if c.Page.MarginLeft < 0 {
		c.Page.MarginLeft = def.Page.MarginLeft
	}
	if c.AI.Model == "" {
		c.AI.Model = def.AI.Model
	}
	if c.AI.CooldownSeconds <= 0 {
		c.AI.CooldownSeconds = def.AI.CooldownSeconds
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = def.AI.TimeoutSeconds
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".coursebuilder-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
