package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// PlaceholderAPIKey is the value shipped in the sample config. It counts as
// no key at all.
const PlaceholderAPIKey = "YOUR_API_KEY_HERE"

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Obsidian ObsidianConfig `toml:"obsidian"`
	Browser  BrowserConfig  `toml:"browser"`
	Page     PageConfig     `toml:"page"`
	Popup    PopupConfig    `toml:"popup"`
	Probe    ProbeConfig    `toml:"probe"`
}

type ObsidianConfig struct {
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
	DefaultBase string `toml:"default_base"`
}

type BrowserConfig struct {
	Headless bool   `toml:"headless"`
	StartURL string `toml:"start_url"`
}

type PageConfig struct {
	// FrameInterval is how long inserted nodes are coalesced before a scan.
	FrameInterval Duration `toml:"frame_interval"`
}

type PopupConfig struct {
	Addr string `toml:"addr"`
}

type ProbeConfig struct {
	// Schedule is a cron spec for the background connectivity probe.
	Schedule string   `toml:"schedule"`
	Timeout  Duration `toml:"timeout"`
}

// Duration is a time.Duration that reads and writes as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Obsidian: ObsidianConfig{
			APIKey:      PlaceholderAPIKey,
			BaseURL:     types.DefaultBaseURL,
			DefaultBase: types.DefaultGroupName,
		},
		Browser: BrowserConfig{
			Headless: false,
			StartURL: "https://x.com/home",
		},
		Page: PageConfig{
			FrameInterval: Duration{16 * time.Millisecond},
		},
		Popup: PopupConfig{
			Addr: "127.0.0.1:27124",
		},
		Probe: ProbeConfig{
			Schedule: "@every 1m",
			Timeout:  Duration{5 * time.Second},
		},
	}
}

// Configuration returns the static Obsidian configuration, and false when
// the file carries no usable API key.
func (c *Config) Configuration() (types.Configuration, bool) {
	key := c.Obsidian.APIKey
	if key == "" || key == PlaceholderAPIKey {
		return types.Configuration{}, false
	}
	return types.Configuration{
		BaseURL:          c.Obsidian.BaseURL,
		APIKey:           key,
		DefaultGroupName: c.Obsidian.DefaultBase,
	}.WithDefaults(), true
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "tweetsaver"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// SettingsPath returns the path of the settings database
func SettingsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.db"), nil
}

// Load reads config from the default path and applies environment
// overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads config from path and applies overrides from the .env file
// beside it and from the process environment.
func LoadFrom(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := cfg.ApplyEnv(EnvPath(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads config from path. Fields missing from the file keep their
// defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
