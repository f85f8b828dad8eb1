package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matheus3301/koichat/internal/history"
)

// Environment overrides read from the process or from a .env file next to
// the config file. Process variables win.
const (
	EnvAPIURL      = "KOICHAT_API_URL"
	EnvRealtimeURL = "KOICHAT_REALTIME_URL"
)

const (
	DefaultAPIURL         = "http://localhost:8080"
	DefaultRequestTimeout = 15 * time.Second
	DefaultPingInterval   = 30 * time.Second
	DefaultPongWait       = 60 * time.Second
)

// Config represents the global ~/.koichat/config.toml.
type Config struct {
	DefaultProfile string   `toml:"default_profile"`
	Backend        Backend  `toml:"backend"`
	Realtime       Realtime `toml:"realtime"`
	History        History  `toml:"history"`
	Display        Display  `toml:"display"`
}

// Backend locates the REST API and the realtime endpoint.
type Backend struct {
	APIURL         string        `toml:"api_url"`
	RealtimeURL    string        `toml:"realtime_url"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// Realtime tunes websocket keepalive.
type Realtime struct {
	PingInterval time.Duration `toml:"ping_interval"`
	PongWait     time.Duration `toml:"pong_wait"`
}

// History selects the end-of-history rule.
type History struct {
	EndBoundary string `toml:"end_boundary"`
}

// Display controls rendering.
type Display struct {
	Timezone string `toml:"timezone"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEffective reads the config at path, tolerating a missing file, applies
// environment overrides and defaults, and validates the result.
func LoadEffective(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.applyEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyEnv(dotenv string) error {
	file, err := godotenv.Read(dotenv)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", dotenv, err)
	}
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return file[key]
	}
	if v := lookup(EnvAPIURL); v != "" {
		c.Backend.APIURL = v
	}
	if v := lookup(EnvRealtimeURL); v != "" {
		c.Backend.RealtimeURL = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Backend.APIURL == "" {
		c.Backend.APIURL = DefaultAPIURL
	}
	if c.Backend.RealtimeURL == "" {
		c.Backend.RealtimeURL = DeriveRealtimeURL(c.Backend.APIURL)
	}
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = DefaultRequestTimeout
	}
	if c.Realtime.PingInterval <= 0 {
		c.Realtime.PingInterval = DefaultPingInterval
	}
	if c.Realtime.PongWait <= 0 {
		c.Realtime.PongWait = DefaultPongWait
	}
	if c.History.EndBoundary == "" {
		c.History.EndBoundary = string(history.BoundaryTotalPages)
	}
	if c.Display.Timezone == "" {
		c.Display.Timezone = "Local"
	}
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if err := checkURL(c.Backend.APIURL, "http", "https"); err != nil {
		return fmt.Errorf("backend.api_url: %w", err)
	}
	if err := checkURL(c.Backend.RealtimeURL, "ws", "wss"); err != nil {
		return fmt.Errorf("backend.realtime_url: %w", err)
	}
	if c.Realtime.PongWait <= c.Realtime.PingInterval {
		return fmt.Errorf("realtime.pong_wait (%s) must exceed ping_interval (%s)", c.Realtime.PongWait, c.Realtime.PingInterval)
	}
	if _, err := c.Boundary(); err != nil {
		return fmt.Errorf("history.end_boundary: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("display.timezone: %w", err)
	}
	return nil
}

// Boundary returns the parsed end-of-history rule.
func (c *Config) Boundary() (history.Boundary, error) {
	return history.ParseBoundary(c.History.EndBoundary)
}

// Location returns the display time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Display.Timezone == "" || c.Display.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Display.Timezone)
}

// DeriveRealtimeURL maps an http(s) API root to the ws(s) /ws endpoint on the
// same host.
func DeriveRealtimeURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String()
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must be an absolute %s URL", raw, strings.Join(schemes, "/"))
}
