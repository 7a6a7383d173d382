package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
)

// Config is the static daemon configuration
type Config struct {
	Monitor MonitorConfig `toml:"monitor"`
	Feed    FeedConfig    `toml:"feed"`
	Report  ReportConfig  `toml:"report"`
	Output  OutputConfig  `toml:"output"`
	Server  ServerConfig  `toml:"server"`
	History HistoryConfig `toml:"history"`
	Logging LoggingConfig `toml:"logging"`
}

// MonitorConfig describes the no-fly zone and the polling cadence.
// Coordinates and radius are in feed units (millimetres).
type MonitorConfig struct {
	CentreX        float64       `toml:"centre_x"`
	CentreY        float64       `toml:"centre_y"`
	Radius         float64       `toml:"radius"`
	PollInterval   time.Duration `toml:"poll_interval"`
	ClearoutWindow time.Duration `toml:"clearout_window"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// FeedConfig holds the upstream endpoints
type FeedConfig struct {
	DronesURL string `toml:"drones_url"`
	PilotsURL string `toml:"pilots_url"`
	UserAgent string `toml:"user_agent"`
}

// ReportConfig controls rendering of report entries
type ReportConfig struct {
	Precision  int     `toml:"precision"`
	Divisor    float64 `toml:"divisor"`
	TimeLayout string  `toml:"time_layout"`
	Timezone   string  `toml:"timezone"`
}

// OutputConfig is where the report file is written
type OutputConfig struct {
	Path string `toml:"path"`
}

// ServerConfig configures the optional HTTP API
type ServerConfig struct {
	Enabled            bool     `toml:"enabled"`
	ListenAddr         string   `toml:"listen_addr"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// HistoryConfig configures the optional SQLite sightings archive
type HistoryConfig struct {
	Enabled   bool          `toml:"enabled"`
	Path      string        `toml:"path"`
	Retention time.Duration `toml:"retention"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration for the Reaktor birdnest feed
func Default() Config {
	return Config{
		Monitor: MonitorConfig{
			CentreX:        250_000,
			CentreY:        250_000,
			Radius:         100_000,
			PollInterval:   2 * time.Second,
			ClearoutWindow: 10 * time.Minute,
			RequestTimeout: 5 * time.Second,
		},
		Feed: FeedConfig{
			DronesURL: "http://assignments.reaktor.com/birdnest/drones",
			PilotsURL: "http://assignments.reaktor.com/birdnest/pilots",
			UserAgent: "birdnest/1.0",
		},
		Report: ReportConfig{
			Precision:  1,
			Divisor:    1000,
			TimeLayout: "15:04:05 MST",
			Timezone:   "UTC",
		},
		Output: OutputConfig{
			Path: "birdnest.json",
		},
		Server: ServerConfig{
			Enabled:    false,
			ListenAddr: ":8080",
		},
		History: HistoryConfig{
			Enabled:   false,
			Path:      "birdnest.db",
			Retention: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path yields the
// defaults. Unknown keys are rejected so typos do not silently fall back.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Monitor.Radius <= 0 {
		errs = append(errs, errors.New("monitor.radius must be > 0"))
	}
	if c.Monitor.PollInterval <= 0 {
		errs = append(errs, errors.New("monitor.poll_interval must be > 0"))
	}
	if c.Monitor.ClearoutWindow <= 0 {
		errs = append(errs, errors.New("monitor.clearout_window must be > 0"))
	}
	if c.Monitor.RequestTimeout <= 0 {
		errs = append(errs, errors.New("monitor.request_timeout must be > 0"))
	}
	if err := validateURL("feed.drones_url", c.Feed.DronesURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("feed.pilots_url", c.Feed.PilotsURL); err != nil {
		errs = append(errs, err)
	}
	if c.Report.Precision < 0 {
		errs = append(errs, errors.New("report.precision must be >= 0"))
	}
	if c.Report.Divisor <= 0 {
		errs = append(errs, errors.New("report.divisor must be > 0"))
	}
	if c.Report.TimeLayout == "" {
		errs = append(errs, errors.New("report.time_layout must be set"))
	}
	if _, err := c.Report.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path must be set"))
	}
	if c.Server.Enabled && c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr must be set when the server is enabled"))
	}
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history.path must be set when history is enabled"))
	}
	if c.History.Retention < 0 {
		errs = append(errs, errors.New("history.retention must be >= 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Location resolves the configured timezone
func (r ReportConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("report.timezone: %w", err)
	}
	return loc, nil
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s must be set", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not an absolute URL: %q", key, raw)
	}
	return nil
}
