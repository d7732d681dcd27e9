/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

// Package config loads the YAML configuration of the off-ledger tools: the relay, the
// devnet and the audit exporter.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Route is one directed channel the relay drains.
type Route struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// String returns the channel name of the route.
func (r Route) String() string {
	return r.From + ">" + r.To
}

// Relay configures the message relay.
type Relay struct {
	ID           string        `yaml:"id"`
	PollInterval time.Duration `yaml:"poll_interval"`
	TickInterval time.Duration `yaml:"tick_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseBackoff  time.Duration `yaml:"base_backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	CursorDB     string        `yaml:"cursor_db"`
	MetricsAddr  string        `yaml:"metrics_addr"`
	Routes       []Route       `yaml:"routes"`
}

// Devnet configures the in-process network served by pxctl devnet.
type Devnet struct {
	Listen         string `yaml:"listen"`
	AdminID        string `yaml:"admin_id"`
	ConsentTimeout int64  `yaml:"consent_timeout"`
	RetryBudget    int    `yaml:"retry_budget"`
}

// Audit configures the Postgres export of ledger events.
type Audit struct {
	DSN       string `yaml:"dsn"`
	BatchSize int    `yaml:"batch_size"`
	MaxConns  int32  `yaml:"max_conns"`
}

// Config is the root of the YAML file.
type Config struct {
	LogLevel string            `yaml:"log_level"`
	Ledgers  map[string]string `yaml:"ledgers"`
	Relay    Relay             `yaml:"relay"`
	Devnet   Devnet            `yaml:"devnet"`
	Audit    Audit             `yaml:"audit"`
}

// DefaultRoutes are the channels between the consent, health and market ledgers.
// health>health carries the provenance entries of the access gate.
var DefaultRoutes = []Route{
	{From: "health", To: "consent"},
	{From: "consent", To: "health"},
	{From: "market", To: "consent"},
	{From: "consent", To: "market"},
	{From: "market", To: "health"},
	{From: "health", To: "market"},
	{From: "health", To: "health"},
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "INFO",
		Ledgers:  map[string]string{},
		Relay: Relay{
			ID:           "relay",
			PollInterval: time.Second,
			TickInterval: 10 * time.Second,
			BatchSize:    50,
			MaxAttempts:  5,
			BaseBackoff:  200 * time.Millisecond,
			MaxBackoff:   10 * time.Second,
			CursorDB:     "pxrelay.db",
			MetricsAddr:  ":9102",
			Routes:       DefaultRoutes,
		},
		Devnet: Devnet{
			Listen:  ":8080",
			AdminID: "admin",
		},
		Audit: Audit{
			BatchSize: 200,
			MaxConns:  4,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if len(path) == 0 {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %v", path)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	if cfg.Ledgers == nil {
		cfg.Ledgers = map[string]string{}
	}
	return cfg, cfg.Validate()
}

// Validate checks the relay settings.
func (c Config) Validate() error {
	r := c.Relay
	if len(r.ID) == 0 {
		return errors.New("relay.id is required")
	}
	if r.PollInterval <= 0 || r.TickInterval <= 0 {
		return errors.New("relay intervals must be positive")
	}
	if r.BatchSize <= 0 {
		return errors.New("relay.batch_size must be positive")
	}
	if r.MaxAttempts <= 0 {
		return errors.New("relay.max_attempts must be positive")
	}
	if r.BaseBackoff <= 0 || r.MaxBackoff < r.BaseBackoff {
		return errors.New("relay backoff must satisfy 0 < base_backoff <= max_backoff")
	}
	seen := map[string]bool{}
	for _, route := range r.Routes {
		if len(route.From) == 0 || len(route.To) == 0 {
			return errors.Errorf("route %v has an empty end", route)
		}
		if seen[route.String()] {
			return errors.Errorf("duplicate route %v", route)
		}
		seen[route.String()] = true
	}
	return nil
}

// LedgerNames returns the ledgers named by the routes, in route order.
func (r Relay) LedgerNames() []string {
	names := []string{}
	seen := map[string]bool{}
	for _, route := range r.Routes {
		for _, name := range []string{route.From, route.To} {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
