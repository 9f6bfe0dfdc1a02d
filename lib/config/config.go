// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Channel holds the per-channel sync settings. Zero values mean
// "feature off" (no polling, no delta feed), except OptimisticTimeout
// where zero means "library default".
type Channel struct {
	// RefreshInterval enables periodic snapshot re-fetch. Zero
	// disables polling.
	RefreshInterval Duration `yaml:"refresh_interval"`

	// OptimisticTimeout bounds the speculative window for optimistic
	// updates submitted without a confirmation.
	OptimisticTimeout Duration `yaml:"optimistic_timeout"`

	// OrderedLog selects the ordered-log merge strategy (dedupe by
	// record id, sort by timestamp) instead of full replacement.
	OrderedLog bool `yaml:"ordered_log"`

	// EnableDeltas opens the auxiliary "<channel>.delta" feed.
	EnableDeltas bool `yaml:"enable_deltas"`

	// NonBlocking subscribes without awaiting the initial ack.
	NonBlocking bool `yaml:"non_blocking"`

	// OptimisticSubscriptions uses the low-latency, non-confirmed
	// subscribe path.
	OptimisticSubscriptions bool `yaml:"optimistic_subscriptions"`

	// Debug enables verbose channel logging.
	Debug bool `yaml:"debug"`
}

// ChannelOverrides mirrors Channel with optional fields, so a
// per-channel section only overrides what it mentions.
type ChannelOverrides struct {
	RefreshInterval         *Duration `yaml:"refresh_interval,omitempty"`
	OptimisticTimeout       *Duration `yaml:"optimistic_timeout,omitempty"`
	OrderedLog              *bool     `yaml:"ordered_log,omitempty"`
	EnableDeltas            *bool     `yaml:"enable_deltas,omitempty"`
	NonBlocking             *bool     `yaml:"non_blocking,omitempty"`
	OptimisticSubscriptions *bool     `yaml:"optimistic_subscriptions,omitempty"`
	Debug                   *bool     `yaml:"debug,omitempty"`
}

// Config is the sync core configuration.
type Config struct {
	// SessionID is the default scope for channels that do not bind to
	// a specific resource.
	SessionID string `yaml:"session_id"`

	// CacheDir is where cached snapshots and unread counters persist.
	// Empty disables local persistence.
	CacheDir string `yaml:"cache_dir"`

	// Defaults apply to every channel not overridden below.
	Defaults Channel `yaml:"defaults"`

	// Channels holds per-channel overrides keyed by channel name
	// (e.g. "state.messages").
	Channels map[string]ChannelOverrides `yaml:"channels"`
}

// Default returns the built-in configuration used as the base before
// the file is applied.
func Default() *Config {
	return &Config{
		SessionID: "global",
		Defaults: Channel{
			OptimisticTimeout: Duration(10 * time.Second),
		},
	}
}

// Load reads configuration from the file named by ATRIUM_SYNC_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv("ATRIUM_SYNC_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("config: ATRIUM_SYNC_CONFIG environment variable not set; " +
			"set it to the path of your sync.yaml config file")
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path, merged over Default().
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.CacheDir = os.ExpandEnv(cfg.CacheDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// For returns the effective settings for a channel: the defaults with
// that channel's overrides applied.
func (c *Config) For(channel string) Channel {
	effective := c.Defaults

	overrides, ok := c.Channels[channel]
	if !ok {
		return effective
	}
	if overrides.RefreshInterval != nil {
		effective.RefreshInterval = *overrides.RefreshInterval
	}
	if overrides.OptimisticTimeout != nil {
		effective.OptimisticTimeout = *overrides.OptimisticTimeout
	}
	if overrides.OrderedLog != nil {
		effective.OrderedLog = *overrides.OrderedLog
	}
	if overrides.EnableDeltas != nil {
		effective.EnableDeltas = *overrides.EnableDeltas
	}
	if overrides.NonBlocking != nil {
		effective.NonBlocking = *overrides.NonBlocking
	}
	if overrides.OptimisticSubscriptions != nil {
		effective.OptimisticSubscriptions = *overrides.OptimisticSubscriptions
	}
	if overrides.Debug != nil {
		effective.Debug = *overrides.Debug
	}
	return effective
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.SessionID == "" {
		errs = append(errs, fmt.Errorf("session_id is required"))
	}
	if c.Defaults.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("defaults.refresh_interval must not be negative"))
	}
	if c.Defaults.OptimisticTimeout < 0 {
		errs = append(errs, fmt.Errorf("defaults.optimistic_timeout must not be negative"))
	}
	for name, overrides := range c.Channels {
		if name == "" {
			errs = append(errs, fmt.Errorf("channels: empty channel name"))
		}
		if overrides.RefreshInterval != nil && *overrides.RefreshInterval < 0 {
			errs = append(errs, fmt.Errorf("channels.%s.refresh_interval must not be negative", name))
		}
		if overrides.OptimisticTimeout != nil && *overrides.OptimisticTimeout < 0 {
			errs = append(errs, fmt.Errorf("channels.%s.optimistic_timeout must not be negative", name))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
