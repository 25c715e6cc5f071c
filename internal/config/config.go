// Package config handles leadwatch configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level leadwatch configuration.
type Config struct {
	Collector CollectorConfig `yaml:"collector"`
	Capture   CaptureConfig   `yaml:"capture"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Browser   BrowserConfig   `yaml:"browser"`
	Pages     []PageConfig    `yaml:"pages"`
	Admin     AdminConfig     `yaml:"admin"`
	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose"`
}

// CollectorConfig identifies the remote collector and this customer.
type CollectorConfig struct {
	URL          string `yaml:"url"`
	AuthHeader   string `yaml:"auth_header"`
	AuthToken    string `yaml:"auth_token"`
	ClientID     string `yaml:"client_id"`
	CustomerName string `yaml:"customer_name"`
}

// CaptureConfig controls discovery and envelope composition.
type CaptureConfig struct {
	HoneypotName   string        `yaml:"honeypot_name"`
	SessionKey     string        `yaml:"session_key"`
	JourneyKey     string        `yaml:"journey_key"`
	MaxJourney     int           `yaml:"max_journey"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// DeliveryConfig controls retry, queueing and draining.
type DeliveryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	BackoffUnit   time.Duration `yaml:"backoff_unit"`
	DrainDelay    time.Duration `yaml:"drain_delay"`
	Timeout       time.Duration `yaml:"timeout"`
	QueuePath     string        `yaml:"queue_path"`
	QueueCapacity int           `yaml:"queue_capacity"`
}

// BrowserConfig controls the Chrome instance.
type BrowserConfig struct {
	Remote  string `yaml:"remote"`
	Headful bool   `yaml:"headful"`
}

// PageConfig defines one page to watch.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// AdminConfig controls the optional diagnostics endpoint.
type AdminConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:9140". Empty disables it.
	Addr string `yaml:"addr"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Collector.AuthHeader == "" {
		c.Collector.AuthHeader = "x-gushwork-auth"
	}
	if c.Collector.ClientID == "" {
		c.Collector.ClientID = "gw_client_default_001"
	}
	if c.Capture.HoneypotName == "" {
		c.Capture.HoneypotName = "_gw_bot_trap"
	}
	if c.Capture.SessionKey == "" {
		c.Capture.SessionKey = "gw_session_id"
	}
	if c.Capture.JourneyKey == "" {
		c.Capture.JourneyKey = "gw_user_journey"
	}
	if c.Capture.MaxJourney <= 0 {
		c.Capture.MaxJourney = 5
	}
	if c.Capture.DebounceWindow <= 0 {
		c.Capture.DebounceWindow = 500 * time.Millisecond
	}
	if c.Delivery.MaxAttempts <= 0 {
		c.Delivery.MaxAttempts = 5
	}
	if c.Delivery.BackoffUnit <= 0 {
		c.Delivery.BackoffUnit = time.Second
	}
	if c.Delivery.DrainDelay <= 0 {
		c.Delivery.DrainDelay = 2 * time.Second
	}
	if c.Delivery.Timeout <= 0 {
		c.Delivery.Timeout = 10 * time.Second
	}
	if c.Delivery.QueuePath == "" {
		c.Delivery.QueuePath = "leadwatch-queue.db"
	}
	if c.Delivery.QueueCapacity <= 0 {
		c.Delivery.QueueCapacity = 10
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Collector.URL == "" {
		return fmt.Errorf("config: collector.url is required")
	}
	seen := make(map[string]bool, len(c.Pages))
	for i, p := range c.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: pages[%d].url is required", i)
		}
		if p.ID != "" && seen[p.ID] {
			return fmt.Errorf("config: duplicate page id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
