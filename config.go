package leadwatch

import (
	"github.com/gushwork/leadwatch/internal/config"
)

// Config is the top-level leadwatch configuration. Re-exported from internal.
type Config = config.Config

// CollectorConfig identifies the remote collector and this customer.
type CollectorConfig = config.CollectorConfig

// CaptureConfig controls discovery and envelope composition.
type CaptureConfig = config.CaptureConfig

// DeliveryConfig controls retry, queueing and draining.
type DeliveryConfig = config.DeliveryConfig

// BrowserConfig controls the Chrome instance.
type BrowserConfig = config.BrowserConfig

// PageConfig defines one page to watch.
type PageConfig = config.PageConfig

// AdminConfig controls the optional diagnostics endpoint.
type AdminConfig = config.AdminConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}
