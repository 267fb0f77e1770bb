package config

import (
	"time"

	"github.com/nkkko/arrivald/internal/api"
	"github.com/nkkko/arrivald/internal/devices"
	"github.com/nkkko/arrivald/internal/eventsource"
	"github.com/nkkko/arrivald/internal/logging"
	"github.com/nkkko/arrivald/internal/storage/badger"
	"github.com/nkkko/arrivald/internal/telemetry"
)

// ToStorageConfig converts to badger storage config
func (c *Config) ToStorageConfig() badger.Config {
	return badger.Config{
		DataDir:    c.Storage.DataDir,
		InMemory:   c.Storage.InMemory,
		SyncWrites: c.Storage.SyncWrites,
		GCInterval: time.Duration(c.Storage.GCIntervalMinutes) * time.Minute,
	}
}

// ToDevicesConfig converts to device store config
func (c *Config) ToDevicesConfig() devices.Config {
	return devices.Config{
		CacheSize:        c.Devices.CacheSize,
		CacheTTL:         time.Duration(c.Devices.CacheTTLSeconds) * time.Second,
		MaxPropertyBytes: c.Devices.MaxPropertyBytes,
	}
}

// ToHubConfig converts to notification hub config
func (c *Config) ToHubConfig() eventsource.Config {
	return eventsource.Config{
		MaxBlocks: c.Hub.MaxBlocks,
	}
}

// ToAPIConfig converts to API config
func (c *Config) ToAPIConfig() api.Config {
	return api.Config{
		Addr:         c.Server.Addr,
		MaxBodySize:  int64(c.Server.MaxBodySize),
		ReadTimeout:  time.Duration(c.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(c.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(c.Server.IdleTimeout) * time.Second,
		CORSOrigins:  c.Server.CORSOrigins,
	}
}

// ToLoggingConfig converts to logging config
func (c *Config) ToLoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()

	switch c.Logging.Level {
	case "debug":
		cfg.Level = logging.LevelDebug
	case "warn":
		cfg.Level = logging.LevelWarn
	case "error":
		cfg.Level = logging.LevelError
	default:
		cfg.Level = logging.LevelInfo
	}

	if c.Logging.Format == "console" {
		cfg.Format = logging.FormatConsole
	}
	cfg.IncludeCaller = c.Logging.IncludeCaller
	if c.Logging.GlobalFields != nil {
		cfg.GlobalFields = c.Logging.GlobalFields
	}
	return cfg
}

// ToTelemetryConfig converts to telemetry config
func (c *Config) ToTelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:       c.Telemetry.Enabled,
		ServiceName:   c.Telemetry.ServiceName,
		Endpoint:      c.Telemetry.Endpoint,
		SamplingRatio: c.Telemetry.SamplingRatio,
		Timeout:       5 * time.Second,
		Attributes:    c.Telemetry.Attributes,
	}
}
