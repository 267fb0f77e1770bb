package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nkkko/arrivald/internal/logging"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "ARRIVALD_"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server" json:"server"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage" json:"storage"`
	Devices   DevicesConfig   `yaml:"devices" toml:"devices" json:"devices"`
	Hub       HubConfig       `yaml:"hub" toml:"hub" json:"hub"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry" json:"telemetry"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr         string   `yaml:"addr" toml:"addr" json:"addr"`
	MaxBodySize  int      `yaml:"max_body_size" toml:"max_body_size" json:"max_body_size"`
	ReadTimeout  int      `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout"`
	WriteTimeout int      `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout"`
	IdleTimeout  int      `yaml:"idle_timeout" toml:"idle_timeout" json:"idle_timeout"`
	CORSOrigins  []string `yaml:"cors_origins" toml:"cors_origins" json:"cors_origins"`
}

// StorageConfig contains storage engine settings
type StorageConfig struct {
	DataDir           string `yaml:"data_dir" toml:"data_dir" json:"data_dir"`
	InMemory          bool   `yaml:"in_memory" toml:"in_memory" json:"in_memory"`
	SyncWrites        bool   `yaml:"sync_writes" toml:"sync_writes" json:"sync_writes"`
	GCIntervalMinutes int    `yaml:"gc_interval_minutes" toml:"gc_interval_minutes" json:"gc_interval_minutes"`
}

// DevicesConfig contains device property store settings
type DevicesConfig struct {
	CacheSize        int `yaml:"cache_size" toml:"cache_size" json:"cache_size"`
	CacheTTLSeconds  int `yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds" json:"cache_ttl_seconds"`
	MaxPropertyBytes int `yaml:"max_property_bytes" toml:"max_property_bytes" json:"max_property_bytes"`
}

// HubConfig contains notification hub settings
type HubConfig struct {
	MaxBlocks int `yaml:"max_blocks" toml:"max_blocks" json:"max_blocks"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level         string            `yaml:"level" toml:"level" json:"level"`
	Format        string            `yaml:"format" toml:"format" json:"format"`
	IncludeCaller bool              `yaml:"include_caller" toml:"include_caller" json:"include_caller"`
	GlobalFields  map[string]string `yaml:"global_fields" toml:"global_fields" json:"global_fields"`
}

// TelemetryConfig contains OpenTelemetry settings
type TelemetryConfig struct {
	Enabled       bool              `yaml:"enabled" toml:"enabled" json:"enabled"`
	ServiceName   string            `yaml:"service_name" toml:"service_name" json:"service_name"`
	Endpoint      string            `yaml:"endpoint" toml:"endpoint" json:"endpoint"`
	SamplingRatio float64           `yaml:"sampling_ratio" toml:"sampling_ratio" json:"sampling_ratio"`
	Attributes    map[string]string `yaml:"attributes" toml:"attributes" json:"attributes"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodySize:  64 * 1024,
			ReadTimeout:  5,
			WriteTimeout: 10,
			IdleTimeout:  120,
			CORSOrigins:  []string{"*"},
		},
		Storage: StorageConfig{
			DataDir:           "./data",
			SyncWrites:        true,
			GCIntervalMinutes: 10,
		},
		Devices: DevicesConfig{
			CacheSize:        1024,
			CacheTTLSeconds:  300,
			MaxPropertyBytes: 256,
		},
		Hub: HubConfig{
			MaxBlocks: 64,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "json",
			GlobalFields: map[string]string{},
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			ServiceName:   "arrivald",
			Endpoint:      "localhost:4317",
			SamplingRatio: 0.1,
			Attributes:    map[string]string{},
		},
	}
}

// LoadConfigFromFile loads configuration from a YAML, TOML or JSON file,
// chosen by extension. A missing file yields the defaults.
func LoadConfigFromFile(filePath string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("file", filePath).Msg("Configuration file not found, using defaults")
			return config, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".toml":
		err = toml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

// LoadConfig loads configuration from file, environment variables, and flags
func LoadConfig(configFile string, dataDir string, serverAddr string, logLevel string) (*Config, error) {
	var config *Config
	var err error

	if configFile != "" {
		config, err = LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		config = DefaultConfig()
	}

	applyEnvOverrides(config)

	// Command line flags have the highest priority
	if dataDir != "" {
		absDataDir, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for data directory: %w", err)
		}
		config.Storage.DataDir = absDataDir
	}

	if serverAddr != "" {
		config.Server.Addr = serverAddr
	}

	if logLevel != "" {
		config.Logging.Level = logLevel
	}

	return config, config.Validate()
}

// Validate rejects configurations the engine cannot start with
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if !c.Storage.InMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required unless storage.in_memory is set")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Devices.MaxPropertyBytes < 0 {
		return fmt.Errorf("devices.max_property_bytes must not be negative")
	}
	if c.Hub.MaxBlocks < 0 {
		return fmt.Errorf("hub.max_blocks must not be negative")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(config *Config) {
	// Server
	if addr := os.Getenv(EnvPrefix + "SERVER_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if origins := os.Getenv(EnvPrefix + "SERVER_CORS_ORIGINS"); origins != "" {
		config.Server.CORSOrigins = strings.Split(origins, ",")
	}

	// Storage
	if dataDir := os.Getenv(EnvPrefix + "STORAGE_DATA_DIR"); dataDir != "" {
		config.Storage.DataDir = dataDir
	}
	if v, ok := envBool("STORAGE_IN_MEMORY"); ok {
		config.Storage.InMemory = v
	}
	if v, ok := envInt("STORAGE_GC_INTERVAL_MINUTES"); ok {
		config.Storage.GCIntervalMinutes = v
	}

	// Devices
	if v, ok := envInt("DEVICES_CACHE_SIZE"); ok {
		config.Devices.CacheSize = v
	}
	if v, ok := envInt("DEVICES_MAX_PROPERTY_BYTES"); ok {
		config.Devices.MaxPropertyBytes = v
	}

	// Logging
	if level := os.Getenv(EnvPrefix + "LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv(EnvPrefix + "LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	// Telemetry
	if v, ok := envBool("TELEMETRY_ENABLED"); ok {
		config.Telemetry.Enabled = v
	}
	if endpoint := os.Getenv(EnvPrefix + "TELEMETRY_ENDPOINT"); endpoint != "" {
		config.Telemetry.Endpoint = endpoint
	}
}

func envInt(name string) (int, bool) {
	s := os.Getenv(EnvPrefix + name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		log.Warn().Str("var", EnvPrefix+name).Str("value", s).Msg("Ignoring non-integer environment override")
		return 0, false
	}
	return v, true
}

func envBool(name string) (bool, bool) {
	s := os.Getenv(EnvPrefix + name)
	if s == "" {
		return false, false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		log.Warn().Str("var", EnvPrefix+name).Str("value", s).Msg("Ignoring non-boolean environment override")
		return false, false
	}
	return v, true
}
