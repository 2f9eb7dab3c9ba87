package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Hub      HubConfig      `yaml:"hub"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Worker   WorkerConfig   `yaml:"worker"`
	Chains   []ChainConfig  `yaml:"chains"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig NATS transport configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`        // seconds
	ReconnectWait int    `yaml:"reconnect_wait"` // seconds
	MaxReconnects int    `yaml:"max_reconnects"`
}

// HubConfig request registry configuration
type HubConfig struct {
	MinimumFee       string `yaml:"minimum_fee"` // decimal string, base units
	MaximumFee       string `yaml:"maximum_fee"` // upper bound for admin fee updates
	MaxPromptLength  int    `yaml:"max_prompt_length"`
	DispatchInterval int    `yaml:"dispatch_interval"` // seconds between dispatcher sweeps
	StuckThreshold   int    `yaml:"stuck_threshold"`   // seconds before cross_chain_pending is flagged
}

// GatewayConfig messaging gateway configuration
type GatewayConfig struct {
	// Principal expected on every inbound transport callback. Messages whose
	// sender differs are rejected before reaching the hub or minter.
	TransportPrincipal string `yaml:"transport_principal"`
	SubjectPrefix      string `yaml:"subject_prefix"`
}

// WorkerConfig trusted AI worker identity
type WorkerConfig struct {
	// Bearer token identifying the off-chain AI worker. Read from the
	// AI_WORKER_TOKEN environment variable when empty.
	Token string `yaml:"token"`
}

// ChainConfig seed registration for a destination chain
type ChainConfig struct {
	ChainID        uint32 `yaml:"chainId"`
	Name           string `yaml:"name"`
	MinterEndpoint string `yaml:"minterEndpoint"`
	Enabled        bool   `yaml:"enabled"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

var AppConfig *Config

// LoadConfig loads the configuration file, falling back to CONFIG_PATH and
// then ./config.yaml. Environment variables override the secrets.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return err
	}

	AppConfig = cfg
	log.Printf("✅ Config loaded from %s (%d seed chains)", configPath, len(cfg.Chains))
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Hub.MinimumFee == "" {
		cfg.Hub.MinimumFee = "1000000000000000" // 0.001 in 18-decimal base units
	}
	if cfg.Hub.MaximumFee == "" {
		cfg.Hub.MaximumFee = "100000000000000000"
	}
	if cfg.Hub.MaxPromptLength == 0 {
		cfg.Hub.MaxPromptLength = 1000
	}
	if cfg.Hub.DispatchInterval == 0 {
		cfg.Hub.DispatchInterval = 5
	}
	if cfg.Hub.StuckThreshold == 0 {
		cfg.Hub.StuckThreshold = 600
	}
	if cfg.Gateway.SubjectPrefix == "" {
		cfg.Gateway.SubjectPrefix = "mintgw"
	}
	if cfg.NATS.Timeout == 0 {
		cfg.NATS.Timeout = 10
	}
	if cfg.NATS.ReconnectWait == 0 {
		cfg.NATS.ReconnectWait = 5
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("AI_WORKER_TOKEN"); v != "" {
		cfg.Worker.Token = v
	}
	if v := os.Getenv("GATEWAY_PRINCIPAL"); v != "" {
		cfg.Gateway.TransportPrincipal = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (or DATABASE_DSN env)")
	}
	if cfg.Worker.Token == "" {
		log.Printf("⚠️ worker.token not set - AI worker callbacks will be rejected")
	}
	if cfg.Gateway.TransportPrincipal == "" {
		return fmt.Errorf("gateway.transport_principal is required (or GATEWAY_PRINCIPAL env)")
	}
	return nil
}
