// Package config provides configuration for the bridge and registry
// binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Directory backends selectable via DIRECTORY_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRegistry = "registry"
)

// Config holds the bridge configuration.
type Config struct {
	// Agent identity
	AgentID      string
	AgentName    string
	Description  string
	Capabilities []string

	// Server settings
	HTTPPort  int
	PublicURL string

	// Directory
	DirectoryBackend string
	RegistryURL      string
	DatabaseURL      string
	StalenessWindow  time.Duration
	HeartbeatEvery   time.Duration

	// Routing
	TargetTimeout   time.Duration
	RegistryTimeout time.Duration

	// Agent logic
	Logic           string
	AnthropicModel  string
	AnthropicAPIKey string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AgentID:          getEnv("AGENT_ID", "bridge"),
		AgentName:        getEnv("AGENT_NAME", ""),
		Description:      getEnv("AGENT_DESCRIPTION", "A2A bridge agent"),
		Capabilities:     getEnvList("AGENT_CAPABILITIES"),
		HTTPPort:         getEnvInt("HTTP_PORT", 6000),
		PublicURL:        getEnv("PUBLIC_URL", ""),
		DirectoryBackend: getEnv("DIRECTORY_BACKEND", BackendMemory),
		RegistryURL:      getEnv("REGISTRY_URL", ""),
		DatabaseURL:      getEnv("DATABASE_URL", "file:bridge.db?cache=shared&mode=rwc"),
		StalenessWindow:  time.Duration(getEnvInt("STALENESS_WINDOW_MS", 300000)) * time.Millisecond,
		HeartbeatEvery:   time.Duration(getEnvInt("HEARTBEAT_INTERVAL_MS", 60000)) * time.Millisecond,
		TargetTimeout:    time.Duration(getEnvInt("TARGET_TIMEOUT_MS", 30000)) * time.Millisecond,
		RegistryTimeout:  time.Duration(getEnvInt("REGISTRY_TIMEOUT_MS", 10000)) * time.Millisecond,
		Logic:            getEnv("AGENT_LOGIC", "echo"),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}

	if cfg.AgentName == "" {
		cfg.AgentName = cfg.AgentID
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.HTTPPort)
	}
	if cfg.RegistryURL != "" && cfg.DirectoryBackend == BackendMemory && os.Getenv("DIRECTORY_BACKEND") == "" {
		// A registry URL without an explicit backend choice means the
		// deployment wants the shared registry.
		cfg.DirectoryBackend = BackendRegistry
	}
	return cfg
}

// RegistryConfig holds the registry service configuration.
type RegistryConfig struct {
	HTTPPort        int
	DatabaseURL     string
	StalenessWindow time.Duration
	LogLevel        string
	LogFormat       string
}

// LoadRegistry loads the registry service configuration from the environment.
func LoadRegistry() *RegistryConfig {
	_ = godotenv.Load()

	return &RegistryConfig{
		HTTPPort:        getEnvInt("HTTP_PORT", 6900),
		DatabaseURL:     getEnv("DATABASE_URL", "file:registry.db?cache=shared&mode=rwc"),
		StalenessWindow: time.Duration(getEnvInt("STALENESS_WINDOW_MS", 300000)) * time.Millisecond,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
