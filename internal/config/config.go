package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Autosave AutosaveConfig `json:"autosave"`
	Assembly AssemblyConfig `json:"assembly"`
	Offline  OfflineConfig  `json:"offline"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// AutosaveConfig tunes the auto-save engine.
type AutosaveConfig struct {
	DebounceMs       int `json:"debounce_ms"`
	RetryMaxAttempts int `json:"retry_max_attempts"`
	RetryBaseDelayMs int `json:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `json:"retry_max_delay_ms"`
}

// AssemblyConfig holds the court filing limits.
type AssemblyConfig struct {
	MaxFileSizeBytes int    `json:"max_file_size_bytes"`
	MaxPages         int    `json:"max_pages"`
	PageSize         string `json:"page_size"`
}

// OfflineConfig tunes the offline queue replayer.
type OfflineConfig struct {
	ReplaySchedule string `json:"replay_schedule"`
}

// LoggingConfig selects the minimum log level (debug, info, warn, error).
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "tro_packet_engine",
			SSLMode: "disable",
		},
		Autosave: AutosaveConfig{
			DebounceMs:       2000,
			RetryMaxAttempts: 5,
			RetryBaseDelayMs: 5000,
			RetryMaxDelayMs:  60000,
		},
		Assembly: AssemblyConfig{
			MaxFileSizeBytes: 25 << 20,
			PageSize:         "Letter",
		},
		Offline: OfflineConfig{
			ReplaySchedule: "@every 1m",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if debounce := os.Getenv("AUTOSAVE_DEBOUNCE_MS"); debounce != "" {
		if d, err := strconv.Atoi(debounce); err == nil {
			config.Autosave.DebounceMs = d
		}
	}
	if schedule := os.Getenv("OFFLINE_REPLAY_SCHEDULE"); schedule != "" {
		config.Offline.ReplaySchedule = schedule
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
