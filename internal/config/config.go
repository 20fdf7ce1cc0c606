// File: internal/config/config.go
package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

// LoopbackHost is the only database host the listener connects to.
const LoopbackHost = "127.0.0.1"

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Listener ListenerConfig `mapstructure:"listener"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig describes the PostgreSQL instance both connections use
type DatabaseConfig struct {
	Port           int           `mapstructure:"port"`
	Name           string        `mapstructure:"name"`
	SSLMode        string        `mapstructure:"sslmode"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ListenerConfig contains notification listener configuration
type ListenerConfig struct {
	Channel             string        `mapstructure:"channel"`
	NotificationTimeout time.Duration `mapstructure:"notification_timeout"`
	Policy              string        `mapstructure:"policy"` // last, all
}

// StorageConfig contains log table configuration
type StorageConfig struct {
	Type             string `mapstructure:"type"` // postgres, sqlite
	Table            string `mapstructure:"table"`
	ConnectionString string `mapstructure:"connection_string"` // sqlite only
}

// ServerConfig contains the metrics HTTP server configuration
type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	Host          string `mapstructure:"host"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, stderr, file
	File   string `mapstructure:"file"`
}

// DSN returns a keyword/value connection string understood by both lib/pq
// and pgx. Credentials come from the driver's PG* environment variables.
func (d DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + LoopbackHost,
		"port=" + strconv.Itoa(d.Port),
		"dbname=" + quoteDSNValue(d.Name),
	}
	if d.SSLMode != "" {
		parts = append(parts, "sslmode="+d.SSLMode)
	}
	if d.ConnectTimeout > 0 {
		secs := int(d.ConnectTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		parts = append(parts, "connect_timeout="+strconv.Itoa(secs))
	}
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// SYMBIOTIC_LISTENER_POLICY overrides listener.policy, and so on
	v.SetEnvPrefix("SYMBIOTIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "symbiotic-listener")
	v.SetDefault("app.environment", "development")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.connect_timeout", "10s")

	v.SetDefault("listener.channel", "")
	v.SetDefault("listener.notification_timeout", "5s")
	v.SetDefault("listener.policy", "last")

	v.SetDefault("storage.type", "postgres")
	v.SetDefault("storage.table", "symbiotic.log")
	v.SetDefault("storage.connection_string", "")

	v.SetDefault("server.port", 9187)
	v.SetDefault("server.host", LoopbackHost)
	v.SetDefault("server.enable_metrics", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file", "")
}

// ApplyArgs applies the positional <port> <database_name> <channel> arguments
func (c *Config) ApplyArgs(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("expected 3 arguments <port> <database_name> <channel>, got %d", len(args))
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", args[0], err)
	}

	c.Database.Port = port
	c.Database.Name = args[1]
	c.Listener.Channel = args[2]
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return invalid("Database port must be between 1 and 65535", strconv.Itoa(c.Database.Port))
	}
	if c.Database.Name == "" {
		return invalid("Database name is required")
	}
	if c.Listener.Channel == "" {
		return invalid("Listener channel is required")
	}
	if c.Listener.NotificationTimeout <= 0 {
		return invalid("Listener notification timeout must be positive")
	}
	switch strings.ToLower(c.Listener.Policy) {
	case "last", "all":
	default:
		return invalid("Unsupported listener policy", c.Listener.Policy+" (supported: last, all)")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if c.Server.EnableMetrics && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return invalid("Server port must be between 1 and 65535", strconv.Itoa(c.Server.Port))
	}
	return nil
}

// StorageTypes lists the accepted storage.type values
var StorageTypes = []string{"postgres", "postgresql", "sqlite"}

func (s StorageConfig) validate() error {
	typ := strings.ToLower(s.Type)
	if !slices.Contains(StorageTypes, typ) {
		return invalid("Unsupported storage type", fmt.Sprintf("%q (supported: %s)", s.Type, strings.Join(StorageTypes, ", ")))
	}

	if s.Table == "" {
		return invalid("Storage table is required")
	}
	parts := strings.Split(s.Table, ".")
	if len(parts) > 2 || slices.Contains(parts, "") {
		return invalid("Invalid log table", fmt.Sprintf("expected table or schema.table, got %q", s.Table))
	}

	if typ == "sqlite" && s.ConnectionString == "" {
		return invalid("Storage connection string is required for sqlite")
	}
	return nil
}

func invalid(message string, details ...string) error {
	return utils.NewAppError(utils.ErrCodeValidation, message, details...)
}
