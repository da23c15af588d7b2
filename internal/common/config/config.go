package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/amoylab/boom/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// BoomConfig represents the boom server configuration
	BoomConfig struct {
		DevMode bool          `yaml:"devmode" toml:"devmode"`
		Host    string        `yaml:"host" toml:"host"`
		Port    string        `yaml:"port" toml:"port"`
		Secure  bool          `yaml:"secure" toml:"secure"`
		SSL     SSLConfig     `yaml:"ssl" toml:"ssl"`
		API     APIConfig     `yaml:"api" toml:"api"`
		Socket  SocketConfig  `yaml:"socket" toml:"socket"`
		App     AppConfig     `yaml:"app" toml:"app"`
		Store   StoreConfig   `yaml:"store" toml:"store"`
		Logger  LoggerConfig  `yaml:"logger" toml:"logger"`
		Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
		Tracing TracingConfig `yaml:"tracing" toml:"tracing"`
	}

	// SSLConfig holds the TLS material used when Secure is set
	SSLConfig struct {
		CertPath      string `yaml:"cert_path" toml:"cert_path"`
		KeyPath       string `yaml:"key_path" toml:"key_path"`
		CertChainPath string `yaml:"cert_chain_path" toml:"cert_chain_path"`
		Passphrase    string `yaml:"passphrase" toml:"passphrase"`
	}

	// APIConfig represents the control API configuration
	APIConfig struct {
		Auth TokenAuthConfig `yaml:"auth" toml:"auth"`
		CORS CORSConfig      `yaml:"cors" toml:"cors"`
	}

	// TokenAuthConfig holds a static bearer token, empty disables the check
	TokenAuthConfig struct {
		Token string `yaml:"token" toml:"token"`
	}

	// CORSConfig holds fixed CORS response headers
	CORSConfig struct {
		Enabled      bool   `yaml:"enabled" toml:"enabled"`
		AllowOrigin  string `yaml:"allow_origin" toml:"allow_origin"`
		AllowMethods string `yaml:"allow_methods" toml:"allow_methods"`
		AllowHeaders string `yaml:"allow_headers" toml:"allow_headers"`
	}

	// SocketConfig represents the realtime layer configuration
	SocketConfig struct {
		Path           string                     `yaml:"path" toml:"path"`
		Namespaces     map[string]NamespaceConfig `yaml:"namespaces" toml:"namespaces"`
		PingInterval   time.Duration              `yaml:"ping_interval" toml:"ping_interval"`
		PongTimeout    time.Duration              `yaml:"pong_timeout" toml:"pong_timeout"`
		WriteTimeout   time.Duration              `yaml:"write_timeout" toml:"write_timeout"`
		MaxMessageSize int64                      `yaml:"max_message_size" toml:"max_message_size"`
		SendBuffer     int                        `yaml:"send_buffer" toml:"send_buffer"`
		Compression    bool                       `yaml:"compression" toml:"compression"`
		AllowOrigins   []string                   `yaml:"allow_origins" toml:"allow_origins"`
		Auth           SocketAuthConfig           `yaml:"auth" toml:"auth"`
	}

	// NamespaceConfig holds per-namespace options
	NamespaceConfig struct {
		MaxConnections int `yaml:"max_connections" toml:"max_connections"` // 0 means unlimited
	}

	// SocketAuthConfig enables decoding of JWT claims attached to sockets
	SocketAuthConfig struct {
		JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	}

	// AppConfig represents the external application the events are relayed to
	AppConfig struct {
		BaseURL string          `yaml:"base_url" toml:"base_url"`
		Timeout time.Duration   `yaml:"timeout" toml:"timeout"` // 0 means no client timeout
		Auth    TokenAuthConfig `yaml:"auth" toml:"auth"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level" toml:"level"`             // debug, info, warn, error
		Format     string `yaml:"format" toml:"format"`           // json, console
		Output     string `yaml:"output" toml:"output"`           // stdout, file
		FilePath   string `yaml:"file_path" toml:"file_path"`     // path to log file when output is file
		MaxSize    int    `yaml:"max_size" toml:"max_size"`       // max size of log file in MB
		MaxBackups int    `yaml:"max_backups" toml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age" toml:"max_age"`         // max age of backup files in days
		Compress   bool   `yaml:"compress" toml:"compress"`       // whether to compress backup files
		Color      bool   `yaml:"color" toml:"color"`             // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace" toml:"stacktrace"`   // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone" toml:"time_zone"`     // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format" toml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// MetricsConfig represents the prometheus configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled" toml:"enabled"`
		Path      string    `yaml:"path" toml:"path"`
		Namespace string    `yaml:"namespace" toml:"namespace"`
		Buckets   []float64 `yaml:"buckets" toml:"buckets"`
	}

	// TracingConfig represents OpenTelemetry tracing configuration
	TracingConfig struct {
		Enabled     bool              `yaml:"enabled" toml:"enabled"`
		ServiceName string            `yaml:"service_name" toml:"service_name"`
		Endpoint    string            `yaml:"endpoint" toml:"endpoint"` // e.g. localhost:4317 or http://localhost:4318
		Protocol    string            `yaml:"protocol" toml:"protocol"` // grpc or http
		Insecure    bool              `yaml:"insecure" toml:"insecure"`
		SamplerRate float64           `yaml:"sampler_rate" toml:"sampler_rate"` // 0.0~1.0
		Environment string            `yaml:"environment" toml:"environment"`
		Headers     map[string]string `yaml:"headers" toml:"headers"`
	}
)

// LoadConfig loads configuration from a YAML or TOML file with environment variable support
func LoadConfig(filename string) (*BoomConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	cfg, err := Parse(resolveEnv(data), filepath.Ext(cfgPath))
	if err != nil {
		return nil, cfgPath, err
	}
	return cfg, cfgPath, nil
}

// Parse decodes raw configuration content, applies defaults and validates it
func Parse(data []byte, ext string) (*BoomConfig, error) {
	var cfg BoomConfig
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode yaml config: %w", err)
		}
	}

	SetDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills in every unset option
func SetDefaults(cfg *BoomConfig) {
	if cfg.Port == "" {
		cfg.Port = "9001"
	}
	if cfg.Socket.Path == "" {
		cfg.Socket.Path = "/ws"
	}
	if cfg.Socket.Namespaces == nil {
		cfg.Socket.Namespaces = make(map[string]NamespaceConfig)
	}
	if _, ok := cfg.Socket.Namespaces[cnst.RootNamespace]; !ok {
		cfg.Socket.Namespaces[cnst.RootNamespace] = NamespaceConfig{}
	}
	if cfg.Socket.PingInterval <= 0 {
		cfg.Socket.PingInterval = 25 * time.Second
	}
	if cfg.Socket.PongTimeout <= 0 {
		cfg.Socket.PongTimeout = 60 * time.Second
	}
	if cfg.Socket.WriteTimeout <= 0 {
		cfg.Socket.WriteTimeout = 10 * time.Second
	}
	if cfg.Socket.MaxMessageSize <= 0 {
		cfg.Socket.MaxMessageSize = 1 << 20
	}
	if cfg.Socket.SendBuffer <= 0 {
		cfg.Socket.SendBuffer = 256
	}
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost/boom"
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = string(cnst.StoreTypeNoop)
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = cnst.DefaultSessionTable
	}
	if cfg.Store.Redis.Prefix == "" {
		cfg.Store.Redis.Prefix = "boom:sockets"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "boom"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cnst.AppName
	}
}

var portRegex = regexp.MustCompile(`([0-9]{2,5})/?$`)

// SanitizePort strips any extra characters around the configured port number
func SanitizePort(port string) (int, error) {
	m := portRegex.FindStringSubmatch(strings.TrimSpace(port))
	if m == nil {
		return 0, fmt.Errorf("invalid port %q", port)
	}
	p, err := strconv.Atoi(m[1])
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("invalid port %q", port)
	}
	return p, nil
}

// Addr returns the listen address
func (c *BoomConfig) Addr() string {
	port, _ := SanitizePort(c.Port)
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// resolveEnv replaces environment variable placeholders in config content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
