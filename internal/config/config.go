package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "GEKO"
	defaultHTTPAddress        = "0.0.0.0:3002"
	defaultReadTimeout        = 10 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultDatabaseDriver     = "sqlite"
	defaultDatabasePath       = "geko.db"
	defaultMaxOpenConns       = 10
	defaultAuthMode           = AuthModeHeader
	defaultTokenTTL           = 30 * time.Minute
	defaultBcryptCost         = 12
	defaultSessionCookie      = "geko_session"
	defaultLogLevel           = "info"
	defaultProbeURL           = "https://www.google.com"
	defaultProbeTimeout       = 30 * time.Second
	defaultAuthRatePerMinute  = 20
	defaultAllowedOriginsList = "*"
)

// Identity resolution strategies.
const (
	AuthModeHeader = "header"
	AuthModeToken  = "token"
)

// AppConfig captures runtime configuration for the gateway.
type AppConfig struct {
	HTTPAddress         string
	HTTPReadTimeout     time.Duration
	HTTPShutdownTimeout time.Duration
	HTTPTrustedProxies  []string

	DatabaseDriver       string
	DatabasePath         string
	DatabaseDSN          string
	DatabaseMaxOpenConns int

	AuthMode          string
	AuthSigningSecret string
	AuthTokenTTL      time.Duration
	AuthBcryptCost    int
	AuthCookieName    string

	LogLevel       string
	LogDevelopment bool

	HealthProbeURL     string
	HealthProbeTimeout time.Duration

	RateLimitAuthPerMinute int
	CORSAllowedOrigins     []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.read_timeout", defaultReadTimeout)
	configViper.SetDefault("http.shutdown_timeout", defaultShutdownTimeout)
	configViper.SetDefault("http.trusted_proxies", "")
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	configViper.SetDefault("auth.mode", defaultAuthMode)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("auth.bcrypt_cost", defaultBcryptCost)
	configViper.SetDefault("auth.cookie_name", defaultSessionCookie)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.development", false)
	configViper.SetDefault("health.probe_url", defaultProbeURL)
	configViper.SetDefault("health.probe_timeout", defaultProbeTimeout)
	configViper.SetDefault("ratelimit.auth_per_minute", defaultAuthRatePerMinute)
	configViper.SetDefault("cors.allowed_origins", defaultAllowedOriginsList)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:            configViper.GetString("http.address"),
		HTTPReadTimeout:        configViper.GetDuration("http.read_timeout"),
		HTTPShutdownTimeout:    configViper.GetDuration("http.shutdown_timeout"),
		HTTPTrustedProxies:     splitList(configViper.GetString("http.trusted_proxies")),
		DatabaseDriver:         strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:           configViper.GetString("database.path"),
		DatabaseDSN:            configViper.GetString("database.dsn"),
		DatabaseMaxOpenConns:   configViper.GetInt("database.max_open_conns"),
		AuthMode:               strings.ToLower(strings.TrimSpace(configViper.GetString("auth.mode"))),
		AuthSigningSecret:      configViper.GetString("auth.signing_secret"),
		AuthTokenTTL:           configViper.GetDuration("auth.token_ttl"),
		AuthBcryptCost:         configViper.GetInt("auth.bcrypt_cost"),
		AuthCookieName:         configViper.GetString("auth.cookie_name"),
		LogLevel:               configViper.GetString("log.level"),
		LogDevelopment:         configViper.GetBool("log.development"),
		HealthProbeURL:         configViper.GetString("health.probe_url"),
		HealthProbeTimeout:     configViper.GetDuration("health.probe_timeout"),
		RateLimitAuthPerMinute: configViper.GetInt("ratelimit.auth_per_minute"),
		CORSAllowedOrigins:     splitList(configViper.GetString("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// TokenAuthEnabled reports whether callers are identified by session tokens.
func (c AppConfig) TokenAuthEnabled() bool {
	return c.AuthMode == AuthModeToken
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	for _, proxy := range c.HTTPTrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("http.trusted_proxies entry %q is not an IP or CIDR", proxy)
			}
		}
	}
	switch c.DatabaseDriver {
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	switch c.AuthMode {
	case AuthModeHeader:
	case AuthModeToken:
		if strings.TrimSpace(c.AuthSigningSecret) == "" {
			return fmt.Errorf("auth.signing_secret is required when auth.mode is token")
		}
	default:
		return fmt.Errorf("auth.mode must be header or token, got %q", c.AuthMode)
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.RateLimitAuthPerMinute < 0 {
		return fmt.Errorf("ratelimit.auth_per_minute must not be negative")
	}
	if strings.TrimSpace(c.HealthProbeURL) == "" {
		return fmt.Errorf("health.probe_url is required")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
