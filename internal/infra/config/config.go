// Package config loads service settings from environment variables on top
// of development-friendly defaults, decoded with viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig is the root of all service settings, decoded once at startup.
type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	CORS      CORSSettings      `mapstructure:"cors"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Reset     ResetSettings     `mapstructure:"reset"`
	Mail      MailSettings      `mapstructure:"mail"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Janitor   JanitorSettings   `mapstructure:"janitor"`
}

// AppSettings names the service and says where it listens. Name doubles as
// the JWT issuer and audience.
type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CORSSettings lists the browser origins allowed to call the API.
type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PostgresSettings covers the connection itself plus pool tunables passed to
// pgxpool.
type PostgresSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Migrate  bool   `mapstructure:"migrate"`

	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection backing rate-limit counters.
type RedisSettings struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// KafkaSettings configures the Kafka producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// JWTSettings sets token lifetimes and where persistent signing keys live.
type JWTSettings struct {
	KeyDirectory    string        `mapstructure:"key_directory"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// ResetSettings governs password-reset token issuance.
type ResetSettings struct {
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	TokenBytes int           `mapstructure:"token_bytes"`
}

// MailSettings configures SMTP delivery of reset links. When Host is empty the
// service falls back to a logging stub, which is the expected mode in
// development.
type MailSettings struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from"`
	ResetURL    string        `mapstructure:"reset_url"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// RateLimitSettings caps attempts per endpoint within a sliding window. A
// zero limit disables the cap for that endpoint.
type RateLimitSettings struct {
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	RefreshMaxAttempts       int           `mapstructure:"refresh_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
	WindowDuration           time.Duration `mapstructure:"window_duration"`
}

// Argon2Settings tunes the password hashing cost.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`

	SaltLength uint32 `mapstructure:"salt_length"`
	KeyLength  uint32 `mapstructure:"key_length"`
}

// JanitorSettings governs the periodic purge of expired token rows.
type JanitorSettings struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Retained time.Duration `mapstructure:"retained"`
}

// defaults maps every configuration key to its development default. The set
// of keys here is also the set of overridable environment knobs: Load binds
// an environment variable for each one.
var defaults = map[string]any{
	"app.name": "eventlink-credentials",
	"app.env":  "development",
	"app.host": "0.0.0.0",
	"app.port": 8080,

	"cors.allowed_origins": []string{"http://localhost:3000"},

	"postgres.host":                "localhost",
	"postgres.port":                5432,
	"postgres.user":                "eventlink",
	"postgres.password":            "eventlink_password",
	"postgres.database":            "eventlink",
	"postgres.ssl_mode":            "disable",
	"postgres.migrate":             true,
	"postgres.max_conns":           10,
	"postgres.min_conns":           2,
	"postgres.max_conn_lifetime":   "60m",
	"postgres.max_conn_idle_time":  "15m",
	"postgres.health_check_period": "30s",

	"redis.enabled":     false,
	"redis.host":        "localhost",
	"redis.port":        6379,
	"redis.db":          0,
	"redis.password":    "",
	"redis.tls_enabled": false,

	"kafka.brokers":      []string{"localhost:9092"},
	"kafka.topic_prefix": "eventlink",

	"jwt.key_directory":     "./secrets",
	"jwt.access_token_ttl":  "15m",
	"jwt.refresh_token_ttl": "720h",

	"reset.token_ttl":   "1h",
	"reset.token_bytes": 32,

	"mail.host":         "",
	"mail.port":         587,
	"mail.username":     "",
	"mail.password":     "",
	"mail.from":         "no-reply@eventlink.local",
	"mail.reset_url":    "http://localhost:3000/reset-password",
	"mail.send_timeout": "10s",

	"rate_limit.login_max_attempts":          5,
	"rate_limit.register_max_attempts":       3,
	"rate_limit.refresh_max_attempts":        10,
	"rate_limit.password_reset_max_attempts": 3,
	"rate_limit.window_duration":             "1m",

	"argon2.memory":      65536,
	"argon2.iterations":  3,
	"argon2.parallelism": 4,
	"argon2.salt_length": 16,
	"argon2.key_length":  32,

	"janitor.enabled":  true,
	"janitor.interval": "1h",
	"janitor.retained": "24h",
}

// Load builds the configuration from defaults and environment variables.
// Every key accepts two spellings: the EVENTLINK_-prefixed form and the bare
// uppercased key, e.g. EVENTLINK_POSTGRES_HOST or POSTGRES_HOST.
func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("EVENTLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
		name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "EVENTLINK_"+name, name); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with production hardening:
// persistent signing keys required and raw reset tokens never echoed in
// responses.
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.App.Env), "production")
}
