// Package config loads the reference server configuration from a YAML file and
// JWTAUTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/internal/logging"
	"github.com/MrEthical07/jwtauth/internal/rate"
	"github.com/MrEthical07/jwtauth/internal/userdir"
	"github.com/MrEthical07/jwtauth/password"
)

// EnvPrefix prefixes every environment override, e.g. JWTAUTH_JWT_SECRET.
const EnvPrefix = "JWTAUTH"

// Revocation strategies selectable by name.
const (
	StrategyNull   = "null"
	StrategyMemory = "memory"
	StrategyRedis  = "redis"
	StrategySQL    = "sql"
	StrategyMongo  = "mongo"
	StrategyCutoff = "cutoff"
)

var ErrInvalid = errors.New("invalid configuration")

type File struct {
	Server     ServerConfig              `mapstructure:"server" yaml:"server"`
	Log        logging.Config            `mapstructure:"log" yaml:"log"`
	JWT        JWTConfig                 `mapstructure:"jwt" yaml:"jwt"`
	Dispatch   []jwtauth.DispatchRequest `mapstructure:"dispatch_requests" yaml:"dispatch_requests"`
	Revocation RevocationConfig          `mapstructure:"revocation" yaml:"revocation"`
	Audience   AudienceConfig            `mapstructure:"audience" yaml:"audience"`
	MaxBody    int64                     `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	Audit      AuditConfig               `mapstructure:"audit" yaml:"audit"`
	Metrics    MetricsConfig             `mapstructure:"metrics" yaml:"metrics"`
	Throttle   ThrottleConfig            `mapstructure:"login_throttle" yaml:"login_throttle"`
	Password   password.Config           `mapstructure:"password" yaml:"password"`
	Users      []userdir.Entry           `mapstructure:"users" yaml:"users"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	MetricsPath     string        `mapstructure:"metrics_path" yaml:"metrics_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// JWTConfig carries key material either inline or as file paths. Files win.
type JWTConfig struct {
	SigningMethod  string            `mapstructure:"signing_method" yaml:"signing_method"`
	TTL            time.Duration     `mapstructure:"ttl" yaml:"ttl"`
	Issuer         string            `mapstructure:"issuer" yaml:"issuer"`
	Leeway         time.Duration     `mapstructure:"leeway" yaml:"leeway"`
	KeyID          string            `mapstructure:"key_id" yaml:"key_id"`
	Secret         string            `mapstructure:"secret" yaml:"secret"`
	PrivateKeyFile string            `mapstructure:"private_key_file" yaml:"private_key_file"`
	PublicKeyFile  string            `mapstructure:"public_key_file" yaml:"public_key_file"`
	VerifyKeyFiles map[string]string `mapstructure:"verify_key_files" yaml:"verify_key_files"`
}

type RevocationConfig struct {
	Path            string        `mapstructure:"path" yaml:"path"`
	Strategy        string        `mapstructure:"strategy" yaml:"strategy"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	Redis           RedisConfig   `mapstructure:"redis" yaml:"redis"`
	SQL             SQLConfig     `mapstructure:"sql" yaml:"sql"`
	Mongo           MongoConfig   `mapstructure:"mongo" yaml:"mongo"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	// Embedded runs an in-process miniredis instead of connecting to Addr.
	Embedded bool `mapstructure:"embedded" yaml:"embedded"`
}

// SQLConfig points at a SQLite database file; ":memory:" keeps it in memory.
type SQLConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type MongoConfig struct {
	URI        string        `mapstructure:"uri" yaml:"uri"`
	Database   string        `mapstructure:"database" yaml:"database"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ThrottleConfig limits failed logins. It uses its own Redis connection.
type ThrottleConfig struct {
	Enabled     bool `mapstructure:"enabled" yaml:"enabled"`
	rate.Config `mapstructure:",squash" yaml:",inline"`
	Redis       RedisConfig `mapstructure:"redis" yaml:"redis"`
}

type AudienceConfig struct {
	Header string `mapstructure:"header" yaml:"header"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	BufferSize int  `mapstructure:"buffer_size" yaml:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full" yaml:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
	LatencyHistograms bool `mapstructure:"latency_histograms" yaml:"latency_histograms"`
}

func setDefaults(v *viper.Viper) {
	def := jwtauth.DefaultConfig()
	pw := password.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_path", "/metrics")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatConsole)
	v.SetDefault("jwt.signing_method", def.JWT.SigningMethod)
	v.SetDefault("jwt.ttl", def.JWT.TTL)
	v.SetDefault("jwt.leeway", def.JWT.Leeway)
	// keys without a default are invisible to environment overrides
	for _, key := range []string{
		"jwt.issuer", "jwt.key_id", "jwt.secret", "jwt.private_key_file", "jwt.public_key_file",
		"revocation.path", "revocation.redis.password", "revocation.redis.prefix", "revocation.mongo.uri",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("revocation.redis.db", 0)
	v.SetDefault("revocation.redis.embedded", false)
	v.SetDefault("revocation.strategy", StrategyMemory)
	v.SetDefault("revocation.cleanup_interval", 5*time.Minute)
	v.SetDefault("revocation.redis.addr", "localhost:6379")
	v.SetDefault("revocation.sql.dsn", "jwtauth.db")
	v.SetDefault("revocation.mongo.database", "jwtauth")
	v.SetDefault("revocation.mongo.collection", "revoked_tokens")
	v.SetDefault("revocation.mongo.timeout", 5*time.Second)
	v.SetDefault("login_throttle.enabled", false)
	v.SetDefault("login_throttle.max_attempts", 5)
	v.SetDefault("login_throttle.window", 15*time.Minute)
	v.SetDefault("login_throttle.per_ip", false)
	v.SetDefault("login_throttle.prefix", rate.DefaultPrefix)
	v.SetDefault("login_throttle.redis.addr", "localhost:6379")
	v.SetDefault("login_throttle.redis.embedded", false)
	v.SetDefault("audience.header", def.AudienceHeader)
	v.SetDefault("max_body_bytes", def.MaxBodyBytes)
	v.SetDefault("audit.enabled", def.Audit.Enabled)
	v.SetDefault("audit.buffer_size", def.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", def.Audit.DropIfFull)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.latency_histograms", def.Metrics.EnableLatencyHistograms)
	v.SetDefault("password.memory", pw.Memory)
	v.SetDefault("password.time", pw.Time)
	v.SetDefault("password.parallelism", pw.Parallelism)
	v.SetDefault("password.salt_length", pw.SaltLength)
	v.SetDefault("password.key_length", pw.KeyLength)
}

// Load reads path (optional when empty) and environment overrides into a File and
// validates it.
func Load(path string) (*File, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the parts the engine does not validate itself.
func (f *File) Validate() error {
	switch f.Revocation.Strategy {
	case StrategyNull, StrategyMemory, StrategyCutoff:
	case StrategyRedis:
		if !f.Revocation.Redis.Embedded && f.Revocation.Redis.Addr == "" {
			return fmt.Errorf("%w: revocation.redis.addr is required", ErrInvalid)
		}
	case StrategySQL:
		if f.Revocation.SQL.DSN == "" {
			return fmt.Errorf("%w: revocation.sql.dsn is required", ErrInvalid)
		}
	case StrategyMongo:
		if f.Revocation.Mongo.URI == "" {
			return fmt.Errorf("%w: revocation.mongo.uri is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown revocation strategy %q", ErrInvalid, f.Revocation.Strategy)
	}

	if f.JWT.Secret == "" && f.JWT.PrivateKeyFile == "" && f.JWT.PublicKeyFile == "" && len(f.JWT.VerifyKeyFiles) == 0 {
		return fmt.Errorf("%w: jwt key material is required", ErrInvalid)
	}
	if f.Throttle.Enabled {
		if f.Throttle.MaxAttempts <= 0 || f.Throttle.Window <= 0 {
			return fmt.Errorf("%w: login_throttle needs max_attempts and window > 0", ErrInvalid)
		}
		if !f.Throttle.Redis.Embedded && f.Throttle.Redis.Addr == "" {
			return fmt.Errorf("%w: login_throttle.redis.addr is required", ErrInvalid)
		}
	}
	if f.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalid)
	}
	return nil
}

// EngineConfig assembles the engine configuration, reading key files from disk.
// mappings comes from the user directory.
func (f *File) EngineConfig(mappings map[string]jwtauth.UserResolver) (jwtauth.Config, error) {
	cfg := jwtauth.DefaultConfig()

	cfg.JWT.SigningMethod = f.JWT.SigningMethod
	cfg.JWT.TTL = f.JWT.TTL
	cfg.JWT.Issuer = f.JWT.Issuer
	cfg.JWT.Leeway = f.JWT.Leeway
	cfg.JWT.KeyID = f.JWT.KeyID

	if f.JWT.Secret != "" {
		cfg.JWT.PrivateKey = []byte(f.JWT.Secret)
	}
	var err error
	if f.JWT.PrivateKeyFile != "" {
		if cfg.JWT.PrivateKey, err = os.ReadFile(f.JWT.PrivateKeyFile); err != nil {
			return cfg, fmt.Errorf("reading private key: %w", err)
		}
	}
	if f.JWT.PublicKeyFile != "" {
		if cfg.JWT.PublicKey, err = os.ReadFile(f.JWT.PublicKeyFile); err != nil {
			return cfg, fmt.Errorf("reading public key: %w", err)
		}
	}
	if len(f.JWT.VerifyKeyFiles) > 0 {
		cfg.JWT.VerifyKeys = make(map[string][]byte, len(f.JWT.VerifyKeyFiles))
		for kid, path := range f.JWT.VerifyKeyFiles {
			key, err := os.ReadFile(path)
			if err != nil {
				return cfg, fmt.Errorf("reading verify key %q: %w", kid, err)
			}
			cfg.JWT.VerifyKeys[kid] = key
		}
	}

	cfg.Mappings = mappings
	cfg.DispatchRequests = append([]jwtauth.DispatchRequest(nil), f.Dispatch...)
	cfg.RevocationPath = f.Revocation.Path
	cfg.AudienceHeader = f.Audience.Header
	cfg.MaxBodyBytes = f.MaxBody
	cfg.Audit = jwtauth.AuditConfig{
		Enabled:    f.Audit.Enabled,
		BufferSize: f.Audit.BufferSize,
		DropIfFull: f.Audit.DropIfFull,
	}
	cfg.Metrics = jwtauth.MetricsConfig{
		Enabled:                 f.Metrics.Enabled,
		EnableLatencyHistograms: f.Metrics.LatencyHistograms,
	}

	return cfg, cfg.Validate()
}

const redacted = "[redacted]"

// Redacted returns a copy of f with secrets and password hashes masked.
func (f File) Redacted() File {
	out := f
	if out.JWT.Secret != "" {
		out.JWT.Secret = redacted
	}
	if out.Revocation.Redis.Password != "" {
		out.Revocation.Redis.Password = redacted
	}
	if out.Throttle.Redis.Password != "" {
		out.Throttle.Redis.Password = redacted
	}
	if out.Revocation.Mongo.URI != "" {
		out.Revocation.Mongo.URI = redactURI(out.Revocation.Mongo.URI)
	}
	out.Users = make([]userdir.Entry, len(f.Users))
	for i, u := range f.Users {
		u.PasswordHash = redacted
		out.Users[i] = u
	}
	return out
}

// redactURI masks the userinfo password of a connection string.
func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
