// Package config loads the server configuration from defaults, an
// optional config file, a .env file and DIVINE_QUIZ_* environment
// variables, in increasing order of precedence. Bound command-line flags
// win over all of them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/HendryAvila/divine-quiz/internal/kvstore"
	"github.com/HendryAvila/divine-quiz/internal/logging"
	"github.com/HendryAvila/divine-quiz/internal/session"
)

// EnvPrefix is prepended to every environment variable, with dots in the
// key replaced by underscores: http.addr is DIVINE_QUIZ_HTTP_ADDR.
const EnvPrefix = "DIVINE_QUIZ"

// DefaultConfigName is looked up in the working directory when no file is
// given explicitly. Any extension viper understands is accepted.
const DefaultConfigName = "divinequiz"

// Config is the whole server configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Session SessionConfig `mapstructure:"session"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type LogConfig struct {
	Mode     string `mapstructure:"mode"`
	Level    string `mapstructure:"level"`
	Redact   bool   `mapstructure:"redact"`
	HashSalt string `mapstructure:"hash_salt"`
}

type StoreConfig struct {
	Driver         string        `mapstructure:"driver"`
	DataDir        string        `mapstructure:"data_dir"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db"`
	RedisNamespace string        `mapstructure:"redis_namespace"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SessionConfig struct {
	MaxSessions          int           `mapstructure:"max_sessions"`
	TTL                  time.Duration `mapstructure:"ttl"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
	ProcessingCodeDelay  time.Duration `mapstructure:"processing_code_delay"`
	ProcessingFinalDelay time.Duration `mapstructure:"processing_final_delay"`
}

// AdminConfig holds the single admin account. PasswordHash is a bcrypt
// hash; an empty hash disables the admin API.
type AdminConfig struct {
	Username     string        `mapstructure:"username"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	store := kvstore.DefaultConfig()
	sess := session.DefaultConfig()
	return Config{
		Log: LogConfig{Mode: "dev", Level: "info", Redact: true},
		Store: StoreConfig{
			Driver:         kvstore.DriverSQLite,
			DataDir:        store.DataDir,
			RedisAddr:      store.RedisAddr,
			RedisNamespace: store.RedisNamespace,
			DialTimeout:    store.DialTimeout,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"http://localhost:5173"},
			RateLimit:       1,
			RateBurst:       5,
			ShutdownTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			MaxSessions:          sess.MaxSessions,
			TTL:                  sess.TTL,
			SweepInterval:        time.Minute,
			ProcessingCodeDelay:  sess.ProcessingCodeDelay,
			ProcessingFinalDelay: sess.ProcessingFinalDelay,
		},
		Admin:   AdminConfig{Username: "admin", TokenTTL: 12 * time.Hour},
		Metrics: MetricsConfig{Enabled: true, Namespace: "divinequiz"},
	}
}

// LoadOptions says where to look besides the defaults.
type LoadOptions struct {
	// ConfigFile must exist when set. When empty, DefaultConfigName is
	// looked up in the working directory and may be absent.
	ConfigFile string
	// EnvFile is loaded with godotenv when present. Variables already in
	// the environment are not overwritten.
	EnvFile string
	// Flags maps config keys (e.g. "http.addr") to command-line flags.
	Flags map[string]*pflag.Flag
}

// Load builds a Config from every source in opts and validates it.
func Load(opts LoadOptions) (Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return Config{}, fmt.Errorf("binding flag for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables are seen by
// Unmarshal even when no file mentions them.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log.mode", d.Log.Mode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.redact", d.Log.Redact)
	v.SetDefault("log.hash_salt", d.Log.HashSalt)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.data_dir", d.Store.DataDir)
	v.SetDefault("store.redis_addr", d.Store.RedisAddr)
	v.SetDefault("store.redis_password", d.Store.RedisPassword)
	v.SetDefault("store.redis_db", d.Store.RedisDB)
	v.SetDefault("store.redis_namespace", d.Store.RedisNamespace)
	v.SetDefault("store.dial_timeout", d.Store.DialTimeout)

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.allowed_origins", d.HTTP.AllowedOrigins)
	v.SetDefault("http.rate_limit", d.HTTP.RateLimit)
	v.SetDefault("http.rate_burst", d.HTTP.RateBurst)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("session.max_sessions", d.Session.MaxSessions)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.sweep_interval", d.Session.SweepInterval)
	v.SetDefault("session.processing_code_delay", d.Session.ProcessingCodeDelay)
	v.SetDefault("session.processing_final_delay", d.Session.ProcessingFinalDelay)

	v.SetDefault("admin.username", d.Admin.Username)
	v.SetDefault("admin.password_hash", d.Admin.PasswordHash)
	v.SetDefault("admin.jwt_secret", d.Admin.JWTSecret)
	v.SetDefault("admin.token_ttl", d.Admin.TokenTTL)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case kvstore.DriverMemory, kvstore.DriverFile, kvstore.DriverSQLite, kvstore.DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr: must not be empty"))
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		errs = append(errs, errors.New("http.rate_limit and http.rate_burst must not be negative"))
	}
	if c.Session.MaxSessions <= 0 {
		errs = append(errs, errors.New("session.max_sessions: must be positive"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl: must be positive"))
	}
	if c.Admin.PasswordHash != "" && len(c.Admin.JWTSecret) < 16 {
		errs = append(errs, errors.New("admin.jwt_secret: at least 16 bytes required when the admin API is enabled"))
	}
	return errors.Join(errs...)
}

// AdminEnabled reports whether an admin password is configured.
func (c Config) AdminEnabled() bool { return c.Admin.PasswordHash != "" }

// KVStore converts the store section for kvstore.Open.
func (c Config) KVStore() kvstore.Config {
	return kvstore.Config{
		Driver:         c.Store.Driver,
		DataDir:        c.Store.DataDir,
		RedisAddr:      c.Store.RedisAddr,
		RedisPassword:  c.Store.RedisPassword,
		RedisDB:        c.Store.RedisDB,
		RedisNamespace: c.Store.RedisNamespace,
		DialTimeout:    c.Store.DialTimeout,
	}
}

// Sessions converts the session section for session.WithConfig.
func (c Config) Sessions() session.Config {
	return session.Config{
		MaxSessions:          c.Session.MaxSessions,
		TTL:                  c.Session.TTL,
		ProcessingCodeDelay:  c.Session.ProcessingCodeDelay,
		ProcessingFinalDelay: c.Session.ProcessingFinalDelay,
	}
}

// Logging converts the log section for logging.New.
func (c Config) Logging() logging.Options {
	return logging.Options{
		Mode:     c.Log.Mode,
		Level:    c.Log.Level,
		Redact:   c.Log.Redact,
		HashSalt: c.Log.HashSalt,
	}
}
