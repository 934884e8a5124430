// Package config provides application configuration loaded from an optional
// TOML file, a .env file and environment variables (in increasing priority).
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        `toml:"port"`                   // e.g. "8080"
	BackofficePort       string        `toml:"backoffice_port"`        // e.g. "8081"
	Env                  string        `toml:"env"`                    // "development" | "production"
	ReadTimeout          time.Duration `toml:"read_timeout"`           // default 10s
	WriteTimeout         time.Duration `toml:"write_timeout"`          // default 10s
	BackofficeAllowedIPs string        `toml:"backoffice_allowed_ips"` // comma-separated IPs; "" = allow all
	RateLimitRPS         int           `toml:"rate_limit_rps"`         // per caller, default 20
	AllowedOrigins       []string      `toml:"allowed_origins"`        // CORS + WS origins in production
}

// DBConfig holds journal storage settings. DSN selects PostgreSQL; without it
// JournalDir selects an embedded Badger journal; with neither the journal
// lives in memory.
type DBConfig struct {
	DSN             string        `toml:"dsn"`
	JournalDir      string        `toml:"journal_dir"`
	MaxOpenConns    int           `toml:"max_open_conns"`    // default 25
	MaxIdleConns    int           `toml:"max_idle_conns"`    // default 10
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"` // default 5m
}

// RedisConfig holds Redis settings. An empty Addr keeps login nonces in memory.
type RedisConfig struct {
	Addr        string `toml:"addr"`
	Password    string `toml:"password"`
	DB          int    `toml:"db"`
	PoolSize    int    `toml:"pool_size"`
	TLSEnabled  bool   `toml:"tls_enabled"`
	NoncePrefix string `toml:"nonce_prefix"`
}

// JWTConfig holds wallet-login and token settings.
type JWTConfig struct {
	AccessSecret   string        `toml:"access_secret"` // must be set
	AccessTTL      time.Duration `toml:"access_ttl"`    // default 24h
	NonceTTL       time.Duration `toml:"nonce_ttl"`     // default 5m
	AdminAddresses []string      `toml:"admin_addresses"`
}

// ChainConfig describes the network whose contract the service emulates.
type ChainConfig struct {
	ID              int64  `toml:"id"`               // default 11142220 (Celo Sepolia)
	Name            string `toml:"name"`             // default "Celo Sepolia"
	Symbol          string `toml:"symbol"`           // default "CELO"
	ContractAddress string `toml:"contract_address"` // address reported to clients
}

// LedgerConfig holds market rules that are configurable.
type LedgerConfig struct {
	MaxQuestionLength int `toml:"max_question_length"` // default 280 runes
}

// SchedulerConfig holds background loop intervals.
type SchedulerConfig struct {
	Tick        time.Duration `toml:"tick"`         // closing-market sweep, default 5s
	ReplicaSync time.Duration `toml:"replica_sync"` // backoffice journal poll, default 2s
}

// ArchiveConfig points the backoffice journal archiver at an S3-compatible
// bucket. An empty Bucket disables archiving.
type ArchiveConfig struct {
	Endpoint       string        `toml:"endpoint"` // "" = AWS S3
	Region         string        `toml:"region"`
	Bucket         string        `toml:"bucket"`
	Prefix         string        `toml:"prefix"` // default "journal/"
	AccessKey      string        `toml:"access_key"`
	SecretKey      string        `toml:"secret_key"`
	UseSSL         bool          `toml:"use_ssl"`
	ForcePathStyle bool          `toml:"force_path_style"` // MinIO, R2 and friends
	Interval       time.Duration `toml:"interval"`         // default 1h
	SegmentSize    int           `toml:"segment_size"`     // events per object, default 5000
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	DB        DBConfig        `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	JWT       JWTConfig       `toml:"jwt"`
	Chain     ChainConfig     `toml:"chain"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Archive   ArchiveConfig   `toml:"archive"`
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// IsAdmin reports whether address is listed in JWT.AdminAddresses.
func (c *Config) IsAdmin(address common.Address) bool {
	for _, a := range c.JWT.AdminAddresses {
		if common.HexToAddress(a) == address {
			return true
		}
	}
	return false
}

// Validate checks that all required configuration values are present and valid.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	} else if c.IsProd() && len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be at least 32 bytes in production"))
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.NonceTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL and AUTH_NONCE_TTL must be positive"))
	}

	// In production, the journal must be durable
	if c.IsProd() && c.DB.DSN == "" && c.DB.JournalDir == "" {
		errs = append(errs, errors.New("DATABASE_DSN or JOURNAL_DIR must be set in production"))
	}

	if c.Chain.ContractAddress != "" && !common.IsHexAddress(c.Chain.ContractAddress) {
		errs = append(errs, fmt.Errorf("CHAIN_CONTRACT_ADDRESS %q is not a hex address", c.Chain.ContractAddress))
	}
	for _, a := range c.JWT.AdminAddresses {
		if !common.IsHexAddress(a) {
			errs = append(errs, fmt.Errorf("ADMIN_ADDRESSES entry %q is not a hex address", a))
		}
	}

	if c.Ledger.MaxQuestionLength <= 0 {
		errs = append(errs, fmt.Errorf("LEDGER_MAX_QUESTION_LENGTH must be positive, got %d", c.Ledger.MaxQuestionLength))
	}
	if c.Archive.Bucket != "" {
		if c.Archive.Region == "" {
			errs = append(errs, errors.New("ARCHIVE_S3_REGION must be set when ARCHIVE_S3_BUCKET is"))
		}
		if c.Archive.Interval <= 0 || c.Archive.SegmentSize <= 0 {
			errs = append(errs, errors.New("ARCHIVE_INTERVAL and ARCHIVE_SEGMENT_SIZE must be positive"))
		}
	}
	if c.Scheduler.Tick <= 0 {
		errs = append(errs, fmt.Errorf("SCHEDULER_TICK must be positive, got %s", c.Scheduler.Tick))
	}
	if c.Server.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be positive, got %d", c.Server.RateLimitRPS))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once.
// Panics if loading fails; call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = Load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Loader
// ──────────────────────────────────────────────────────────────────────────────

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			BackofficePort: "8081",
			Env:            "development",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			RateLimitRPS:   20,
		},
		DB: DBConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:    10,
			NoncePrefix: "predict:nonce:",
		},
		JWT: JWTConfig{
			AccessTTL: 24 * time.Hour,
			NonceTTL:  5 * time.Minute,
		},
		Chain: ChainConfig{
			ID:     11142220,
			Name:   "Celo Sepolia",
			Symbol: "CELO",
		},
		Ledger:    LedgerConfig{MaxQuestionLength: 280},
		Scheduler: SchedulerConfig{Tick: 5 * time.Second, ReplicaSync: 2 * time.Second},
		Archive: ArchiveConfig{
			Region:      "us-east-1",
			Prefix:      "journal/",
			UseSSL:      true,
			Interval:    time.Hour,
			SegmentSize: 5000,
		},
	}
}

// Load builds a Config from Defaults(), the TOML file named by CONFIG_FILE
// (if any), a .env file in the working directory (if present) and finally
// environment variables. The result is not validated.
func Load() (*Config, error) {
	cfg := Defaults()

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.BackofficePort = getEnv("BACKOFFICE_PORT", cfg.Server.BackofficePort)
	cfg.Server.Env = getEnv("ENVIRONMENT", cfg.Server.Env)
	cfg.Server.ReadTimeout = getDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.BackofficeAllowedIPs = getEnv("BACKOFFICE_ALLOWED_IPS", cfg.Server.BackofficeAllowedIPs)
	if cfg.Server.RateLimitRPS, err = getInt("RATE_LIMIT_RPS", cfg.Server.RateLimitRPS); err != nil {
		return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	// ── Database ──────────────────────────────────────────────────────────────
	cfg.DB.DSN = getEnv("DATABASE_DSN", cfg.DB.DSN)
	if cfg.DB.DSN == "" && os.Getenv("DB_HOST") != "" {
		// Build DSN from individual components for convenience in dev
		cfg.DB.DSN = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "predict_ledger"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}
	if cfg.DB.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns); err != nil {
		return fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	if cfg.DB.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", cfg.DB.MaxIdleConns); err != nil {
		return fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.DB.ConnMaxLifetime = getDuration("DB_CONN_MAX_LIFETIME", cfg.DB.ConnMaxLifetime)
	cfg.DB.JournalDir = getEnv("JOURNAL_DIR", cfg.DB.JournalDir)

	// ── Redis ─────────────────────────────────────────────────────────────────
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = getInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return fmt.Errorf("REDIS_DB: %w", err)
	}
	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", cfg.Redis.PoolSize); err != nil {
		return fmt.Errorf("REDIS_POOL_SIZE: %w", err)
	}
	cfg.Redis.TLSEnabled = getBool("REDIS_TLS", cfg.Redis.TLSEnabled)

	// ── JWT / wallet login ────────────────────────────────────────────────────
	cfg.JWT.AccessSecret = getEnv("JWT_ACCESS_SECRET", cfg.JWT.AccessSecret)
	cfg.JWT.AccessTTL = getDuration("JWT_ACCESS_TTL", cfg.JWT.AccessTTL)
	cfg.JWT.NonceTTL = getDuration("AUTH_NONCE_TTL", cfg.JWT.NonceTTL)
	if v := os.Getenv("ADMIN_ADDRESSES"); v != "" {
		cfg.JWT.AdminAddresses = splitList(v)
	}

	// ── Chain ─────────────────────────────────────────────────────────────────
	id, err := getInt("CHAIN_ID", int(cfg.Chain.ID))
	if err != nil {
		return fmt.Errorf("CHAIN_ID: %w", err)
	}
	cfg.Chain.ID = int64(id)
	cfg.Chain.Name = getEnv("CHAIN_NAME", cfg.Chain.Name)
	cfg.Chain.Symbol = getEnv("CHAIN_SYMBOL", cfg.Chain.Symbol)
	cfg.Chain.ContractAddress = getEnv("CHAIN_CONTRACT_ADDRESS", cfg.Chain.ContractAddress)

	// ── Ledger / scheduler ────────────────────────────────────────────────────
	if cfg.Ledger.MaxQuestionLength, err = getInt("LEDGER_MAX_QUESTION_LENGTH", cfg.Ledger.MaxQuestionLength); err != nil {
		return fmt.Errorf("LEDGER_MAX_QUESTION_LENGTH: %w", err)
	}
	cfg.Scheduler.Tick = getDuration("SCHEDULER_TICK", cfg.Scheduler.Tick)
	cfg.Scheduler.ReplicaSync = getDuration("BACKOFFICE_SYNC_INTERVAL", cfg.Scheduler.ReplicaSync)

	// ── Journal archive ───────────────────────────────────────────────────────
	cfg.Archive.Endpoint = getEnv("ARCHIVE_S3_ENDPOINT", cfg.Archive.Endpoint)
	cfg.Archive.Region = getEnv("ARCHIVE_S3_REGION", cfg.Archive.Region)
	cfg.Archive.Bucket = getEnv("ARCHIVE_S3_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.Prefix = getEnv("ARCHIVE_S3_PREFIX", cfg.Archive.Prefix)
	cfg.Archive.AccessKey = getEnv("ARCHIVE_S3_ACCESS_KEY", cfg.Archive.AccessKey)
	cfg.Archive.SecretKey = getEnv("ARCHIVE_S3_SECRET_KEY", cfg.Archive.SecretKey)
	cfg.Archive.UseSSL = getBool("ARCHIVE_S3_USE_SSL", cfg.Archive.UseSSL)
	cfg.Archive.ForcePathStyle = getBool("ARCHIVE_S3_FORCE_PATH_STYLE", cfg.Archive.ForcePathStyle)
	cfg.Archive.Interval = getDuration("ARCHIVE_INTERVAL", cfg.Archive.Interval)
	if cfg.Archive.SegmentSize, err = getInt("ARCHIVE_SEGMENT_SIZE", cfg.Archive.SegmentSize); err != nil {
		return fmt.Errorf("ARCHIVE_SEGMENT_SIZE: %w", err)
	}

	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Fall back to default; do not crash on parse error
		return defaultVal
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
