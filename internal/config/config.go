package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	DatabaseDriver string // sqlite or postgres
	DatabasePath   string
	DatabaseDSN    string
	APIPort        string
	LogLevel       string
	DataDir        string
	JWTSecret      string
	CORSOrigins    string // comma separated, * allows all

	SessionBackend string // memory or redis
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	SyncURL      string
	SyncTimeout  time.Duration
	SyncInterval time.Duration // zero disables periodic sync

	ExportBackend string // drive or s3
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string

	LoginRatePerMinute int
}

// Default configuration values
const (
	DefaultDatabaseDriver     = "sqlite"
	DefaultDatabasePath       = "data/ledgermail.db"
	DefaultAPIPort            = "8080"
	DefaultLogLevel           = "INFO"
	DefaultDataDir            = "data"
	DefaultJWTSecret          = "ledgermail-default-secret-change-in-production"
	DefaultCORSOrigins        = "*"
	DefaultSessionBackend     = "memory"
	DefaultSessionTTL         = 7 * 24 * time.Hour
	DefaultRedisAddr          = "localhost:6379"
	DefaultSyncTimeout        = 30 * time.Second
	DefaultExportBackend      = "drive"
	DefaultS3Region           = "us-east-1"
	DefaultLoginRatePerMinute = 10
)

// envPrefix is prepended to every environment variable name
const envPrefix = "LEDGERMAIL_"

// Default returns a configuration populated with default values only
func Default() *Config {
	return &Config{
		DatabaseDriver:     DefaultDatabaseDriver,
		DatabasePath:       DefaultDatabasePath,
		APIPort:            DefaultAPIPort,
		LogLevel:           DefaultLogLevel,
		DataDir:            DefaultDataDir,
		JWTSecret:          DefaultJWTSecret,
		CORSOrigins:        DefaultCORSOrigins,
		SessionBackend:     DefaultSessionBackend,
		SessionTTL:         DefaultSessionTTL,
		RedisAddr:          DefaultRedisAddr,
		SyncTimeout:        DefaultSyncTimeout,
		ExportBackend:      DefaultExportBackend,
		S3Region:           DefaultS3Region,
		LoginRatePerMinute: DefaultLoginRatePerMinute,
	}
}

// Load loads configuration from environment variables and config file
// Priority: Environment variables > .env file > Config file > Default values
func Load() (*Config, error) {
	cfg := Default()

	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	// .env is optional; variables already set in the environment win
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json or config.toml
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		"config.toml",
		filepath.Join(c.DataDir, "config.json"),
		filepath.Join(c.DataDir, "config.toml"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return c.decode(path, data)
	}

	return nil
}

// decode parses a config file body, choosing the format by extension
func (c *Config) decode(path string, data []byte) error {
	if strings.HasSuffix(path, ".toml") {
		var raw rawConfig
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return err
		}
		return raw.apply(c)
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return raw.apply(c)
}

// rawConfig mirrors Config with durations as strings ("30s", "168h")
type rawConfig struct {
	DatabaseDriver     *string `json:"database_driver" toml:"database_driver"`
	DatabasePath       *string `json:"database_path" toml:"database_path"`
	DatabaseDSN        *string `json:"database_dsn" toml:"database_dsn"`
	APIPort            *string `json:"api_port" toml:"api_port"`
	LogLevel           *string `json:"log_level" toml:"log_level"`
	DataDir            *string `json:"data_dir" toml:"data_dir"`
	JWTSecret          *string `json:"jwt_secret" toml:"jwt_secret"`
	CORSOrigins        *string `json:"cors_origins" toml:"cors_origins"`
	SessionBackend     *string `json:"session_backend" toml:"session_backend"`
	SessionTTL         *string `json:"session_ttl" toml:"session_ttl"`
	RedisAddr          *string `json:"redis_addr" toml:"redis_addr"`
	RedisPassword      *string `json:"redis_password" toml:"redis_password"`
	RedisDB            *int    `json:"redis_db" toml:"redis_db"`
	SyncURL            *string `json:"sync_url" toml:"sync_url"`
	SyncTimeout        *string `json:"sync_timeout" toml:"sync_timeout"`
	SyncInterval       *string `json:"sync_interval" toml:"sync_interval"`
	ExportBackend      *string `json:"export_backend" toml:"export_backend"`
	S3Bucket           *string `json:"s3_bucket" toml:"s3_bucket"`
	S3Region           *string `json:"s3_region" toml:"s3_region"`
	S3Endpoint         *string `json:"s3_endpoint" toml:"s3_endpoint"`
	S3AccessKey        *string `json:"s3_access_key" toml:"s3_access_key"`
	S3SecretKey        *string `json:"s3_secret_key" toml:"s3_secret_key"`
	LoginRatePerMinute *int    `json:"login_rate_per_minute" toml:"login_rate_per_minute"`
}

func (r *rawConfig) apply(c *Config) error {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&c.DatabaseDriver, r.DatabaseDriver)
	setString(&c.DatabasePath, r.DatabasePath)
	setString(&c.DatabaseDSN, r.DatabaseDSN)
	setString(&c.APIPort, r.APIPort)
	setString(&c.LogLevel, r.LogLevel)
	setString(&c.DataDir, r.DataDir)
	setString(&c.JWTSecret, r.JWTSecret)
	setString(&c.CORSOrigins, r.CORSOrigins)
	setString(&c.SessionBackend, r.SessionBackend)
	setString(&c.RedisAddr, r.RedisAddr)
	setString(&c.RedisPassword, r.RedisPassword)
	setString(&c.SyncURL, r.SyncURL)
	setString(&c.ExportBackend, r.ExportBackend)
	setString(&c.S3Bucket, r.S3Bucket)
	setString(&c.S3Region, r.S3Region)
	setString(&c.S3Endpoint, r.S3Endpoint)
	setString(&c.S3AccessKey, r.S3AccessKey)
	setString(&c.S3SecretKey, r.S3SecretKey)

	if r.RedisDB != nil {
		c.RedisDB = *r.RedisDB
	}
	if r.LoginRatePerMinute != nil {
		c.LoginRatePerMinute = *r.LoginRatePerMinute
	}
	if r.SessionTTL != nil {
		d, err := time.ParseDuration(*r.SessionTTL)
		if err != nil {
			return err
		}
		c.SessionTTL = d
	}
	if r.SyncTimeout != nil {
		d, err := time.ParseDuration(*r.SyncTimeout)
		if err != nil {
			return err
		}
		c.SyncTimeout = d
	}
	if r.SyncInterval != nil {
		d, err := time.ParseDuration(*r.SyncInterval)
		if err != nil {
			return err
		}
		c.SyncInterval = d
	}
	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	strVars := map[string]*string{
		"DATABASE_DRIVER": &c.DatabaseDriver,
		"DATABASE_PATH":   &c.DatabasePath,
		"DATABASE_DSN":    &c.DatabaseDSN,
		"API_PORT":        &c.APIPort,
		"LOG_LEVEL":       &c.LogLevel,
		"DATA_DIR":        &c.DataDir,
		"JWT_SECRET":      &c.JWTSecret,
		"CORS_ORIGINS":    &c.CORSOrigins,
		"SESSION_BACKEND": &c.SessionBackend,
		"REDIS_ADDR":      &c.RedisAddr,
		"REDIS_PASSWORD":  &c.RedisPassword,
		"SYNC_URL":        &c.SyncURL,
		"EXPORT_BACKEND":  &c.ExportBackend,
		"S3_BUCKET":       &c.S3Bucket,
		"S3_REGION":       &c.S3Region,
		"S3_ENDPOINT":     &c.S3Endpoint,
		"S3_ACCESS_KEY":   &c.S3AccessKey,
		"S3_SECRET_KEY":   &c.S3SecretKey,
	}
	for name, dst := range strVars {
		if val := os.Getenv(envPrefix + name); val != "" {
			*dst = val
		}
	}

	// The sync script URL historically lives in its own variable
	if c.SyncURL == "" {
		c.SyncURL = os.Getenv("GOOGLE_APPS_SCRIPT_URL")
	}

	if val, err := strconv.Atoi(os.Getenv(envPrefix + "REDIS_DB")); err == nil {
		c.RedisDB = val
	}
	if val, err := strconv.Atoi(os.Getenv(envPrefix + "LOGIN_RATE_PER_MINUTE")); err == nil {
		c.LoginRatePerMinute = val
	}
	if val, err := time.ParseDuration(os.Getenv(envPrefix + "SESSION_TTL")); err == nil {
		c.SessionTTL = val
	}
	if val, err := time.ParseDuration(os.Getenv(envPrefix + "SYNC_TIMEOUT")); err == nil {
		c.SyncTimeout = val
	}
	if val, err := time.ParseDuration(os.Getenv(envPrefix + "SYNC_INTERVAL")); err == nil {
		c.SyncInterval = val
	}
}

// CORSOriginList splits CORSOrigins into individual origins
func (c *Config) CORSOriginList() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
