package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"

	StorageDriverMinio  = "minio"
	StorageDriverMemory = "memory"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver string
}

type SQLiteConfig struct {
	// Path of the database file, or ":memory:".
	Path         string
	MaxOpenConns int
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type StorageConfig struct {
	Driver         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	Region         string
	BucketTimezone string
}

type UploadConfig struct {
	MaxImages       int
	VerifySignature bool
}

type SweepConfig struct {
	Enabled  bool
	Schedule string
	Grace    time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Database         DatabaseConfig
	SQLite           SQLiteConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Upload           UploadConfig
	Sweep            SweepConfig
	AllowCORSOrigins []string
}

// Load reads configuration from path, or from config.yaml in the usual
// locations when path is empty. Environment variables prefixed with FRAMES_
// override file values, e.g. FRAMES_STORAGE_ENDPOINT.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
	}

	v.SetEnvPrefix("FRAMES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case DatabaseDriverSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	case DatabaseDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	switch c.Storage.Driver {
	case StorageDriverMinio:
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("storage.endpoint is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if _, err := c.BucketLocation(); err != nil {
		return err
	}
	if c.Upload.MaxImages < 1 {
		return fmt.Errorf("upload.maximages must be positive")
	}
	return nil
}

// BucketLocation is the time zone bucket dates are computed in.
func (c *AppConfig) BucketLocation() (*time.Location, error) {
	name := c.Storage.BucketTimezone
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("storage.buckettimezone: %w", err)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "30s")
	v.SetDefault("http.writetimeout", "60s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("database.driver", DatabaseDriverSQLite)

	v.SetDefault("sqlite.path", "frames.db")
	v.SetDefault("sqlite.maxopenconns", 1)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 2)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "frames:events")

	v.SetDefault("storage.driver", StorageDriverMinio)
	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.accesskey", "minioadmin")
	v.SetDefault("storage.secretkey", "minioadmin")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.buckettimezone", "Local")

	v.SetDefault("upload.maximages", 15)
	v.SetDefault("upload.verifysignature", false)

	v.SetDefault("sweep.enabled", false)
	v.SetDefault("sweep.schedule", "0 30 3 * * *")
	v.SetDefault("sweep.grace", "1h")

	v.SetDefault("allowcorsorigins", []string{})
}
