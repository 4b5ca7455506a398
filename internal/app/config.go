package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leasingborsen/listing-reconciler/internal/data/db"
	"github.com/leasingborsen/listing-reconciler/internal/observability"
	"github.com/leasingborsen/listing-reconciler/internal/platform/envutil"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
	"github.com/leasingborsen/listing-reconciler/internal/reconcile"
	"github.com/leasingborsen/listing-reconciler/internal/services"
)

const serviceName = "listing-reconciler"

type Config struct {
	Port        string
	LogMode     string
	LogRedact   bool
	CORSOrigins []string
	JWTSecret   string

	DB db.Config

	RedisAddr    string
	RedisLockTTL time.Duration

	Apply services.ApplyConfig
	Match reconcile.MatchConfig

	Otel          observability.OtelConfig
	MetricsAddr   string
	ShutdownDrain time.Duration
}

// fileConfig is the optional YAML file named by RECONCILER_CONFIG.
type fileConfig struct {
	Match *reconcile.MatchConfig `yaml:"match"`
	Apply *struct {
		Concurrency  int     `yaml:"concurrency"`
		MaxPerSecond float64 `yaml:"max_per_second"`
	} `yaml:"apply"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// LoadDotEnv reads .env (or ENV_FILE) when present. Existing variables win.
func LoadDotEnv(log *logger.Logger) {
	path := envutil.String("ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) && log != nil {
			log.Warn("could not load env file", "path", path, "error", err)
		}
		return
	}
	if log != nil {
		log.Info("loaded env file", "path", path)
	}
}

// LoadConfig layers defaults, the YAML file, then environment variables.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:    "8080",
		LogMode: "development",
		Match:   reconcile.DefaultMatchConfig(),
		Apply:   services.ApplyConfig{Concurrency: 4},
	}

	if path := envutil.String("RECONCILER_CONFIG", ""); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
		if log != nil {
			log.Info("loaded config file", "path", path)
		}
	}

	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.LogRedact = envutil.Bool("LOG_REDACT", true)
	cfg.JWTSecret = envutil.String("JWT_SECRET", "")
	if raw := envutil.String("CORS_ORIGINS", ""); raw != "" {
		cfg.CORSOrigins = splitList(raw)
	}

	cfg.DB = db.Config{
		Driver:       envutil.String("DATABASE_DRIVER", db.DriverPostgres),
		Host:         envutil.String("POSTGRES_HOST", "localhost"),
		Port:         envutil.String("POSTGRES_PORT", "5432"),
		User:         envutil.String("POSTGRES_USER", "postgres"),
		Password:     envutil.String("POSTGRES_PASSWORD", ""),
		Name:         envutil.String("POSTGRES_NAME", "leasing"),
		SSLMode:      envutil.String("POSTGRES_SSLMODE", "disable"),
		SQLitePath:   envutil.String("SQLITE_PATH", ""),
		MaxOpenConns: envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20),
	}

	cfg.RedisAddr = envutil.String("REDIS_ADDR", "")
	cfg.RedisLockTTL = envutil.Duration("REDIS_LOCK_TTL", 30*time.Second)

	cfg.Apply.Concurrency = envutil.Int("APPLY_CONCURRENCY", cfg.Apply.Concurrency)
	cfg.Apply.MaxPerSecond = envutil.Float("APPLY_MAX_PER_SECOND", cfg.Apply.MaxPerSecond)

	cfg.Match.Threshold = envutil.Float("MATCH_THRESHOLD", cfg.Match.Threshold)
	cfg.Match.HorsepowerTolerance = envutil.Int("MATCH_HP_TOLERANCE", cfg.Match.HorsepowerTolerance)
	cfg.Match.WeightVariant = envutil.Float("MATCH_WEIGHT_VARIANT", cfg.Match.WeightVariant)
	cfg.Match.WeightHorsepower = envutil.Float("MATCH_WEIGHT_HORSEPOWER", cfg.Match.WeightHorsepower)
	cfg.Match.WeightTransmission = envutil.Float("MATCH_WEIGHT_TRANSMISSION", cfg.Match.WeightTransmission)

	cfg.Otel = observability.OtelConfigFromEnv(serviceName)
	cfg.MetricsAddr = envutil.String("METRICS_ADDR", "")
	cfg.ShutdownDrain = envutil.Duration("SHUTDOWN_DRAIN", 30*time.Second)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if err := c.Match.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("match config: %w", err))
	}
	if c.Apply.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("APPLY_CONCURRENCY must be > 0, got %d", c.Apply.Concurrency))
	}
	if c.Apply.MaxPerSecond < 0 {
		errs = append(errs, fmt.Errorf("APPLY_MAX_PER_SECOND must be >= 0, got %v", c.Apply.MaxPerSecond))
	}
	switch strings.ToLower(c.DB.Driver) {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DB.Driver))
	}
	return errors.Join(errs...)
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.Match != nil {
		cfg.Match = mergeMatch(cfg.Match, *fc.Match)
	}
	if fc.Apply != nil {
		if fc.Apply.Concurrency > 0 {
			cfg.Apply.Concurrency = fc.Apply.Concurrency
		}
		if fc.Apply.MaxPerSecond > 0 {
			cfg.Apply.MaxPerSecond = fc.Apply.MaxPerSecond
		}
	}
	if len(fc.CORSOrigins) > 0 {
		cfg.CORSOrigins = fc.CORSOrigins
	}
	return nil
}

// mergeMatch keeps base values for fields the file leaves at zero.
func mergeMatch(base, file reconcile.MatchConfig) reconcile.MatchConfig {
	if file.Threshold != 0 {
		base.Threshold = file.Threshold
	}
	if file.HorsepowerTolerance != 0 {
		base.HorsepowerTolerance = file.HorsepowerTolerance
	}
	if file.WeightVariant != 0 {
		base.WeightVariant = file.WeightVariant
	}
	if file.WeightHorsepower != 0 {
		base.WeightHorsepower = file.WeightHorsepower
	}
	if file.WeightTransmission != 0 {
		base.WeightTransmission = file.WeightTransmission
	}
	return base
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
