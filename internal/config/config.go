package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StrategyRandom   = "random"
	StrategySequence = "sequence"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Env        string `yaml:"env"`
	BaseURL    string `yaml:"base_url"`
	Log        `yaml:"log"`
	ShortCode  `yaml:"short_code"`
	HTTPServer `yaml:"http_server"`
	Storage    `yaml:"storage"`
	Postgres   `yaml:"postgres"`
	Mongo      `yaml:"mongo"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

var defaultLog = Log{
	Level: "info",
}

// SlogLevel maps the configured level name to a slog level. Unknown names
// fall back to info.
func (l *Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ShortCode struct {
	Length      int    `yaml:"length"`
	Strategy    string `yaml:"strategy"`
	MaxAttempts int    `yaml:"max_attempts"`
}

var defaultShortCode = ShortCode{
	Length:      7,
	Strategy:    StrategyRandom,
	MaxAttempts: 10,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
	AllowedOrigins: []string{"*"},
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Storage struct {
	Driver   string `yaml:"driver"`
	FilePath string `yaml:"file_path"`
}

var defaultStorage = Storage{
	Driver:   DriverFile,
	FilePath: "data/urls.json",
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	MigrationsPath  string        `yaml:"migrations_path"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	MigrationsPath:  "migrations",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Mongo struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

var defaultMongo = Mongo{
	URI:        "mongodb://localhost:27017",
	Database:   "shorturl",
	Collection: "urls",
	Timeout:    10 * time.Second,
}

var (
	ErrUnknownDriver   = errors.New("unknown storage driver")
	ErrUnknownStrategy = errors.New("unknown short code strategy")
	ErrInvalidValue    = errors.New("invalid config value")
)

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.FilePath == "" {
			return fmt.Errorf("storage.file_path is empty: %w", ErrInvalidValue)
		}
	case DriverPostgres:
	case DriverMongo:
		if c.Mongo.Timeout <= 0 {
			return fmt.Errorf("mongo.timeout must be positive: %w", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%q: %w", c.Storage.Driver, ErrUnknownDriver)
	}

	switch c.ShortCode.Strategy {
	case StrategyRandom, StrategySequence:
	default:
		return fmt.Errorf("%q: %w", c.ShortCode.Strategy, ErrUnknownStrategy)
	}

	if c.ShortCode.Length <= 0 {
		return fmt.Errorf("short_code.length must be positive: %w", ErrInvalidValue)
	}
	if c.ShortCode.MaxAttempts <= 0 {
		return fmt.Errorf("short_code.max_attempts must be positive: %w", ErrInvalidValue)
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.Log = defaultLog
	cfg.ShortCode = defaultShortCode
	cfg.HTTPServer = defaultHTTPServer
	cfg.Storage = defaultStorage
	cfg.Postgres = defaultPostgres
	cfg.Mongo = defaultMongo
}
