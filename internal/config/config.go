package config

import (
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"

	"github.com/onexay/gitgraph/internal/storage"
)

const (
	defaultAPIAddr     = ":8080"
	defaultLogLevel    = "info"
	defaultParallelism = 4
	defaultCacheSize   = 64
)

// Config aggregates runtime configuration.
type Config struct {
	APIAddr   string                 `yaml:"api_addr" env:"API_ADDR" env-default:":8080"`
	LogLevel  string                 `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	CacheSize int                    `yaml:"cache_size" env:"CACHE_SIZE" env-default:"64"`
	Scan      ScanConfig             `yaml:"scan"`
	Storage   storage.Options        `yaml:"storage"`
	Archive   storage.ArchiveOptions `yaml:"archive"`
}

// ScanConfig controls how repositories are read and built.
type ScanConfig struct {
	// Range bounds the visited history, see history.GitReader.
	Range string `yaml:"range" env:"SCAN_RANGE"`
	// Suffixes restricts the files recorded per commit; empty records all.
	Suffixes []string `yaml:"suffixes" env:"SCAN_SUFFIXES" env-separator:","`
	// TimeZone is an IANA zone name for formatted timestamps; empty means local.
	TimeZone    string `yaml:"time_zone" env:"SCAN_TIMEZONE"`
	Parallelism int    `yaml:"parallelism" env:"SCAN_PARALLELISM" env-default:"4"`
}

// Load reads an optional .env file, then the YAML file at path when given,
// then the environment.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, errm.Wrap(err, "read config")
	}
	if err := cfg.prepare(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) prepare() error {
	c.APIAddr = lang.Check(c.APIAddr, defaultAPIAddr)
	c.LogLevel = strings.ToLower(lang.Check(c.LogLevel, defaultLogLevel))
	c.CacheSize = lang.Check(c.CacheSize, defaultCacheSize)
	c.Scan.Parallelism = lang.Check(c.Scan.Parallelism, defaultParallelism)
	c.Storage.Backend = storage.Backend(strings.ToLower(string(lang.Check(c.Storage.Backend, storage.BackendMemory))))
	c.Archive.Backend = storage.ArchiveBackend(strings.ToLower(string(lang.Check(c.Archive.Backend, storage.ArchiveMemory))))

	if c.CacheSize < 0 {
		return errm.New("cache_size must be >= 0")
	}
	if c.Scan.Parallelism < 0 {
		return errm.New("scan parallelism must be >= 0")
	}
	if _, err := c.Scan.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves TimeZone.
func (s ScanConfig) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, errm.Wrap(err, "load time zone "+s.TimeZone)
	}
	return loc, nil
}
