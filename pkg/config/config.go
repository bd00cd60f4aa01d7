// Package config loads stackbom settings from a config file, the environment
// and a .env file, and converts them into the option structs of the other
// packages.
//
// Precedence, highest first: STACKBOM_* environment variables (including
// those set by .env), the config file, built-in defaults. Nested keys map to
// environment variables by upper-casing and replacing dots with
// underscores, so assemble.partial_threshold is read from
// STACKBOM_ASSEMBLE_PARTIAL_THRESHOLD.
//
// Nothing outside this package reads the environment; callers pass the
// converted structs explicitly.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/matzehuels/stackbom/pkg/assemble"
	"github.com/matzehuels/stackbom/pkg/bom"
	"github.com/matzehuels/stackbom/pkg/cache"
	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/normalize"
	"github.com/matzehuels/stackbom/pkg/purl"
	"github.com/matzehuels/stackbom/pkg/storage"
	"github.com/matzehuels/stackbom/pkg/validate"
)

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "STACKBOM"

// Config is the complete set of settings.
type Config struct {
	SpecVersion string `mapstructure:"spec_version"`
	Format      string `mapstructure:"format"`
	Workers     int    `mapstructure:"workers"`

	Cache     CacheConfig     `mapstructure:"cache"`
	Store     StoreConfig     `mapstructure:"store"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Assemble  AssembleConfig  `mapstructure:"assemble"`
	Validate  ValidateConfig  `mapstructure:"validate"`
	Server    ServerConfig    `mapstructure:"server"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	Dir           string        `mapstructure:"dir"`
	TTL           time.Duration `mapstructure:"ttl"`
	MemorySize    int           `mapstructure:"memory_size"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	// Namespace prefixes every cache key.
	Namespace string `mapstructure:"namespace"`
}

type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	Dir           string `mapstructure:"dir"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type NormalizeConfig struct {
	MergeSubspecs bool   `mapstructure:"merge_subspecs"`
	DefaultType   string `mapstructure:"default_type"`
}

type AssembleConfig struct {
	PartialThreshold     float64 `mapstructure:"partial_threshold"`
	PartialMinComponents int     `mapstructure:"partial_min_components"`
	LinkSubprojects      bool    `mapstructure:"link_subprojects"`
}

type ValidateConfig struct {
	ContainerTypes     []string `mapstructure:"container_types"`
	EvidenceEcosystems []string `mapstructure:"evidence_ecosystems"`
}

type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	MaxBody int64  `mapstructure:"max_body"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		SpecVersion: cdx.LatestSpecVersion,
		Format:      string(cdx.FormatJSON),
		Workers:     0,
		Cache: CacheConfig{
			Backend:    cache.BackendFile,
			TTL:        7 * 24 * time.Hour,
			MemorySize: cache.DefaultMemorySize,
			RedisAddr:  "localhost:6379",
		},
		Store: StoreConfig{
			Backend:       storage.BackendFile,
			MongoDatabase: storage.DefaultMongoDatabase,
		},
		Normalize: NormalizeConfig{DefaultType: string(bom.TypeLibrary)},
		Assemble: AssembleConfig{
			PartialThreshold:     assemble.DefaultPartialThreshold,
			PartialMinComponents: assemble.DefaultPartialMinComponents,
		},
		Validate: ValidateConfig{
			ContainerTypes:     ecosystemNames(purl.DefaultContainers),
			EvidenceEcosystems: ecosystemNames(validate.DefaultEvidenceEcosystems),
		},
		Server: ServerConfig{Addr: ":8080", MaxBody: 32 << 20},
	}
}

// Load reads .env from the working directory, then the config file at path,
// then the environment. An empty path searches for stackbom.{toml,yaml,json}
// in the working directory and the user config directory; not finding one
// is not an error.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "read config %s", path)
		}
	} else {
		v.SetConfigName("stackbom")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "stackbom"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "read config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "decode config")
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads name into the process environment without overriding
// variables that are already set. A missing file is ignored.
func loadDotEnv(name string) error {
	if _, err := os.Stat(name); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(name); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidConfig, err, "load %s", name)
	}
	return nil
}

// setDefaults registers every key so that AutomaticEnv and Unmarshal see
// them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("spec_version", d.SpecVersion)
	v.SetDefault("format", d.Format)
	v.SetDefault("workers", d.Workers)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.memory_size", d.Cache.MemorySize)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", d.Cache.RedisPassword)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("cache.namespace", d.Cache.Namespace)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("store.mongo_uri", d.Store.MongoURI)
	v.SetDefault("store.mongo_database", d.Store.MongoDatabase)

	v.SetDefault("normalize.merge_subspecs", d.Normalize.MergeSubspecs)
	v.SetDefault("normalize.default_type", d.Normalize.DefaultType)

	v.SetDefault("assemble.partial_threshold", d.Assemble.PartialThreshold)
	v.SetDefault("assemble.partial_min_components", d.Assemble.PartialMinComponents)
	v.SetDefault("assemble.link_subprojects", d.Assemble.LinkSubprojects)

	v.SetDefault("validate.container_types", d.Validate.ContainerTypes)
	v.SetDefault("validate.evidence_ecosystems", d.Validate.EvidenceEcosystems)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_body", d.Server.MaxBody)
}

// Check reports the first invalid setting.
func (c *Config) Check() error {
	if _, err := cdx.CheckSpecVersion(c.SpecVersion); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidConfig, err, "spec_version")
	}
	if _, err := cdx.ParseFormat(c.Format); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidConfig, err, "format")
	}
	if c.Workers < 0 {
		return errs.New(errs.ErrCodeInvalidConfig, "workers must not be negative, got %d", c.Workers)
	}
	if t := c.Assemble.PartialThreshold; t < 0 || t > 1 {
		return errs.New(errs.ErrCodeInvalidConfig, "assemble.partial_threshold must be within [0, 1], got %g", t)
	}
	if _, err := parseEcosystems(c.Validate.ContainerTypes); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidConfig, err, "validate.container_types")
	}
	if _, err := parseEcosystems(c.Validate.EvidenceEcosystems); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidConfig, err, "validate.evidence_ecosystems")
	}
	return nil
}

// NormalizeConfig returns the normalizer options for a project.
func (c *Config) NormalizeConfig(projectRoot string) normalize.Config {
	return normalize.Config{
		MergeSubspecs: c.Normalize.MergeSubspecs,
		ProjectRoot:   projectRoot,
		DefaultType:   bom.ComponentType(c.Normalize.DefaultType),
	}
}

// AssembleConfig returns the assembler options.
func (c *Config) AssembleConfig() assemble.Config {
	return assemble.Config{
		PartialThreshold:     c.Assemble.PartialThreshold,
		PartialMinComponents: c.Assemble.PartialMinComponents,
		LinkSubprojects:      c.Assemble.LinkSubprojects,
	}
}

// ValidateOptions returns the validator options. Invalid names were
// rejected by [Config.Check] and are skipped here.
func (c *Config) ValidateOptions() validate.Options {
	containers, _ := parseEcosystems(c.Validate.ContainerTypes)
	evidence, _ := parseEcosystems(c.Validate.EvidenceEcosystems)
	return validate.Options{ContainerTypes: containers, EvidenceEcosystems: evidence}
}

// Keyer returns the cache keyer, scoped by the cache namespace when set.
func (c *Config) Keyer() cache.Keyer {
	if c.Cache.Namespace == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(nil, c.Cache.Namespace+":")
}

// CacheOptions returns the cache backend options.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:    c.Cache.Backend,
		Dir:        c.Cache.Dir,
		MemorySize: c.Cache.MemorySize,
		Redis: cache.RedisOptions{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		},
	}
}

// StoreOptions returns the document store options.
func (c *Config) StoreOptions() storage.Options {
	return storage.Options{
		Backend: c.Store.Backend,
		Dir:     c.Store.Dir,
		Mongo: storage.MongoOptions{
			URI:      c.Store.MongoURI,
			Database: c.Store.MongoDatabase,
		},
	}
}

// OutputFormat returns the parsed output format.
func (c *Config) OutputFormat() cdx.Format {
	f, err := cdx.ParseFormat(c.Format)
	if err != nil {
		return cdx.FormatJSON
	}
	return f
}

func parseEcosystems(names []string) ([]purl.Ecosystem, error) {
	var out []purl.Ecosystem
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		e, ok := purl.ParseEcosystem(n)
		if !ok {
			return nil, errs.New(errs.ErrCodeInvalidInput, "unknown ecosystem %q", n)
		}
		out = append(out, e)
	}
	return out, nil
}

func ecosystemNames(es []purl.Ecosystem) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.String()
	}
	return out
}
