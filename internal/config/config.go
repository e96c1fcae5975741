// Package config loads the kektormatch YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sanonone/kektormatch/pkg/cluster"
	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/sanonone/kektormatch/pkg/match"
	"github.com/sanonone/kektormatch/pkg/neo4jstore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Storage    StorageConfig     `yaml:"storage"`
	Matching   MatchingConfig    `yaml:"matching"`
	Clustering ClusteringConfig  `yaml:"clustering"`
	Neo4j      neo4jstore.Config `yaml:"neo4j"`
	Log        LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	HTTPAddr  string `yaml:"http_addr" validate:"required"`
	AuthToken string `yaml:"auth_token"`
	// TaskTTL is how long finished async tasks stay queryable.
	TaskTTL time.Duration `yaml:"task_ttl" validate:"gte=0"`
}

type StorageConfig struct {
	DataDir              string        `yaml:"data_dir" validate:"required"`
	AofFilename          string        `yaml:"aof_filename" validate:"required"`
	AutoSaveInterval     time.Duration `yaml:"autosave_interval" validate:"gte=0"`
	AutoSaveThreshold    int64         `yaml:"autosave_threshold" validate:"gte=0"`
	AofRewritePercentage int           `yaml:"aof_rewrite_percentage" validate:"gte=0"`
	MaintenanceInterval  time.Duration `yaml:"maintenance_interval" validate:"gt=0"`
	FlushInterval        time.Duration `yaml:"flush_interval" validate:"gt=0"`
	SyncInterval         time.Duration `yaml:"sync_interval" validate:"gt=0"`
}

type MatchingConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gte=0,lte=1"`
	LayerDivisor        int     `yaml:"layer_divisor" validate:"gte=1"`
	Workers             int     `yaml:"workers" validate:"gte=0"`
	Distance            string  `yaml:"distance" validate:"oneof=lexicographic numeric"`
}

type ClusteringConfig struct {
	MaxIterations int   `yaml:"max_iterations" validate:"gte=1"`
	Seed          int64 `yaml:"seed"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns a working local configuration.
func DefaultConfig() Config {
	storage := engine.DefaultOptions("kektormatch_data")
	return Config{
		Server: ServerConfig{
			HTTPAddr: ":9191",
			TaskTTL:  time.Hour,
		},
		Storage: StorageConfig{
			DataDir:              storage.DataDir,
			AofFilename:          storage.AofFilename,
			AutoSaveInterval:     storage.AutoSaveInterval,
			AutoSaveThreshold:    storage.AutoSaveThreshold,
			AofRewritePercentage: storage.AofRewritePercentage,
			MaintenanceInterval:  storage.MaintenanceInterval,
			FlushInterval:        storage.Lazy.FlushInterval,
			SyncInterval:         storage.Lazy.SyncInterval,
		},
		Matching: MatchingConfig{
			SimilarityThreshold: match.DefaultThreshold,
			LayerDivisor:        match.DefaultLayerDivisor,
			Distance:            match.DistanceLexicographic,
		},
		Clustering: ClusteringConfig{
			MaxIterations: cluster.DefaultMaxIterations,
			Seed:          cluster.DefaultSeed,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over DefaultConfig. Unknown keys are
// errors. Environment variables in the file are expanded. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}

	decoder := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in '%s': %w", path, err)
	}
	return cfg, cfg.Validate()
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// EngineOptions maps the storage section onto graph store options.
func (c Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions(c.Storage.DataDir)
	opts.AofFilename = c.Storage.AofFilename
	opts.AutoSaveInterval = c.Storage.AutoSaveInterval
	opts.AutoSaveThreshold = c.Storage.AutoSaveThreshold
	opts.AofRewritePercentage = c.Storage.AofRewritePercentage
	opts.MaintenanceInterval = c.Storage.MaintenanceInterval
	opts.Lazy.FlushInterval = c.Storage.FlushInterval
	opts.Lazy.SyncInterval = c.Storage.SyncInterval
	return opts
}

// MatchOptions maps the matching section onto matcher options.
func (c Config) MatchOptions() (match.Options, error) {
	dist, err := match.DistanceByName(c.Matching.Distance)
	if err != nil {
		return match.Options{}, err
	}
	return match.Options{
		Threshold:    c.Matching.SimilarityThreshold,
		LayerDivisor: c.Matching.LayerDivisor,
		Workers:      c.Matching.Workers,
		Distance:     dist,
	}, nil
}

// ClusterOptions maps the clustering section onto clusterer options.
func (c Config) ClusterOptions() cluster.Options {
	opts := cluster.DefaultOptions()
	opts.MaxIterations = c.Clustering.MaxIterations
	opts.Seed = c.Clustering.Seed
	return opts
}

// Logger builds the process logger from the log section.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
