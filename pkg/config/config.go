// Package config loads clozer's settings from an optional YAML file,
// CLOZER_* environment variables and command-line flags, in rising order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/japaniel/clozer/pkg/srs"
	"github.com/japaniel/clozer/pkg/vocab"
)

const (
	// DefaultConfigPath is read when --config is not given and the file exists.
	DefaultConfigPath = "clozer.yaml"
	// EnvPrefix prefixes environment overrides: CLOZER_DB, CLOZER_LOG_LEVEL, ...
	EnvPrefix = "CLOZER"

	defaultDB        = "clozer.db"
	defaultLanguage  = "fr"
	defaultLexicon   = "lexicon.json"
	defaultWorkers   = 4
	defaultBatchSize = 50
	defaultNewWords  = 5
	defaultLogLevel  = "info"
)

// Config is the full runtime configuration.
type Config struct {
	DB       string `mapstructure:"db"`
	Learner  int64  `mapstructure:"learner"`
	Language string `mapstructure:"language"`
	// Lexicon is the local lexicon file; LexiconURL, when set, is where
	// import-lexicon downloads it from if the file is missing.
	Lexicon    string `mapstructure:"lexicon"`
	LexiconURL string `mapstructure:"lexicon_url"`

	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Practice   PracticeConfig   `mapstructure:"practice"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Log        LogConfig        `mapstructure:"log"`
}

// SchedulerConfig mirrors srs.Config with durations as text ("10m", "6h").
type SchedulerConfig struct {
	Intervals []string `mapstructure:"intervals"`
	Immediate string   `mapstructure:"immediate"`
	Promotion int      `mapstructure:"promotion"`
	Penalty   int      `mapstructure:"penalty"`
}

type ClassifierConfig struct {
	MaxEdits int `mapstructure:"max_edits"`
}

type IngestConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

type PracticeConfig struct {
	// NewWords is how many unseen words one session may introduce.
	NewWords int `mapstructure:"new_words"`
}

// OpenAIConfig enables the generative sentence fallback when APIKey is set.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	// RequestsPerMinute caps generation calls; zero means no cap.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SetDefaults registers every key so environment variables can override
// keys absent from the file.
func SetDefaults(v *viper.Viper) {
	intervals := make([]string, len(srs.DefaultIntervals))
	for i, d := range srs.DefaultIntervals {
		intervals[i] = d.String()
	}
	v.SetDefault("db", defaultDB)
	v.SetDefault("learner", vocab.DefaultLearner.ID)
	v.SetDefault("language", defaultLanguage)
	v.SetDefault("lexicon", defaultLexicon)
	v.SetDefault("lexicon_url", "")
	v.SetDefault("scheduler.intervals", intervals)
	v.SetDefault("scheduler.immediate", srs.DefaultImmediate.String())
	v.SetDefault("scheduler.promotion", srs.DefaultPromotion)
	v.SetDefault("scheduler.penalty", srs.DefaultPenalty)
	v.SetDefault("classifier.max_edits", 2)
	v.SetDefault("ingest.workers", defaultWorkers)
	v.SetDefault("ingest.batch_size", defaultBatchSize)
	v.SetDefault("practice.new_words", defaultNewWords)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4.1-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.requests_per_minute", 20)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.development", false)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The conventional variable works too.
	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	return v
}

// Load reads path into v and decodes the result. An empty path tries
// DefaultConfigPath and tolerates its absence; an explicit path must exist.
func Load(v *viper.Viper, path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil || explicit {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Validate checks values that have no sensible fallback.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.DB) == "":
		return fmt.Errorf("%w: db path is empty", ErrInvalid)
	case c.Learner <= 0:
		return fmt.Errorf("%w: learner must be positive, got %d", ErrInvalid, c.Learner)
	case strings.TrimSpace(c.Language) == "":
		return fmt.Errorf("%w: language is empty", ErrInvalid)
	case c.Ingest.Workers <= 0 || c.Ingest.BatchSize <= 0:
		return fmt.Errorf("%w: ingest workers and batch size must be positive", ErrInvalid)
	case c.Practice.NewWords < 0:
		return fmt.Errorf("%w: practice.new_words must not be negative", ErrInvalid)
	case c.OpenAI.RequestsPerMinute < 0:
		return fmt.Errorf("%w: openai.requests_per_minute must not be negative", ErrInvalid)
	}
	if _, err := c.Scheduler.SRS(); err != nil {
		return err
	}
	return nil
}

// LearnerID returns the configured learner.
func (c Config) LearnerID() vocab.Learner { return vocab.Learner{ID: c.Learner} }

// SRS converts the textual scheduler settings. Range and ordering checks
// are left to srs.NewScheduler.
func (s SchedulerConfig) SRS() (srs.Config, error) {
	var out srs.Config
	if len(s.Intervals) > 0 {
		if len(s.Intervals) != len(out.Intervals) {
			return srs.Config{}, fmt.Errorf("%w: scheduler.intervals needs %d durations, got %d",
				ErrInvalid, len(out.Intervals), len(s.Intervals))
		}
		for i, text := range s.Intervals {
			d, err := time.ParseDuration(strings.TrimSpace(text))
			if err != nil {
				return srs.Config{}, fmt.Errorf("%w: scheduler.intervals[%d]: %v", ErrInvalid, i, err)
			}
			out.Intervals[i] = d
		}
	}
	if s.Immediate != "" {
		d, err := time.ParseDuration(s.Immediate)
		if err != nil {
			return srs.Config{}, fmt.Errorf("%w: scheduler.immediate: %v", ErrInvalid, err)
		}
		out.Immediate = d
	}
	out.Promotion = s.Promotion
	out.Penalty = s.Penalty
	return out, nil
}

// NewLogger builds a zap logger: development logs are human readable,
// production logs are JSON. Both go to stderr.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if l.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	if l.Level != "" {
		level, err := zap.ParseAtomicLevel(l.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
		}
		cfg.Level = level
	}
	return cfg.Build()
}
