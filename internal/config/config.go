// Package config loads exoclassify settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeto-space/exoclassify/internal/briefing"
	"github.com/zeto-space/exoclassify/internal/classify"
	"github.com/zeto-space/exoclassify/internal/pipeline"
)

// HistoryOff disables the analysis history when used as the history path.
const HistoryOff = "off"

type Classifier struct {
	Endpoint       string `yaml:"endpoint"`
	BatchEndpoint  string `yaml:"batchEndpoint"`
	TimeoutMs      int    `yaml:"timeoutMs"`
	BatchTimeoutMs int    `yaml:"batchTimeoutMs"`
}

type Batch struct {
	ChunkSize   int  `yaml:"chunkSize"`
	Concurrency int  `yaml:"concurrency"`
	Strict      bool `yaml:"strict"`
}

type Server struct {
	Port string `yaml:"port"`
	// SessionTTLMinutes is how long an idle acquisition session is kept.
	SessionTTLMinutes int `yaml:"sessionTtlMinutes"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full application configuration.
type Config struct {
	Classifier Classifier      `yaml:"classifier"`
	Batch      Batch           `yaml:"batch"`
	History    string          `yaml:"history"`
	Briefing   briefing.Config `yaml:"briefing"`
	Server     Server          `yaml:"server"`
	Log        Log             `yaml:"log"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Classifier: Classifier{
			Endpoint:       classify.DefaultEndpoint,
			TimeoutMs:      int(classify.DefaultTimeout / time.Millisecond),
			BatchTimeoutMs: int(classify.DefaultBatchTimeout / time.Millisecond),
		},
		Batch: Batch{
			Concurrency: 4,
		},
		History: defaultHistoryPath(),
		Server: Server{
			Port:              "8888",
			SessionTTLMinutes: 60,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "exoclassify.db"
	}
	return filepath.Join(dir, "exoclassify", "history.db")
}

// Load builds the configuration. path may be empty, in which case
// EXOCLASSIFY_CONFIG is consulted; with neither set only defaults and the
// environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("EXOCLASSIFY_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		slog.Debug("Loaded config file", "path", path)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %q is not an integer", name, v)
		}
		*dst = n
		return nil
	}

	str("CLASSIFIER_URL", &c.Classifier.Endpoint)
	str("CLASSIFIER_BATCH_URL", &c.Classifier.BatchEndpoint)
	str("EXOCLASSIFY_HISTORY", &c.History)
	str("EXOCLASSIFY_PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("BRIEFING_PROVIDER", &c.Briefing.Provider)
	str("BRIEFING_MODEL", &c.Briefing.Model)
	str("OLLAMA_URL", &c.Briefing.OllamaURL)
	str("OPENAI_BASE_URL", &c.Briefing.OpenAIURL)
	str("OPENAI_API_KEY", &c.Briefing.OpenAIKey)
	str("GEMINI_API_KEY", &c.Briefing.GeminiKey)

	for name, dst := range map[string]*int{
		"CLASSIFIER_TIMEOUT":       &c.Classifier.TimeoutMs,
		"CLASSIFIER_BATCH_TIMEOUT": &c.Classifier.BatchTimeoutMs,
		"EXOCLASSIFY_CHUNK_SIZE":   &c.Batch.ChunkSize,
		"EXOCLASSIFY_CONCURRENCY":  &c.Batch.Concurrency,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("EXOCLASSIFY_STRICT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid EXOCLASSIFY_STRICT: %q", v)
		}
		c.Batch.Strict = b
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Classifier.Endpoint == "" {
		errs = append(errs, errors.New("classifier endpoint is required"))
	}
	if c.Classifier.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("classifier timeout must be positive, got %d", c.Classifier.TimeoutMs))
	}
	if c.Classifier.BatchTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("classifier batch timeout must be positive, got %d", c.Classifier.BatchTimeoutMs))
	}
	if c.Batch.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("chunk size must not be negative, got %d", c.Batch.ChunkSize))
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Batch.Concurrency))
	}
	switch strings.ToLower(c.Briefing.Provider) {
	case "", "ollama", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown briefing provider: %s", c.Briefing.Provider))
	}
	return errors.Join(errs...)
}

// ClassifierConfig converts the classifier section for classify.New.
func (c Config) ClassifierConfig() classify.Config {
	return classify.Config{
		Endpoint:      c.Classifier.Endpoint,
		BatchEndpoint: c.Classifier.BatchEndpoint,
		Timeout:       time.Duration(c.Classifier.TimeoutMs) * time.Millisecond,
		BatchTimeout:  time.Duration(c.Classifier.BatchTimeoutMs) * time.Millisecond,
	}
}

// PipelineOptions returns the batch tuning. History and Briefer are left for the caller.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Timeout:      time.Duration(c.Classifier.TimeoutMs) * time.Millisecond,
		BatchTimeout: time.Duration(c.Classifier.BatchTimeoutMs) * time.Millisecond,
		ChunkSize:    c.Batch.ChunkSize,
		Concurrency:  c.Batch.Concurrency,
		Strict:       c.Batch.Strict,
	}
}

// HistoryEnabled reports whether analyses should be recorded.
func (c Config) HistoryEnabled() bool {
	return c.History != "" && !strings.EqualFold(c.History, HistoryOff)
}

// SessionTTL is the idle lifetime of a server session.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLMinutes) * time.Minute
}
