package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) lookupFunc {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cc := cfg.ClassifierConfig()
	assert.Equal(t, "http://localhost:5000", cc.Endpoint)
	assert.Equal(t, 30*time.Second, cc.Timeout)
	assert.Equal(t, 300*time.Second, cc.BatchTimeout)
	assert.Equal(t, 4, cfg.PipelineOptions().Concurrency)
	assert.True(t, cfg.HistoryEnabled())
	assert.Equal(t, time.Hour, cfg.SessionTTL())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exoclassify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
classifier:
  endpoint: http://zeto:5000
  timeoutMs: 1500
batch:
  chunkSize: 250
  strict: true
briefing:
  provider: ollama
  model: mistral
history: off
`), 0644))

	t.Setenv("EXOCLASSIFY_CONFIG", "")
	t.Setenv("CLASSIFIER_TIMEOUT", "2500")
	t.Setenv("OLLAMA_URL", "http://gpu:11434")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://zeto:5000", cfg.Classifier.Endpoint)
	assert.Equal(t, 2500, cfg.Classifier.TimeoutMs, "env overrides file")
	assert.Equal(t, 300000, cfg.Classifier.BatchTimeoutMs, "unset keys keep defaults")
	assert.Equal(t, 250, cfg.Batch.ChunkSize)
	assert.True(t, cfg.Batch.Strict)
	assert.Equal(t, "mistral", cfg.Briefing.Model)
	assert.Equal(t, "http://gpu:11434", cfg.Briefing.OllamaURL)
	assert.False(t, cfg.HistoryEnabled())
}

func TestLoadFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9000\"\n"), 0644))
	t.Setenv("EXOCLASSIFY_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classifer:\n  endpoint: x\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "classifer")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		check   func(t *testing.T, cfg Config)
		wantErr string
	}{
		{
			name: "strings and numbers",
			vars: map[string]string{
				"CLASSIFIER_URL":           "http://a",
				"CLASSIFIER_BATCH_TIMEOUT": "60000",
				"EXOCLASSIFY_CONCURRENCY":  "8",
				"EXOCLASSIFY_STRICT":       "true",
				"BRIEFING_PROVIDER":        "gemini",
				"GEMINI_API_KEY":           "k",
			},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "http://a", cfg.Classifier.Endpoint)
				assert.Equal(t, time.Minute, cfg.ClassifierConfig().BatchTimeout)
				assert.Equal(t, 8, cfg.Batch.Concurrency)
				assert.True(t, cfg.Batch.Strict)
				assert.Equal(t, "gemini", cfg.Briefing.Provider)
				assert.Equal(t, "k", cfg.Briefing.GeminiKey)
			},
		},
		{
			name: "empty values are ignored",
			vars: map[string]string{"CLASSIFIER_URL": ""},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "http://localhost:5000", cfg.Classifier.Endpoint)
			},
		},
		{
			name:    "bad number",
			vars:    map[string]string{"CLASSIFIER_TIMEOUT": "soon"},
			wantErr: "invalid CLASSIFIER_TIMEOUT",
		},
		{
			name:    "bad bool",
			vars:    map[string]string{"EXOCLASSIFY_STRICT": "maybe"},
			wantErr: "invalid EXOCLASSIFY_STRICT",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(env(tt.vars))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Classifier.TimeoutMs = 0
	cfg.Batch.Concurrency = 0
	cfg.Briefing.Provider = "claude"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier timeout must be positive")
	assert.Contains(t, err.Error(), "concurrency must be at least 1")
	assert.Contains(t, err.Error(), "unknown briefing provider: claude")
}
