package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(PathEnvVar, "")
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, EnvPrefix) && name != PathEnvVar {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg.Train.Dim != def.Train.Dim || cfg.Engine.DefaultTopK != def.Engine.DefaultTopK {
		t.Fatalf("defaults not applied: %+v", cfg.Train)
	}
	if cfg.Engine.SourceTimeout != 500*time.Millisecond {
		t.Fatalf("source_timeout = %v", cfg.Engine.SourceTimeout)
	}
	if len(cfg.Experiment.Groups) != 2 || cfg.Persist.Backend != BackendNone {
		t.Fatalf("experiment/persist = %+v %+v", cfg.Experiment, cfg.Persist)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "graphrec.yaml")
	yaml := `
train:
  dim: 16
  max_epochs: 30
engine:
  source_timeout: 250ms
index:
  hnsw:
    ef_search: 128
persist:
  backend: badger
log:
  format: console
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GRAPHREC_TRAIN_MAX_EPOCHS", "7")
	t.Setenv("GRAPHREC_EXPERIMENT_GROUPS", "a, b ,c")
	t.Setenv("GRAPHREC_UNRELATED", "x")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Train.Dim != 16 {
		t.Errorf("dim = %d, want 16 from file", cfg.Train.Dim)
	}
	if cfg.Train.MaxEpochs != 7 {
		t.Errorf("max_epochs = %d, want 7 from env", cfg.Train.MaxEpochs)
	}
	if cfg.Train.LearningRate != Default().Train.LearningRate {
		t.Errorf("learning_rate lost its default: %v", cfg.Train.LearningRate)
	}
	if cfg.Engine.SourceTimeout != 250*time.Millisecond {
		t.Errorf("source_timeout = %v", cfg.Engine.SourceTimeout)
	}
	if cfg.Index.HNSW.EfSearch != 128 || cfg.Index.HNSW.M != Default().Index.HNSW.M {
		t.Errorf("hnsw = %+v", cfg.Index.HNSW)
	}
	if got := cfg.Experiment.Groups; len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("groups = %q", got)
	}
	if cfg.Persist.Backend != BackendBadger || cfg.Log.Format != "console" {
		t.Errorf("persist/log = %+v %+v", cfg.Persist, cfg.Log)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRAPHREC_TRAIN_DIM", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("expected dim validation error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.Engine.Weights = map[string]float64{"genre": -1} }},
		{"holdout ratio", func(c *Config) { c.Train.HoldoutRatio = 1 }},
		{"min recall", func(c *Config) { c.Index.MinRecall = 1.5 }},
		{"backend", func(c *Config) { c.Persist.Backend = "s3" }},
		{"schedule", func(c *Config) { c.Retrain.Schedule = "every day" }},
		{"groups", func(c *Config) { c.Experiment.Groups = nil }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"embedder model", func(c *Config) { c.Embedder.Endpoint = "http://kserve:8080" }},
		{"embedder protocol", func(c *Config) { c.Embedder.Endpoint, c.Embedder.ModelName, c.Embedder.Protocol = "http://kserve:8080", "minilm", "grpc" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn"}.NewLogger(&buf)
	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "test").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"message":"shown"`) {
		t.Fatalf("log output = %s", out)
	}
}
