package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/notely/pkg/config/provider"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "notely.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_YAML(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  port: 9090
  read_timeout: 5s
  cors_origins: [http://localhost:3000]
rate_limit:
  requests_per_minute: 10
  requests_per_day: 100
  sweep_interval: 30s
llm:
  api_key: test-key
  temperature: 0.2
observability:
  metrics:
    enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(10), cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, int64(100), cfg.RateLimit.RequestsPerDay)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.SweepInterval)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, 0.2, *cfg.LLM.Temperature)
	assert.True(t, cfg.Observability.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Observability.Metrics.Endpoint)
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"llm": {"api_key": "k"}, "rate_limit": {"requests_per_day": 50}}`))
	require.NoError(t, err)

	assert.Equal(t, int64(50), cfg.RateLimit.RequestsPerDay)
	assert.Equal(t, int64(5), cfg.RateLimit.RequestsPerMinute)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("NOTELY_TEST_KEY", "from-env")
	t.Setenv("NOTELY_TEST_PORT", "7070")

	cfg, err := Parse([]byte(`
server:
  port: ${NOTELY_TEST_PORT}
  host: ${NOTELY_TEST_HOST:-127.0.0.1}
llm:
  api_key: $NOTELY_TEST_KEY
`))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestParse_APIKeyFallsBackToEnvironment(t *testing.T) {
	t.Setenv(GeminiAPIKeyEnv, "fallback")

	cfg, err := Parse([]byte("server:\n  port: 8081\n"))
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.LLM.APIKey)
}

func TestParse_Errors(t *testing.T) {
	t.Setenv(GeminiAPIKeyEnv, "k")

	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{"invalid syntax", "server: [", "failed to parse config"},
		{"unknown key", "server:\n  prot: 80\n", "failed to decode config"},
		{"wrong type", "rate_limit:\n  requests_per_minute: lots\n", "failed to decode config"},
		{"validation", "rate_limit:\n  requests_per_minute: -3\n", "config validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	t.Setenv(GeminiAPIKeyEnv, "k")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "llm:\n  api_key: k\nlogger:\n  level: debug\n")

	cfg, loader, err := LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, provider.TypeFile, loader.Provider().Type())

	_, _, err = LoadConfigFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoader_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "llm:\n  api_key: k\nlogger:\n  level: info\n")

	p, err := provider.NewFileProvider(path, provider.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	var mu sync.Mutex
	var reloaded []*Config
	loader := NewLoader(p, WithOnChange(func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = append(reloaded, cfg)
	}))
	defer loader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()

	// Invalid revisions are skipped, valid ones delivered.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("llm:\n  api_key: k\nlogger:\n  level: debug\n"), 0o644)
		mu.Lock()
		defer mu.Unlock()
		return len(reloaded) > 0
	}, 5*time.Second, 100*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "debug", reloaded[len(reloaded)-1].Logger.Level)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancellation")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NOTELY_DOTENV_A=from-dotenv\nNOTELY_DOTENV_B=dotenv\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("NOTELY_DOTENV_A=from-local\n"), 0o644))

	t.Setenv("NOTELY_DOTENV_B", "process")
	t.Setenv("NOTELY_DOTENV_A", "")
	require.NoError(t, os.Unsetenv("NOTELY_DOTENV_A"))

	require.NoError(t, LoadDotEnv(dir))

	assert.Equal(t, "from-local", os.Getenv("NOTELY_DOTENV_A"))
	assert.Equal(t, "process", os.Getenv("NOTELY_DOTENV_B"), "the process environment wins")

	assert.NoError(t, LoadDotEnv(t.TempDir()), "missing files are ignored")
}
