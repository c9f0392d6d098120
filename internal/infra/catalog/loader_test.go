package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolgate/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	loader := NewLoader(nil)
	cfg, err := loader.Load("")
	require.NoError(t, err)

	require.Equal(t, domain.DefaultTopK, cfg.Routing.TopK)
	require.Equal(t, domain.DefaultScoreThreshold, cfg.Routing.ScoreThreshold)
	require.Equal(t, domain.DefaultRateMaxCalls, cfg.Limits.Default.MaxCalls)
	require.Equal(t, domain.DefaultRateWindow, cfg.Limits.Default.Window)
	require.Equal(t, domain.DefaultOffloadThreshold, cfg.Offload.Threshold)
	require.Equal(t, domain.DefaultAuditQueueSize, cfg.Audit.QueueSize)
	require.Equal(t, domain.DefaultEmbeddingDimension, cfg.Embedding.Dimension)
	require.Equal(t, domain.DefaultObservabilityListenAddress, cfg.Observability.ListenAddress)
	require.Empty(t, cfg.Limits.PerTool)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
catalogPath: /etc/toolgate/catalog.toml
routing:
  topK: 3
  scoreThreshold: 0.5
limits:
  maxCalls: 10
  windowSeconds: 2
  cacheTTLSeconds: 60
perToolLimits:
  get_weather:
    maxCalls: 2
    windowSeconds: 5
    cacheTTLSeconds: 300
offload:
  dir: /var/lib/toolgate/offload
  threshold: 8000
audit:
  path: /var/lib/toolgate/audit.db
  writers: 4
embedding:
  baseURL: http://localhost:11434/v1
  model: nomic-embed-text
  apiKeyEnvVar: EMBED_API_KEY
permissions:
  guestDomains: [search]
  denyTools:
    user: [run_script]
observability:
  enabled: true
  listenAddress: "127.0.0.1:9200"
`)

	cfg, err := NewLoader(nil).Load(path)
	require.NoError(t, err)

	require.Equal(t, "/etc/toolgate/catalog.toml", cfg.CatalogPath)
	require.Equal(t, 3, cfg.Routing.TopK)
	require.Equal(t, 0.5, cfg.Routing.ScoreThreshold)
	// Untouched keys keep their defaults.
	require.Equal(t, domain.DefaultSkillThreshold, cfg.Routing.SkillThreshold)

	require.Equal(t, 10, cfg.Limits.Default.MaxCalls)
	require.Equal(t, 2*time.Second, cfg.Limits.Default.Window)
	require.Equal(t, time.Minute, cfg.Limits.Default.CacheTTL)

	weather, ok := cfg.Limits.PerTool["get_weather"]
	require.True(t, ok)
	require.Equal(t, 2, weather.MaxCalls)
	require.Equal(t, 5*time.Second, weather.Window)
	require.Equal(t, 5*time.Minute, weather.CacheTTL)

	require.Equal(t, "/var/lib/toolgate/offload", cfg.Offload.Dir)
	require.Equal(t, 8000, cfg.Offload.Threshold)
	require.Equal(t, 4, cfg.Audit.Writers)
	require.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	require.Equal(t, "EMBED_API_KEY", cfg.Embedding.APIKeyEnvVar)
	require.Equal(t, []string{"search"}, cfg.Permissions.GuestDomains)
	require.Equal(t, []string{"run_script"}, cfg.Permissions.DenyTools["user"])
	require.True(t, cfg.Observability.Enabled)
	require.Equal(t, "127.0.0.1:9200", cfg.Observability.ListenAddress)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(nil).Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "routing: [not a map")
	_, err := NewLoader(nil).Load(path)
	require.Error(t, err)
}
