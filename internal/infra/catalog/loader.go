// Package catalog loads the runtime configuration and the tool/skill
// descriptor registry.
package catalog

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"toolgate/internal/domain"
)

// Loader reads the YAML runtime configuration.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

func newRuntimeViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setRuntimeDefaults(v)
	return v
}

func setRuntimeDefaults(v *viper.Viper) {
	v.SetDefault("routing.topK", domain.DefaultTopK)
	v.SetDefault("routing.scoreThreshold", domain.DefaultScoreThreshold)
	v.SetDefault("routing.skillThreshold", domain.DefaultSkillThreshold)
	v.SetDefault("routing.collisionEpsilon", domain.DefaultCollisionEpsilon)
	v.SetDefault("routing.discoveryCap", domain.DefaultDiscoveryCap)
	v.SetDefault("limits.maxCalls", domain.DefaultRateMaxCalls)
	v.SetDefault("limits.windowSeconds", int(domain.DefaultRateWindow/time.Second))
	v.SetDefault("offload.threshold", domain.DefaultOffloadThreshold)
	v.SetDefault("offload.truncateLength", domain.DefaultTruncateLength)
	v.SetDefault("audit.queueSize", domain.DefaultAuditQueueSize)
	v.SetDefault("audit.writers", domain.DefaultAuditWriters)
	v.SetDefault("audit.sweepCutoffSeconds", int(domain.DefaultAuditSweepCutoff/time.Second))
	v.SetDefault("embedding.dimension", domain.DefaultEmbeddingDimension)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
}

type rawConfig struct {
	CatalogPath   string                  `mapstructure:"catalogPath"`
	Routing       rawRoutingConfig        `mapstructure:"routing"`
	Limits        rawLimitsConfig         `mapstructure:"limits"`
	Offload       rawOffloadConfig        `mapstructure:"offload"`
	Audit         rawAuditConfig          `mapstructure:"audit"`
	Embedding     rawEmbeddingConfig      `mapstructure:"embedding"`
	Permissions   rawPermissionConfig     `mapstructure:"permissions"`
	Observability rawObservabilityConfig  `mapstructure:"observability"`
	PerToolLimits map[string]rawToolLimit `mapstructure:"perToolLimits"`
}

type rawRoutingConfig struct {
	TopK             int     `mapstructure:"topK"`
	ScoreThreshold   float64 `mapstructure:"scoreThreshold"`
	SkillThreshold   float64 `mapstructure:"skillThreshold"`
	CollisionEpsilon float64 `mapstructure:"collisionEpsilon"`
	DiscoveryCap     int     `mapstructure:"discoveryCap"`
}

type rawLimitsConfig struct {
	MaxCalls        int `mapstructure:"maxCalls"`
	WindowSeconds   int `mapstructure:"windowSeconds"`
	CacheTTLSeconds int `mapstructure:"cacheTTLSeconds"`
}

type rawToolLimit struct {
	MaxCalls        int `mapstructure:"maxCalls"`
	WindowSeconds   int `mapstructure:"windowSeconds"`
	CacheTTLSeconds int `mapstructure:"cacheTTLSeconds"`
}

type rawOffloadConfig struct {
	Dir            string `mapstructure:"dir"`
	Threshold      int    `mapstructure:"threshold"`
	TruncateLength int    `mapstructure:"truncateLength"`
}

type rawAuditConfig struct {
	Path               string `mapstructure:"path"`
	QueueSize          int    `mapstructure:"queueSize"`
	Writers            int    `mapstructure:"writers"`
	SweepCutoffSeconds int    `mapstructure:"sweepCutoffSeconds"`
}

type rawEmbeddingConfig struct {
	BaseURL      string `mapstructure:"baseURL"`
	APIKey       string `mapstructure:"apiKey"`
	APIKeyEnvVar string `mapstructure:"apiKeyEnvVar"`
	Model        string `mapstructure:"model"`
	Dimension    int    `mapstructure:"dimension"`
}

type rawPermissionConfig struct {
	AllowDomains map[string][]string `mapstructure:"allowDomains"`
	DenyTools    map[string][]string `mapstructure:"denyTools"`
	GuestDomains []string            `mapstructure:"guestDomains"`
	RoleRanks    map[string]int      `mapstructure:"roleRanks"`
}

type rawObservabilityConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listenAddress"`
}

// Load reads the runtime config file. A missing path yields the defaults.
func (l *Loader) Load(path string) (domain.Config, error) {
	v := newRuntimeViper()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return domain.Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
			return domain.Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg := raw.toDomain()
	l.logger.Debug("runtime config loaded",
		zap.String("path", path),
		zap.String("catalog", cfg.CatalogPath),
		zap.Int("per_tool_limits", len(cfg.Limits.PerTool)))
	return cfg, nil
}

func (r rawConfig) toDomain() domain.Config {
	cfg := domain.Config{
		CatalogPath: r.CatalogPath,
		Routing: domain.RoutingConfig{
			TopK:             r.Routing.TopK,
			ScoreThreshold:   r.Routing.ScoreThreshold,
			SkillThreshold:   r.Routing.SkillThreshold,
			CollisionEpsilon: r.Routing.CollisionEpsilon,
			DiscoveryCap:     r.Routing.DiscoveryCap,
		},
		Limits: domain.LimitsConfig{
			Default: domain.ToolLimitConfig{
				MaxCalls: r.Limits.MaxCalls,
				Window:   time.Duration(r.Limits.WindowSeconds) * time.Second,
				CacheTTL: time.Duration(r.Limits.CacheTTLSeconds) * time.Second,
			},
		},
		Offload: domain.OffloadConfig{
			Dir:            r.Offload.Dir,
			Threshold:      r.Offload.Threshold,
			TruncateLength: r.Offload.TruncateLength,
		},
		Audit: domain.AuditConfig{
			Path:        r.Audit.Path,
			QueueSize:   r.Audit.QueueSize,
			Writers:     r.Audit.Writers,
			SweepCutoff: time.Duration(r.Audit.SweepCutoffSeconds) * time.Second,
		},
		Embedding: domain.EmbeddingConfig{
			BaseURL:      r.Embedding.BaseURL,
			APIKey:       r.Embedding.APIKey,
			APIKeyEnvVar: r.Embedding.APIKeyEnvVar,
			Model:        r.Embedding.Model,
			Dimension:    r.Embedding.Dimension,
		},
		Permissions: domain.PermissionConfig{
			AllowDomains: r.Permissions.AllowDomains,
			DenyTools:    r.Permissions.DenyTools,
			GuestDomains: r.Permissions.GuestDomains,
			RoleRanks:    r.Permissions.RoleRanks,
		},
		Observability: domain.ObservabilityConfig{
			Enabled:       r.Observability.Enabled,
			ListenAddress: r.Observability.ListenAddress,
		},
	}
	if len(r.PerToolLimits) > 0 {
		cfg.Limits.PerTool = make(map[string]domain.ToolLimitConfig, len(r.PerToolLimits))
		for name, limit := range r.PerToolLimits {
			cfg.Limits.PerTool[name] = domain.ToolLimitConfig{
				MaxCalls: limit.MaxCalls,
				Window:   time.Duration(limit.WindowSeconds) * time.Second,
				CacheTTL: time.Duration(limit.CacheTTLSeconds) * time.Second,
			}
		}
	}
	return cfg
}
