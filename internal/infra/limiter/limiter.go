package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

// Outcome labels how a governed call ended.
type Outcome string

const (
	OutcomeInvoked     Outcome = "invoked"
	OutcomeCached      Outcome = "cached"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeError       Outcome = "error"
)

// CallResult is always data: this layer never propagates errors to its
// caller, since tool results feed the model rather than control flow.
type CallResult struct {
	Value   string
	Outcome Outcome
	// ErrText is set when Outcome is OutcomeError.
	ErrText string
}

// Limiter wraps every tool invocation with a per-tool sliding-window rate
// check and a TTL result cache.
type Limiter struct {
	store   Store
	cfg     domain.LimitsConfig
	logger  *zap.Logger
	metrics domain.Metrics
	now     func() time.Time
}

type Options struct {
	Limits  domain.LimitsConfig
	Logger  *zap.Logger
	Metrics domain.Metrics
	Now     func() time.Time
}

func New(store Store, opts Options) *Limiter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Limits
	if cfg.Default.MaxCalls <= 0 {
		cfg.Default.MaxCalls = domain.DefaultRateMaxCalls
	}
	if cfg.Default.Window <= 0 {
		cfg.Default.Window = domain.DefaultRateWindow
	}
	return &Limiter{
		store:   store,
		cfg:     cfg,
		logger:  logger.Named("limiter"),
		metrics: opts.Metrics,
		now:     now,
	}
}

// Call runs invoke through the rate limit and cache. A cache hit
// short-circuits the invocation; a tripped rate limit returns an
// explanatory result without invoking; invoke errors and panics are
// converted to textual error results.
func (l *Limiter) Call(ctx context.Context, toolName string, args map[string]any, invoke domain.Invoker) CallResult {
	cfg := l.toolConfig(toolName)
	now := l.now()

	if !l.store.Reserve(toolName, now.Add(-cfg.Window), now, cfg.MaxCalls) {
		l.logger.Warn("rate limit exceeded",
			telemetry.EventField(telemetry.EventRateLimited),
			telemetry.ToolField(toolName),
			zap.Int("max_calls", cfg.MaxCalls),
			zap.Duration("window", cfg.Window))
		if l.metrics != nil {
			l.metrics.RecordRateLimited(toolName)
		}
		return CallResult{
			Value: fmt.Sprintf("Rate limit exceeded for tool %q: at most %d calls per %s. Try again shortly.",
				toolName, cfg.MaxCalls, cfg.Window),
			Outcome: OutcomeRateLimited,
		}
	}

	key := cacheKey(toolName, args)
	if cfg.CacheTTL > 0 {
		if entry, ok := l.store.GetResult(key); ok && now.Sub(entry.StoredAt) < cfg.CacheTTL {
			if l.metrics != nil {
				l.metrics.RecordCacheHit(toolName)
			}
			return CallResult{Value: entry.Value, Outcome: OutcomeCached}
		}
	}

	value, err := l.invoke(ctx, toolName, args, invoke)
	if err != nil {
		l.logger.Warn("tool invocation failed",
			telemetry.EventField(telemetry.EventToolError),
			telemetry.ToolField(toolName),
			zap.Error(err))
		return CallResult{
			Value:   fmt.Sprintf("Error executing tool %q: %v", toolName, err),
			Outcome: OutcomeError,
			ErrText: err.Error(),
		}
	}

	if cfg.CacheTTL > 0 {
		l.store.SetResult(key, value, l.now())
	}
	return CallResult{Value: value, Outcome: OutcomeInvoked}
}

func (l *Limiter) invoke(ctx context.Context, toolName string, args map[string]any, invoke domain.Invoker) (value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %q panicked: %v", toolName, r)
		}
	}()
	if invoke == nil {
		return "", domain.ErrUnknownTool
	}
	return invoke(ctx, args)
}

// toolConfig merges the per-tool override with the defaults. Zero fields
// inherit; a negative CacheTTL disables caching for that tool even when a
// default TTL is configured.
func (l *Limiter) toolConfig(toolName string) domain.ToolLimitConfig {
	cfg, ok := l.cfg.PerTool[toolName]
	if !ok {
		return l.cfg.Default
	}
	if cfg.MaxCalls <= 0 {
		cfg.MaxCalls = l.cfg.Default.MaxCalls
	}
	if cfg.Window <= 0 {
		cfg.Window = l.cfg.Default.Window
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = l.cfg.Default.CacheTTL
	}
	return cfg
}

// cacheKey hashes the tool name with the canonical JSON encoding of its
// arguments; encoding/json sorts map keys, so equal argument maps always
// produce the same key.
func cacheKey(toolName string, args map[string]any) string {
	canonical, err := json.Marshal(args)
	if err != nil {
		canonical = []byte(fmt.Sprintf("%v", args))
	}
	sum := sha256.Sum256(append([]byte(toolName+"\x00"), canonical...))
	return hex.EncodeToString(sum[:])
}
