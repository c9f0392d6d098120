package domain

import "time"

// RoutingConfig tunes the semantic router.
type RoutingConfig struct {
	TopK             int
	ScoreThreshold   float64
	SkillThreshold   float64
	CollisionEpsilon float64
	DiscoveryCap     int
}

// ToolLimitConfig bounds calls to one tool backend.
type ToolLimitConfig struct {
	MaxCalls int
	Window   time.Duration
	CacheTTL time.Duration
}

// LimitsConfig carries the global limit defaults plus per-tool overrides.
type LimitsConfig struct {
	Default ToolLimitConfig
	PerTool map[string]ToolLimitConfig
}

// OffloadConfig controls externalization of oversized tool results.
type OffloadConfig struct {
	Dir            string
	Threshold      int
	TruncateLength int
}

// AuditConfig controls the audit ledger and its writer pool.
type AuditConfig struct {
	Path        string
	QueueSize   int
	Writers     int
	SweepCutoff time.Duration
}

// EmbeddingConfig points at the embedding provider.
type EmbeddingConfig struct {
	BaseURL      string
	APIKey       string
	APIKeyEnvVar string
	Model        string
	Dimension    int
}

// PermissionConfig is the role policy consulted by the permission gate.
type PermissionConfig struct {
	// AllowDomains maps a role to the domains it may call without a
	// required-role match. Roles absent from the map use the default
	// safe-domain set.
	AllowDomains map[string][]string
	// DenyTools maps a role to tool names it may never call.
	DenyTools map[string][]string
	// GuestDomains is the read-only domain set the guest role is
	// restricted to regardless of other policy.
	GuestDomains []string
	// RoleRanks overrides the built-in role ordering.
	RoleRanks map[string]int
}

// ObservabilityConfig controls the optional metrics listener.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddress string
}

// Config is the full governor runtime configuration.
type Config struct {
	CatalogPath   string
	Routing       RoutingConfig
	Limits        LimitsConfig
	Offload       OffloadConfig
	Audit         AuditConfig
	Embedding     EmbeddingConfig
	Permissions   PermissionConfig
	Observability ObservabilityConfig
}
