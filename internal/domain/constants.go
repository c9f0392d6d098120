package domain

import "time"

const (
	DefaultRequiredRole = "user"

	DefaultTopK             = 5
	DefaultScoreThreshold   = 0.35
	DefaultSkillThreshold   = 0.30
	DefaultCollisionEpsilon = 0.08
	DefaultDiscoveryCap     = 5

	// Domain affinity multipliers applied to raw cosine similarity.
	SameFamilyBoost      = 1.15
	AdjacentFamilyFactor = 1.0
	ForeignFamilyPenalty = 0.70

	DefaultRateMaxCalls = 5
	DefaultRateWindow   = time.Second
	// Caching is opt-in per tool; a zero TTL disables the result cache.
	DefaultCacheTTL = time.Duration(0)

	DefaultOffloadThreshold = 5000
	DefaultTruncateLength   = 2000

	DefaultAuditQueueSize   = 256
	DefaultAuditWriters     = 2
	DefaultAuditSweepCutoff = time.Hour

	DefaultEmbeddingDimension = 768

	DefaultReloadDebounce = 200 * time.Millisecond

	DefaultObservabilityListenAddress = "0.0.0.0:9091"
)

// Well-known roles. Roles rank admin > operator > user > guest; a tool's
// required role is satisfied by any caller ranked at or above it.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleUser     = "user"
	RoleGuest    = "guest"
)

// DiscoveryPrefixes mark read-only tools pulled in by the boundary
// heuristic when their domain produced an accepted match.
var DiscoveryPrefixes = []string{"get_", "list_", "search_", "read_", "query_"}
