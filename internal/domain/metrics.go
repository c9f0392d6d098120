package domain

import "time"

// RouteStatus labels the outcome of a routed turn.
type RouteStatus string

const (
	RouteStatusRanked   RouteStatus = "ranked"
	RouteStatusDegraded RouteStatus = "degraded"
	RouteStatusError    RouteStatus = "error"
)

// CallOutcome labels the outcome of one tool execution attempt.
type CallOutcome string

const (
	CallOutcomeSuccess     CallOutcome = "success"
	CallOutcomeError       CallOutcome = "error"
	CallOutcomeDenied      CallOutcome = "denied"
	CallOutcomeRateLimited CallOutcome = "rate_limited"
	CallOutcomeCached      CallOutcome = "cached"
	CallOutcomeInvalidArgs CallOutcome = "invalid_args"
)

// Metrics receives governor observations. Implementations must be safe for
// concurrent use; a nil Metrics is always tolerated by callers.
type Metrics interface {
	ObserveRoute(status RouteStatus, duration time.Duration)
	ObserveToolCall(tool string, outcome CallOutcome, duration time.Duration)
	RecordCacheHit(tool string)
	RecordRateLimited(tool string)
	RecordOffload(format string)
	RecordIndexRebuild(success bool, tools int)
	SetAuditQueueDepth(depth int)
}
