package domain

import "time"

// AuditStatus is the lifecycle state of an audit record. Every record is
// written as PENDING before its call runs and moved to exactly one
// terminal status afterwards.
type AuditStatus string

const (
	AuditStatusPending AuditStatus = "PENDING"
	AuditStatusSuccess AuditStatus = "SUCCESS"
	AuditStatusFailure AuditStatus = "FAILURE"
	// AuditStatusUnknown marks records abandoned by a crash and
	// reconciled on the next startup sweep.
	AuditStatusUnknown AuditStatus = "UNKNOWN"
)

// Terminal reports whether the status can no longer change.
func (s AuditStatus) Terminal() bool {
	switch s {
	case AuditStatusSuccess, AuditStatusFailure, AuditStatusUnknown:
		return true
	}
	return false
}

type AuditAction string

const (
	AuditActionToolCall   AuditAction = "tool_call"
	AuditActionToolDenied AuditAction = "tool_denied"
)

// AuditRecord is one governed tool call attempt. Arguments are stored in
// redacted string form.
type AuditRecord struct {
	ID          string            `json:"id"`
	TraceID     string            `json:"trace_id,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	ToolName    string            `json:"tool_name"`
	Action      AuditAction       `json:"action"`
	Arguments   map[string]string `json:"arguments,omitempty"`
	Status      AuditStatus       `json:"status"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	DurationMs  int64             `json:"duration_ms,omitempty"`
}
