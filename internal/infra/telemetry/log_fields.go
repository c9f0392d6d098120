package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldTool       = "tool"
	FieldDomain     = "domain"
	FieldRole       = "role"
	FieldTraceID    = "trace_id"
	FieldRecordID   = "record_id"
	FieldDurationMs = "duration_ms"
)

const (
	EventRouteDegraded     = "route_degraded"
	EventRouteAmbiguous    = "route_ambiguous"
	EventIndexRebuildError = "index_rebuild_error"
	EventRateLimited       = "rate_limited"
	EventToolError         = "tool_error"
	EventPermissionDenied  = "permission_denied"
	EventOffloadWritten    = "offload_written"
	EventOffloadError      = "offload_error"
	EventAuditWriteError   = "audit_write_error"
	EventCatalogReload     = "catalog_reload"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

func DomainField(domainTag string) zap.Field {
	return zap.String(FieldDomain, domainTag)
}

func RoleField(role string) zap.Field {
	return zap.String(FieldRole, role)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func RecordIDField(value string) zap.Field {
	return zap.String(FieldRecordID, value)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}
