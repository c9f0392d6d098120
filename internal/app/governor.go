package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/audit"
	"toolgate/internal/infra/limiter"
	"toolgate/internal/infra/offload"
	"toolgate/internal/infra/router"
	"toolgate/internal/infra/telemetry"
)

// ToolCall is one execution request from the agent loop.
type ToolCall struct {
	TraceID string
	Caller  domain.Caller
	Tool    string
	Args    map[string]any
}

// ExecuteResult is always returned, even for denied or failed calls: the
// textual result is what the model sees next turn.
type ExecuteResult struct {
	Result   string
	Outcome  domain.CallOutcome
	RecordID string
}

// Governor is the admission pipeline every tool call passes through:
// permission check, argument validation, rate limit and cache, result
// offloading, and a PENDING-to-terminal audit pair around it all.
type Governor struct {
	router    *router.SemanticRouter
	snapshots router.SnapshotProvider
	gate      router.AdmissionGate
	limiter   *limiter.Limiter
	offloader *offload.Offloader
	ledger    *audit.Ledger
	logger    *zap.Logger
	metrics   domain.Metrics
	now       func() time.Time

	mu       sync.RWMutex
	invokers map[string]domain.Invoker
}

type GovernorOptions struct {
	Router    *router.SemanticRouter
	Snapshots router.SnapshotProvider
	Gate      router.AdmissionGate
	Limiter   *limiter.Limiter
	Offloader *offload.Offloader
	Ledger    *audit.Ledger
	Logger    *zap.Logger
	Metrics   domain.Metrics
	Now       func() time.Time
}

func NewGovernor(opts GovernorOptions) *Governor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Governor{
		router:    opts.Router,
		snapshots: opts.Snapshots,
		gate:      opts.Gate,
		limiter:   opts.Limiter,
		offloader: opts.Offloader,
		ledger:    opts.Ledger,
		logger:    logger.Named("governor"),
		metrics:   opts.Metrics,
		now:       now,
		invokers:  make(map[string]domain.Invoker),
	}
}

// RegisterInvoker binds the execution function for a named tool.
func (g *Governor) RegisterInvoker(toolName string, invoke domain.Invoker) {
	g.mu.Lock()
	g.invokers[toolName] = invoke
	g.mu.Unlock()
}

// Route exposes the per-turn tool subset for the caller.
func (g *Governor) Route(ctx context.Context, query string, caller domain.Caller, contextTag string) (domain.RouteResult, error) {
	return g.router.Route(ctx, query, caller.Role, contextTag)
}

// RouteSkills exposes matching skills for the caller.
func (g *Governor) RouteSkills(ctx context.Context, query string, caller domain.Caller) ([]domain.SkillDescriptor, error) {
	return g.router.RouteSkills(ctx, query, caller.Role)
}

// Execute runs one governed tool call. Every attempt, including denials,
// leaves an audit pair behind; the returned result is always usable as
// model-facing text.
func (g *Governor) Execute(ctx context.Context, call ToolCall) (ExecuteResult, error) {
	if err := ctx.Err(); err != nil {
		return ExecuteResult{}, err
	}
	start := g.now()
	traceID := call.TraceID
	if traceID == "" {
		traceID = telemetry.TraceIDFromContext(ctx)
	}

	descriptor, known := g.snapshots.Snapshot().Lookup(call.Tool)
	if !known {
		recordID := g.begin(ctx, call, traceID, domain.AuditActionToolCall)
		g.complete(recordID, domain.AuditStatusFailure, domain.ErrUnknownTool.Error(), start)
		g.observe(call.Tool, domain.CallOutcomeError, start)
		return ExecuteResult{
			Result:   fmt.Sprintf("Unknown tool %q.", call.Tool),
			Outcome:  domain.CallOutcomeError,
			RecordID: recordID,
		}, nil
	}

	if decision := g.gate.Check(call.Caller.Role, descriptor); !decision.Allowed {
		g.logger.Warn("tool call denied",
			telemetry.EventField(telemetry.EventPermissionDenied),
			telemetry.ToolField(call.Tool),
			telemetry.RoleField(call.Caller.Role),
			telemetry.TraceIDField(traceID),
			zap.String("reason", decision.Reason))
		recordID := g.begin(ctx, call, traceID, domain.AuditActionToolDenied)
		g.complete(recordID, domain.AuditStatusFailure, "permission denied: "+decision.Reason, start)
		g.observe(call.Tool, domain.CallOutcomeDenied, start)
		return ExecuteResult{
			Result:   fmt.Sprintf("Tool %q is not permitted for your role.", call.Tool),
			Outcome:  domain.CallOutcomeDenied,
			RecordID: recordID,
		}, nil
	}

	recordID := g.begin(ctx, call, traceID, domain.AuditActionToolCall)

	if issue := validateArgs(descriptor.InputSchema, call.Args); issue != "" {
		g.complete(recordID, domain.AuditStatusFailure, issue, start)
		g.observe(call.Tool, domain.CallOutcomeInvalidArgs, start)
		return ExecuteResult{
			Result:   fmt.Sprintf("Invalid arguments for tool %q: %s", call.Tool, issue),
			Outcome:  domain.CallOutcomeInvalidArgs,
			RecordID: recordID,
		}, nil
	}

	result := g.limiter.Call(ctx, call.Tool, call.Args, g.invoker(call.Tool))

	if err := ctx.Err(); err != nil {
		g.complete(recordID, domain.AuditStatusFailure, "cancelled: "+err.Error(), start)
		g.observe(call.Tool, domain.CallOutcomeError, start)
		return ExecuteResult{}, err
	}

	switch result.Outcome {
	case limiter.OutcomeInvoked:
		value := g.offloader.Process(call.Tool, result.Value)
		g.complete(recordID, domain.AuditStatusSuccess, "", start)
		g.observe(call.Tool, domain.CallOutcomeSuccess, start)
		return ExecuteResult{Result: value, Outcome: domain.CallOutcomeSuccess, RecordID: recordID}, nil
	case limiter.OutcomeCached:
		value := g.offloader.Process(call.Tool, result.Value)
		g.complete(recordID, domain.AuditStatusSuccess, "", start)
		g.observe(call.Tool, domain.CallOutcomeCached, start)
		return ExecuteResult{Result: value, Outcome: domain.CallOutcomeCached, RecordID: recordID}, nil
	case limiter.OutcomeRateLimited:
		g.complete(recordID, domain.AuditStatusFailure, "rate limit exceeded", start)
		g.observe(call.Tool, domain.CallOutcomeRateLimited, start)
		return ExecuteResult{Result: result.Value, Outcome: domain.CallOutcomeRateLimited, RecordID: recordID}, nil
	default:
		g.complete(recordID, domain.AuditStatusFailure, result.ErrText, start)
		g.observe(call.Tool, domain.CallOutcomeError, start)
		return ExecuteResult{Result: result.Value, Outcome: domain.CallOutcomeError, RecordID: recordID}, nil
	}
}

func (g *Governor) begin(ctx context.Context, call ToolCall, traceID string, action domain.AuditAction) string {
	if g.ledger == nil {
		return ""
	}
	recordID, err := g.ledger.Begin(ctx, audit.BeginFields{
		TraceID:   traceID,
		UserID:    call.Caller.UserID,
		ToolName:  call.Tool,
		Action:    action,
		Arguments: call.Args,
	})
	if err != nil {
		g.logger.Warn("audit record open failed",
			telemetry.EventField(telemetry.EventAuditWriteError),
			telemetry.ToolField(call.Tool),
			zap.Error(err))
		return ""
	}
	return recordID
}

func (g *Governor) complete(recordID string, status domain.AuditStatus, errText string, start time.Time) {
	if g.ledger == nil || recordID == "" {
		return
	}
	g.ledger.Complete(recordID, audit.Completion{
		Status:   status,
		Error:    errText,
		Duration: g.now().Sub(start),
	})
}

func (g *Governor) observe(tool string, outcome domain.CallOutcome, start time.Time) {
	if g.metrics == nil {
		return
	}
	g.metrics.ObserveToolCall(tool, outcome, g.now().Sub(start))
}

func (g *Governor) invoker(toolName string) domain.Invoker {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.invokers[toolName]
}

// validateArgs checks the arguments against the tool's input schema and
// returns a model-readable issue, or "" when the call is valid. Tools
// without a schema accept anything.
func validateArgs(schemaDoc map[string]any, args map[string]any) string {
	if len(schemaDoc) == 0 {
		return ""
	}
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return fmt.Sprintf("unusable input schema: %v", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Sprintf("unusable input schema: %v", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Sprintf("unusable input schema: %v", err)
	}

	// Round-trip through JSON so validation sees the same shapes a wire
	// payload would.
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("unencodable arguments: %v", err)
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return fmt.Sprintf("unencodable arguments: %v", err)
	}
	if decoded == nil {
		decoded = map[string]any{}
	}
	if err := resolved.Validate(decoded); err != nil {
		return err.Error()
	}
	return ""
}
