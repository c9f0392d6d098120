package router

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

// SnapshotProvider exposes the active capability index snapshot.
type SnapshotProvider interface {
	Snapshot() *domain.IndexSnapshot
}

// AdmissionGate filters what a role may see.
type AdmissionGate interface {
	Check(role string, tool domain.ToolDescriptor) domain.Decision
	RoleSatisfies(callerRole, requiredRole string) bool
}

// SemanticRouter ranks and filters the capability set for one user turn.
type SemanticRouter struct {
	snapshots SnapshotProvider
	embedder  embedding.Embedder
	gate      AdmissionGate
	logger    *zap.Logger
	metrics   domain.Metrics

	topK           int
	threshold      float64
	skillThreshold float64
	epsilon        float64
	discoveryCap   int
	now            func() time.Time
}

type Options struct {
	Routing domain.RoutingConfig
	Logger  *zap.Logger
	Metrics domain.Metrics
	Now     func() time.Time
}

func New(snapshots SnapshotProvider, embedder embedding.Embedder, gate AdmissionGate, opts Options) *SemanticRouter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Routing
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = domain.DefaultScoreThreshold
	}
	if cfg.SkillThreshold <= 0 {
		cfg.SkillThreshold = domain.DefaultSkillThreshold
	}
	if cfg.CollisionEpsilon <= 0 {
		cfg.CollisionEpsilon = domain.DefaultCollisionEpsilon
	}
	if cfg.DiscoveryCap <= 0 {
		cfg.DiscoveryCap = domain.DefaultDiscoveryCap
	}
	return &SemanticRouter{
		snapshots:      snapshots,
		embedder:       embedder,
		gate:           gate,
		logger:         logger.Named("router"),
		metrics:        opts.Metrics,
		topK:           cfg.TopK,
		threshold:      cfg.ScoreThreshold,
		skillThreshold: cfg.SkillThreshold,
		epsilon:        cfg.CollisionEpsilon,
		discoveryCap:   cfg.DiscoveryCap,
		now:            now,
	}
}

type candidate struct {
	tool     domain.ToolDescriptor
	raw      float64
	adjusted float64
}

// Route returns the tool subset visible to the model this turn. It never
// fails the turn: when the index or the embedding provider is unavailable
// it degrades to all permitted tools.
func (r *SemanticRouter) Route(ctx context.Context, query, role, contextTag string) (domain.RouteResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.RouteResult{}, err
	}
	start := r.now()

	snap := r.snapshots.Snapshot()
	if snap == nil {
		r.observeRoute(domain.RouteStatusDegraded, start)
		return domain.RouteResult{Degraded: true}, nil
	}

	query = strings.TrimSpace(query)
	if len(snap.Vectors) != len(snap.Routed) {
		return r.fallback(snap, role, start, true), nil
	}
	if query == "" || len(snap.Routed) == 0 {
		return r.fallback(snap, role, start, false), nil
	}

	vectors, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		r.logger.Warn("query embedding failed, degrading to all permitted tools",
			telemetry.EventField(telemetry.EventRouteDegraded),
			telemetry.RoleField(role),
			zap.Error(err))
		return r.fallback(snap, role, start, true), nil
	}
	q := vectors[0]
	if magnitude(q) == 0 {
		result := domain.RouteResult{Tools: r.permitted(snap.Core, role)}
		r.observeRoute(domain.RouteStatusRanked, start)
		return result, nil
	}

	candidates := make([]candidate, 0, len(snap.Routed))
	for i, tool := range snap.Routed {
		raw := cosine(snap.Vectors[i], q)
		candidates = append(candidates, candidate{
			tool:     tool,
			raw:      raw,
			adjusted: raw * affinityMultiplier(contextTag, tool.Domain),
		})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].adjusted != candidates[b].adjusted {
			return candidates[a].adjusted > candidates[b].adjusted
		}
		return candidates[a].tool.Name < candidates[b].tool.Name
	})

	accepted := make([]candidate, 0, r.topK)
	for _, c := range candidates {
		if len(accepted) >= r.topK {
			break
		}
		if c.adjusted < r.threshold {
			break
		}
		accepted = append(accepted, c)
	}

	warning := r.detectCollision(accepted, query)
	extras := r.discover(snap, accepted)

	ordered := make([]domain.ToolDescriptor, 0, len(snap.Core)+len(accepted)+len(extras))
	ordered = append(ordered, snap.Core...)
	for _, c := range accepted {
		ordered = append(ordered, c.tool)
	}
	ordered = append(ordered, extras...)

	result := domain.RouteResult{
		Tools:     dedupe(r.permitted(ordered, role)),
		Ambiguity: warning,
	}
	r.observeRoute(domain.RouteStatusRanked, start)
	return result, nil
}

// RouteSkills selects instructional skills for the query. There is no
// affinity scoring or discovery heuristic for skills, and an unavailable
// index simply yields none.
func (r *SemanticRouter) RouteSkills(ctx context.Context, query, role string) ([]domain.SkillDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := r.snapshots.Snapshot()
	query = strings.TrimSpace(query)
	if snap == nil || query == "" || len(snap.Skills) == 0 || len(snap.SkillVectors) != len(snap.Skills) {
		return nil, nil
	}

	vectors, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		r.logger.Warn("skill query embedding failed",
			telemetry.EventField(telemetry.EventRouteDegraded),
			zap.Error(err))
		return nil, nil
	}
	q := vectors[0]
	if magnitude(q) == 0 {
		return nil, nil
	}

	type scored struct {
		skill domain.SkillDescriptor
		score float64
	}
	ranked := make([]scored, 0, len(snap.Skills))
	for i, skill := range snap.Skills {
		if !r.gate.RoleSatisfies(role, skill.RequiredRole) {
			continue
		}
		ranked = append(ranked, scored{skill: skill, score: cosine(snap.SkillVectors[i], q)})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].skill.Name < ranked[b].skill.Name
	})

	var out []domain.SkillDescriptor
	for _, s := range ranked {
		if len(out) >= r.topK || s.score < r.skillThreshold {
			break
		}
		out = append(out, s.skill)
	}
	return out, nil
}

func (r *SemanticRouter) fallback(snap *domain.IndexSnapshot, role string, start time.Time, degraded bool) domain.RouteResult {
	result := domain.RouteResult{
		Tools:    dedupe(r.permitted(snap.AllTools(), role)),
		Degraded: degraded,
	}
	status := domain.RouteStatusRanked
	if degraded {
		status = domain.RouteStatusDegraded
	}
	r.observeRoute(status, start)
	return result
}

func (r *SemanticRouter) permitted(tools []domain.ToolDescriptor, role string) []domain.ToolDescriptor {
	out := make([]domain.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		if r.gate.Check(role, t).Allowed {
			out = append(out, t)
		}
	}
	return out
}

// detectCollision flags the turn when the two best candidates come from
// different domains and scored too closely to be confident of intent.
func (r *SemanticRouter) detectCollision(accepted []candidate, query string) *domain.AmbiguityWarning {
	if len(accepted) < 2 {
		return nil
	}
	first, second := accepted[0], accepted[1]
	if first.tool.Domain == second.tool.Domain {
		return nil
	}
	gap := first.adjusted - second.adjusted
	if gap >= r.epsilon {
		return nil
	}
	warning := &domain.AmbiguityWarning{
		First:        first.tool.Name,
		FirstDomain:  first.tool.Domain,
		Second:       second.tool.Name,
		SecondDomain: second.tool.Domain,
		Gap:          gap,
	}
	r.logger.Warn("ambiguous domain intent",
		telemetry.EventField(telemetry.EventRouteAmbiguous),
		zap.String("first", warning.First),
		zap.String("first_domain", warning.FirstDomain),
		zap.String("second", warning.Second),
		zap.String("second_domain", warning.SecondDomain),
		zap.Float64("gap", warning.Gap),
		zap.String("query", query))
	return warning
}

// discover pulls in read-only tools from every domain that produced an
// accepted match, so the model can explore a newly activated domain
// without being handed its write actions.
func (r *SemanticRouter) discover(snap *domain.IndexSnapshot, accepted []candidate) []domain.ToolDescriptor {
	if len(accepted) == 0 {
		return nil
	}
	domains := make(map[string]struct{}, len(accepted))
	selected := make(map[string]struct{}, len(accepted))
	for _, c := range accepted {
		domains[c.tool.Domain] = struct{}{}
		selected[c.tool.Name] = struct{}{}
	}

	// Core tools are always in the result, so only routed tools compete
	// for the discovery slots.
	var extras []domain.ToolDescriptor
	for _, tool := range snap.Routed {
		if len(extras) >= r.discoveryCap {
			break
		}
		if _, ok := domains[tool.Domain]; !ok {
			continue
		}
		if _, ok := selected[tool.Name]; ok {
			continue
		}
		if !hasDiscoveryPrefix(tool.Name) {
			continue
		}
		extras = append(extras, tool)
		selected[tool.Name] = struct{}{}
	}
	return extras
}

func (r *SemanticRouter) observeRoute(status domain.RouteStatus, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveRoute(status, r.now().Sub(start))
}

func hasDiscoveryPrefix(name string) bool {
	for _, prefix := range domain.DiscoveryPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func dedupe(tools []domain.ToolDescriptor) []domain.ToolDescriptor {
	seen := make(map[string]struct{}, len(tools))
	out := make([]domain.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		if _, ok := seen[t.Name]; ok {
			continue
		}
		seen[t.Name] = struct{}{}
		out = append(out, t)
	}
	return out
}

// cosine computes (a·b)/(|a||b|), returning 0 for mismatched or zero
// vectors.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func magnitude(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
