package permission

import (
	"fmt"

	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

// defaultAllowDomains is the safe-domain set used for roles with no
// explicit allow list.
var defaultAllowDomains = []string{"standard", "utility", "search"}

// defaultGuestDomains is the read-only set the guest role is restricted to.
var defaultGuestDomains = []string{"standard", "search"}

var defaultRoleRanks = map[string]int{
	domain.RoleGuest:    0,
	domain.RoleUser:     1,
	domain.RoleOperator: 2,
	domain.RoleAdmin:    3,
}

// Gate makes admission decisions for (role, tool) pairs. Decisions are
// computed fresh on every check since policy can change between calls;
// nothing is cached.
type Gate struct {
	allowDomains map[string]map[string]struct{}
	denyTools    map[string]map[string]struct{}
	guestDomains map[string]struct{}
	roleRanks    map[string]int
	defaultAllow map[string]struct{}
	logger       *zap.Logger
}

// NewGate builds a gate from policy config. Zero-value config fields fall
// back to the built-in defaults.
func NewGate(cfg domain.PermissionConfig, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		allowDomains: make(map[string]map[string]struct{}, len(cfg.AllowDomains)),
		denyTools:    make(map[string]map[string]struct{}, len(cfg.DenyTools)),
		guestDomains: toSet(cfg.GuestDomains),
		roleRanks:    cfg.RoleRanks,
		defaultAllow: toSet(defaultAllowDomains),
		logger:       logger.Named("permission"),
	}
	for role, domains := range cfg.AllowDomains {
		g.allowDomains[role] = toSet(domains)
	}
	for role, tools := range cfg.DenyTools {
		g.denyTools[role] = toSet(tools)
	}
	if len(g.guestDomains) == 0 {
		g.guestDomains = toSet(defaultGuestDomains)
	}
	if len(g.roleRanks) == 0 {
		g.roleRanks = defaultRoleRanks
	}
	return g
}

// Check decides whether a role may see or execute a tool.
func (g *Gate) Check(role string, tool domain.ToolDescriptor) domain.Decision {
	if role == domain.RoleAdmin {
		return domain.Allow()
	}

	if deny, ok := g.denyTools[role]; ok {
		if _, denied := deny[tool.Name]; denied {
			return domain.Deny(fmt.Sprintf("tool %q is on the deny list for role %q", tool.Name, role))
		}
	}

	// The guest restriction overrides allow lists and role ranks.
	if role == domain.RoleGuest {
		if _, ok := g.guestDomains[tool.Domain]; ok {
			return domain.Allow()
		}
		return domain.Deny(fmt.Sprintf("guest role is restricted to read-only domains, tool domain is %q", tool.Domain))
	}

	allow, restricted := g.allowDomains[role]
	if !restricted {
		allow = g.defaultAllow
	}
	if _, ok := allow[tool.Domain]; ok {
		return domain.Allow()
	}

	// An explicit allow list is a hard domain restriction; without one,
	// a sufficient role rank still admits the call.
	if !restricted && g.RoleSatisfies(role, tool.RequiredRole) {
		return domain.Allow()
	}

	g.logger.Debug("tool denied",
		telemetry.RoleField(role),
		telemetry.ToolField(tool.Name),
		telemetry.DomainField(tool.Domain))
	return domain.Deny(fmt.Sprintf("role %q is not permitted in domain %q", role, tool.Domain))
}

// RoleSatisfies reports whether the caller role ranks at or above the
// required role. Unknown roles rank below guest.
func (g *Gate) RoleSatisfies(callerRole, requiredRole string) bool {
	if requiredRole == "" {
		requiredRole = domain.DefaultRequiredRole
	}
	caller, ok := g.roleRanks[callerRole]
	if !ok {
		caller = -1
	}
	required, ok := g.roleRanks[requiredRole]
	if !ok {
		required = g.roleRanks[domain.RoleAdmin] + 1
	}
	return caller >= required
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		out[v] = struct{}{}
	}
	return out
}
