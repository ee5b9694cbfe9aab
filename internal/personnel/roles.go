package personnel

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the closed set of roles a record may carry.
type Role string

const (
	RoleCEO Role = "ceo"
	RoleCOO Role = "coo"
	RoleCTO Role = "cto"
	RoleCMO Role = "cmo"

	RoleProjectManager     Role = "project_manager"
	RoleEngineeringManager Role = "engineering_manager"
	RoleMarketingManager   Role = "marketing_manager"

	RoleContentWriter Role = "content_writer"
	RoleDeveloper     Role = "developer"
	RoleDesigner      Role = "designer"
)

// DefaultLeaderRole is the leadership role selected when a session starts.
const DefaultLeaderRole = RoleCEO

type roleInfo struct {
	tier     Tier
	label    string
	children []Role
}

// roleTable is the single source of truth for tiers and drill-down routing.
// A leader with no explicit routing sees every mid-tier role.
var roleTable = map[Role]roleInfo{
	RoleCEO: {tier: TierLeadership, label: "Chief Executive Officer"},
	RoleCOO: {tier: TierLeadership, label: "Chief Operating Officer", children: []Role{RoleProjectManager}},
	RoleCTO: {tier: TierLeadership, label: "Chief Technology Officer", children: []Role{RoleEngineeringManager}},
	RoleCMO: {tier: TierLeadership, label: "Chief Marketing Officer", children: []Role{RoleMarketingManager}},

	RoleProjectManager:     {tier: TierMid, label: "Project Manager", children: []Role{RoleContentWriter}},
	RoleEngineeringManager: {tier: TierMid, label: "Engineering Manager", children: []Role{RoleDeveloper}},
	RoleMarketingManager:   {tier: TierMid, label: "Marketing Manager", children: []Role{RoleDesigner}},

	RoleContentWriter: {tier: TierExecution, label: "Content Writer"},
	RoleDeveloper:     {tier: TierExecution, label: "Developer"},
	RoleDesigner:      {tier: TierExecution, label: "Designer"},
}

// Roles returns every known role in a stable order: by tier, then by name.
func Roles() []Role {
	out := make([]Role, 0, len(roleTable))
	for _, tier := range []Tier{TierLeadership, TierMid, TierExecution} {
		out = append(out, RolesInTier(tier)...)
	}
	return out
}

// RolesInTier returns the roles of a tier sorted by name.
func RolesInTier(tier Tier) []Role {
	var out []Role
	for role, info := range roleTable {
		if info.tier == tier {
			out = append(out, role)
		}
	}
	sortRoles(out)
	return out
}

// ParseRole normalizes and validates a role string.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleTable[role]; !ok {
		return Role(value), fmt.Errorf("invalid role %q", value)
	}
	return role, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleTable[r]
	return ok
}

// Tier returns the tier of the role. Unknown roles panic: the Registry never
// admits them, so reaching this with one is a programming error.
func (r Role) Tier() Tier {
	info, ok := roleTable[r]
	if !ok {
		panic(fmt.Sprintf("personnel: unknown role %q", string(r)))
	}
	return info.tier
}

// Label is the human-readable title of the role.
func (r Role) Label() string {
	if info, ok := roleTable[r]; ok {
		return info.label
	}
	return string(r)
}

// SubordinateRoles returns the roles visible one tier below r.
func (r Role) SubordinateRoles() []Role {
	info, ok := roleTable[r]
	if !ok {
		return nil
	}
	if len(info.children) > 0 {
		return append([]Role(nil), info.children...)
	}
	if info.tier == TierLeadership {
		return RolesInTier(TierMid)
	}
	return nil
}

// Routes reports whether a child with role child is shown under a parent with role r.
func (r Role) Routes(child Role) bool {
	for _, candidate := range r.SubordinateRoles() {
		if candidate == child {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

func sortRoles(roles []Role) {
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
}
