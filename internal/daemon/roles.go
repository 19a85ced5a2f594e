package daemon

import (
	"fmt"
	"slices"
	"strings"
)

// Role names one responsibility a daemon process can host.
type Role string

const (
	RoleIngress  Role = "ingress"
	RoleWorker   Role = "worker"
	RoleConsumer Role = "consumer"
)

// AllRoles lists every role in start order.
func AllRoles() []Role {
	return []Role{RoleWorker, RoleConsumer, RoleIngress}
}

// Roles is the set of roles one process runs.
type Roles map[Role]bool

// ParseRoles accepts "all" or a comma-separated list of role names.
func ParseRoles(raw string) (Roles, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	out := Roles{}
	if raw == "" || raw == "all" {
		for _, r := range AllRoles() {
			out[r] = true
		}
		return out, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		role := Role(part)
		if !slices.Contains(AllRoles(), role) {
			return nil, fmt.Errorf("unknown role %q (want ingress, worker, consumer, or all)", part)
		}
		out[role] = true
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no roles selected")
	}
	return out, nil
}

// Has reports whether r is enabled.
func (rs Roles) Has(r Role) bool {
	return rs[r]
}

// Names returns the enabled roles in start order.
func (rs Roles) Names() []string {
	var out []string
	for _, r := range AllRoles() {
		if rs[r] {
			out = append(out, string(r))
		}
	}
	return out
}

// String joins the enabled role names.
func (rs Roles) String() string {
	return strings.Join(rs.Names(), ",")
}
