package rbac

import (
	"context"
	"sort"
	"strings"
)

// Checker answers permission questions for a role table.
type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role, perm string) bool {
	for _, p := range c.RolePermissions[role] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

// Roles lists the known roles, sorted.
func (c *Checker) Roles() []string {
	out := make([]string, 0, len(c.RolePermissions))
	for r := range c.RolePermissions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (c *Checker) Known(role string) bool {
	_, ok := c.RolePermissions[role]
	return ok
}

// matchPerm supports "*" and trailing-wildcard patterns such as "models:*".
func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// ---- role in context ----

type ctxKey struct{}

var ctxKeyRole = ctxKey{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

func RoleFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyRole); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
