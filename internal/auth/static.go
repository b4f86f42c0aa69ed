// Package auth supplies the capability check consumed by admin actions. The
// real authorization system lives outside this core; this implementation
// gates on a configured allowlist of administrator ids so the engine can run
// standalone.
package auth

type AllowlistAuthorizer struct {
	admins map[string]bool
}

func NewAllowlistAuthorizer(adminIDs []string) *AllowlistAuthorizer {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		if id != "" {
			admins[id] = true
		}
	}
	return &AllowlistAuthorizer{admins: admins}
}

// IsAuthorized grants every admin action to allowlisted actors. An empty
// allowlist denies everything.
func (a *AllowlistAuthorizer) IsAuthorized(actor, _ string) bool {
	return a.admins[actor]
}
