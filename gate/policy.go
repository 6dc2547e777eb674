package gate

// DefaultExemptRoles are the roles that see protected content without a
// session.
var DefaultExemptRoles = []string{"administrator", "editor", "shop_manager"}

// Policy holds the role exemptions and bypass switches. It is the only
// place roles are consulted.
type Policy struct {
	ExemptRoles []string
	// AllowAutomation lets authenticated same-origin automation requests
	// skip the gate. Off by default.
	AllowAutomation bool
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{ExemptRoles: append([]string(nil), DefaultExemptRoles...)}
}

// Bypass reports whether the gate is skipped entirely for c.
func (p Policy) Bypass(c RequestContext) bool {
	switch {
	case c.Admin:
		return true
	case c.Preview:
		return true
	case c.Automation && c.Authenticated && p.AllowAutomation:
		return true
	}
	return false
}

// Exempt reports whether the caller's role lets them past a protected
// object without a session.
func (p Policy) Exempt(c RequestContext) bool {
	return len(p.ExemptRoles) > 0 && c.HasRole(p.ExemptRoles...)
}
