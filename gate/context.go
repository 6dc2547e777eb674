package gate

import (
	"slices"

	"github.com/runthings/termgate/taxonomy"
)

// TargetKind says what a request addresses.
type TargetKind int

const (
	// TargetNone is anything that is neither a content object nor a listing.
	TargetNone TargetKind = iota
	// TargetSingular is a single content object.
	TargetSingular
	// TargetArchive is a listing of objects of one type.
	TargetArchive
)

func (k TargetKind) String() string {
	switch k {
	case TargetSingular:
		return "singular"
	case TargetArchive:
		return "archive"
	default:
		return "none"
	}
}

// Target is the resolved subject of a request.
type Target struct {
	Kind TargetKind
	// Object is set for TargetSingular.
	Object taxonomy.Object
	// ObjectType is set for TargetArchive.
	ObjectType string
}

// Singular targets one object.
func Singular(obj taxonomy.Object) Target {
	return Target{Kind: TargetSingular, Object: obj, ObjectType: obj.Type}
}

// Archive targets a listing of objType.
func Archive(objType string) Target {
	return Target{Kind: TargetArchive, ObjectType: objType}
}

// RequestContext holds the facts about one inbound request the gate
// decides on. It is built once per request and passed by value.
type RequestContext struct {
	// URL is the absolute URL of the current request.
	URL    string
	Target Target

	roles         []string
	User          string
	Authenticated bool

	// Admin is set for administrative or editing surfaces.
	Admin bool
	// Preview is set for visual-editor preview requests.
	Preview bool
	// Automation is set for asynchronous same-origin requests.
	Automation bool

	// SessionCookie is the raw session cookie value, empty if absent.
	SessionCookie string
}

// WithRoles returns a copy of c carrying roles.
func (c RequestContext) WithRoles(roles ...string) RequestContext {
	c.roles = slices.Clone(roles)
	return c
}

// Roles returns a copy of the caller's roles.
func (c RequestContext) Roles() []string {
	return slices.Clone(c.roles)
}

// HasRole reports whether the caller holds any of roles.
func (c RequestContext) HasRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(c.roles, r) {
			return true
		}
	}
	return false
}
