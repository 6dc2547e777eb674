package gate

import "github.com/runthings/termgate/taxonomy"

// FilterListing trims a listing to what the caller may see. Feeds drop
// every object carrying a term. Other listings keep unprotected objects
// and protected objects tagged with the term of the caller's valid
// session; exempt roles and bypassed requests see everything.
func (g *Gate) FilterListing(rc RequestContext, objects []taxonomy.Object, feed bool) []taxonomy.Object {
	if g.policy.Bypass(rc) {
		return objects
	}
	out := make([]taxonomy.Object, 0, len(objects))
	if feed {
		for _, o := range objects {
			if !o.HasTerm() {
				out = append(out, o)
			}
		}
		return out
	}
	if g.policy.Exempt(rc) {
		return objects
	}

	// A lookup error is treated as no session.
	termID, ok, _ := g.ValidSession(rc.SessionCookie)
	for _, o := range objects {
		if !g.IsProtected(o) || (ok && o.TermID == termID) {
			out = append(out, o)
		}
	}
	return out
}
