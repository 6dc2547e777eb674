package gate

// Outcome is the result of one stage.
type Outcome int

const (
	Continue Outcome = iota
	Allow
	Deny
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "continue"
	}
}

// Reason labels why a decision was reached.
type Reason string

const (
	ReasonBypass           Reason = "bypass"
	ReasonUngated          Reason = "ungated"
	ReasonNoTerm           Reason = "no_term"
	ReasonExemptRole       Reason = "exempt_role"
	ReasonNoSession        Reason = "no_session"
	ReasonTermMismatch     Reason = "term_mismatch"
	ReasonRotated          Reason = "rotated"
	ReasonValidSession     Reason = "valid_session"
	ReasonArchiveSession   Reason = "archive_session"
	ReasonArchiveNoSession Reason = "archive_no_session"
	ReasonLookupError      Reason = "lookup_error"
)

// RedirectIntent is what the login flow needs to send a visitor back to
// the object they asked for.
type RedirectIntent struct {
	ReturnURL        string
	OriginalObjectID int64
}

// Decision is a stage result. Redirect is set on Deny.
type Decision struct {
	Outcome  Outcome
	Redirect string
	Reason   Reason
	// Intent is set when the redirect goes to the login page.
	Intent *RedirectIntent
	// TermID is the term the decision was made against, if any.
	TermID int64
}

// Final reports whether the decision ends the chain.
func (d Decision) Final() bool {
	return d.Outcome != Continue
}

// Stage inspects a request and returns Continue to defer to the next stage.
type Stage func(RequestContext) Decision

// Chain runs stages in order until one returns Allow or Deny.
type Chain []Stage

// Run evaluates the chain. A chain that runs out of stages allows.
func (c Chain) Run(rc RequestContext) Decision {
	for _, stage := range c {
		if d := stage(rc); d.Final() {
			return d
		}
	}
	return Decision{Outcome: Allow, Reason: ReasonUngated}
}
