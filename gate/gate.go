// Package gate decides, per request, whether protected content may be
// served. Decisions come from an ordered chain of stages; the default chain
// is bypass, protection, singular and archive.
package gate

import (
	"crypto/subtle"
	"net/url"
	"strconv"

	"github.com/runthings/termgate/nonce"
	"github.com/runthings/termgate/session"
	"github.com/runthings/termgate/taxonomy"
)

// Query parameters carried on the login redirect.
const (
	ParamReturnURL      = "return_url"
	ParamOriginalObject = "original_post_id"
	ParamNonce          = "_wpnonce"
)

// Archive fallback modes.
const (
	ArchiveRedirectHub  = "hub"
	ArchiveRedirectHome = "home"
)

// HashLookup returns a term's current password hash, or "" if none is set.
type HashLookup interface {
	Hash(termID int64) (string, error)
}

// ObjectLookup resolves objects by id.
type ObjectLookup interface {
	Object(id int64) (taxonomy.Object, error)
}

// NonceCreator issues anti-forgery tokens.
type NonceCreator interface {
	Create(action, binding string) string
}

// Config describes what is protected and where denied visitors go.
type Config struct {
	// SiteURL is the site home. Relative destinations resolve against it.
	SiteURL *url.URL
	// LoginPath is the login page. Empty sends denied visitors home.
	LoginPath      string
	ProtectedTypes []string
	HubType        string
	HubObjectID    int64
	// ArchiveRedirect is ArchiveRedirectHub or ArchiveRedirectHome.
	ArchiveRedirect string
}

// Gate evaluates requests against the configured protection rules.
type Gate struct {
	cfg       Config
	policy    Policy
	protected map[string]struct{}
	hashes    HashLookup
	objects   ObjectLookup
	codec     session.Codec
	nonces    NonceCreator
	chain     Chain
}

// Option configures a Gate.
type Option func(*Gate)

// WithPolicy sets the bypass and exemption policy.
func WithPolicy(p Policy) Option {
	return func(g *Gate) {
		g.policy = p
	}
}

// WithObjects sets the lookup used to resolve the hub object for archive
// fallbacks.
func WithObjects(objects ObjectLookup) Option {
	return func(g *Gate) {
		g.objects = objects
	}
}

// WithStages inserts extra stages after the bypass stage.
func WithStages(stages ...Stage) Option {
	return func(g *Gate) {
		g.chain = append(g.chain[:1:1], append(Chain(stages), g.chain[1:]...)...)
	}
}

// New returns a Gate with the default stage chain.
func New(cfg Config, hashes HashLookup, codec session.Codec, nonces NonceCreator, opts ...Option) *Gate {
	if cfg.SiteURL == nil {
		cfg.SiteURL = &url.URL{Path: "/"}
	}
	g := &Gate{
		cfg:       cfg,
		policy:    DefaultPolicy(),
		protected: make(map[string]struct{}, len(cfg.ProtectedTypes)),
		hashes:    hashes,
		codec:     codec,
		nonces:    nonces,
	}
	for _, t := range cfg.ProtectedTypes {
		g.protected[t] = struct{}{}
	}
	g.chain = Chain{g.bypassStage, g.protectionStage, g.singularStage, g.archiveStage}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the gate's policy.
func (g *Gate) Policy() Policy {
	return g.policy
}

// Decide runs the stage chain for rc.
func (g *Gate) Decide(rc RequestContext) Decision {
	return g.chain.Run(rc)
}

// IsProtected reports whether obj falls under the gate, either by type or
// as a direct child of the hub object.
func (g *Gate) IsProtected(obj taxonomy.Object) bool {
	if _, ok := g.protected[obj.Type]; ok {
		return true
	}
	return g.isHubChild(obj)
}

func (g *Gate) isHubChild(obj taxonomy.Object) bool {
	return g.cfg.HubType != "" && g.cfg.HubObjectID > 0 &&
		obj.Type == g.cfg.HubType && obj.ParentID == g.cfg.HubObjectID
}

// Site returns a copy of the site URL.
func (g *Gate) Site() *url.URL {
	u := *g.cfg.SiteURL
	return &u
}

// HomeURL returns the site home.
func (g *Gate) HomeURL() string {
	return g.cfg.SiteURL.String()
}

// LoginURL returns the bare login page URL, or "" when none is configured.
func (g *Gate) LoginURL() string {
	if g.cfg.LoginPath == "" {
		return ""
	}
	return g.resolve(g.cfg.LoginPath)
}

func (g *Gate) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return g.HomeURL()
	}
	return g.cfg.SiteURL.ResolveReference(u).String()
}

// LoginRedirect builds the login URL carrying intent and a login-redirect
// nonce bound to user.
func (g *Gate) LoginRedirect(intent RedirectIntent, user string) string {
	login := g.LoginURL()
	if login == "" {
		return g.HomeURL()
	}
	u, err := url.Parse(login)
	if err != nil {
		return g.HomeURL()
	}
	q := u.Query()
	q.Set(ParamReturnURL, intent.ReturnURL)
	q.Set(ParamOriginalObject, strconv.FormatInt(intent.OriginalObjectID, 10))
	q.Set(ParamNonce, g.nonces.Create(nonce.ActionLoginRedirect, user))
	u.RawQuery = q.Encode()
	return u.String()
}

// ArchiveFallback returns where denied listing requests go: the hub object
// when configured and resolvable, else home.
func (g *Gate) ArchiveFallback() string {
	if g.cfg.ArchiveRedirect != ArchiveRedirectHub || g.cfg.HubObjectID <= 0 || g.objects == nil {
		return g.HomeURL()
	}
	hub, err := g.objects.Object(g.cfg.HubObjectID)
	if err != nil || hub.Path == "" {
		return g.HomeURL()
	}
	return g.resolve(hub.Path)
}

// ValidSession decodes cookie and checks it against the current hash of
// the term it claims. It returns the token's term id when valid.
func (g *Gate) ValidSession(cookie string) (int64, bool, error) {
	tok, ok := g.codec.Decode(cookie)
	if !ok {
		return 0, false, nil
	}
	valid, err := g.matchesCurrent(tok)
	if err != nil || !valid {
		return 0, false, err
	}
	return tok.TermID, true, nil
}

func (g *Gate) matchesCurrent(tok session.Token) (bool, error) {
	hash, err := g.hashes.Hash(tok.TermID)
	if err != nil {
		return false, err
	}
	bound := g.codec.Bind(hash)
	if bound == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(bound), []byte(tok.Credential)) == 1, nil
}

func (g *Gate) bypassStage(rc RequestContext) Decision {
	if g.policy.Bypass(rc) {
		return Decision{Outcome: Allow, Reason: ReasonBypass}
	}
	return Decision{}
}

func (g *Gate) protectionStage(rc RequestContext) Decision {
	switch rc.Target.Kind {
	case TargetSingular:
		if g.IsProtected(rc.Target.Object) {
			return Decision{}
		}
	case TargetArchive:
		if _, ok := g.protected[rc.Target.ObjectType]; ok {
			return Decision{}
		}
	}
	return Decision{Outcome: Allow, Reason: ReasonUngated}
}

func (g *Gate) singularStage(rc RequestContext) Decision {
	if rc.Target.Kind != TargetSingular {
		return Decision{}
	}
	obj := rc.Target.Object
	if !obj.HasTerm() {
		return Decision{Outcome: Deny, Redirect: g.HomeURL(), Reason: ReasonNoTerm}
	}
	if g.policy.Exempt(rc) {
		return Decision{Outcome: Allow, Reason: ReasonExemptRole, TermID: obj.TermID}
	}

	deny := func(reason Reason) Decision {
		intent := &RedirectIntent{ReturnURL: rc.URL, OriginalObjectID: obj.ID}
		return Decision{
			Outcome:  Deny,
			Redirect: g.LoginRedirect(*intent, rc.User),
			Reason:   reason,
			Intent:   intent,
			TermID:   obj.TermID,
		}
	}

	tok, ok := g.codec.Decode(rc.SessionCookie)
	if !ok {
		return deny(ReasonNoSession)
	}
	if tok.TermID != obj.TermID {
		return deny(ReasonTermMismatch)
	}
	valid, err := g.matchesCurrent(tok)
	if err != nil {
		return deny(ReasonLookupError)
	}
	if !valid {
		return deny(ReasonRotated)
	}
	return Decision{Outcome: Allow, Reason: ReasonValidSession, TermID: obj.TermID}
}

func (g *Gate) archiveStage(rc RequestContext) Decision {
	if rc.Target.Kind != TargetArchive {
		return Decision{}
	}
	termID, ok, err := g.ValidSession(rc.SessionCookie)
	if err != nil {
		return Decision{Outcome: Deny, Redirect: g.ArchiveFallback(), Reason: ReasonLookupError}
	}
	if !ok {
		return Decision{Outcome: Deny, Redirect: g.ArchiveFallback(), Reason: ReasonArchiveNoSession}
	}
	return Decision{Outcome: Allow, Reason: ReasonArchiveSession, TermID: termID}
}
