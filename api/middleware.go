package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/runthings/termgate/gate"
	"github.com/runthings/termgate/nonce"
	"github.com/runthings/termgate/session"
	"github.com/runthings/termgate/taxonomy"
)

type contextKey int

const (
	requestContextKey contextKey = iota
	decisionKey
)

// GateMiddleware resolves the request's target, runs the gate and either
// redirects (Deny) or stores the request context and decision for the
// content handlers (Allow).
func (a *API) GateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, err := a.resolveTarget(r)
		if err != nil {
			a.logger.Error("resolving request target", "path", r.URL.Path, "error", err)
			a.renderServerError(w, r)
			return
		}

		rc := a.requestContext(r, target)
		d := a.gate.Decide(rc)
		if a.metrics != nil {
			a.metrics.decisions.WithLabelValues(d.Outcome.String(), string(d.Reason)).Inc()
		}

		if d.Outcome == gate.Deny {
			a.audit.log(AuditGateDeny, r,
				slog.String("reason", string(d.Reason)),
				slog.Int64("term_id", d.TermID),
				slog.String("target", target.Kind.String()),
			)
			noStore(w)
			http.Redirect(w, r, d.Redirect, http.StatusFound)
			return
		}

		if d.Reason != gate.ReasonUngated && d.Reason != gate.ReasonBypass {
			noStore(w)
		}
		ctx := context.WithValue(r.Context(), requestContextKey, rc)
		ctx = context.WithValue(ctx, decisionKey, d)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LogoutMiddleware handles the logout trigger on any path. A valid logout
// nonce clears the session cookie; an invalid one leaves it alone. Both
// redirect home.
func (a *API) LogoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get(logoutParam) == "" {
			next.ServeHTTP(w, r)
			return
		}

		if a.nonces.Verify(nonce.ActionLogout, a.user(r), q.Get(gate.ParamNonce)) {
			a.clearSessionCookie(w, r)
			a.audit.log(AuditLogout, r)
		} else {
			a.audit.logFailure(AuditLoginForgery, r, "invalid logout nonce")
		}
		noStore(w)
		http.Redirect(w, r, a.gate.HomeURL(), http.StatusFound)
	})
}

// LogoutURL returns a logout link for user.
func (a *API) LogoutURL(user string) string {
	u := a.gate.Site()
	q := url.Values{}
	q.Set(logoutParam, "1")
	q.Set(gate.ParamNonce, a.nonces.Create(nonce.ActionLogout, user))
	u.RawQuery = q.Encode()
	return u.String()
}

// resolveTarget maps the request path to a single object, a listing, or
// nothing. Administrative surfaces never resolve to content.
func (a *API) resolveTarget(r *http.Request) (gate.Target, error) {
	p := taxonomy.CleanPath(r.URL.Path)
	if a.isAdminPath(p) {
		return gate.Target{}, nil
	}
	if typ := chi.URLParam(r, "objectType"); typ != "" {
		return gate.Archive(typ), nil
	}
	obj, err := a.catalog.ObjectByPath(p)
	switch {
	case err == nil:
		return gate.Singular(obj), nil
	case errors.Is(err, taxonomy.ErrObjectNotFound):
		return gate.Target{}, nil
	default:
		return gate.Target{}, err
	}
}

// requestContext builds the immutable view of r the gate decides on.
func (a *API) requestContext(r *http.Request, target gate.Target) gate.RequestContext {
	user := a.user(r)
	rc := gate.RequestContext{
		URL:           a.currentURL(r),
		Target:        target,
		User:          user,
		Authenticated: user != "",
		Admin:         a.isAdminPath(taxonomy.CleanPath(r.URL.Path)),
		Preview:       user != "" && a.isPreview(r),
		Automation:    isAutomation(r),
		SessionCookie: a.sessionCookie(r),
	}
	return rc.WithRoles(a.roles(r)...)
}

func (a *API) user(r *http.Request) string {
	if a.userHeader == "" {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(a.userHeader))
}

func (a *API) roles(r *http.Request) []string {
	if a.rolesHeader == "" {
		return nil
	}
	var roles []string
	for _, role := range strings.Split(r.Header.Get(a.rolesHeader), ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

func (a *API) isAdminPath(p string) bool {
	for _, prefix := range a.adminPrefixes {
		if p == prefix || strings.HasPrefix(p, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}

func (a *API) isPreview(r *http.Request) bool {
	if a.previewParam == "" {
		return false
	}
	switch strings.ToLower(r.URL.Query().Get(a.previewParam)) {
	case "", "0", "false":
		return false
	}
	return true
}

// isAutomation reports whether r is an asynchronous same-origin request.
func isAutomation(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return r.Header.Get("Sec-Fetch-Mode") == "cors" && r.Header.Get("Sec-Fetch-Site") == "same-origin"
}

// currentURL is the absolute URL of r on the configured site.
func (a *API) currentURL(r *http.Request) string {
	u := a.gate.Site()
	u.Path = r.URL.Path
	u.RawPath = r.URL.RawPath
	u.RawQuery = r.URL.RawQuery
	return u.String()
}

// sameSite reports whether raw is an absolute path or an http(s) URL on
// the site's own host.
func (a *API) sameSite(raw string) bool {
	if raw == "" || strings.ContainsAny(raw, "\\\r\n") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return u.Scheme == "" && u.User == nil && strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(raw, "//")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Hostname(), a.gate.Site().Hostname())
}

func (a *API) sessionCookie(r *http.Request) string {
	c, err := r.Cookie(a.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (a *API) writeSessionCookie(w http.ResponseWriter, r *http.Request, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(session.Lifetime),
		MaxAge:   int(session.Lifetime / time.Second),
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, private")
	w.Header().Set("Pragma", "no-cache")
}

func requestContextFrom(ctx context.Context) (gate.RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(gate.RequestContext)
	return rc, ok
}

func decisionFrom(ctx context.Context) (gate.Decision, bool) {
	d, ok := ctx.Value(decisionKey).(gate.Decision)
	return d, ok
}
