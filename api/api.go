package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/runthings/termgate/gate"
	"github.com/runthings/termgate/nonce"
	"github.com/runthings/termgate/session"
	"github.com/runthings/termgate/taxonomy"
	"github.com/runthings/termgate/web"
)

const (
	defaultLoginPath    = "/login"
	defaultCookieName   = "termgate_session"
	defaultPreviewParam = "preview"

	// loginFormMarker identifies POSTs coming from our own login form.
	loginFormMarker = "termgate_login_form"
	// logoutParam triggers logout on any path.
	logoutParam = "termgate_logout"

	docsPrefix = "/_termgate"
)

// CredentialStore is the subset of credential.Store the handlers use.
type CredentialStore interface {
	Hash(termID int64) (string, error)
}

// Catalog resolves request paths to content objects.
type Catalog interface {
	Object(id int64) (taxonomy.Object, error)
	ObjectByPath(p string) (taxonomy.Object, error)
	ObjectsOfType(typ string) ([]taxonomy.Object, error)
	Objects() ([]taxonomy.Object, error)
	Children(parentID int64, typ string) ([]taxonomy.Object, error)
}

// API serves the login and logout flows and the gated content.
type API struct {
	gate    *gate.Gate
	catalog Catalog
	creds   CredentialStore
	codec   session.Codec
	nonces  *nonce.Issuer
	pages   *web.Renderer

	loginPath     string
	cookieName    string
	adminPrefixes []string
	previewParam  string
	rolesHeader   string
	userHeader    string
	hubType       string

	logger   *slog.Logger
	audit    *auditLogger
	registry *prometheus.Registry
	metrics  *httpMetrics
	alertFn  AlertFunc

	webhookURL    string
	webhookHeader string
	trail         *AuditTrail
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for request and audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithLoginPath sets the path the login form is served on.
func WithLoginPath(p string) Option {
	return func(a *API) {
		if p != "" {
			a.loginPath = p
		}
	}
}

// WithCookieName sets the session cookie name.
func WithCookieName(name string) Option {
	return func(a *API) {
		if name != "" {
			a.cookieName = name
		}
	}
}

// WithAdminPrefixes sets the path prefixes treated as administrative
// surfaces, which bypass the gate.
func WithAdminPrefixes(prefixes ...string) Option {
	return func(a *API) {
		a.adminPrefixes = append([]string(nil), prefixes...)
	}
}

// WithPreviewParam sets the query parameter that marks editor previews.
func WithPreviewParam(name string) Option {
	return func(a *API) {
		a.previewParam = name
	}
}

// WithIdentityHeaders sets the trusted upstream headers carrying the
// authenticated user and their comma-separated roles. Empty disables.
func WithIdentityHeaders(userHeader, rolesHeader string) Option {
	return func(a *API) {
		a.userHeader = userHeader
		a.rolesHeader = rolesHeader
	}
}

// WithHubType sets the type of objects listed beneath a hub object.
func WithHubType(typ string) Option {
	return func(a *API) {
		a.hubType = typ
	}
}

// WithRegistry sets the Prometheus registry metrics are registered in and
// served from.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *API) {
		a.registry = reg
	}
}

// WithAlertFunc sets the callback for anomaly alerts. The default logs
// them at warn level.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// WithAuditWebhook forwards audit events as JSON to url. header, if set,
// is sent with every request in "Name: value" form.
func WithAuditWebhook(url, header string) Option {
	return func(a *API) {
		a.webhookURL = url
		a.webhookHeader = header
	}
}

// WithAuditTrail persists audit events, except gate denials, to trail.
func WithAuditTrail(trail *AuditTrail) Option {
	return func(a *API) {
		a.trail = trail
	}
}

// New creates a new API instance.
func New(g *gate.Gate, catalog Catalog, creds CredentialStore, codec session.Codec, nonces *nonce.Issuer, opts ...Option) (*API, error) {
	pages, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}
	a := &API{
		gate:         g,
		catalog:      catalog,
		creds:        creds,
		codec:        codec,
		nonces:       nonces,
		pages:        pages,
		loginPath:    defaultLoginPath,
		cookieName:   defaultCookieName,
		previewParam: defaultPreviewParam,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	if a.alertFn == nil {
		a.alertFn = func(e AlertEvent) {
			a.logger.Warn("security alert",
				"type", string(e.Type),
				"message", e.Message,
				"count", e.Count,
				"threshold", e.Threshold,
			)
		}
	}
	a.audit = newAuditLogger(a.logger)
	a.audit.metrics = newMetricsCollector(a.alertFn)
	a.audit.trail = a.trail
	if a.webhookURL != "" {
		a.audit.webhook = newAuditWebhook(a.webhookURL, a.webhookHeader, a.logger)
	}
	a.metrics = newHTTPMetrics(a.registry)
	return a, nil
}

// Close flushes pending audit webhook deliveries.
func (a *API) Close() {
	if a.audit != nil && a.audit.webhook != nil {
		a.audit.webhook.close()
	}
}

// Router returns a chi.Router serving the login flow, the gated content
// and the operational endpoints.
func (a *API) Router() chi.Router {
	loginPath := a.loginPath
	if loginPath == "" {
		loginPath = defaultLoginPath
	}

	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(a.Instrument)
	r.Use(a.LogoutMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", a.metricsHandler())

	r.Get(docsPrefix+"/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle(docsPrefix+"/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: docsPrefix + "/openapi.yaml",
		Path:    docsPrefix[1:] + "/docs",
	}, nil))

	r.Get(loginPath, a.LoginForm)
	r.Post(loginPath, a.LoginSubmit)

	r.Group(func(r chi.Router) {
		r.Use(a.GateMiddleware)
		r.Get("/feed", a.Feed)
		r.Get("/type/{objectType}", a.Archive)
		r.Get("/*", a.Content)
	})

	return r
}

func (a *API) metricsHandler() http.Handler {
	if a.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Timeout: 10 * time.Second})
}
