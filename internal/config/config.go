// Package config loads server options from flags, TERMGATE_* environment
// variables and an optional config.yaml.
package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/runthings/termgate/internal/util"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Storage backends.
const (
	StorageBBolt    = "bbolt"
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

const envPrefix = "TERMGATE"

type SessionOptions struct {
	// Mode is "plain" (hash in the cookie) or "signed".
	Mode string `mapstructure:"mode"`
}

// Options is the full server configuration.
type Options struct {
	ConfigFile string `mapstructure:"config_file"`

	Listen      string `mapstructure:"listen"`
	SiteURL     string `mapstructure:"site_url"`
	DataDir     string `mapstructure:"data_dir"`
	Storage     string `mapstructure:"storage"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	TLSCert     string `mapstructure:"tls_cert"`
	TLSKey      string `mapstructure:"tls_key"`
	KeyFile     string `mapstructure:"key_file"`
	LogLevel    string `mapstructure:"log_level"`

	ProtectedTypes  []string `mapstructure:"protected_types"`
	HubType         string   `mapstructure:"hub_type"`
	HubObjectID     int64    `mapstructure:"hub_object_id"`
	LoginPath       string   `mapstructure:"login_path"`
	ExemptRoles     []string `mapstructure:"exempt_roles"`
	ArchiveRedirect string   `mapstructure:"archive_redirect"`
	AllowAutomation bool     `mapstructure:"allow_automation"`
	AdminPrefixes   []string `mapstructure:"admin_prefixes"`
	PreviewParam    string   `mapstructure:"preview_param"`
	RolesHeader     string   `mapstructure:"roles_header"`
	UserHeader      string   `mapstructure:"user_header"`
	CookieName      string   `mapstructure:"cookie_name"`

	AuditTrail         bool   `mapstructure:"audit_trail"`
	AuditWebhookURL    string `mapstructure:"audit_webhook_url"`
	AuditWebhookHeader string `mapstructure:"audit_webhook_header"`

	Session SessionOptions `mapstructure:"session"`
}

var defaults = map[string]any{
	"listen":               ":8080",
	"site_url":             "http://localhost:8080/",
	"data_dir":             "./data",
	"storage":              StorageBBolt,
	"postgres_dsn":         "",
	"tls_cert":             "",
	"tls_key":              "",
	"key_file":             "",
	"log_level":            "info",
	"protected_types":      []string{"post"},
	"hub_type":             "page",
	"hub_object_id":        0,
	"login_path":           "/login",
	"exempt_roles":         []string{"administrator", "editor", "shop_manager"},
	"archive_redirect":     "hub",
	"allow_automation":     false,
	"admin_prefixes":       []string{"/wp-admin", "/admin"},
	"preview_param":        "preview",
	"roles_header":         "",
	"user_header":          "",
	"cookie_name":          "",
	"audit_trail":          true,
	"audit_webhook_url":    "",
	"audit_webhook_header": "",
	"session.mode":         "plain",
}

// flagKeys maps flag names whose config key is not the flag name with
// dashes turned into underscores.
var flagKeys = map[string]string{
	"session-mode": "session.mode",
}

// AddFlags registers the server flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config-file", "", "Path to a config file")
	fs.String("listen", ":8080", "Address to listen on")
	fs.String("site-url", "http://localhost:8080/", "Public URL of the site")
	fs.String("data-dir", "./data", "Directory for the bbolt database")
	fs.String("storage", StorageBBolt, "Storage backend: bbolt, memory or postgres")
	fs.String("postgres-dsn", "", "PostgreSQL connection string")
	fs.String("tls-cert", "", "TLS certificate file")
	fs.String("tls-key", "", "TLS private key file")
	fs.String("key-file", "", "File holding the hex-encoded key wrapping key")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	fs.StringSlice("protected-types", []string{"post"}, "Object types behind the gate")
	fs.String("hub-type", "page", "Type of hub child objects")
	fs.Int64("hub-object-id", 0, "ID of the hub object whose children are protected")
	fs.String("login-path", "/login", "Path of the login page")
	fs.StringSlice("exempt-roles", []string{"administrator", "editor", "shop_manager"}, "Roles that skip the gate")
	fs.String("archive-redirect", "hub", "Where denied listings go: hub or home")
	fs.Bool("allow-automation", false, "Let authenticated same-origin automation requests skip the gate")
	fs.StringSlice("admin-prefixes", []string{"/wp-admin", "/admin"}, "Path prefixes of administrative surfaces")
	fs.String("preview-param", "preview", "Query parameter marking editor previews")
	fs.String("roles-header", "", "Trusted upstream header carrying the caller's roles")
	fs.String("user-header", "", "Trusted upstream header carrying the authenticated user")
	fs.String("cookie-name", "", "Session cookie name (default derived from the site host)")
	fs.String("session-mode", "plain", "Session cookie format: plain or signed")
	fs.Bool("audit-trail", true, "Persist login and logout audit events in storage")
	fs.String("audit-webhook-url", "", "URL audit events are POSTed to")
	fs.String("audit-webhook-header", "", "Header sent with audit webhook requests, as \"Name: value\"")
}

// Load merges defaults, config file, environment and the flags set on cmd.
func Load(cmd *cobra.Command) (*Options, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}

	v.SetConfigName("config")
	v.AddConfigPath("/etc/termgate")
	v.AddConfigPath("$HOME/.termgate")
	v.AddConfigPath(".")
	if f := cmd.Flags().Lookup("config-file"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	opts := &Options{}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	opts.ConfigFile = v.ConfigFileUsed()
	return opts, opts.Validate()
}

// Validate checks option values.
func (o *Options) Validate() error {
	u, err := url.Parse(o.SiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: site_url %q must be an absolute http(s) URL", ErrInvalid, o.SiteURL)
	}
	switch o.Storage {
	case StorageBBolt, StorageMemory:
	case StoragePostgres:
		if o.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres storage requires postgres_dsn", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalid, o.Storage)
	}
	switch o.ArchiveRedirect {
	case "hub", "home":
	default:
		return fmt.Errorf("%w: archive_redirect must be hub or home, got %q", ErrInvalid, o.ArchiveRedirect)
	}
	switch o.Session.Mode {
	case "plain", "signed":
	default:
		return fmt.Errorf("%w: session.mode must be plain or signed, got %q", ErrInvalid, o.Session.Mode)
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return fmt.Errorf("%w: tls_cert and tls_key must be set together", ErrInvalid)
	}
	if o.AuditWebhookURL != "" {
		u, err := url.Parse(o.AuditWebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: audit_webhook_url %q must be an absolute http(s) URL", ErrInvalid, o.AuditWebhookURL)
		}
	}
	if o.LoginPath != "" && !strings.HasPrefix(o.LoginPath, "/") {
		return fmt.Errorf("%w: login_path must start with /", ErrInvalid)
	}
	if o.HubObjectID < 0 {
		return fmt.Errorf("%w: hub_object_id must not be negative", ErrInvalid)
	}
	if _, err := ParseLevel(o.LogLevel); err != nil {
		return err
	}
	return nil
}

// Site returns the parsed site URL with a trailing slash path.
func (o *Options) Site() *url.URL {
	u, err := url.Parse(o.SiteURL)
	if err != nil {
		return &url.URL{Path: "/"}
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u
}

// SessionCookieName returns the configured cookie name, or one derived
// from the site host so installations sharing a domain do not collide.
func (o *Options) SessionCookieName() string {
	if o.CookieName != "" {
		return o.CookieName
	}
	sum := sha256.Sum256([]byte(strings.ToLower(o.Site().Host)))
	return "termgate_" + util.HexEncode(sum[:4])
}

// ParseLevel maps a log level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, s)
	}
	return level, nil
}
