package api_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runthings/termgate/api"
	"github.com/runthings/termgate/credential"
	"github.com/runthings/termgate/gate"
	"github.com/runthings/termgate/internal/util"
	"github.com/runthings/termgate/keyring"
	"github.com/runthings/termgate/nonce"
	"github.com/runthings/termgate/session"
	"github.com/runthings/termgate/storage/memory"
	"github.com/runthings/termgate/taxonomy"
)

const (
	cookieName = "termgate_test"
	siteURL    = "http://example.com/"

	growers = int64(1)
	buyers  = int64(2)
)

type fixture struct {
	router  http.Handler
	api     *api.API
	creds   *credential.Store
	catalog *taxonomy.Catalog
	nonces  *nonce.Issuer
	codec   session.Codec
	logs    *bytes.Buffer
}

func setup(t *testing.T, extra ...api.Option) *fixture {
	t.Helper()
	repo := memory.NewRepository()
	catalog := taxonomy.NewCatalog(repo)
	creds := credential.New(repo, credential.WithArgon2idParams(util.Argon2idParams{
		Time: 1, MemoryKiB: 8192, Parallelism: 1, KeyLen: 32,
	}))

	require.NoError(t, catalog.PutTerm(taxonomy.Term{ID: growers, Name: "growers"}))
	require.NoError(t, catalog.PutTerm(taxonomy.Term{ID: buyers, Name: "buyers"}))
	for _, o := range []taxonomy.Object{
		{ID: 42, Type: "post", TermID: growers, Path: "/42", Title: "Harvest plan"},
		{ID: 43, Type: "post", TermID: buyers, Path: "/43", Title: "Price list"},
		{ID: 44, Type: "post", Path: "/untagged", Title: "Untagged"},
		{ID: 7, Type: "page", Path: "/about", Title: "About"},
		{ID: 100, Type: "page", Path: "/members", Title: "Members"},
		{ID: 101, Type: "page", ParentID: 100, TermID: growers, Path: "/members/harvest", Title: "Harvest notes"},
	} {
		require.NoError(t, catalog.PutObject(o))
	}
	require.NoError(t, creds.SetHash(growers, "harvest25"))
	require.NoError(t, creds.SetHash(buyers, "market"))

	site, err := url.Parse(siteURL)
	require.NoError(t, err)
	nonces := nonce.New(keyring.Ephemeral("nonce"))
	codec := session.PlainCodec{}
	g := gate.New(gate.Config{
		SiteURL:         site,
		LoginPath:       "/login",
		ProtectedTypes:  []string{"post"},
		HubType:         "page",
		HubObjectID:     100,
		ArchiveRedirect: gate.ArchiveRedirectHub,
	}, creds, codec, nonces, gate.WithObjects(catalog))

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithCookieName(cookieName),
		api.WithAdminPrefixes("/wp-admin"),
		api.WithIdentityHeaders("X-User", "X-Roles"),
		api.WithHubType("page"),
	}
	a, err := api.New(g, catalog, creds, codec, nonces, append(opts, extra...)...)
	require.NoError(t, err)

	return &fixture{
		router:  a.Router(),
		api:     a,
		creds:   creds,
		catalog: catalog,
		nonces:  nonces,
		codec:   codec,
		logs:    &logs,
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(target string, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "http://example.com"+target, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: cookie})
	}
	return f.do(req)
}

func (f *fixture) loginURL(returnURL string, objectID string) string {
	q := url.Values{}
	q.Set("return_url", returnURL)
	q.Set("original_post_id", objectID)
	q.Set("_wpnonce", f.nonces.Create(nonce.ActionLoginRedirect, ""))
	return "/login?" + q.Encode()
}

func (f *fixture) postLogin(form url.Values, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header[k] = v
	}
	return f.do(req)
}

func (f *fixture) loginForm(returnURL, objectID, password string) url.Values {
	return url.Values{
		"post_password":    {password},
		"return_url":       {returnURL},
		"original_post_id": {objectID},
		"_wpnonce":         {f.nonces.Create(nonce.ActionLoginSubmit, "")},
		"custom_form":      {"termgate_login_form"},
	}
}

func (f *fixture) sessionFor(t *testing.T, termID int64) string {
	t.Helper()
	hash, err := f.creds.Hash(termID)
	require.NoError(t, err)
	v, err := f.codec.Encode(termID, hash)
	require.NoError(t, err)
	return v
}

func findCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

var formNonce = regexp.MustCompile(`name="_wpnonce" value="([0-9a-f]+)"`)

func TestLoginScenario(t *testing.T) {
	f := setup(t)

	rec := f.get(f.loginURL("/42", "42"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<form")
	assert.Contains(t, body, `name="return_url" value="/42"`)
	assert.Contains(t, body, `name="original_post_id" value="42"`)
	m := formNonce.FindStringSubmatch(body)
	require.Len(t, m, 2)

	form := f.loginForm("/42", "42", "harvest25")
	form.Set("_wpnonce", m[1])
	rec = f.postLogin(form, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/42", rec.Header().Get("Location"))

	c := findCookie(rec)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, int(session.Lifetime.Seconds()), c.MaxAge)

	tok, ok := f.codec.Decode(c.Value)
	require.True(t, ok)
	hash, err := f.creds.Hash(growers)
	require.NoError(t, err)
	assert.Equal(t, growers, tok.TermID)
	assert.Equal(t, hash, tok.Credential)

	raw, err := url.QueryUnescape(c.Value)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Equal(t, float64(growers), payload["term_id"])
	assert.Equal(t, hash, payload["password"])

	rec = f.get("/42", c.Value)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Harvest plan")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	assert.Contains(t, f.logs.String(), `"event":"login_success"`)
}

func TestLoginWrongPassword(t *testing.T) {
	f := setup(t)

	rec := f.postLogin(f.loginForm("/42", "42", "wrong"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, findCookie(rec))
	body := rec.Body.String()
	assert.Contains(t, body, "Incorrect password")
	assert.Contains(t, body, `name="return_url" value="/42"`)
	assert.Contains(t, body, `name="original_post_id" value="42"`)
	assert.Regexp(t, formNonce, body)
	assert.Contains(t, f.logs.String(), `"event":"login_failure"`)
	assert.NotContains(t, f.logs.String(), "wrong")
}

func TestLoginWrongPasswordLocalised(t *testing.T) {
	f := setup(t)
	rec := f.postLogin(f.loginForm("/42", "42", "wrong"), http.Header{"Accept-Language": {"de-DE,de;q=0.9"}})
	assert.Contains(t, rec.Body.String(), "Falsches Passwort")
	assert.Contains(t, rec.Body.String(), `lang="de"`)
}

func TestLoginWithoutCredentialLooksLikeWrongPassword(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.creds.Clear(buyers))

	for name, objectID := range map[string]string{
		"untagged object":   "44",
		"term without hash": "43",
		"unknown object":    "999",
		"garbage id":        "abc",
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.postLogin(f.loginForm("/42", objectID, "harvest25"), nil)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Nil(t, findCookie(rec))
			assert.Contains(t, rec.Body.String(), "Incorrect password")
		})
	}
}

func TestLoginPasswordOfAnotherTerm(t *testing.T) {
	f := setup(t)
	rec := f.postLogin(f.loginForm("/43", "43", "harvest25"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, findCookie(rec))
}

func TestLoginSubmitRequiresNonce(t *testing.T) {
	f := setup(t)

	cases := map[string]func(url.Values){
		"missing nonce":     func(v url.Values) { v.Del("_wpnonce") },
		"forged nonce":      func(v url.Values) { v.Set("_wpnonce", "00000000000000000000") },
		"redirect nonce":    func(v url.Values) { v.Set("_wpnonce", f.nonces.Create(nonce.ActionLoginRedirect, "")) },
		"logout nonce":      func(v url.Values) { v.Set("_wpnonce", f.nonces.Create(nonce.ActionLogout, "")) },
		"missing marker":    func(v url.Values) { v.Del("custom_form") },
		"nonce for another": func(v url.Values) { v.Set("_wpnonce", f.nonces.Create(nonce.ActionLoginSubmit, "someone")) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f.logs.Reset()
			form := f.loginForm("/42", "42", "harvest25")
			mutate(form)

			rec := f.postLogin(form, nil)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Nil(t, findCookie(rec))
			assert.NotContains(t, rec.Body.String(), "<form")
			assert.Contains(t, rec.Body.String(), "Session expired")

			logs := f.logs.String()
			assert.Contains(t, logs, `"event":"login_forgery"`)
			assert.NotContains(t, logs, "login_failure", "password must not be checked")
			assert.NotContains(t, logs, "login_success")
		})
	}
}

func TestLoginFormRequiresNonce(t *testing.T) {
	f := setup(t)

	for _, target := range []string{
		"/login",
		"/login?return_url=%2F42&original_post_id=42",
		"/login?return_url=%2F42&original_post_id=42&_wpnonce=deadbeefdeadbeefdead",
		"/login?return_url=%2F42&original_post_id=42&_wpnonce=" + f.nonces.Create(nonce.ActionLoginSubmit, ""),
	} {
		rec := f.get(target, "")
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), "<form", target)
		assert.Contains(t, rec.Body.String(), "Session expired", target)
	}
}

func TestForeignReturnURLRejected(t *testing.T) {
	f := setup(t)

	for _, returnURL := range []string{
		"https://evil.example.net/42",
		"//evil.example.net/42",
		"/\\evil.example.net",
		"javascript:alert(1)",
		"42",
		"",
	} {
		t.Run(returnURL, func(t *testing.T) {
			rec := f.get(f.loginURL(returnURL, "42"), "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.NotContains(t, rec.Body.String(), "<form")

			rec = f.postLogin(f.loginForm(returnURL, "42", "harvest25"), nil)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Nil(t, findCookie(rec))
			assert.Empty(t, rec.Header().Get("Location"))
		})
	}

	// A foreign host is rejected even without a valid nonce.
	rec := f.get("/login?return_url=https%3A%2F%2Fevil.example.net%2F&original_post_id=42", "")
	assert.NotContains(t, rec.Body.String(), "<form")
}

func TestSameHostAbsoluteReturnURL(t *testing.T) {
	f := setup(t)
	rec := f.postLogin(f.loginForm("http://EXAMPLE.com/42?x=1", "42", "harvest25"), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://EXAMPLE.com/42?x=1", rec.Header().Get("Location"))
}

func TestLoginErrorParam(t *testing.T) {
	f := setup(t)
	rec := f.get(f.loginURL("/42", "42")+"&error=incorrect_password", "")
	assert.Contains(t, rec.Body.String(), "Incorrect password")
	assert.Contains(t, rec.Body.String(), "<form")
}

func TestGateRedirectsToLogin(t *testing.T) {
	f := setup(t)

	rec := f.get("/42", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "http://example.com/42", loc.Query().Get("return_url"))
	assert.Equal(t, "42", loc.Query().Get("original_post_id"))

	// Following the redirect shows the form.
	rec = f.get(loc.RequestURI(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<form")
}

func TestGateSessions(t *testing.T) {
	f := setup(t)
	growersCookie := f.sessionFor(t, growers)

	assert.Equal(t, http.StatusOK, f.get("/42", growersCookie).Code)
	assert.Equal(t, http.StatusFound, f.get("/43", growersCookie).Code, "session for another term")
	assert.Equal(t, http.StatusOK, f.get("/about", "").Code, "ungated page")

	rec := f.get("/untagged", growersCookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://example.com/", rec.Header().Get("Location"))
}

func TestPasswordRotationRevokesSessions(t *testing.T) {
	f := setup(t)
	old := f.sessionFor(t, growers)
	require.Equal(t, http.StatusOK, f.get("/42", old).Code)

	require.NoError(t, f.creds.SetHash(growers, "autumn26"))
	rec := f.get("/42", old)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/login")

	assert.Equal(t, http.StatusOK, f.get("/42", f.sessionFor(t, growers)).Code)
}

func TestCorruptCookieTreatedAsAbsent(t *testing.T) {
	f := setup(t)
	good := f.sessionFor(t, growers)

	want := f.get("/42", "")
	for _, v := range []string{good[:len(good)/2], "garbage", "%7B%7D", "%FF%FE"} {
		rec := f.get("/42", v)
		assert.Equal(t, want.Code, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/login", loc.Path)
	}
}

func TestBypassAndExemptions(t *testing.T) {
	f := setup(t)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/42", nil)
	req.Header.Set("X-Roles", "subscriber, editor")
	assert.Equal(t, http.StatusOK, f.do(req).Code, "exempt role")

	req = httptest.NewRequest(http.MethodGet, "http://example.com/42?preview=true", nil)
	req.Header.Set("X-User", "ann")
	assert.Equal(t, http.StatusOK, f.do(req).Code, "editor preview")

	req = httptest.NewRequest(http.MethodGet, "http://example.com/42?preview=true", nil)
	assert.Equal(t, http.StatusFound, f.do(req).Code, "anonymous preview")

	req = httptest.NewRequest(http.MethodGet, "http://example.com/42", nil)
	req.Header.Set("X-User", "ann")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	assert.Equal(t, http.StatusFound, f.do(req).Code, "automation is denied by default")
}

func TestGatedResponsesAreNotCached(t *testing.T) {
	f := setup(t)

	rec := f.get("/42", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	rec = f.get("/42", f.sessionFor(t, growers))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))

	rec = f.get("/about", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"), "ungated pages stay cacheable")
}

func TestAdminPrefixDoesNotExposeContent(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.catalog.PutObject(taxonomy.Object{
		ID: 45, Type: "post", TermID: growers, Path: "/wp-admin/notes", Title: "Admin notes",
	}))

	tests := []struct {
		target string
		title  string
	}{
		{"/wp-admin/../42", "Harvest plan"},
		{"/wp-admin/%2e%2e/42", "Harvest plan"},
		{"/wp-admin/./../42", "Harvest plan"},
		{"/wp-admin/notes", "Admin notes"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
			req.URL, _ = url.Parse("http://example.com" + tt.target)
			req.RequestURI = tt.target
			rec := f.do(req)
			assert.NotContains(t, rec.Body.String(), tt.title)
			assert.NotEqual(t, http.StatusOK, rec.Code)
		})
	}
}

func TestArchive(t *testing.T) {
	f := setup(t)

	rec := f.get("/type/post", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://example.com/members", rec.Header().Get("Location"))

	rec = f.get("/type/post", f.sessionFor(t, growers))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Harvest plan")
	assert.NotContains(t, body, "Price list")
	assert.NotContains(t, body, "Untagged")

	assert.Equal(t, http.StatusOK, f.get("/type/page", "").Code, "unprotected listing")
}

func TestHubChildren(t *testing.T) {
	f := setup(t)

	assert.Equal(t, http.StatusFound, f.get("/members/harvest", "").Code)

	rec := f.get("/members", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Harvest notes")

	rec = f.get("/members", f.sessionFor(t, growers))
	assert.Contains(t, rec.Body.String(), "Harvest notes")
}

func TestFeed(t *testing.T) {
	f := setup(t)

	rec := f.get("/feed", f.sessionFor(t, growers))
	require.Equal(t, http.StatusOK, rec.Code)
	var page api.FeedPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))

	var ids []int64
	for _, it := range page.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []int64{7, 44, 100}, ids)
	assert.Equal(t, 3, page.TotalCount)
	assert.False(t, page.HasMore)
}

func TestFeedPagination(t *testing.T) {
	f := setup(t)

	rec := f.get("/feed?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page api.FeedPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(7), page.Items[0].ID)
	assert.True(t, page.HasMore)

	rec = f.get("/feed?limit=2&offset=2", "")
	page = api.FeedPage{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(100), page.Items[0].ID)
	assert.False(t, page.HasMore)
	assert.Equal(t, 2, page.Offset)
}

func TestLogout(t *testing.T) {
	f := setup(t)
	cookie := f.sessionFor(t, growers)

	logout := "/42?termgate_logout=1&_wpnonce=" + f.nonces.Create(nonce.ActionLogout, "")
	rec := f.get(logout, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://example.com/", rec.Header().Get("Location"))
	c := findCookie(rec)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)
	assert.Contains(t, f.logs.String(), `"event":"logout"`)
}

func TestLogoutInvalidNonceKeepsCookie(t *testing.T) {
	f := setup(t)
	cookie := f.sessionFor(t, growers)

	for _, target := range []string{
		"/42?termgate_logout=1",
		"/42?termgate_logout=1&_wpnonce=00000000000000000000",
		"/?termgate_logout=1&_wpnonce=" + f.nonces.Create(nonce.ActionLoginSubmit, ""),
	} {
		rec := f.get(target, cookie)
		assert.Equal(t, http.StatusFound, rec.Code, target)
		assert.Equal(t, "http://example.com/", rec.Header().Get("Location"), target)
		assert.Nil(t, findCookie(rec), target)
	}
}

func TestLogoutLinkOnProtectedPage(t *testing.T) {
	f := setup(t)
	rec := f.get("/42", f.sessionFor(t, growers))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "termgate_logout=1")
	assert.Contains(t, f.api.LogoutURL(""), "_wpnonce=")
}

func TestSecureCookieBehindProxy(t *testing.T) {
	f := setup(t)
	rec := f.postLogin(f.loginForm("/42", "42", "harvest25"), http.Header{"X-Forwarded-Proto": {"https"}})
	c := findCookie(rec)
	require.NotNil(t, c)
	assert.True(t, c.Secure)
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestOperationalEndpoints(t *testing.T) {
	f := setup(t)

	rec := f.get("/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	f.get("/42", "")
	rec = f.get("/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `termgate_gate_decisions_total{outcome="deny",reason="no_session"} 1`)
	assert.Contains(t, rec.Body.String(), "termgate_http_requests_total")

	rec = f.get("/_termgate/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi:")

	rec = f.get("/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAuditWebhookReceivesLoginEvents(t *testing.T) {
	var (
		mu     sync.Mutex
		events []map[string]any
	)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt map[string]any
		if err := json.NewDecoder(r.Body).Decode(&evt); err == nil {
			mu.Lock()
			events = append(events, evt)
			mu.Unlock()
		}
	}))
	defer collector.Close()

	f := setup(t, api.WithAuditWebhook(collector.URL, "X-Audit-Token: s3cret"))
	f.postLogin(f.loginForm("/42", "42", "wrong"), nil)
	f.postLogin(f.loginForm("/42", "42", "harvest25"), nil)
	f.api.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, "login_failure", events[0]["event"])
	assert.Equal(t, "login_success", events[1]["event"])
	assert.EqualValues(t, growers, events[1]["term_id"])
	for _, evt := range events {
		assert.NotContains(t, evt, "password")
	}
}

func TestAuditTrailPersistsLoginEvents(t *testing.T) {
	trail := api.NewAuditTrail(memory.NewRepository())
	f := setup(t, api.WithAuditTrail(trail))

	f.postLogin(f.loginForm("/42", "42", "wrong"), nil)
	f.get("/42", "")

	entries, err := trail.List(api.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1, "gate denials are not persisted")
	assert.Equal(t, "login_failure", entries[0].Event)
	assert.Equal(t, growers, entries[0].TermID)
	assert.Equal(t, int64(42), entries[0].ObjectID)
}
