package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runthings/termgate/gate"
	"github.com/runthings/termgate/session"
)

func testAPI(t *testing.T) *API {
	t.Helper()
	site, err := url.Parse("https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	return &API{
		gate:          gate.New(gate.Config{SiteURL: site}, nil, session.PlainCodec{}, nil),
		adminPrefixes: []string{"/wp-admin", "/admin/"},
		previewParam:  "preview",
		userHeader:    "X-User",
		rolesHeader:   "X-Roles",
		cookieName:    "c",
	}
}

func TestSameSite(t *testing.T) {
	a := testAPI(t)
	tests := []struct {
		raw  string
		want bool
	}{
		{"/42", true},
		{"/shop/item?x=1#top", true},
		{"https://example.com/42", true},
		{"http://example.com:8080/42", true},
		{"https://EXAMPLE.COM/", true},
		{"https://evil.com/42", false},
		{"https://example.com.evil.com/", false},
		{"https://user@evil.com/", false},
		{"//evil.com/42", false},
		{"/\\evil.com", false},
		{"\\\\evil.com", false},
		{"javascript:alert(1)", false},
		{"ftp://example.com/", false},
		{"42", false},
		{"", false},
		{"/ok\r\nSet-Cookie: x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, a.sameSite(tt.raw), tt.raw)
	}
}

func TestRequestContextAdapter(t *testing.T) {
	a := testAPI(t)

	req := httptest.NewRequest(http.MethodGet, "http://internal:8080/wp-admin/edit?preview=1", nil)
	req.Header.Set("X-User", " ann ")
	req.Header.Set("X-Roles", "editor, ,author")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.AddCookie(&http.Cookie{Name: "c", Value: "v"})

	rc := a.requestContext(req, gate.Target{})
	assert.Equal(t, "https://example.com/wp-admin/edit?preview=1", rc.URL)
	assert.Equal(t, "ann", rc.User)
	assert.True(t, rc.Authenticated)
	assert.True(t, rc.Admin)
	assert.True(t, rc.Preview)
	assert.True(t, rc.Automation)
	assert.Equal(t, "v", rc.SessionCookie)
	assert.Equal(t, []string{"editor", "author"}, rc.Roles())

	req = httptest.NewRequest(http.MethodGet, "http://example.com/administrator?preview=false", nil)
	rc = a.requestContext(req, gate.Target{})
	assert.False(t, rc.Admin, "prefix must match a whole segment")
	assert.False(t, rc.Preview)
	assert.False(t, rc.Authenticated)
	assert.False(t, rc.Automation)
	assert.Empty(t, rc.Roles())

	req = httptest.NewRequest(http.MethodGet, "http://example.com/admin/", nil)
	assert.True(t, a.requestContext(req, gate.Target{}).Admin)
}

func TestRequestIsSecure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	assert.False(t, requestIsSecure(req))

	req.Header.Set("Forwarded", "for=192.0.2.60;proto=https;by=203.0.113.43")
	assert.True(t, requestIsSecure(req))

	req = httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	assert.True(t, requestIsSecure(req))
}
