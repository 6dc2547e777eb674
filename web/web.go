// Package web renders the gate's HTML pages from embedded templates.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var content embed.FS

// Page names.
const (
	PageLogin   = "login.html"
	PageMessage = "message.html"
	PageContent = "content.html"
)

// LoginPage is the password form.
type LoginPage struct {
	Lang             string
	Title            string
	Prompt           string
	PasswordLabel    string
	Submit           string
	Error            string
	Action           string
	ReturnURL        string
	OriginalObjectID int64
	Nonce            string
	FormMarker       string
}

// MessagePage is a dead end shown instead of the form.
type MessagePage struct {
	Lang      string
	Title     string
	Message   string
	HomeURL   string
	HomeLabel string
}

// Item is one entry in a listing.
type Item struct {
	Title string
	URL   string
}

// ContentPage shows an object or a listing.
type ContentPage struct {
	Lang        string
	Title       string
	Items       []Item
	Empty       string
	LogoutURL   string
	LogoutLabel string
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(content, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes page with status. The page is rendered to a buffer first
// so a template error never leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, page, data); err != nil {
		return fmt.Errorf("rendering %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
