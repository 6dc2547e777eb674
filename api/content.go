package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/runthings/termgate/gate"
	"github.com/runthings/termgate/taxonomy"
	"github.com/runthings/termgate/web"
)

// FeedItem is one entry of the public feed.
type FeedItem struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FeedPage is one page of the public feed.
type FeedPage struct {
	Items []FeedItem `json:"items"`
	PaginationMeta
}

// Content serves a single object. Hub objects list their children, trimmed
// to what the visitor may see.
func (a *API) Content(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContextFrom(r.Context())
	if !ok || rc.Target.Kind != gate.TargetSingular {
		a.renderNotFound(w, r)
		return
	}
	obj := rc.Target.Object

	var children []taxonomy.Object
	if a.hubType != "" {
		var err error
		children, err = a.catalog.Children(obj.ID, a.hubType)
		if err != nil {
			a.logger.Error("listing children", "object_id", obj.ID, "error", err)
			a.renderServerError(w, r)
			return
		}
		children = a.gate.FilterListing(rc, children, false)
	}
	title := obj.Title
	if title == "" {
		title = obj.Path
	}
	a.renderContent(w, r, rc, title, children)
}

// Archive serves a listing of one object type.
func (a *API) Archive(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContextFrom(r.Context())
	if !ok {
		a.renderNotFound(w, r)
		return
	}
	typ := chi.URLParam(r, "objectType")
	objects, err := a.catalog.ObjectsOfType(typ)
	if err != nil {
		a.logger.Error("listing objects", "type", typ, "error", err)
		a.renderServerError(w, r)
		return
	}
	a.renderContent(w, r, rc, typ, a.gate.FilterListing(rc, objects, false))
}

// Feed lists every object that carries no term. Feed readers cannot hold
// sessions, so tagged content never appears there.
func (a *API) Feed(w http.ResponseWriter, r *http.Request) {
	rc, _ := requestContextFrom(r.Context())
	objects, err := a.catalog.Objects()
	if err != nil {
		a.logger.Error("listing feed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "feed unavailable"})
		return
	}
	visible := a.gate.FilterListing(rc, objects, true)
	limit, offset := parsePagination(r)
	start, end, meta := paginateSlice(len(visible), limit, offset)

	page := FeedPage{Items: make([]FeedItem, 0, end-start), PaginationMeta: meta}
	for _, o := range visible[start:end] {
		page.Items = append(page.Items, FeedItem{ID: o.ID, Type: o.Type, Title: o.Title, URL: a.objectURL(o)})
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) renderContent(w http.ResponseWriter, r *http.Request, rc gate.RequestContext, title string, objects []taxonomy.Object) {
	l := web.NewLocalizer(r.Header.Get("Accept-Language"))
	page := web.ContentPage{
		Lang:  l.Lang(),
		Title: title,
		Empty: l.T(web.MsgNothingHere),
	}
	if rc.Target.Kind == gate.TargetSingular {
		page.Empty = ""
	}
	for _, o := range objects {
		page.Items = append(page.Items, web.Item{Title: o.Title, URL: a.objectURL(o)})
	}
	if d, ok := decisionFrom(r.Context()); ok && d.TermID > 0 && rc.SessionCookie != "" {
		page.LogoutURL = a.LogoutURL(rc.User)
		page.LogoutLabel = l.T(web.MsgLogout)
	}
	if err := a.pages.Render(w, http.StatusOK, web.PageContent, page); err != nil {
		a.logger.Error("rendering content page", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (a *API) objectURL(o taxonomy.Object) string {
	u := a.gate.Site()
	u.Path = taxonomy.CleanPath(o.Path)
	u.RawQuery = ""
	return u.String()
}
