package api

import (
	"encoding/json"
	"net/http"

	"github.com/runthings/termgate/web"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// renderMessage shows a message page with no form. Forgery and tampering
// paths end here.
func (a *API) renderMessage(w http.ResponseWriter, r *http.Request, status int, titleKey, messageKey string) {
	l := web.NewLocalizer(r.Header.Get("Accept-Language"))
	noStore(w)
	err := a.pages.Render(w, status, web.PageMessage, web.MessagePage{
		Lang:      l.Lang(),
		Title:     l.T(titleKey),
		Message:   l.T(messageKey),
		HomeURL:   a.gate.HomeURL(),
		HomeLabel: l.T(web.MsgHome),
	})
	if err != nil {
		a.logger.Error("rendering message page", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (a *API) renderServerError(w http.ResponseWriter, r *http.Request) {
	a.renderMessage(w, r, http.StatusInternalServerError, web.MsgServerError, web.MsgServerError)
}

func (a *API) renderNotFound(w http.ResponseWriter, r *http.Request) {
	a.renderMessage(w, r, http.StatusNotFound, web.MsgNotFound, web.MsgNotFound)
}
