package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/runthings/termgate/credential"
	"github.com/runthings/termgate/gate"
	"github.com/runthings/termgate/nonce"
	"github.com/runthings/termgate/taxonomy"
	"github.com/runthings/termgate/web"
)

const (
	fieldPassword   = "post_password"
	fieldFormMarker = "custom_form"
	paramError      = "error"
	errorIncorrect  = "incorrect_password"

	maxLoginFormBytes = 64 << 10
)

// errNoCredential covers an unknown object, an object with no term and a
// term with no password. All three look like a wrong password to the
// visitor.
var errNoCredential = errors.New("no credential for object")

// LoginForm handles GET on the login page. It needs a valid login-redirect
// nonce and a same-site return URL before it shows the form.
func (a *API) LoginForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if !a.nonces.Verify(nonce.ActionLoginRedirect, a.user(r), q.Get(gate.ParamNonce)) {
		a.audit.logFailure(AuditLoginForgery, r, "invalid login-redirect nonce", slog.String("stage", "form"))
		a.renderMessage(w, r, http.StatusOK, web.MsgExpiredTitle, web.MsgExpired)
		return
	}

	returnURL := q.Get(gate.ParamReturnURL)
	if !a.sameSite(returnURL) {
		a.audit.logFailure(AuditLoginBadReturn, r, "foreign return url", slog.String("stage", "form"))
		a.renderMessage(w, r, http.StatusOK, web.MsgLoginTitle, web.MsgInvalidReturnURL)
		return
	}

	objectID, _ := strconv.ParseInt(q.Get(gate.ParamOriginalObject), 10, 64)
	var errKey string
	if q.Get(paramError) == errorIncorrect {
		errKey = web.MsgIncorrect
	}
	a.renderLogin(w, r, gate.RedirectIntent{ReturnURL: returnURL, OriginalObjectID: objectID}, errKey)
}

// LoginSubmit handles POST on the login page. The submit nonce is checked
// before any password work.
func (a *API) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginFormBytes)
	if err := r.ParseForm(); err != nil {
		a.audit.logFailure(AuditLoginForgery, r, "unreadable form")
		a.renderMessage(w, r, http.StatusBadRequest, web.MsgExpiredTitle, web.MsgExpired)
		return
	}
	form := r.PostForm

	if form.Get(fieldFormMarker) != loginFormMarker ||
		!a.nonces.Verify(nonce.ActionLoginSubmit, a.user(r), form.Get(gate.ParamNonce)) {
		a.audit.logFailure(AuditLoginForgery, r, "invalid login-submit nonce", slog.String("stage", "submit"))
		a.countLogin("forgery")
		a.renderMessage(w, r, http.StatusOK, web.MsgExpiredTitle, web.MsgExpired)
		return
	}

	returnURL := form.Get(gate.ParamReturnURL)
	if !a.sameSite(returnURL) {
		a.audit.logFailure(AuditLoginBadReturn, r, "foreign return url", slog.String("stage", "submit"))
		a.countLogin("bad_return")
		a.renderMessage(w, r, http.StatusOK, web.MsgLoginTitle, web.MsgInvalidReturnURL)
		return
	}

	objectID, _ := strconv.ParseInt(form.Get(gate.ParamOriginalObject), 10, 64)
	intent := gate.RedirectIntent{ReturnURL: returnURL, OriginalObjectID: objectID}

	termID, hash, err := a.credentialFor(objectID)
	if err != nil && !errors.Is(err, errNoCredential) {
		a.logger.Error("loading credential", "object_id", objectID, "error", err)
		a.renderServerError(w, r)
		return
	}

	ok := false
	if err == nil {
		ok, err = credential.VerifyHash(hash, form.Get(fieldPassword))
		if err != nil {
			a.logger.Error("verifying password", "term_id", termID, "error", err)
			ok = false
		}
	}
	if !ok {
		a.audit.logTerm(AuditLoginFailure, r, termID, slog.Int64("object_id", objectID))
		a.countLogin("failure")
		a.renderLogin(w, r, intent, web.MsgIncorrect)
		return
	}

	value, err := a.codec.Encode(termID, hash)
	if err != nil {
		a.logger.Error("encoding session", "term_id", termID, "error", err)
		a.renderServerError(w, r)
		return
	}
	a.writeSessionCookie(w, r, value)
	a.audit.logTerm(AuditLoginSuccess, r, termID, slog.Int64("object_id", objectID))
	a.countLogin("success")
	noStore(w)
	http.Redirect(w, r, returnURL, http.StatusFound)
}

// credentialFor resolves object -> term -> current hash.
func (a *API) credentialFor(objectID int64) (int64, string, error) {
	if objectID <= 0 {
		return 0, "", errNoCredential
	}
	obj, err := a.catalog.Object(objectID)
	if errors.Is(err, taxonomy.ErrObjectNotFound) {
		return 0, "", errNoCredential
	}
	if err != nil {
		return 0, "", err
	}
	if !obj.HasTerm() {
		return 0, "", errNoCredential
	}
	hash, err := a.creds.Hash(obj.TermID)
	if err != nil {
		return obj.TermID, "", err
	}
	if hash == "" {
		return obj.TermID, "", errNoCredential
	}
	return obj.TermID, hash, nil
}

func (a *API) renderLogin(w http.ResponseWriter, r *http.Request, intent gate.RedirectIntent, errKey string) {
	l := web.NewLocalizer(r.Header.Get("Accept-Language"))
	page := web.LoginPage{
		Lang:             l.Lang(),
		Title:            l.T(web.MsgLoginTitle),
		Prompt:           l.T(web.MsgLoginPrompt),
		PasswordLabel:    l.T(web.MsgPasswordLabel),
		Submit:           l.T(web.MsgSubmit),
		Action:           a.loginPath,
		ReturnURL:        intent.ReturnURL,
		OriginalObjectID: intent.OriginalObjectID,
		Nonce:            a.nonces.Create(nonce.ActionLoginSubmit, a.user(r)),
		FormMarker:       loginFormMarker,
	}
	if errKey != "" {
		page.Error = l.T(errKey)
	}
	noStore(w)
	if err := a.pages.Render(w, http.StatusOK, web.PageLogin, page); err != nil {
		a.logger.Error("rendering login page", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
