package web

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English text doubles as the key.
const (
	MsgLoginTitle       = "Protected content"
	MsgLoginPrompt      = "This content is password protected. Enter the password to continue."
	MsgPasswordLabel    = "Password"
	MsgSubmit           = "Enter"
	MsgIncorrect        = "Incorrect password, please try again."
	MsgExpiredTitle     = "Session expired"
	MsgExpired          = "Your session has expired. Please go back and try again."
	MsgInvalidReturnURL = "Invalid return URL."
	MsgNotFound         = "Page not found."
	MsgHome             = "Return to the home page"
	MsgLogout           = "Log out"
	MsgNothingHere      = "Nothing to show."
	MsgServerError      = "Something went wrong. Please try again later."
)

var supported = []language.Tag{language.English, language.German, language.French}

var matcher = language.NewMatcher(supported)

var translations = map[language.Tag]map[string]string{
	language.German: {
		MsgLoginTitle:       "Geschützter Inhalt",
		MsgLoginPrompt:      "Dieser Inhalt ist passwortgeschützt. Bitte gib das Passwort ein.",
		MsgPasswordLabel:    "Passwort",
		MsgSubmit:           "Weiter",
		MsgIncorrect:        "Falsches Passwort, bitte versuche es erneut.",
		MsgExpiredTitle:     "Sitzung abgelaufen",
		MsgExpired:          "Deine Sitzung ist abgelaufen. Bitte geh zurück und versuche es erneut.",
		MsgInvalidReturnURL: "Ungültige Rücksprungadresse.",
		MsgNotFound:         "Seite nicht gefunden.",
		MsgHome:             "Zur Startseite",
		MsgLogout:           "Abmelden",
		MsgNothingHere:      "Nichts anzuzeigen.",
		MsgServerError:      "Etwas ist schiefgelaufen. Bitte versuche es später erneut.",
	},
	language.French: {
		MsgLoginTitle:       "Contenu protégé",
		MsgLoginPrompt:      "Ce contenu est protégé par un mot de passe. Saisissez-le pour continuer.",
		MsgPasswordLabel:    "Mot de passe",
		MsgSubmit:           "Valider",
		MsgIncorrect:        "Mot de passe incorrect, veuillez réessayer.",
		MsgExpiredTitle:     "Session expirée",
		MsgExpired:          "Votre session a expiré. Revenez en arrière et réessayez.",
		MsgInvalidReturnURL: "URL de retour invalide.",
		MsgNotFound:         "Page introuvable.",
		MsgHome:             "Retour à l'accueil",
		MsgLogout:           "Se déconnecter",
		MsgNothingHere:      "Rien à afficher.",
		MsgServerError:      "Une erreur est survenue. Veuillez réessayer plus tard.",
	},
}

var messages = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Localizer translates page text for one request.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// NewLocalizer picks the best supported language for an Accept-Language
// header value. Unknown or malformed headers get English.
func NewLocalizer(acceptLanguage string) *Localizer {
	tag := language.English
	if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
		_, idx, conf := matcher.Match(tags...)
		if conf != language.No {
			tag = supported[idx]
		}
	}
	return &Localizer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(messages))}
}

// Lang returns the BCP 47 tag for the html lang attribute.
func (l *Localizer) Lang() string {
	return l.tag.String()
}

// T translates key.
func (l *Localizer) T(key string) string {
	return l.printer.Sprintf(key)
}
