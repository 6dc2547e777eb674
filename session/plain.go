package session

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
	"unicode/utf8"
)

type cookiePayload struct {
	TermID   *int64  `json:"term_id"`
	Password *string `json:"password"`
}

// PlainCodec stores the term id and raw hash as a query-escaped JSON object.
type PlainCodec struct{}

var _ Codec = PlainCodec{}

func (PlainCodec) Encode(termID int64, hash string) (string, error) {
	data, err := json.Marshal(struct {
		TermID   int64  `json:"term_id"`
		Password string `json:"password"`
	}{termID, hash})
	if err != nil {
		return "", err
	}
	return url.QueryEscape(string(data)), nil
}

func (PlainCodec) Decode(value string) (Token, bool) {
	if value == "" || len(value) > maxValueLen || !utf8.ValidString(value) {
		return Token{}, false
	}
	raw := strings.TrimSpace(value)
	if !strings.HasPrefix(raw, "{") {
		unescaped, err := url.QueryUnescape(raw)
		if err != nil || !utf8.ValidString(unescaped) {
			return Token{}, false
		}
		raw = unescaped
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	var p cookiePayload
	if err := dec.Decode(&p); err != nil || dec.More() {
		return Token{}, false
	}
	if p.TermID == nil || *p.TermID <= 0 || p.Password == nil || *p.Password == "" {
		return Token{}, false
	}
	return Token{TermID: *p.TermID, Credential: *p.Password}, true
}

func (PlainCodec) Bind(hash string) string {
	return hash
}
