// Package taxonomy holds the access-control terms and the content objects
// tagged with them. It is the minimal content catalog the gate resolves
// requests against; editorial tooling lives elsewhere.
package taxonomy

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/runthings/termgate/storage"
)

const (
	namespace        = "taxonomy"
	termRecordType   = "TERM"
	objectRecordType = "OBJECT"
	pathRecordType   = "PATH"
)

var (
	ErrTermNotFound   = errors.New("term not found")
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidTerm    = errors.New("invalid term")
	ErrInvalidObject  = errors.New("invalid object")
)

// Term is an access-control grouping. Its password hash is held by the
// credential store, keyed by ID.
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Object is a piece of content that may be gated. TermID is zero when no
// term is assigned.
type Object struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	ParentID int64  `json:"parent_id,omitempty"`
	TermID   int64  `json:"term_id,omitempty"`
	Path     string `json:"path"`
	Title    string `json:"title,omitempty"`
}

// HasTerm reports whether a term is assigned.
func (o Object) HasTerm() bool {
	return o.TermID > 0
}

type pathIndex struct {
	ObjectID int64 `json:"object_id"`
}

// Catalog persists terms and objects in a storage.Repository.
type Catalog struct {
	repo storage.Repository
}

// NewCatalog returns a Catalog backed by repo.
func NewCatalog(repo storage.Repository) *Catalog {
	return &Catalog{repo: repo}
}

func recordID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// CleanPath normalises a request or object path: leading slash, no
// trailing slash, no dot segments.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + strings.TrimSpace(p))
}

// PutTerm creates or replaces a term.
func (c *Catalog) PutTerm(t Term) error {
	if t.ID <= 0 || strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidTerm)
	}
	if t.Slug == "" {
		t.Slug = Slugify(t.Name)
	}
	return storage.PutJSON(c.repo, namespace, termRecordType, recordID(t.ID), t)
}

// Term loads a term by id.
func (c *Catalog) Term(id int64) (Term, error) {
	var t Term
	err := storage.GetJSON(c.repo, namespace, termRecordType, recordID(id), &t)
	if storage.IsNotFound(err) {
		return Term{}, fmt.Errorf("term %d: %w", id, ErrTermNotFound)
	}
	return t, err
}

// Terms returns every term ordered by name.
func (c *Catalog) Terms() ([]Term, error) {
	ids, err := c.repo.List(namespace, termRecordType)
	if err != nil {
		return nil, err
	}
	terms := make([]Term, 0, len(ids))
	for _, id := range ids {
		var t Term
		if err := storage.GetJSON(c.repo, namespace, termRecordType, id, &t); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Name < terms[j].Name })
	return terms, nil
}

// PutObject creates or replaces an object and keeps the path index current.
// A non-zero TermID must reference an existing term.
func (c *Catalog) PutObject(o Object) error {
	if o.ID <= 0 || o.Type == "" {
		return fmt.Errorf("%w: id and type are required", ErrInvalidObject)
	}
	o.Path = CleanPath(o.Path)
	if o.TermID > 0 {
		if _, err := c.Term(o.TermID); err != nil {
			return err
		}
	}

	if prev, err := c.Object(o.ID); err == nil && prev.Path != o.Path {
		if err := c.repo.Delete(namespace, pathRecordType, prev.Path); err != nil && !storage.IsNotFound(err) {
			return err
		}
	}
	if owner, err := c.ObjectByPath(o.Path); err == nil && owner.ID != o.ID {
		return fmt.Errorf("%w: path %s already belongs to object %d", ErrInvalidObject, o.Path, owner.ID)
	}

	if err := storage.PutJSON(c.repo, namespace, objectRecordType, recordID(o.ID), o); err != nil {
		return err
	}
	return storage.PutJSON(c.repo, namespace, pathRecordType, o.Path, pathIndex{ObjectID: o.ID})
}

// Object loads an object by id.
func (c *Catalog) Object(id int64) (Object, error) {
	var o Object
	err := storage.GetJSON(c.repo, namespace, objectRecordType, recordID(id), &o)
	if storage.IsNotFound(err) {
		return Object{}, fmt.Errorf("object %d: %w", id, ErrObjectNotFound)
	}
	return o, err
}

// ObjectByPath resolves a request path to the object published there.
func (c *Catalog) ObjectByPath(p string) (Object, error) {
	p = CleanPath(p)
	var idx pathIndex
	err := storage.GetJSON(c.repo, namespace, pathRecordType, p, &idx)
	if storage.IsNotFound(err) {
		return Object{}, fmt.Errorf("path %s: %w", p, ErrObjectNotFound)
	}
	if err != nil {
		return Object{}, err
	}
	return c.Object(idx.ObjectID)
}

// Objects returns every object ordered by id.
func (c *Catalog) Objects() ([]Object, error) {
	ids, err := c.repo.List(namespace, objectRecordType)
	if err != nil {
		return nil, err
	}
	objects := make([]Object, 0, len(ids))
	for _, id := range ids {
		var o Object
		if err := storage.GetJSON(c.repo, namespace, objectRecordType, id, &o); err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].ID < objects[j].ID })
	return objects, nil
}

// ObjectsOfType returns the objects whose type is typ, ordered by id.
func (c *Catalog) ObjectsOfType(typ string) ([]Object, error) {
	all, err := c.Objects()
	if err != nil {
		return nil, err
	}
	var out []Object
	for _, o := range all {
		if o.Type == typ {
			out = append(out, o)
		}
	}
	return out, nil
}

// Children returns the direct children of parentID with the given type,
// ordered by title. Used to list the pages under the hub object.
func (c *Catalog) Children(parentID int64, typ string) ([]Object, error) {
	all, err := c.Objects()
	if err != nil {
		return nil, err
	}
	var out []Object
	for _, o := range all {
		if o.ParentID == parentID && o.Type == typ {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// AssignTerm tags an object with termID, replacing any previous term.
// termID 0 removes the assignment.
func (c *Catalog) AssignTerm(objectID, termID int64) error {
	o, err := c.Object(objectID)
	if err != nil {
		return err
	}
	o.TermID = termID
	return c.PutObject(o)
}

// Slugify lowercases name, strips accents and joins its alphanumeric runs
// with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFKD.String(strings.ToLower(name)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// accents decomposed off their base letter
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
