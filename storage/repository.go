// Package storage provides the record storage abstraction shared by the
// credential store, the content catalog and the key ring.
package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNamespaceNotFound is returned when nothing has ever been written
	// to the requested namespace.
	ErrNamespaceNotFound = errors.New("namespace not found")
)

// Repository defines the interface for record storage. Records are
// addressed by namespace, record type and record id.
type Repository interface {
	Put(namespace string, recordType string, recordID string, envelope *Envelope) error
	Get(namespace string, recordType string, recordID string) (*Envelope, error)
	List(namespace string, recordType string) ([]string, error)
	Delete(namespace string, recordType string, recordID string) error
}

// IsNotFound reports whether err means the record or its namespace is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNamespaceNotFound)
}
