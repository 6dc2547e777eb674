package api

import (
	"fmt"
	"sort"
	"time"

	"github.com/runthings/termgate/internal/uuid"
	"github.com/runthings/termgate/storage"
)

const (
	auditNamespace  = "audit"
	auditRecordType = "EVENT"
)

// AuditEntry is one persisted audit event.
type AuditEntry struct {
	ID         string `json:"id"`
	Event      string `json:"event"`
	TermID     int64  `json:"term_id,omitempty"`
	ObjectID   int64  `json:"object_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// AuditFilter narrows AuditTrail.List. Zero values match everything.
type AuditFilter struct {
	Event  string
	TermID int64
	Limit  int
}

// AuditTrail persists audit events in a storage.Repository so they outlive
// the process log.
type AuditTrail struct {
	repo storage.Repository
	now  func() time.Time
}

// NewAuditTrail returns a trail writing to repo.
func NewAuditTrail(repo storage.Repository) *AuditTrail {
	return &AuditTrail{repo: repo, now: time.Now}
}

// Append stores e, assigning an id and timestamp when unset.
func (t *AuditTrail) Append(e AuditEntry) (AuditEntry, error) {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = t.now().UTC().Format(time.RFC3339Nano)
	}
	if err := storage.PutJSON(t.repo, auditNamespace, auditRecordType, e.ID, e); err != nil {
		return AuditEntry{}, fmt.Errorf("storing audit entry: %w", err)
	}
	return e, nil
}

// List returns matching entries, newest first.
func (t *AuditTrail) List(f AuditFilter) ([]AuditEntry, error) {
	ids, err := t.repo.List(auditNamespace, auditRecordType)
	if storage.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entries := make([]AuditEntry, 0, len(ids))
	for _, id := range ids {
		var e AuditEntry
		if err := storage.GetJSON(t.repo, auditNamespace, auditRecordType, id, &e); err != nil {
			// Deleted by a concurrent prune.
			if storage.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if f.Event != "" && e.Event != f.Event {
			continue
		}
		if f.TermID != 0 && e.TermID != f.TermID {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entryTime(entries[i]).After(entryTime(entries[j]))
	})
	if f.Limit > 0 && len(entries) > f.Limit {
		entries = entries[:f.Limit]
	}
	return entries, nil
}

// Prune deletes entries created before cutoff and reports how many went.
func (t *AuditTrail) Prune(cutoff time.Time) (int, error) {
	ids, err := t.repo.List(auditNamespace, auditRecordType)
	if storage.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		var e AuditEntry
		if err := storage.GetJSON(t.repo, auditNamespace, auditRecordType, id, &e); err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return removed, err
		}
		if !entryTime(e).Before(cutoff) {
			continue
		}
		if err := t.repo.Delete(auditNamespace, auditRecordType, id); err != nil && !storage.IsNotFound(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func entryTime(e AuditEntry) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return ts
}
