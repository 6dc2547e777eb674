// Package storagetest runs a common behavioural suite against any
// storage.Repository implementation.
package storagetest

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/runthings/termgate/storage"
)

// Run exercises repo. The repository must be empty on entry.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()

	namespace := "terms"
	recordType := "HASH"
	env := &storage.Envelope{
		Ver:        1,
		Scheme:     storage.SchemePlainJSON,
		Ciphertext: []byte(`{"hash":"x"}`),
	}

	t.Run("PutAndGet", func(t *testing.T) {
		if err := repo.Put(namespace, recordType, "1", env); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := repo.Get(namespace, recordType, "1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Ver != env.Ver || got.Scheme != env.Scheme || !bytes.Equal(got.Ciphertext, env.Ciphertext) {
			t.Errorf("Get returned wrong envelope: %+v", got)
		}
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		got, err := repo.Get(namespace, recordType, "1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		got.Ciphertext[0] = 'X'
		again, _ := repo.Get(namespace, recordType, "1")
		if again.Ciphertext[0] == 'X' {
			t.Error("repository must not share envelope buffers with callers")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		updated := &storage.Envelope{Ver: 1, Scheme: storage.SchemePlainJSON, Ciphertext: []byte(`{"hash":"y"}`)}
		if err := repo.Put(namespace, recordType, "1", updated); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := repo.Get(namespace, recordType, "1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got.Ciphertext) != `{"hash":"y"}` {
			t.Errorf("expected last write to win, got %s", got.Ciphertext)
		}
	})

	t.Run("GetMissingRecord", func(t *testing.T) {
		_, err := repo.Get(namespace, recordType, "nope")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetMissingNamespace", func(t *testing.T) {
		_, err := repo.Get("never-written", recordType, "1")
		if !errors.Is(err, storage.ErrNamespaceNotFound) {
			t.Errorf("expected ErrNamespaceNotFound, got %v", err)
		}
		if !storage.IsNotFound(err) {
			t.Error("IsNotFound should cover a missing namespace")
		}
	})

	t.Run("List", func(t *testing.T) {
		if err := repo.Put(namespace, recordType, "2", env); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := repo.Put(namespace, "OTHER", "3", env); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		ids, err := repo.List(namespace, recordType)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != "1" || ids[1] != "2" {
			t.Errorf("expected [1 2], got %v", ids)
		}
		ids, err = repo.List("never-written", recordType)
		if err != nil {
			t.Fatalf("List on missing namespace failed: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected no ids, got %v", ids)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(namespace, recordType, "2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get(namespace, recordType, "2"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.Delete(namespace, recordType, "2"); !storage.IsNotFound(err) {
			t.Errorf("expected not-found deleting twice, got %v", err)
		}
	})

	t.Run("ConcurrentReads", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Get(namespace, recordType, "1"); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("concurrent Get failed: %v", err)
		}
	})
}
