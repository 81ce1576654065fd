// client/local.go
package client

import (
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"

	"github.com/arbornote/arbor/domain"
)

var (
	draftBucket = []byte("drafts")
	noteBucket  = []byte("notes")
	treeBucket  = []byte("tree")
)

var treeKey = []byte("current")

const openTimeout = 1 * time.Second

// Draft holds unsent edits for one note.
type Draft struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

// LocalStore is the client's persistent cache: unsent drafts, last-seen
// notes, and the last-seen tree. It is a best-effort cache, not a durability
// guarantee; every read path tolerates a missing record.
type LocalStore struct {
	db *bolt.DB
}

// OpenLocalStore opens (or creates) the bolt file at path.
func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{draftBucket, noteBucket, treeBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &LocalStore{db: db}, nil
}

// Close releases the underlying bolt file.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// SaveDraft persists unsent edits for a note id.
func (s *LocalStore) SaveDraft(id string, d Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftBucket).Put([]byte(id), raw)
	})
}

// Draft returns the persisted draft for id, or nil when there is none.
func (s *LocalStore) Draft(id string) (*Draft, error) {
	var out *Draft
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(draftBucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var d Draft
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		out = &d
		return nil
	})
	return out, err
}

// DeleteDraft discards the persisted draft for id.
func (s *LocalStore) DeleteDraft(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftBucket).Delete([]byte(id))
	})
}

// CacheNote stores the last-seen server copy of a note.
func (s *LocalStore) CacheNote(n domain.Note) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(noteBucket).Put([]byte(n.ID), raw)
	})
}

// CachedNote returns the cached note, or nil when the id is unknown.
func (s *LocalStore) CachedNote(id string) (*domain.Note, error) {
	var out *domain.Note
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(noteBucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var n domain.Note
		if err := json.Unmarshal(raw, &n); err != nil {
			return err
		}
		out = &n
		return nil
	})
	return out, err
}

// DeleteCachedNote drops a note from the cache.
func (s *LocalStore) DeleteCachedNote(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(noteBucket).Delete([]byte(id))
	})
}

// CacheTree stores the last-seen tree structure.
func (s *LocalStore) CacheTree(t domain.Tree) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(treeBucket).Put(treeKey, raw)
	})
}

// CachedTree returns the cached tree, or nil when none has been stored.
// A corrupt record is treated as absent.
func (s *LocalStore) CachedTree() (*domain.Tree, error) {
	var out *domain.Tree
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(treeBucket).Get(treeKey)
		if raw == nil {
			return nil
		}
		var t domain.Tree
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil
		}
		out = &t
		return nil
	})
	return out, err
}
