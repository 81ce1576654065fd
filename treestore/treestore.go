// server/treestore/treestore.go
package treestore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/store"
	"github.com/arbornote/arbor/tree"
)

// TreePath is the reserved object path holding the serialized tree.
const TreePath = "tree"

const treeContentType = "application/json"

// Store persists the folder tree as a single JSON object in the object store.
// Every mutation is a locked load-apply-save so concurrent handlers cannot
// interleave partial tree writes within one process.
type Store struct {
	mu      sync.Mutex
	objects store.ObjectStore
	log     zerolog.Logger
}

// New wraps an object store as a persisted tree store.
func New(objects store.ObjectStore, log zerolog.Logger) *Store {
	return &Store{objects: objects, log: log}
}

// Get loads and sanitizes the current tree. A missing or unreadable tree
// object yields a fresh empty tree rather than an error; the tree must always
// be usable.
func (s *Store) Get(ctx context.Context) (domain.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (domain.Tree, error) {
	obj, err := s.objects.Get(ctx, TreePath)
	if err != nil {
		if domain.ErrNotFound.Has(err) {
			return domain.NewTree(), nil
		}
		return domain.Tree{}, err
	}
	var t domain.Tree
	if err := json.Unmarshal(obj.Content, &t); err != nil {
		s.log.Warn().Err(err).Msg("stored tree is unreadable, starting fresh")
		return domain.NewTree(), nil
	}
	return tree.Clean(t), nil
}

func (s *Store) save(ctx context.Context, t domain.Tree) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.objects.Put(ctx, TreePath, raw, store.PutOptions{
		ContentType: treeContentType,
	})
}

// AddItem persists tree.AddItem.
func (s *Store) AddItem(ctx context.Context, id, parentID string) (domain.Tree, error) {
	return s.update(ctx, func(t domain.Tree) (domain.Tree, error) {
		return tree.AddItem(t, id, parentID)
	})
}

// MoveItem persists tree.MoveItem.
func (s *Store) MoveItem(ctx context.Context, source, destination tree.Position) (domain.Tree, error) {
	return s.update(ctx, func(t domain.Tree) (domain.Tree, error) {
		return tree.MoveItem(t, source, destination), nil
	})
}

// RemoveItem persists tree.RemoveItem (detach only).
func (s *Store) RemoveItem(ctx context.Context, id string) (domain.Tree, error) {
	return s.update(ctx, func(t domain.Tree) (domain.Tree, error) {
		return tree.RemoveItem(t, id), nil
	})
}

// RestoreItem persists tree.RestoreItem.
func (s *Store) RestoreItem(ctx context.Context, id, parentID string) (domain.Tree, error) {
	return s.update(ctx, func(t domain.Tree) (domain.Tree, error) {
		return tree.RestoreItem(t, id, parentID)
	})
}

// DeleteItem persists tree.DeleteItem (permanent subtree removal).
func (s *Store) DeleteItem(ctx context.Context, id string) (domain.Tree, error) {
	return s.update(ctx, func(t domain.Tree) (domain.Tree, error) {
		return tree.DeleteItem(t, id), nil
	})
}

// MutateItem persists tree.MutateItem.
func (s *Store) MutateItem(ctx context.Context, id string, patch tree.ItemPatch) (domain.Tree, error) {
	return s.update(ctx, func(t domain.Tree) (domain.Tree, error) {
		return tree.MutateItem(t, id, patch), nil
	})
}

func (s *Store) update(ctx context.Context, apply func(domain.Tree) (domain.Tree, error)) (domain.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load(ctx)
	if err != nil {
		return domain.Tree{}, err
	}
	next, err := apply(t)
	if err != nil {
		return domain.Tree{}, err
	}
	if err := s.save(ctx, next); err != nil {
		return domain.Tree{}, err
	}
	return next, nil
}
