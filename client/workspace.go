// client/workspace.go
package client

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/tree"
)

// Notifier surfaces user-visible outcomes. Save failures are never silent.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// NopNotifier discards notifications; useful in tests and headless tools.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}

// Workspace is the client's reconciliation root: it owns the current tree
// snapshot in a single guarded cell, the local cache, and the server API.
// Nothing in the package reads tree state from anywhere else.
type Workspace struct {
	api    *Api
	local  *LocalStore
	notify Notifier
	log    zerolog.Logger

	mu   sync.Mutex
	tree domain.Tree
}

// NewWorkspace wires a workspace; the tree starts empty until LoadTree runs.
func NewWorkspace(api *Api, local *LocalStore, notify Notifier, log zerolog.Logger) *Workspace {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Workspace{
		api:    api,
		local:  local,
		notify: notify,
		log:    log,
		tree:   domain.NewTree(),
	}
}

// Tree returns a copy of the current tree snapshot.
func (w *Workspace) Tree() domain.Tree {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tree.Clone()
}

func (w *Workspace) setTree(t domain.Tree) {
	w.mu.Lock()
	w.tree = t
	w.mu.Unlock()
}

// RefreshTree pulls the canonical tree from the server, sanitizes it, and
// replaces the local snapshot and cache.
func (w *Workspace) RefreshTree(ctx context.Context) error {
	fresh, err := w.api.GetTree(ctx)
	if err != nil {
		return err
	}
	cleaned := tree.Clean(fresh)
	if err := w.local.CacheTree(cleaned); err != nil {
		w.log.Warn().Err(err).Msg("tree cache write failed")
	}
	w.setTree(cleaned)
	return nil
}

// CreateNote assigns a collision-checked candidate id, shows the note in the
// tree optimistically, then creates it on the server. A failed creation rolls
// the optimistic item back out.
func (w *Workspace) CreateNote(ctx context.Context, title, parentID string) (domain.Note, error) {
	w.mu.Lock()
	if parentID == "" {
		parentID = w.tree.RootID
	}
	id := newCandidateID(w.tree)
	optimistic, err := tree.AddItem(w.tree, id, parentID)
	if err != nil {
		w.mu.Unlock()
		return domain.Note{}, err
	}
	w.tree = optimistic
	w.mu.Unlock()

	note, err := w.api.CreateNote(ctx, domain.Note{ID: id, Title: title, ParentID: parentID})
	if err != nil {
		w.mu.Lock()
		w.tree = tree.DeleteItem(w.tree, id)
		w.mu.Unlock()
		return domain.Note{}, err
	}

	if err := w.local.CacheNote(note); err != nil {
		w.log.Warn().Err(err).Str("id", note.ID).Msg("note cache write failed")
	}
	w.mu.Lock()
	w.tree = tree.MutateItem(w.tree, note.ID, tree.ItemPatch{Data: note.Summary().AsPatch()})
	w.mu.Unlock()
	return note, nil
}

// newCandidateID picks an id no current tree item uses. Collisions in the
// uuid space are vanishingly rare but the tree check keeps the optimistic
// item from shadowing an existing one.
func newCandidateID(t domain.Tree) string {
	for {
		id := uuid.NewString()
		if _, ok := t.Items[id]; !ok {
			return id
		}
	}
}
