// server/notes/service.go
package notes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/store"
	"github.com/arbornote/arbor/tree"
	"github.com/arbornote/arbor/treestore"
)

const noteContentType = "text/markdown"

// NotePath is the object path backing a note id.
func NotePath(id string) string { return "notes/" + id }

// Service implements note CRUD and the cascading delete/restore engine over
// the object store and the persisted tree.
type Service struct {
	objects store.ObjectStore
	tree    *treestore.Store
	log     zerolog.Logger
	now     func() time.Time
}

// NewService wires the note engine.
func NewService(objects store.ObjectStore, treeStore *treestore.Store, log zerolog.Logger) *Service {
	return &Service{
		objects: objects,
		tree:    treeStore,
		log:     log,
		now:     time.Now,
	}
}

// Create writes a new note object and attaches it to the tree. A missing id
// is assigned, missing content becomes the default single newline.
func (s *Service) Create(ctx context.Context, n domain.Note) (domain.Note, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Content == "" {
		n.Content = domain.DefaultContent
	}
	if n.ParentID == "" {
		n.ParentID = domain.RootID
	}
	n.Date = s.now()
	n.Deleted = domain.DeletedNormal
	n.DeletedAt = nil

	tr, err := s.tree.Get(ctx)
	if err != nil {
		return domain.Note{}, err
	}
	if _, ok := tr.Items[n.ParentID]; !ok {
		return domain.Note{}, domain.ErrInvalidParent.New("%q", n.ParentID)
	}

	err = s.objects.Put(ctx, NotePath(n.ID), []byte(n.Content), store.PutOptions{
		Meta:        n.Meta(),
		ContentType: noteContentType,
	})
	if err != nil {
		return domain.Note{}, err
	}

	if _, err := s.tree.AddItem(ctx, n.ID, n.ParentID); err != nil {
		return domain.Note{}, err
	}
	if _, err := s.tree.MutateItem(ctx, n.ID, tree.ItemPatch{Data: n.Summary().AsPatch()}); err != nil {
		return domain.Note{}, err
	}
	return n, nil
}

// Get loads the canonical note by id.
func (s *Service) Get(ctx context.Context, id string) (domain.Note, error) {
	obj, err := s.objects.Get(ctx, NotePath(id))
	if err != nil {
		return domain.Note{}, err
	}
	n := domain.NoteFromMeta(id, obj.Meta)
	n.Content = string(obj.Content)
	if n.Content == "" {
		n.Content = domain.DefaultContent
	}
	return n, nil
}

// UpdateContent replaces a note's body, preserving all metadata except the
// modification time. Returns the canonical post-write note.
func (s *Service) UpdateContent(ctx context.Context, id, content string) (domain.Note, error) {
	obj, err := s.objects.Get(ctx, NotePath(id))
	if err != nil {
		return domain.Note{}, err
	}
	if content == "" {
		content = domain.DefaultContent
	}
	now := s.now()
	meta := domain.MergeMeta(obj.Meta, map[string]string{
		domain.MetaDate: now.UTC().Format(time.RFC3339Nano),
	})
	err = s.objects.Put(ctx, NotePath(id), []byte(content), store.PutOptions{
		Meta:        meta,
		ContentType: obj.ContentType,
	})
	if err != nil {
		return domain.Note{}, err
	}

	if _, err := s.tree.MutateItem(ctx, id, tree.ItemPatch{Data: &domain.NotePatch{Date: &now}}); err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("tree summary refresh failed after content update")
	}

	n := domain.NoteFromMeta(id, meta)
	n.Content = content
	return n, nil
}

// UpdateMeta merges a partial metadata update into the note via a
// metadata-only rewrite. A parent change also relocates the item in the tree.
func (s *Service) UpdateMeta(ctx context.Context, id string, patch domain.NotePatch) (domain.Note, error) {
	// tombstone state moves only through SoftDelete and Restore; flipping it
	// here would leave the tree and the cascade out of step
	if patch.Deleted != nil || patch.DeletedAt != nil || patch.ClearDeletedAt {
		return domain.Note{}, domain.ErrInvalidPatch.New("deletion state changes go through trash operations")
	}

	obj, err := s.objects.Get(ctx, NotePath(id))
	if err != nil {
		return domain.Note{}, err
	}
	current := domain.NoteFromMeta(id, obj.Meta)
	oldParent := current.ParentID

	now := s.now()
	patch.Date = &now
	next := patch.Apply(current)

	meta := domain.MergeMeta(obj.Meta, next.Meta())
	if next.DeletedAt == nil {
		delete(meta, domain.MetaDeletedAt)
	}
	err = s.objects.Copy(ctx, NotePath(id), NotePath(id), store.PutOptions{
		Meta:        meta,
		ContentType: obj.ContentType,
	})
	if err != nil {
		return domain.Note{}, err
	}

	if patch.ParentID != nil && *patch.ParentID != oldParent {
		if _, err := s.tree.RestoreItem(ctx, id, *patch.ParentID); err != nil {
			return domain.Note{}, err
		}
	}
	if _, err := s.tree.MutateItem(ctx, id, tree.ItemPatch{Data: &patch}); err != nil {
		s.log.Warn().Err(err).Str("id", id).Msg("tree summary refresh failed after meta update")
	}

	next.Content = string(obj.Content)
	if next.Content == "" {
		next.Content = domain.DefaultContent
	}
	return next, nil
}

// Tree exposes the current sanitized tree.
func (s *Service) Tree(ctx context.Context) (domain.Tree, error) {
	return s.tree.Get(ctx)
}

// MoveTreeItem relocates an item between tree positions.
func (s *Service) MoveTreeItem(ctx context.Context, source, destination tree.Position) (domain.Tree, error) {
	return s.tree.MoveItem(ctx, source, destination)
}

