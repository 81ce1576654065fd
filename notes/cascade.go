// server/notes/cascade.go
package notes

import (
	"context"
	"strconv"
	"time"

	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/store"
	"github.com/arbornote/arbor/tree"
)

// SoftDelete tombstones id and every descendant, then detaches id from its
// parent. Only the top-level link is cut; the subtree keeps its internal
// structure so a later restore brings the hierarchy back in one piece.
//
// The cascade is not wrapped in a cross-object transaction: each object's
// metadata rewrite is atomic on its own, and a crash mid-cascade can leave a
// subtree partially tombstoned.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	tr, err := s.tree.Get(ctx)
	if err != nil {
		return err
	}
	target, ok := tr.Items[id]
	if !ok {
		// deletions may arrive for items that are already detached
		s.log.Warn().Str("id", id).Msg("soft delete target not in tree, skipping")
		return nil
	}

	now := s.now()
	tombstone := map[string]string{
		domain.MetaDeleted:   strconv.Itoa(int(domain.DeletedDeleted)),
		domain.MetaDeletedAt: now.UTC().Format(time.RFC3339Nano),
		domain.MetaDate:      now.UTC().Format(time.RFC3339Nano),
	}

	cascade := append([]domain.TreeItem{target}, tree.Flatten(tr, id)...)
	for _, item := range cascade {
		if err := s.rewriteMeta(ctx, item.ID, tombstone, nil); err != nil {
			return err
		}
	}

	_, err = s.tree.RemoveItem(ctx, id)
	return err
}

// Restore clears the target's tombstone and reattaches it under parentID.
// Descendants tombstoned by an earlier cascade keep their own state; delete
// cascades down, restore does not.
func (s *Service) Restore(ctx context.Context, id, parentID string) (domain.Note, error) {
	meta, err := s.objects.GetMeta(ctx, NotePath(id))
	if err != nil {
		return domain.Note{}, err
	}

	now := s.now()
	merged := domain.MergeMeta(meta, map[string]string{
		domain.MetaDeleted: strconv.Itoa(int(domain.DeletedNormal)),
		domain.MetaDate:    now.UTC().Format(time.RFC3339Nano),
	})
	delete(merged, domain.MetaDeletedAt)

	err = s.objects.Copy(ctx, NotePath(id), NotePath(id), store.PutOptions{Meta: merged})
	if err != nil {
		return domain.Note{}, err
	}

	if parentID == "" {
		parentID = domain.RootID
	}
	if _, err := s.tree.RestoreItem(ctx, id, parentID); err != nil {
		return domain.Note{}, err
	}
	return s.Get(ctx, id)
}

// HardDelete permanently removes id and every descendant: backing objects
// first, then the tree records. Irreversible; no tombstone is written.
func (s *Service) HardDelete(ctx context.Context, id string) error {
	tr, err := s.tree.Get(ctx)
	if err != nil {
		return err
	}

	ids := []string{id}
	if _, ok := tr.Items[id]; ok {
		for _, item := range tree.Flatten(tr, id) {
			ids = append(ids, item.ID)
		}
	}

	for _, nid := range ids {
		ok, err := s.objects.Has(ctx, NotePath(nid))
		if err != nil {
			return err
		}
		if !ok {
			// already gone; the tree entry still needs removing
			s.log.Warn().Str("id", nid).Msg("hard delete target has no backing object")
			continue
		}
		if err := s.objects.Delete(ctx, NotePath(nid)); err != nil {
			return err
		}
	}

	_, err = s.tree.DeleteItem(ctx, id)
	return err
}

// rewriteMeta applies a metadata-only rewrite (copy onto self) for one note,
// merging over whatever metadata exists. Keys named in drop are removed. A
// note with no backing object is tolerated with a warning; tree and store can
// momentarily disagree.
func (s *Service) rewriteMeta(ctx context.Context, id string, over map[string]string, drop []string) error {
	path := NotePath(id)
	meta, err := s.objects.GetMeta(ctx, path)
	if err != nil {
		if domain.ErrNotFound.Has(err) {
			s.log.Warn().Str("id", id).Msg("tree references a note with no backing object")
			return nil
		}
		return err
	}
	merged := domain.MergeMeta(meta, over)
	for _, k := range drop {
		delete(merged, k)
	}
	return s.objects.Copy(ctx, path, path, store.PutOptions{Meta: merged})
}
