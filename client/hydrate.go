// client/hydrate.go
package client

import (
	"context"
	"sync"

	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/tree"
)

// LoadTree makes the workspace usable: cached tree first, fresh server tree
// second, empty tree last. Whatever source wins is sanitized and hydrated
// before it is trusted. The returned tree is always valid; a non-nil error
// means the workspace is degraded (empty fallback) and the UI should say so.
func (w *Workspace) LoadTree(ctx context.Context) (domain.Tree, error) {
	if cached, err := w.local.CachedTree(); err == nil && cached != nil {
		hydrated, err := w.hydrate(ctx, tree.Clean(*cached))
		if err == nil {
			w.setTree(hydrated)
			return hydrated, nil
		}
		w.log.Warn().Err(err).Msg("cached tree failed to hydrate, fetching fresh")
	}

	fresh, err := w.api.GetTree(ctx)
	if err == nil {
		hydrated, herr := w.hydrate(ctx, tree.Clean(fresh))
		if herr == nil {
			if cerr := w.local.CacheTree(hydrated); cerr != nil {
				w.log.Warn().Err(cerr).Msg("tree cache write failed")
			}
			w.setTree(hydrated)
			return hydrated, nil
		}
		err = herr
	}

	w.log.Error().Err(err).Msg("tree load failed, falling back to empty tree")
	w.notify.Error("could not load the note tree")
	empty := domain.NewTree()
	w.setTree(empty)
	return empty, err
}

// hydrate resolves every id in the tree to a note (cache first, network
// second, all ids concurrently) and attaches the summaries. Ids whose note
// does not exist are dropped, together with anything that only they reached.
// A transport-level failure aborts hydration so the caller can try another
// source.
func (w *Workspace) hydrate(ctx context.Context, t domain.Tree) (domain.Tree, error) {
	ids := make([]string, 0, len(t.Items))
	for id := range t.Items {
		if id != t.RootID {
			ids = append(ids, id)
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		resolved = make(map[string]domain.Note, len(ids))
		missing  []string
		failure  error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			if cached, err := w.local.CachedNote(id); err == nil && cached != nil {
				mu.Lock()
				resolved[id] = *cached
				mu.Unlock()
				return
			}

			note, err := w.api.GetNote(ctx, id)
			switch {
			case err == nil:
				if cerr := w.local.CacheNote(note); cerr != nil {
					w.log.Warn().Err(cerr).Str("id", id).Msg("note cache write failed")
				}
				mu.Lock()
				resolved[id] = note
				mu.Unlock()
			case domain.ErrNotFound.Has(err):
				mu.Lock()
				missing = append(missing, id)
				mu.Unlock()
			default:
				mu.Lock()
				if failure == nil {
					failure = err
				}
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if failure != nil {
		return domain.Tree{}, failure
	}

	for _, id := range missing {
		w.log.Warn().Str("id", id).Msg("dropping tree item with no resolvable note")
		delete(t.Items, id)
	}
	t = tree.Clean(t)
	t = pruneUnreachable(t)

	for id, note := range resolved {
		if _, ok := t.Items[id]; !ok {
			continue
		}
		t = tree.MutateItem(t, id, tree.ItemPatch{Data: note.Summary().AsPatch()})
	}
	return t, nil
}

// pruneUnreachable drops items the root can no longer reach; orphans must
// not survive a cleaning pass.
func pruneUnreachable(t domain.Tree) domain.Tree {
	reachable := map[string]bool{t.RootID: true}
	for _, item := range tree.Flatten(t, t.RootID) {
		reachable[item.ID] = true
	}
	out := t.Clone()
	for id := range out.Items {
		if !reachable[id] {
			delete(out.Items, id)
		}
	}
	return out
}
