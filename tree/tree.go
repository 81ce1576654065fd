// server/tree/tree.go
package tree

import (
	"github.com/rs/zerolog"

	"github.com/arbornote/arbor/domain"
)

// The package operates on tree values without I/O, so it carries a nop logger
// by default. The server installs its own at startup to surface warnings.
var logger = zerolog.Nop()

// SetLogger installs the logger used for warnings (refused root deletion,
// dangling references dropped by Clean).
func SetLogger(l zerolog.Logger) { logger = l }

// Position addresses a slot in some parent's child list.
type Position struct {
	ParentID string `json:"parentId"`
	Index    int    `json:"index"`
}

// ItemPatch is a partial update for a tree item. Nil fields are untouched.
// Data is itself a partial note patch so unrelated summary fields survive.
type ItemPatch struct {
	Data        *domain.NotePatch `json:"data,omitempty"`
	IsExpanded  *bool             `json:"isExpanded,omitempty"`
	HasChildren *bool             `json:"hasChildren,omitempty"`
}

// AddItem creates the item if it does not exist and appends it to parentID's
// child list. The input tree is never modified.
func AddItem(t domain.Tree, id, parentID string) (domain.Tree, error) {
	if parentID == "" {
		parentID = t.RootID
	}
	if _, ok := t.Items[parentID]; !ok {
		return t, domain.ErrInvalidParent.New("%q", parentID)
	}

	out := t.Clone()
	if _, ok := out.Items[id]; !ok {
		out.Items[id] = domain.TreeItem{ID: id, Children: []string{}}
	}

	parent := out.Items[parentID]
	for _, cid := range parent.Children {
		if cid == id {
			return out, nil
		}
	}
	parent.Children = append(parent.Children, id)
	parent.HasChildren = true
	out.Items[parentID] = parent
	return out, nil
}

// MutateItem shallow-merges the patch into the item. A missing id is a no-op.
func MutateItem(t domain.Tree, id string, patch ItemPatch) domain.Tree {
	item, ok := t.Items[id]
	if !ok {
		return t
	}

	out := t.Clone()
	item = out.Items[id]
	if patch.Data != nil {
		base := domain.Note{ID: id}
		if item.Data != nil {
			base = *item.Data
		}
		merged := patch.Data.Apply(base)
		item.Data = &merged
	}
	if patch.IsExpanded != nil {
		item.IsExpanded = *patch.IsExpanded
	}
	if patch.HasChildren != nil {
		item.HasChildren = *patch.HasChildren
	}
	out.Items[id] = item
	return out
}

// RemoveItem detaches id from whichever parent lists it. The item's own
// record and its children are untouched. Detaching an id no parent holds is
// a no-op.
func RemoveItem(t domain.Tree, id string) domain.Tree {
	out := t.Clone()
	for pid, item := range out.Items {
		for i, cid := range item.Children {
			if cid == id {
				item.Children = append(item.Children[:i], item.Children[i+1:]...)
				item.HasChildren = len(item.Children) > 0
				out.Items[pid] = item
				return out
			}
		}
	}
	return out
}

// MoveItem relocates the id at source to destination, reordering sibling
// lists. A destination whose parent is not in the tree means the drag was
// cancelled: the tree is returned unchanged.
func MoveItem(t domain.Tree, source, destination Position) domain.Tree {
	srcParent, ok := t.Items[source.ParentID]
	if !ok || source.Index < 0 || source.Index >= len(srcParent.Children) {
		return t
	}
	if _, ok := t.Items[destination.ParentID]; !ok {
		return t
	}

	out := t.Clone()
	src := out.Items[source.ParentID]
	id := src.Children[source.Index]
	src.Children = append(src.Children[:source.Index], src.Children[source.Index+1:]...)
	src.HasChildren = len(src.Children) > 0
	out.Items[source.ParentID] = src

	dst := out.Items[destination.ParentID]
	idx := destination.Index
	if idx < 0 {
		idx = 0
	}
	if idx > len(dst.Children) {
		idx = len(dst.Children)
	}
	dst.Children = append(dst.Children, "")
	copy(dst.Children[idx+1:], dst.Children[idx:])
	dst.Children[idx] = id
	dst.HasChildren = true
	out.Items[destination.ParentID] = dst
	return out
}

// RestoreItem detaches id from wherever it currently hangs and reattaches it
// under parentID. Restoring an item that is already present is safe.
func RestoreItem(t domain.Tree, id, parentID string) (domain.Tree, error) {
	return AddItem(RemoveItem(t, id), id, parentID)
}

// DeleteItem permanently removes id and every descendant from the tree and
// detaches id from its former parent. The root can never be deleted.
func DeleteItem(t domain.Tree, id string) domain.Tree {
	if id == t.RootID {
		logger.Warn().Str("id", id).Msg("refusing to delete tree root")
		return t
	}

	doomed := Flatten(t, id)
	out := RemoveItem(t, id)
	delete(out.Items, id)
	for _, item := range doomed {
		delete(out.Items, item.ID)
	}
	if _, ok := out.Items[out.RootID]; !ok {
		out.Items[out.RootID] = domain.TreeItem{ID: out.RootID, Children: []string{}}
	}
	return out
}

// Flatten lists every descendant of rootID, parent before children, children
// in display order. rootID itself is excluded. Dangling children (listed but
// absent from Items) are skipped, and revisits are suppressed so malformed
// input cannot loop.
func Flatten(t domain.Tree, rootID string) []domain.TreeItem {
	root, ok := t.Items[rootID]
	if !ok {
		return nil
	}

	var out []domain.TreeItem
	seen := map[string]bool{rootID: true}
	var walk func(item domain.TreeItem)
	walk = func(item domain.TreeItem) {
		for _, cid := range item.Children {
			child, ok := t.Items[cid]
			if !ok || seen[cid] {
				continue
			}
			seen[cid] = true
			out = append(out, child)
			walk(child)
		}
	}
	walk(root)
	return out
}

// Node is a nested rendering of a subtree.
type Node struct {
	Item     domain.TreeItem `json:"item"`
	Children []*Node         `json:"children"`
}

// MakeHierarchy builds the nested view rooted at rootID, or nil when rootID
// has no entry.
func MakeHierarchy(t domain.Tree, rootID string) *Node {
	item, ok := t.Items[rootID]
	if !ok {
		return nil
	}
	seen := map[string]bool{rootID: true}
	return makeNode(t, item, seen)
}

func makeNode(t domain.Tree, item domain.TreeItem, seen map[string]bool) *Node {
	node := &Node{Item: item.Clone(), Children: []*Node{}}
	for _, cid := range item.Children {
		child, ok := t.Items[cid]
		if !ok || seen[cid] {
			continue
		}
		seen[cid] = true
		node.Children = append(node.Children, makeNode(t, child, seen))
	}
	return node
}

// Clean sanitizes a tree loaded from a cache or the network: drops children
// that have no item record, recomputes HasChildren, and guarantees the root
// exists. Clean is idempotent.
func Clean(t domain.Tree) domain.Tree {
	out := domain.Tree{RootID: t.RootID, Items: make(map[string]domain.TreeItem, len(t.Items))}
	if out.RootID == "" {
		out.RootID = domain.RootID
	}
	for id, item := range t.Items {
		if item.ID == "" {
			item.ID = id
		}
		out.Items[id] = CleanItem(item, t.Items)
	}
	if _, ok := out.Items[out.RootID]; !ok {
		logger.Warn().Str("rootId", out.RootID).Msg("tree missing root, synthesizing")
		out.Items[out.RootID] = domain.TreeItem{ID: out.RootID, Children: []string{}}
	}
	return out
}

// CleanItem repairs a single item against the given item set.
func CleanItem(item domain.TreeItem, items map[string]domain.TreeItem) domain.TreeItem {
	out := item.Clone()
	kept := out.Children[:0]
	for _, cid := range out.Children {
		if _, ok := items[cid]; ok {
			kept = append(kept, cid)
		} else {
			logger.Debug().Str("id", item.ID).Str("child", cid).Msg("dropping dangling child reference")
		}
	}
	out.Children = kept
	if out.Children == nil {
		out.Children = []string{}
	}
	out.HasChildren = len(out.Children) > 0
	return out
}
