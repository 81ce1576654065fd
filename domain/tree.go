// server/domain/tree.go
package domain

// RootID is the distinguished root of every tree. It always exists and can
// never be deleted.
const RootID = "root"

// TreeItem is one node of the tree. Parentage is implicit: an id is a child
// of whichever single item lists it in Children. Children order is display
// order.
type TreeItem struct {
	ID          string   `json:"id"`
	Children    []string `json:"children"`
	Data        *Note    `json:"data,omitempty"`
	IsExpanded  bool     `json:"isExpanded"`
	HasChildren bool     `json:"hasChildren"`
}

// Tree is the full folder structure: a forest hung off RootID.
type Tree struct {
	RootID string              `json:"rootId"`
	Items  map[string]TreeItem `json:"items"`
}

// NewTree returns an empty tree holding only the root item.
func NewTree() Tree {
	return Tree{
		RootID: RootID,
		Items: map[string]TreeItem{
			RootID: {ID: RootID, Children: []string{}},
		},
	}
}

// Clone deep-copies the tree so callers can mutate the copy freely.
func (t Tree) Clone() Tree {
	out := Tree{RootID: t.RootID, Items: make(map[string]TreeItem, len(t.Items))}
	for id, item := range t.Items {
		out.Items[id] = item.Clone()
	}
	return out
}

// Clone deep-copies a single item.
func (it TreeItem) Clone() TreeItem {
	cp := it
	if it.Children != nil {
		cp.Children = make([]string, len(it.Children))
		copy(cp.Children, it.Children)
	}
	if it.Data != nil {
		d := *it.Data
		cp.Data = &d
	}
	return cp
}
