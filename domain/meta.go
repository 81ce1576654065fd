// server/domain/meta.go
package domain

import (
	"strconv"
	"time"
)

// Object-store metadata keys. Every note field except the body travels in the
// object's key/value metadata, so a metadata-only rewrite can flip tombstone
// state without touching content.
const (
	MetaTitle      = "title"
	MetaParentID   = "pid"
	MetaDate       = "date"
	MetaDeleted    = "deleted"
	MetaDeletedAt  = "deletedAt"
	MetaPinned     = "pinned"
	MetaShared     = "shared"
	MetaEditorSize = "editorsize"
)

// Meta renders the note's metadata fields as an object-store metadata map.
func (n Note) Meta() map[string]string {
	m := map[string]string{
		MetaTitle:      n.Title,
		MetaParentID:   n.ParentID,
		MetaDate:       n.Date.UTC().Format(time.RFC3339Nano),
		MetaDeleted:    strconv.Itoa(int(n.Deleted)),
		MetaPinned:     strconv.Itoa(int(n.Pinned)),
		MetaShared:     strconv.Itoa(int(n.Shared)),
		MetaEditorSize: strconv.Itoa(int(n.EditorSize)),
	}
	if n.DeletedAt != nil {
		m[MetaDeletedAt] = n.DeletedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

// NoteFromMeta rebuilds a note (minus content) from an object metadata map.
// Unknown or malformed values fall back to zero values rather than failing;
// metadata written by older builds must still load.
func NoteFromMeta(id string, meta map[string]string) Note {
	n := Note{ID: id}
	if meta == nil {
		return n
	}
	n.Title = meta[MetaTitle]
	n.ParentID = meta[MetaParentID]
	if t, err := time.Parse(time.RFC3339Nano, meta[MetaDate]); err == nil {
		n.Date = t
	}
	if v, err := strconv.Atoi(meta[MetaDeleted]); err == nil {
		n.Deleted = DeletedState(v)
	}
	if s, ok := meta[MetaDeletedAt]; ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			n.DeletedAt = &t
		}
	}
	if v, err := strconv.Atoi(meta[MetaPinned]); err == nil {
		n.Pinned = PinnedState(v)
	}
	if v, err := strconv.Atoi(meta[MetaShared]); err == nil {
		n.Shared = SharedState(v)
	}
	if v, err := strconv.Atoi(meta[MetaEditorSize]); err == nil {
		n.EditorSize = EditorSize(v)
	}
	return n
}

// MergeMeta lays the right map over the left without mutating either.
// Used for tombstone rewrites that must preserve unrelated metadata.
func MergeMeta(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
