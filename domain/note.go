// server/domain/note.go
package domain

import "time"

// DeletedState marks whether a note is live or tombstoned.
type DeletedState int

const (
	DeletedNormal DeletedState = iota
	DeletedDeleted
)

// SharedState controls whether a note is publicly reachable.
type SharedState int

const (
	SharedPrivate SharedState = iota
	SharedPublic
)

// PinnedState controls pinning in list views.
type PinnedState int

const (
	PinnedNone PinnedState = iota
	PinnedPinned
)

// EditorSize is the user's editor width preference for a note.
type EditorSize int

const (
	EditorSizeDefault EditorSize = iota
	EditorSizeWide
)

// DefaultContent is what a note's body holds when nothing has been written.
// Content is never empty on the wire.
const DefaultContent = "\n"

type Note struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	ParentID   string       `json:"pid"`
	Date       time.Time    `json:"date"`
	Deleted    DeletedState `json:"deleted"`
	DeletedAt  *time.Time   `json:"deletedAt,omitempty"`
	Pinned     PinnedState  `json:"pinned"`
	Shared     SharedState  `json:"shared"`
	EditorSize EditorSize   `json:"editorsize"`
}

// Summary strips the body, leaving the metadata carried on tree items.
func (n Note) Summary() Note {
	n.Content = ""
	return n
}

// NotePatch is a partial note update. Nil fields are left untouched when the
// patch is applied, so callers can change one field without knowing the rest.
type NotePatch struct {
	Title          *string       `json:"title,omitempty"`
	ParentID       *string       `json:"pid,omitempty"`
	Date           *time.Time    `json:"date,omitempty"`
	Deleted        *DeletedState `json:"deleted,omitempty"`
	DeletedAt      *time.Time    `json:"deletedAt,omitempty"`
	ClearDeletedAt bool          `json:"-"`
	Pinned         *PinnedState  `json:"pinned,omitempty"`
	Shared         *SharedState  `json:"shared,omitempty"`
	EditorSize     *EditorSize   `json:"editorsize,omitempty"`
}

// Apply merges the patch over a note and returns the result.
func (p NotePatch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.ParentID != nil {
		n.ParentID = *p.ParentID
	}
	if p.Date != nil {
		n.Date = *p.Date
	}
	if p.Deleted != nil {
		n.Deleted = *p.Deleted
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		n.DeletedAt = &t
	}
	if p.ClearDeletedAt {
		n.DeletedAt = nil
	}
	if p.Pinned != nil {
		n.Pinned = *p.Pinned
	}
	if p.Shared != nil {
		n.Shared = *p.Shared
	}
	if p.EditorSize != nil {
		n.EditorSize = *p.EditorSize
	}
	return n
}

// AsPatch renders every metadata field of the note as a full patch, used to
// refresh a tree item's summary after the note object changed.
func (n Note) AsPatch() *NotePatch {
	title := n.Title
	pid := n.ParentID
	date := n.Date
	deleted := n.Deleted
	pinned := n.Pinned
	shared := n.Shared
	size := n.EditorSize
	p := &NotePatch{
		Title:      &title,
		ParentID:   &pid,
		Date:       &date,
		Deleted:    &deleted,
		Pinned:     &pinned,
		Shared:     &shared,
		EditorSize: &size,
	}
	if n.DeletedAt != nil {
		t := *n.DeletedAt
		p.DeletedAt = &t
	} else {
		p.ClearDeletedAt = true
	}
	return p
}

// IsZero reports whether applying the patch would change nothing.
func (p NotePatch) IsZero() bool {
	return p.Title == nil && p.ParentID == nil && p.Date == nil &&
		p.Deleted == nil && p.DeletedAt == nil && !p.ClearDeletedAt &&
		p.Pinned == nil && p.Shared == nil && p.EditorSize == nil
}
