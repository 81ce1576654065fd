// client/session.go
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arbornote/arbor/domain"
)

// State is a session's position in the edit/save lifecycle.
type State int

const (
	// StateClean means the working copy matches the last-synced server copy.
	StateClean State = iota
	// StateDirty means there are local edits the server has not seen.
	StateDirty
	// StateSaving means a save is in flight; a second save cannot start.
	StateSaving
)

var (
	// ErrSaveInFlight is returned when a save starts while one is running.
	ErrSaveInFlight = errors.New("save already in flight")
	// ErrNotDirty is returned when there is nothing to save.
	ErrNotDirty = errors.New("no unsaved changes")
)

const draftDebounce = 500 * time.Millisecond

// Session is the editing state machine for one open note: it buffers
// keystrokes locally, persists them as a draft, and reconciles with the
// server only on an explicit save.
type Session struct {
	w        *Workspace
	noteID   string
	debounce *Debouncer

	mu      sync.Mutex
	state   State
	synced  domain.Note
	content string
	title   string
}

// OpenNote loads a note into a session. The server copy is fetched first
// (falling back to the local cache when offline); a persisted draft, if any,
// reopens the note Dirty with the unsaved edits in place.
func (w *Workspace) OpenNote(ctx context.Context, id string) (*Session, error) {
	note, err := w.api.GetNote(ctx, id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		cached, cerr := w.local.CachedNote(id)
		if cerr != nil || cached == nil {
			return nil, err
		}
		w.log.Warn().Err(err).Str("id", id).Msg("serving note from local cache")
		note = *cached
	} else {
		if cerr := w.local.CacheNote(note); cerr != nil {
			w.log.Warn().Err(cerr).Str("id", id).Msg("note cache write failed")
		}
	}

	s := &Session{
		w:        w,
		noteID:   id,
		debounce: NewDebouncer(draftDebounce),
		state:    StateClean,
		synced:   note,
		content:  note.Content,
		title:    note.Title,
	}

	if draft, derr := w.local.Draft(id); derr == nil && draft != nil {
		s.content = draft.Content
		s.title = draft.Title
		s.state = StateDirty
	}
	return s, nil
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Content returns the working copy of the body.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// Title returns the working copy of the title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Synced returns the last-known server copy.
func (s *Session) Synced() domain.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// EditContent buffers a body edit and schedules the draft write.
func (s *Session) EditContent(content string) {
	s.mu.Lock()
	s.content = content
	if s.state == StateClean {
		s.state = StateDirty
	}
	s.mu.Unlock()
	s.scheduleDraft()
}

// EditTitle buffers a title edit and schedules the draft write.
func (s *Session) EditTitle(title string) {
	s.mu.Lock()
	s.title = title
	if s.state == StateClean {
		s.state = StateDirty
	}
	s.mu.Unlock()
	s.scheduleDraft()
}

func (s *Session) scheduleDraft() {
	s.debounce.Trigger(func() {
		s.mu.Lock()
		draft := Draft{Content: s.content, Title: s.title}
		s.mu.Unlock()
		if err := s.w.local.SaveDraft(s.noteID, draft); err != nil {
			s.w.log.Warn().Err(err).Str("id", s.noteID).Msg("draft write failed")
		}
	})
}

// Save pushes the pending change to the server: the content endpoint and the
// metadata endpoint each fire only if their half actually changed. The echo
// must match what was sent exactly; anything else rolls the in-memory state
// back to the last-synced copy, keeps the draft, and surfaces the failure.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateSaving:
		s.mu.Unlock()
		return ErrSaveInFlight
	case StateClean:
		s.mu.Unlock()
		return ErrNotDirty
	}
	s.state = StateSaving
	content := s.content
	title := s.title
	synced := s.synced
	s.mu.Unlock()

	// make sure the draft covering these edits is on disk before the save
	// can fail
	s.debounce.Flush()

	echo := synced
	var err error
	if content != synced.Content {
		echo, err = s.w.api.UpdateContent(ctx, s.noteID, content)
	}
	if err == nil && title != synced.Title {
		echo, err = s.w.api.UpdateMeta(ctx, s.noteID, domain.NotePatch{Title: &title})
	}
	if err == nil && (echo.Content != content || echo.Title != title) {
		err = domain.ErrValidationMismatch.New("server echo disagrees with sent state for note %s", s.noteID)
	}

	if err != nil {
		s.mu.Lock()
		s.content = synced.Content
		s.title = synced.Title
		s.synced = synced
		s.state = StateDirty
		s.mu.Unlock()
		if !errors.Is(err, context.Canceled) {
			s.w.notify.Error("save failed: " + err.Error())
		}
		return err
	}

	// keystrokes may have landed while the save was in flight; the echo only
	// covers the snapshot that was sent, so newer buffer content stays
	// pending rather than being overwritten
	s.mu.Lock()
	s.synced = echo
	stillPending := s.content != content || s.title != title
	if stillPending {
		s.state = StateDirty
	} else {
		s.content = echo.Content
		s.title = echo.Title
		s.state = StateClean
	}
	s.mu.Unlock()

	if stillPending {
		s.scheduleDraft()
	} else if derr := s.w.local.DeleteDraft(s.noteID); derr != nil {
		s.w.log.Warn().Err(derr).Str("id", s.noteID).Msg("draft delete failed")
	}
	if cerr := s.w.local.CacheNote(echo); cerr != nil {
		s.w.log.Warn().Err(cerr).Str("id", s.noteID).Msg("note cache write failed")
	}
	s.w.notify.Success("note saved")

	// summary data (title, flags) changed on the server; refresh the tree
	if rerr := s.w.RefreshTree(ctx); rerr != nil {
		s.w.log.Warn().Err(rerr).Msg("tree refresh after save failed")
	}
	return nil
}

// Discard throws the local edits away: the persisted draft is removed and
// the working copy resets to the last-synced server copy.
func (s *Session) Discard() error {
	s.mu.Lock()
	if s.state == StateSaving {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	s.content = s.synced.Content
	s.title = s.synced.Title
	s.state = StateClean
	s.mu.Unlock()

	s.debounce.Stop()
	return s.w.local.DeleteDraft(s.noteID)
}

// Close flushes any pending draft write. Unsaved edits stay recoverable.
func (s *Session) Close() {
	s.debounce.Flush()
}
