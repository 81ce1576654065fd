// client/watch.go
package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arbornote/arbor/auth"
	"github.com/arbornote/arbor/ws"
)

const reconnectDelay = 5 * time.Second

// Watch connects to the server's websocket feed and refreshes the workspace
// whenever another client changes a note or the tree. It stays connected
// until the context is cancelled, reconnecting after transient failures.
func (w *Workspace) Watch(ctx context.Context, wsURL, token string) {
	for {
		w.watchOnce(ctx, wsURL, token)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (w *Workspace) watchOnce(ctx context.Context, wsURL, token string) {
	u, err := url.Parse(wsURL)
	if err != nil {
		w.log.Error().Err(err).Str("url", wsURL).Msg("invalid websocket url")
		return
	}

	header := http.Header{}
	if token != "" {
		header.Set(auth.TokenHeader, token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		w.log.Warn().Err(err).Str("url", wsURL).Msg("websocket connect failed")
		return
	}
	defer conn.Close()
	w.log.Info().Str("url", wsURL).Msg("watching for remote changes")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				w.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		w.applyEvent(ctx, msg)
	}
}

func (w *Workspace) applyEvent(ctx context.Context, msg ws.Message) {
	switch msg.Type {
	case ws.EventNoteCreated, ws.EventNoteUpdated, ws.EventNoteRestored:
		if msg.Note != nil {
			if err := w.local.CacheNote(*msg.Note); err != nil {
				w.log.Warn().Err(err).Str("id", msg.Note.ID).Msg("note cache write failed")
			}
		}
	case ws.EventNoteDeleted:
		if msg.NoteID != "" {
			if err := w.local.DeleteCachedNote(msg.NoteID); err != nil {
				w.log.Warn().Err(err).Str("id", msg.NoteID).Msg("note cache delete failed")
			}
		}
	case ws.EventTreeUpdated:
		// fall through to the refresh below
	default:
		w.log.Debug().Str("type", msg.Type).Msg("ignoring unknown event")
		return
	}

	if err := w.RefreshTree(ctx); err != nil {
		w.log.Warn().Err(err).Msg("tree refresh after remote change failed")
	}
}
