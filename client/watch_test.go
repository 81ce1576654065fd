// client/watch_test.go
package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/ws"
)

// newWatchServer serves one websocket connection, pushes the given messages
// and closes.
func newWatchServer(t *testing.T, msgs ...ws.Message) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		for _, msg := range msgs {
			if err := conn.WriteJSON(msg); err != nil {
				break
			}
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWatchOnceAppliesEvents(t *testing.T) {
	ctx := context.Background()
	fs, w, _ := newTestWorkspace(t)
	fs.seed(t, domain.Note{ID: "a", Title: "alpha"})

	pushed := domain.Note{ID: "a", Title: "alpha renamed", Content: "body"}
	wsURL := newWatchServer(t, ws.Message{Type: ws.EventNoteUpdated, NoteID: "a", Note: &pushed})

	w.watchOnce(ctx, wsURL, "")

	cached, err := w.local.CachedNote("a")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "alpha renamed", cached.Title)
	assert.Contains(t, w.Tree().Items, "a", "the event triggers a tree refresh")
}

func TestWatchOnceRemovesDeletedFromCache(t *testing.T) {
	ctx := context.Background()
	fs, w, _ := newTestWorkspace(t)
	fs.seed(t, domain.Note{ID: "a", Title: "alpha"})
	require.NoError(t, w.local.CacheNote(domain.Note{ID: "gone", Title: "stale"}))

	wsURL := newWatchServer(t, ws.Message{Type: ws.EventNoteDeleted, NoteID: "gone"})
	w.watchOnce(ctx, wsURL, "")

	cached, err := w.local.CachedNote("gone")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestWatchOnceLeavesNoGoroutineBehind(t *testing.T) {
	ctx := context.Background()
	fs, w, _ := newTestWorkspace(t)
	fs.seed(t, domain.Note{ID: "a", Title: "alpha"})
	wsURL := newWatchServer(t, ws.Message{Type: ws.EventTreeUpdated})

	before := runtime.NumGoroutine()
	for i := 0; i < 5; i++ {
		w.watchOnce(ctx, wsURL, "")
	}

	// each connection's closer goroutine must exit with its connection
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+1
	}, 2*time.Second, 10*time.Millisecond)
}
