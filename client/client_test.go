// client/client_test.go
package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/tree"
)

// fakeServer is an in-memory stand-in for the note server. Failure modes are
// toggled per test to exercise the reconciliation paths.
type fakeServer struct {
	mu    sync.Mutex
	notes map[string]domain.Note
	tree  domain.Tree

	failWrites   bool          // every mutating endpoint answers 500
	staleEcho    bool          // content saves echo the pre-save body
	contentSaves int           // how many content saves reached the server
	release      chan struct{} // when set, content saves block until closed
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		notes: make(map[string]domain.Note),
		tree:  domain.NewTree(),
	}
}

// seed stores a note and hangs it in the tree under its parent (root when
// the parent is unset).
func (fs *fakeServer) seed(t *testing.T, n domain.Note) {
	t.Helper()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if n.ParentID == "" {
		n.ParentID = fs.tree.RootID
	}
	if n.Content == "" {
		n.Content = domain.DefaultContent
	}
	fs.notes[n.ID] = n
	next, err := tree.AddItem(fs.tree, n.ID, n.ParentID)
	require.NoError(t, err)
	fs.tree = tree.MutateItem(next, n.ID, tree.ItemPatch{Data: n.Summary().AsPatch()})
}

func (fs *fakeServer) note(id string) (domain.Note, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.notes[id]
	return n, ok
}

func (fs *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		n, ok := fs.notes[r.PathValue("id")]
		fs.mu.Unlock()
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, n)
	})

	mux.HandleFunc("POST /api/notes", func(w http.ResponseWriter, r *http.Request) {
		if fs.failWrites {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var n domain.Note
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fs.mu.Lock()
		if n.ParentID == "" {
			n.ParentID = fs.tree.RootID
		}
		if n.Content == "" {
			n.Content = domain.DefaultContent
		}
		n.Date = time.Now().UTC()
		fs.notes[n.ID] = n
		if next, err := tree.AddItem(fs.tree, n.ID, n.ParentID); err == nil {
			fs.tree = next
		}
		fs.mu.Unlock()
		writeJSON(w, n)
	})

	mux.HandleFunc("POST /api/notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		if fs.release != nil {
			<-fs.release
		}
		fs.mu.Lock()
		fs.contentSaves++
		n, ok := fs.notes[r.PathValue("id")]
		fs.mu.Unlock()
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if fs.failWrites {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		echo := n
		echo.Content = req.Content
		echo.Date = time.Now().UTC()
		fs.mu.Lock()
		fs.notes[echo.ID] = echo
		fs.mu.Unlock()
		if fs.staleEcho {
			echo.Content = n.Content
		}
		writeJSON(w, echo)
	})

	mux.HandleFunc("POST /api/notes/{id}/meta", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		n, ok := fs.notes[r.PathValue("id")]
		fs.mu.Unlock()
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if fs.failWrites {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var patch domain.NotePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n = patch.Apply(n)
		n.Date = time.Now().UTC()
		fs.mu.Lock()
		fs.notes[n.ID] = n
		fs.mu.Unlock()
		writeJSON(w, n)
	})

	mux.HandleFunc("GET /api/tree", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		t := fs.tree.Clone()
		fs.mu.Unlock()
		writeJSON(w, t)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type recordNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (r *recordNotifier) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

func (r *recordNotifier) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recordNotifier) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	local, err := OpenLocalStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })
	return local
}

// newTestWorkspace spins up a fake server and a workspace talking to it.
func newTestWorkspace(t *testing.T) (*fakeServer, *Workspace, *recordNotifier) {
	t.Helper()
	fs := newFakeServer()
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)

	notify := &recordNotifier{}
	w := NewWorkspace(NewApi(srv.URL, ""), newTestLocalStore(t), notify, zerolog.Nop())
	return fs, w, notify
}

// newOfflineWorkspace points the workspace at an address nothing listens on.
func newOfflineWorkspace(t *testing.T) *Workspace {
	t.Helper()
	return NewWorkspace(NewApi("http://127.0.0.1:1", ""), newTestLocalStore(t), NopNotifier{}, zerolog.Nop())
}
