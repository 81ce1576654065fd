// server/http/handlers_test.go
package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbornote/arbor/auth"
	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/notes"
	"github.com/arbornote/arbor/store"
	"github.com/arbornote/arbor/treestore"
	"github.com/arbornote/arbor/ws"
)

func newTestApp(t *testing.T, tokenHash string) *fiber.App {
	t.Helper()
	objects := store.NewMemStore()
	ts := treestore.New(objects, zerolog.Nop())
	svc := notes.NewService(objects, ts, zerolog.Nop())
	hub := ws.NewHub(zerolog.Nop())
	go hub.Run()

	app := fiber.New()
	NewServer(svc, hub, zerolog.Nop()).Register(app, tokenHash)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeNote(t *testing.T, resp *http.Response) domain.Note {
	t.Helper()
	defer resp.Body.Close()
	var n domain.Note
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&n))
	return n
}

func TestCreateAndGetNote(t *testing.T) {
	app := newTestApp(t, "")

	resp := doJSON(t, app, "POST", "/api/notes", fiber.Map{"title": "hello", "content": "body"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decodeNote(t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "hello", created.Title)

	resp = doJSON(t, app, "GET", "/api/notes/"+created.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	got := decodeNote(t, resp)
	assert.Equal(t, "body", got.Content)
}

func TestGetNoteNotFound(t *testing.T) {
	app := newTestApp(t, "")
	resp := doJSON(t, app, "GET", "/api/notes/ghost", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUpdateContentEchoesCanonical(t *testing.T) {
	app := newTestApp(t, "")

	created := decodeNote(t, doJSON(t, app, "POST", "/api/notes", fiber.Map{"title": "n", "content": "hello"}))

	resp := doJSON(t, app, "POST", "/api/notes/"+created.ID, fiber.Map{"content": "hello world"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	updated := decodeNote(t, resp)
	assert.Equal(t, "hello world", updated.Content)
	assert.Equal(t, "n", updated.Title)
}

func TestUpdateMetaRejectsTombstoneFields(t *testing.T) {
	app := newTestApp(t, "")

	created := decodeNote(t, doJSON(t, app, "POST", "/api/notes", fiber.Map{"title": "n"}))

	resp := doJSON(t, app, "POST", "/api/notes/"+created.ID+"/meta", fiber.Map{"deleted": 1})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	got := decodeNote(t, doJSON(t, app, "GET", "/api/notes/"+created.ID, nil))
	assert.Equal(t, domain.DeletedNormal, got.Deleted)
}

func TestCreateInvalidParentRejected(t *testing.T) {
	app := newTestApp(t, "")
	resp := doJSON(t, app, "POST", "/api/notes", fiber.Map{"title": "x", "pid": "ghost"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTrashLifecycle(t *testing.T) {
	app := newTestApp(t, "")

	a := decodeNote(t, doJSON(t, app, "POST", "/api/notes", fiber.Map{"title": "a"}))
	b := decodeNote(t, doJSON(t, app, "POST", "/api/notes", fiber.Map{"title": "b", "pid": a.ID}))

	resp := doJSON(t, app, "POST", "/api/trash", fiber.Map{"id": a.ID})
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	got := decodeNote(t, doJSON(t, app, "GET", "/api/notes/"+a.ID, nil))
	assert.Equal(t, domain.DeletedDeleted, got.Deleted)
	gotB := decodeNote(t, doJSON(t, app, "GET", "/api/notes/"+b.ID, nil))
	assert.Equal(t, domain.DeletedDeleted, gotB.Deleted)

	resp = doJSON(t, app, "POST", "/api/trash/restore", fiber.Map{"id": a.ID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	restored := decodeNote(t, resp)
	assert.Equal(t, domain.DeletedNormal, restored.Deleted)

	resp = doJSON(t, app, "DELETE", "/api/trash/"+a.ID, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, app, "GET", "/api/notes/"+a.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTreeEndpoints(t *testing.T) {
	app := newTestApp(t, "")

	a := decodeNote(t, doJSON(t, app, "POST", "/api/notes", fiber.Map{"title": "a"}))
	b := decodeNote(t, doJSON(t, app, "POST", "/api/notes", fiber.Map{"title": "b"}))

	resp := doJSON(t, app, "GET", "/api/tree", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var tr domain.Tree
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	resp.Body.Close()
	assert.Equal(t, []string{a.ID, b.ID}, tr.Items[domain.RootID].Children)

	resp = doJSON(t, app, "POST", "/api/tree/move", fiber.Map{
		"source":      fiber.Map{"parentId": domain.RootID, "index": 0},
		"destination": fiber.Map{"parentId": domain.RootID, "index": 1},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	resp.Body.Close()
	assert.Equal(t, []string{b.ID, a.ID}, tr.Items[domain.RootID].Children)
}

func TestAuthRequired(t *testing.T) {
	hash, err := auth.HashToken("secret")
	require.NoError(t, err)
	app := newTestApp(t, hash)

	resp := doJSON(t, app, "GET", "/api/tree", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/api/tree", nil)
	req.Header.Set(auth.TokenHeader, "secret")
	ok, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, ok.StatusCode)
}
