// client/api.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/arbornote/arbor/auth"
	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/tree"
)

const (
	defaultHTTPTimeout        = 60 * time.Second
	defaultHTTPConnectTimeout = 5 * time.Second
)

func defaultHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHTTPConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHTTPConnectTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHTTPTimeout,
	}
}

// Api is the client side of the note endpoints. Each logical resource holds
// at most one request in flight: starting a new request for the same resource
// cancels the previous one, so navigating away from a loading note aborts
// that load. A user-initiated cancellation is reported as context.Canceled,
// not as a transport failure.
type Api struct {
	baseURL string
	token   string
	http    *http.Client

	mu       sync.Mutex
	inflight map[string]*inflightRequest
}

type inflightRequest struct {
	cancel context.CancelFunc
}

// NewApi creates a client for the server at baseURL.
func NewApi(baseURL, token string) *Api {
	return &Api{
		baseURL:  baseURL,
		token:    token,
		http:     defaultHTTPClient(),
		inflight: make(map[string]*inflightRequest),
	}
}

// begin registers a request for resource, cancelling any predecessor.
func (a *Api) begin(parent context.Context, resource string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	req := &inflightRequest{cancel: cancel}

	a.mu.Lock()
	if prev, ok := a.inflight[resource]; ok {
		prev.cancel()
	}
	a.inflight[resource] = req
	a.mu.Unlock()

	release := func() {
		cancel()
		a.mu.Lock()
		if a.inflight[resource] == req {
			delete(a.inflight, resource)
		}
		a.mu.Unlock()
	}
	return ctx, release
}

// CancelAll aborts every in-flight request.
func (a *Api) CancelAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for resource, req := range a.inflight {
		req.cancel()
		delete(a.inflight, resource)
	}
}

func (a *Api) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set(auth.TokenHeader, a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return domain.ErrTransport.Wrap(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound.New("%s %s", method, path)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ErrTransport.New("%s %s: %s (%s)", method, path, resp.Status, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.ErrTransport.Wrap(err)
		}
	}
	return nil
}

// GetNote fetches a note by id, cancelling any previous load of the same note.
func (a *Api) GetNote(ctx context.Context, id string) (domain.Note, error) {
	ctx, release := a.begin(ctx, "note/"+id)
	defer release()

	var n domain.Note
	err := a.do(ctx, http.MethodGet, "/api/notes/"+id, nil, &n)
	return n, err
}

// CreateNote creates a note; the server echoes the canonical record.
func (a *Api) CreateNote(ctx context.Context, n domain.Note) (domain.Note, error) {
	ctx, release := a.begin(ctx, "note/"+n.ID+"/create")
	defer release()

	var out domain.Note
	err := a.do(ctx, http.MethodPost, "/api/notes", n, &out)
	return out, err
}

// UpdateContent replaces a note's body; the echo is the canonical post-write
// note used for round-trip validation.
func (a *Api) UpdateContent(ctx context.Context, id, content string) (domain.Note, error) {
	ctx, release := a.begin(ctx, "note/"+id+"/content")
	defer release()

	var out domain.Note
	err := a.do(ctx, http.MethodPost, "/api/notes/"+id, map[string]string{"content": content}, &out)
	return out, err
}

// UpdateMeta applies a partial metadata update.
func (a *Api) UpdateMeta(ctx context.Context, id string, patch domain.NotePatch) (domain.Note, error) {
	ctx, release := a.begin(ctx, "note/"+id+"/meta")
	defer release()

	var out domain.Note
	err := a.do(ctx, http.MethodPost, fmt.Sprintf("/api/notes/%s/meta", id), patch, &out)
	return out, err
}

// GetTree fetches the canonical server tree.
func (a *Api) GetTree(ctx context.Context) (domain.Tree, error) {
	ctx, release := a.begin(ctx, "tree")
	defer release()

	var t domain.Tree
	err := a.do(ctx, http.MethodGet, "/api/tree", nil, &t)
	return t, err
}

// MoveTreeItem relocates an item between tree positions.
func (a *Api) MoveTreeItem(ctx context.Context, source, destination tree.Position) (domain.Tree, error) {
	ctx, release := a.begin(ctx, "tree/move")
	defer release()

	var t domain.Tree
	err := a.do(ctx, http.MethodPost, "/api/tree/move", map[string]tree.Position{
		"source":      source,
		"destination": destination,
	}, &t)
	return t, err
}

// SoftDelete tombstones a note and its subtree.
func (a *Api) SoftDelete(ctx context.Context, id string) error {
	ctx, release := a.begin(ctx, "trash/"+id)
	defer release()

	return a.do(ctx, http.MethodPost, "/api/trash", map[string]string{"id": id}, nil)
}

// Restore clears a note's tombstone and reattaches it under parentID.
func (a *Api) Restore(ctx context.Context, id, parentID string) (domain.Note, error) {
	ctx, release := a.begin(ctx, "trash/"+id)
	defer release()

	var out domain.Note
	err := a.do(ctx, http.MethodPost, "/api/trash/restore", map[string]string{
		"id":  id,
		"pid": parentID,
	}, &out)
	return out, err
}

// HardDelete permanently removes a note and its subtree.
func (a *Api) HardDelete(ctx context.Context, id string) error {
	ctx, release := a.begin(ctx, "trash/"+id)
	defer release()

	return a.do(ctx, http.MethodDelete, "/api/trash/"+id, nil, nil)
}
