// server/store/memstore.go
package store

import (
	"context"
	"sync"

	"github.com/arbornote/arbor/domain"
)

// MemStore is an in-memory ObjectStore. It backs tests and single-process
// development servers, and counts calls so tests can assert on traffic.
type MemStore struct {
	mu    sync.Mutex
	items map[string]Object

	CallCount struct {
		Has     int
		Get     int
		GetMeta int
		Put     int
		Copy    int
		Delete  int
	}
}

// NewMemStore creates an empty in-memory object store.
func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string]Object)}
}

func (s *MemStore) Has(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCount.Has++
	_, ok := s.items[path]
	return ok, nil
}

func (s *MemStore) Get(ctx context.Context, path string) (*Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCount.Get++
	obj, ok := s.items[path]
	if !ok {
		return nil, domain.ErrNotFound.New("object %q", path)
	}
	cp := cloneObject(obj)
	return &cp, nil
}

func (s *MemStore) GetMeta(ctx context.Context, path string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCount.GetMeta++
	obj, ok := s.items[path]
	if !ok {
		return nil, domain.ErrNotFound.New("object %q", path)
	}
	return cloneMeta(obj.Meta), nil
}

func (s *MemStore) Put(ctx context.Context, path string, content []byte, opts PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCount.Put++
	s.items[path] = cloneObject(Object{
		Content:     content,
		Meta:        opts.Meta,
		ContentType: opts.ContentType,
	})
	return nil
}

func (s *MemStore) Copy(ctx context.Context, fromPath, toPath string, opts PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCount.Copy++
	src, ok := s.items[fromPath]
	if !ok {
		return domain.ErrNotFound.New("object %q", fromPath)
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = src.ContentType
	}
	s.items[toPath] = cloneObject(Object{
		Content:     src.Content,
		Meta:        opts.Meta,
		ContentType: contentType,
	})
	return nil
}

func (s *MemStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCount.Delete++
	delete(s.items, path)
	return nil
}

// Len reports how many objects the store holds.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func cloneObject(obj Object) Object {
	cp := Object{ContentType: obj.ContentType}
	if obj.Content != nil {
		cp.Content = make([]byte, len(obj.Content))
		copy(cp.Content, obj.Content)
	}
	cp.Meta = cloneMeta(obj.Meta)
	return cp
}

func cloneMeta(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
