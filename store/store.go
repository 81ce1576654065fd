// server/store/store.go
package store

import "context"

// Object is one stored blob: content plus key/value metadata and a content
// type. Replacement is atomic per object: a Put or Copy either fully replaces
// content and metadata together or fails without a partial write.
type Object struct {
	Content     []byte
	Meta        map[string]string
	ContentType string
}

// PutOptions carries the metadata and content type written alongside content.
type PutOptions struct {
	Meta        map[string]string
	ContentType string
}

// ObjectStore is the narrow contract the note engine consumes. Implementations
// back it with memory, flat files or postgres; callers never see past it.
type ObjectStore interface {
	Has(ctx context.Context, path string) (bool, error)
	Get(ctx context.Context, path string) (*Object, error)
	GetMeta(ctx context.Context, path string) (map[string]string, error)
	Put(ctx context.Context, path string, content []byte, opts PutOptions) error
	// Copy rewrites toPath with fromPath's content and the given metadata.
	// Copying a path onto itself is the metadata-only rewrite used for
	// tombstone flips.
	Copy(ctx context.Context, fromPath, toPath string, opts PutOptions) error
	Delete(ctx context.Context, path string) error
}
