// server/domain/errors.go
package domain

import "github.com/zeebo/errs"

// Error classes shared across the store, the tree engine and the client.
var (
	// ErrNotFound means a note or backing object was absent when required.
	ErrNotFound = errs.Class("not found")

	// ErrInvalidParent means a tree operation referenced a parent id that is
	// not part of the tree.
	ErrInvalidParent = errs.Class("invalid parent")

	// ErrValidationMismatch means the server echo of a save disagreed with
	// what the client sent. The save is treated as failed, not partial.
	ErrValidationMismatch = errs.Class("validation mismatch")

	// ErrInvalidPatch means a metadata update carried fields the endpoint
	// does not accept, such as deletion state, which moves only through the
	// trash operations so the tree stays consistent with the tombstones.
	ErrInvalidPatch = errs.Class("invalid patch")

	// ErrTransport wraps network-level failures on the client.
	ErrTransport = errs.Class("transport failure")
)
