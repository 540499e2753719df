package vbs

import (
	"context"
	"errors"
)

// Getter is a read-only Store (qv).
type Getter interface {
	// Get gets a blob by its ref.
	// It also returns the receipt of the most recent put of that blob
	// that has not been removed.
	// If there is no such put,
	// Get returns ErrNotFound.
	Get(context.Context, Ref) (Blob, Receipt, error)

	// ListRefs calls a function for each visible blob ref in the store in lexicographic order,
	// beginning with the first ref _after_ the specified one.
	//
	// The calls reflect at least the set of refs
	// known at the moment ListRefs was called.
	// It is unspecified whether later changes,
	// that happen concurrently with ListRefs,
	// are reflected.
	//
	// If the callback function returns an error,
	// ListRefs exits with that error.
	ListRefs(context.Context, Ref, func(r Ref) error) error
}

// Store is an append-only blob store.
// It stores byte sequences - "blobs" - of arbitrary length.
// Each blob can be retrieved using its "ref" as a lookup key.
// A ref is simply the SHA2-256 hash of the blob's content.
//
// Every Put is recorded as a commit identified by a Receipt.
// Removing a commit hides the blob from Get
// (once no other live put of the same blob remains)
// but never rewrites it.
type Store interface {
	Getter

	// Put adds b to the store.
	// It returns b's ref and the receipt of the new put commit.
	Put(ctx context.Context, b Blob) (Ref, Receipt, error)

	// Remove tombstones the put commit identified by the given receipt.
	// It returns the receipt of the removal commit.
	// Removing an unknown or already-removed commit returns ErrNotFound.
	Remove(context.Context, Receipt) (Receipt, error)
}

// ErrNotFound is the error returned
// when a Getter tries to access a non-existent ref,
// or when a removal targets a non-existent commit or link.
var ErrNotFound = errors.New("not found")
