package vbs

import (
	"context"
	"time"
)

// Link is a directed, tagged, timestamped edge between two refs.
type Link struct {
	Base   Ref
	Target Ref
	Tag    string

	// At is assigned by the LinkIndex when the link is created.
	At time.Time

	// Handle identifies the link for deletion.
	Handle Receipt
}

// LinkIndex is a mutable index of links between refs.
// Links can be added and deleted but never changed in place.
type LinkIndex interface {
	// PutLink creates the link base -[tag]-> target,
	// timestamping it with the index's own clock.
	PutLink(ctx context.Context, base, target Ref, tag string) (Receipt, error)

	// Links returns the links with the given base and tag,
	// in the order they were created.
	Links(ctx context.Context, base Ref, tag string) ([]Link, error)

	// DeleteLink deletes the link with the given handle.
	// Deleting an unknown link returns ErrNotFound.
	DeleteLink(ctx context.Context, handle Receipt) error
}

// Backend is a Store with a LinkIndex over the same refs.
type Backend interface {
	Store
	LinkIndex
}
