// Package version resolves the versions of an entity from the link index.
//
// An entity's ID is the ref of its first version.
// Every later version is linked to the ID in both directions:
// TagUpdate from the ID to the version,
// and TagOrigin from the version back to the ID.
// Versions never link to one another,
// so all of them are one hop from the ID
// and the current one is found by a single scan of the ID's update links.
package version

import (
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/vbs"
)

const (
	// TagUpdate links an ID to each of its later versions.
	TagUpdate = "update"

	// TagOrigin links each later version back to its ID.
	TagOrigin = "origin"
)

// Version is one stored version of an entity.
type Version struct {
	Ref     vbs.Ref
	Blob    vbs.Blob
	Receipt vbs.Receipt
}

// ResolveIdentity finds the ID of the entity that addr is a version of.
// With no origin links, addr is itself the ID.
// Origin links pointing to more than one distinct target
// mean the graph is inconsistent and produce a *vbs.MultipleOriginsError.
// Duplicate links to the same target arise when an update rewrites identical content
// and are not an error,
// so two origin links make addr ambiguous only when their targets differ.
func ResolveIdentity(ctx context.Context, idx vbs.LinkIndex, addr vbs.Ref) (vbs.Ref, error) {
	links, err := idx.Links(ctx, addr, TagOrigin)
	if err != nil {
		return vbs.Zero, errors.Wrapf(err, "getting origin links for %s", addr)
	}
	if len(links) == 0 {
		return addr, nil
	}
	id := links[0].Target
	for _, l := range links[1:] {
		if l.Target != id {
			return vbs.Zero, &vbs.MultipleOriginsError{Ref: addr}
		}
	}
	return id, nil
}

// FindLatest selects the newest of some links.
// Links with equal timestamps are ordered by handle,
// so the result does not depend on the order of the input.
// The boolean is false if links is empty.
func FindLatest(links []vbs.Link) (vbs.Link, bool) {
	if len(links) == 0 {
		return vbs.Link{}, false
	}
	latest := links[0]
	for _, l := range links[1:] {
		if l.At.After(latest.At) || (l.At.Equal(latest.At) && bytes.Compare(l.Handle[:], latest.Handle[:]) > 0) {
			latest = l
		}
	}
	return latest, true
}

// Fetch gets the blob at ref,
// producing a *vbs.NotFoundError if it's absent.
func Fetch(ctx context.Context, g vbs.Getter, ref vbs.Ref) (Version, error) {
	blob, receipt, err := g.Get(ctx, ref)
	if errors.Is(err, vbs.ErrNotFound) {
		return Version{}, &vbs.NotFoundError{Ref: ref}
	}
	if err != nil {
		return Version{}, errors.Wrapf(err, "getting blob %s", ref)
	}
	return Version{Ref: ref, Blob: blob, Receipt: receipt}, nil
}

// Latest finds the current version of the entity with the given ID,
// also returning the entity's first version.
//
// The id must be an ID and not the address of a later version;
// otherwise the result is a *vbs.NotOriginEntryError.
//
// If the newest version's blob is no longer in the store,
// the first version is returned as current.
func Latest(ctx context.Context, b vbs.Backend, id vbs.Ref) (current, origin Version, err error) {
	originRef, err := ResolveIdentity(ctx, b, id)
	if err != nil {
		return Version{}, Version{}, err
	}
	if originRef != id {
		return Version{}, Version{}, &vbs.NotOriginEntryError{Ref: id, Origin: originRef}
	}

	origin, err = Fetch(ctx, b, id)
	if err != nil {
		return Version{}, Version{}, err
	}

	updates, err := b.Links(ctx, id, TagUpdate)
	if err != nil {
		return Version{}, Version{}, errors.Wrapf(err, "getting update links for %s", id)
	}

	latest, ok := FindLatest(updates)
	if !ok {
		return origin, origin, nil
	}

	current, err = Fetch(ctx, b, latest.Target)
	if errors.Is(err, vbs.ErrNotFound) {
		return origin, origin, nil
	}
	if err != nil {
		return Version{}, Version{}, err
	}
	return current, origin, nil
}
