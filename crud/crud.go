// Package crud implements create, read, update, and delete operations
// on versioned entities in a vbs.Backend.
package crud

import (
	"context"
	stderrs "errors"

	"github.com/pkg/errors"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/entity"
	"github.com/bobg/vbs/version"
)

// Create stores content as the first version of a new entity.
// The content's ref is both the ID and the address of the result.
func Create[T entity.Content](ctx context.Context, b vbs.Backend, content T) (entity.Entity[T], error) {
	blob, err := vbs.Encode(content)
	if err != nil {
		return entity.Entity[T]{}, err
	}
	ref, receipt, err := b.Put(ctx, blob)
	if err != nil {
		return entity.Entity[T]{}, errors.Wrap(err, "storing entry")
	}
	return entity.Entity[T]{
		ID:      ref,
		Address: ref,
		Receipt: receipt,
		Type:    content.EntityType(),
		Content: content,
	}, nil
}

// Get gets the current version of the entity with the given ID.
//
// Only the entity's first version is checked to be a T
// (see vbs.CheckType).
// An entity's type is fixed when it's created;
// the current version is merely decoded.
func Get[T entity.Content](ctx context.Context, b vbs.Backend, id vbs.Ref) (entity.Entity[T], error) {
	current, origin, err := version.Latest(ctx, b, id)
	if err != nil {
		return entity.Entity[T]{}, err
	}
	if _, err = vbs.CheckType[T](origin.Ref, origin.Blob); err != nil {
		return entity.Entity[T]{}, err
	}
	content, err := vbs.Decode[T](current.Ref, current.Blob)
	if err != nil {
		return entity.Entity[T]{}, err
	}
	return entity.Entity[T]{
		ID:      id,
		Address: current.Ref,
		Receipt: current.Receipt,
		Type:    content.EntityType(),
		Content: content,
	}, nil
}

// Update stores a new version of the entity that addr is a version of.
// The new content is f applied to the content at addr.
//
// The addr need not be the current version.
// Updating an older version starts a new branch;
// like every other version it is linked to the entity's ID,
// and whichever version has the newest link is current.
func Update[T entity.Content](ctx context.Context, b vbs.Backend, addr vbs.Ref, f func(T) (T, error)) (entity.Entity[T], error) {
	prev, err := version.Fetch(ctx, b, addr)
	if err != nil {
		return entity.Entity[T]{}, err
	}
	current, err := vbs.CheckType[T](addr, prev.Blob)
	if err != nil {
		return entity.Entity[T]{}, err
	}

	updated, err := f(current)
	if err != nil {
		return entity.Entity[T]{}, err
	}

	blob, err := vbs.Encode(updated)
	if err != nil {
		return entity.Entity[T]{}, err
	}
	ref, receipt, err := b.Put(ctx, blob)
	if err != nil {
		return entity.Entity[T]{}, errors.Wrap(err, "storing updated entry")
	}

	id, err := version.ResolveIdentity(ctx, b, addr)
	if err != nil {
		return entity.Entity[T]{}, err
	}

	if _, err = b.PutLink(ctx, id, ref, version.TagUpdate); err != nil {
		return entity.Entity[T]{}, errors.Wrapf(err, "linking original %s to %s", id, ref)
	}
	if _, err = b.PutLink(ctx, ref, id, version.TagOrigin); err != nil {
		return entity.Entity[T]{}, errors.Wrapf(err, "linking %s to original %s", ref, id)
	}

	return entity.Entity[T]{
		ID:      id,
		Address: ref,
		Receipt: receipt,
		Type:    updated.EntityType(),
		Content: updated,
	}, nil
}

// Delete removes the first version of the entity that id is a version of,
// after checking that it's a T.
// Every live write of the first version's content is removed,
// including any later update that restored it,
// and the receipt of the oldest removed write is returned.
//
// Later versions and links are left in place;
// Get on the ID fails afterwards,
// but the later versions' blobs can still be fetched directly.
func Delete[T entity.Content](ctx context.Context, b vbs.Backend, id vbs.Ref) (vbs.Receipt, error) {
	id, err := version.ResolveIdentity(ctx, b, id)
	if err != nil {
		return vbs.Receipt{}, err
	}
	v, err := version.Fetch(ctx, b, id)
	if err != nil {
		return vbs.Receipt{}, err
	}
	if _, err = vbs.CheckType[T](id, v.Blob); err != nil {
		return vbs.Receipt{}, err
	}

	receipt := v.Receipt
	for {
		if _, err = b.Remove(ctx, receipt); err != nil {
			return vbs.Receipt{}, errors.Wrapf(err, "removing entry %s", id)
		}
		_, next, err := b.Get(ctx, id)
		if stderrs.Is(err, vbs.ErrNotFound) {
			return receipt, nil
		}
		if err != nil {
			return vbs.Receipt{}, errors.Wrapf(err, "getting entry %s", id)
		}
		receipt = next
	}
}

// GetCollection gets the entities linked from baseID with the given tag.
//
// The base must be a B;
// if it isn't, the result is a *vbs.LinkBaseWrongTypeError.
// Linked items that can't be gotten as an I are silently left out.
func GetCollection[B, I entity.Content](ctx context.Context, b vbs.Backend, baseID vbs.Ref, tag string) (entity.Collection[entity.Entity[I]], error) {
	var (
		deserErr *vbs.DeserializationError
		typeErr  *vbs.WrongEntryTypeError
	)
	_, err := Get[B](ctx, b, baseID)
	if stderrs.As(err, &deserErr) || stderrs.As(err, &typeErr) {
		return entity.Collection[entity.Entity[I]]{}, &vbs.LinkBaseWrongTypeError{Ref: baseID, Shape: vbs.Shape[B]()}
	}
	if err != nil {
		return entity.Collection[entity.Entity[I]]{}, err
	}

	links, err := b.Links(ctx, baseID, tag)
	if err != nil {
		return entity.Collection[entity.Entity[I]]{}, errors.Wrapf(err, "getting %s links from %s", tag, baseID)
	}

	items := make([]entity.Entity[I], 0, len(links))
	for _, l := range links {
		item, err := Get[I](ctx, b, l.Target)
		if err != nil {
			continue
		}
		items = append(items, item)
	}

	return entity.Collection[entity.Entity[I]]{Base: baseID, Items: items}, nil
}

// ResolveIdentity finds the ID of the entity that addr is a version of.
func ResolveIdentity(ctx context.Context, idx vbs.LinkIndex, addr vbs.Ref) (vbs.Ref, error) {
	return version.ResolveIdentity(ctx, idx, addr)
}

// Now is the time according to c in milliseconds since the epoch,
// for stamping into content.
func Now(c vbs.Clock) int64 {
	return c.Now().UnixMilli()
}
