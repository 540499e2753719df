// Package entity defines the envelope in which versioned values are returned to callers.
package entity

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bobg/vbs"
)

// Type categorizes an entity's content.
type Type struct {
	// Name identifies the kind of data, e.g. "post".
	Name string `json:"name"`

	// Model identifies the data's structure, e.g. "entry" or "info".
	Model string `json:"model"`
}

// Content is implemented by every value that can be stored as an entity.
type Content interface {
	EntityType() Type
}

// Entity is a specific version of a logical object, plus its context.
type Entity[T any] struct {
	// ID is the address of the object's first version.
	// It never changes.
	ID vbs.Ref `json:"id"`

	// Address is the address of the version represented here.
	Address vbs.Ref `json:"address"`

	// Receipt is the receipt of the write that produced this version.
	Receipt vbs.Receipt `json:"receipt"`

	Type    Type `json:"type"`
	Content T    `json:"content"`
}

// Empty is content for callers that don't care about content.
type Empty struct{}

// EmptyEntity can receive any entity when its content is irrelevant.
type EmptyEntity = Entity[Empty]

// Collection is the result of following the links with one tag from a base.
type Collection[T any] struct {
	Base  vbs.Ref `json:"base"`
	Items []T     `json:"items"`
}

// ChangeModel produces an entity of a different model from e
// by transforming its content.
// The result's type comes from the new content,
// so the name may change along with the model.
func ChangeModel[T any, M Content](e Entity[T], f func(T) M) Entity[M] {
	content := f(e.Content)
	return Entity[M]{
		ID:      e.ID,
		Address: e.Address,
		Receipt: e.Receipt,
		Type:    content.EntityType(),
		Content: content,
	}
}

// ChangeModelCustom is like ChangeModel
// but keeps e's type name and takes the model name from f.
func ChangeModelCustom[T, M any](e Entity[T], f func(T) (M, string)) Entity[M] {
	content, model := f(e.Content)
	return Entity[M]{
		ID:      e.ID,
		Address: e.Address,
		Receipt: e.Receipt,
		Type:    Type{Name: e.Type.Name, Model: model},
		Content: content,
	}
}

// LinkFrom creates the link base -[tag]-> e.ID.
func (e Entity[T]) LinkFrom(ctx context.Context, idx vbs.LinkIndex, base vbs.Ref, tag string) (vbs.Receipt, error) {
	h, err := idx.PutLink(ctx, base, e.ID, tag)
	return h, errors.Wrapf(err, "linking %s -[%s]-> %s", base, tag, e.ID)
}

// LinkTo creates the link e.ID -[tag]-> target.
func (e Entity[T]) LinkTo(ctx context.Context, idx vbs.LinkIndex, target vbs.Ref, tag string) (vbs.Receipt, error) {
	h, err := idx.PutLink(ctx, e.ID, target, tag)
	return h, errors.Wrapf(err, "linking %s -[%s]-> %s", e.ID, tag, target)
}

// UnlinkFrom deletes a link base -[tag]-> e.ID.
// If there are several such links, only the first is deleted.
// It reports whether a link was found.
func (e Entity[T]) UnlinkFrom(ctx context.Context, idx vbs.LinkIndex, base vbs.Ref, tag string) (bool, error) {
	links, err := idx.Links(ctx, base, tag)
	if err != nil {
		return false, errors.Wrapf(err, "getting %s links from %s", tag, base)
	}
	for _, l := range links {
		if l.Target != e.ID {
			continue
		}
		err = idx.DeleteLink(ctx, l.Handle)
		return err == nil, errors.Wrapf(err, "deleting link %s", l.Handle)
	}
	return false, nil
}

// MoveLinkFrom replaces the link currentBase -[tag]-> e.ID
// with newBase -[tag]-> e.ID.
//
// This is two separate operations, UnlinkFrom followed by LinkFrom,
// and is not atomic.
// If the first fails, nothing has changed.
// If the second fails, the result is a *vbs.PartialMoveError
// and the entity is linked from neither base.
// If there is no link from currentBase, the new link is created anyway.
func (e Entity[T]) MoveLinkFrom(ctx context.Context, idx vbs.LinkIndex, tag string, currentBase, newBase vbs.Ref) (vbs.Receipt, error) {
	removed, err := e.UnlinkFrom(ctx, idx, currentBase, tag)
	if err != nil {
		return vbs.Receipt{}, err
	}
	h, err := e.LinkFrom(ctx, idx, newBase, tag)
	if err != nil && removed {
		return vbs.Receipt{}, &vbs.PartialMoveError{Base: newBase, Err: err}
	}
	return h, err
}
