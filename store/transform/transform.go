// Package transform implements a backend that can transform blobs into and out of a nested backend.
package transform

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store"
)

var _ vbs.Backend = &Store{}

// Store is a backend wrapping a nested backend and a Transformer.
// Blobs are transformed according to the Transformer on their way in and out of the nested backend.
//
// The mapping between a blob's ref and the ref of its transformed version
// is kept as a pair of links in the nested backend's link index,
// tagged TagIn and TagOut.
// Receipts are those of the nested backend's writes of transformed blobs.
type Store struct {
	s vbs.Backend
	x Transformer
}

const (
	// TagIn links a blob's ref to the ref of its transformed version.
	TagIn = "transform:in"

	// TagOut links a transformed blob's ref back to the untransformed ref.
	TagOut = "transform:out"
)

// Transformer tells how to transform a blob on its way into and out of a Store.
// Out should be the inverse of In.
type Transformer interface {
	// In transforms a blob on its way into the store.
	In(context.Context, vbs.Blob) (vbs.Blob, error)

	// Out transforms a blob on its way out of the store.
	Out(context.Context, vbs.Blob) (vbs.Blob, error)
}

func New(s vbs.Backend, x Transformer) *Store {
	return &Store{s: s, x: x}
}

func (s *Store) Get(ctx context.Context, ref vbs.Ref) (vbs.Blob, vbs.Receipt, error) {
	links, err := s.s.Links(ctx, ref, TagIn)
	if err != nil {
		return nil, vbs.Receipt{}, errors.Wrap(err, "consulting ref map")
	}
	if len(links) == 0 {
		return nil, vbs.Receipt{}, vbs.ErrNotFound
	}
	cref := links[0].Target

	cblob, receipt, err := s.s.Get(ctx, cref)
	if err != nil {
		return nil, vbs.Receipt{}, err
	}
	blob, err := s.x.Out(ctx, cblob)
	if err != nil {
		return nil, vbs.Receipt{}, errors.Wrapf(err, "untransforming blob %s", cref)
	}
	return blob, receipt, nil
}

func (s *Store) Put(ctx context.Context, blob vbs.Blob) (vbs.Ref, vbs.Receipt, error) {
	ref := blob.Ref()
	cblob, err := s.x.In(ctx, blob)
	if err != nil {
		return vbs.Zero, vbs.Receipt{}, errors.Wrap(err, "transforming blob")
	}

	cref, receipt, err := s.s.Put(ctx, cblob)
	if err != nil {
		return vbs.Zero, vbs.Receipt{}, errors.Wrap(err, "storing transformed blob")
	}

	links, err := s.s.Links(ctx, ref, TagIn)
	if err != nil {
		return vbs.Zero, vbs.Receipt{}, errors.Wrap(err, "consulting ref map")
	}
	if len(links) > 0 {
		return ref, receipt, nil
	}
	if _, err = s.s.PutLink(ctx, ref, cref, TagIn); err != nil {
		return vbs.Zero, vbs.Receipt{}, errors.Wrap(err, "updating ref map")
	}
	_, err = s.s.PutLink(ctx, cref, ref, TagOut)
	return ref, receipt, errors.Wrap(err, "updating ref map")
}

// Remove tombstones a put commit in the nested backend.
func (s *Store) Remove(ctx context.Context, receipt vbs.Receipt) (vbs.Receipt, error) {
	return s.s.Remove(ctx, receipt)
}

// ListRefs produces the untransformed refs of all visible blobs, in lexicographic order.
// Blobs in the nested backend that were not written through a Store are skipped.
func (s *Store) ListRefs(ctx context.Context, start vbs.Ref, f func(vbs.Ref) error) error {
	var refs []vbs.Ref
	err := s.s.ListRefs(ctx, vbs.Zero, func(cref vbs.Ref) error {
		links, err := s.s.Links(ctx, cref, TagOut)
		if err != nil {
			return errors.Wrap(err, "consulting ref map")
		}
		if len(links) > 0 && start.Less(links[0].Target) {
			refs = append(refs, links[0].Target)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	for _, ref := range refs {
		if err = f(ref); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) PutLink(ctx context.Context, base, target vbs.Ref, tag string) (vbs.Receipt, error) {
	return s.s.PutLink(ctx, base, target, tag)
}

func (s *Store) Links(ctx context.Context, base vbs.Ref, tag string) ([]vbs.Link, error) {
	return s.s.Links(ctx, base, tag)
}

func (s *Store) DeleteLink(ctx context.Context, handle vbs.Receipt) error {
	return s.s.DeleteLink(ctx, handle)
}

func init() {
	store.Register("transform", func(ctx context.Context, conf map[string]interface{}) (vbs.Backend, error) {
		x, err := transformerParam(conf)
		if err != nil {
			return nil, err
		}
		nested, err := store.CreateNested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nested, x), nil
	})
}
