// Package lru implements a backend that acts as a least-recently-used cache for a nested backend.
package lru

import (
	"context"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store"
)

var _ vbs.Backend = &Store{}

// Store implements a memory-based least-recently-used cache for a backend.
// At present it caches only blobs, not links.
// Writes pass through to the underlying backend.
type Store struct {
	c *lru.Cache // Ref->entry
	s vbs.Backend
}

type entry struct {
	blob    vbs.Blob
	receipt vbs.Receipt
}

// New produces a new Store backed by `s` and caching up to `size` blobs.
func New(s vbs.Backend, size int) (*Store, error) {
	c, err := lru.New(size)
	return &Store{s: s, c: c}, err
}

// Get gets the blob with hash `ref`.
func (s *Store) Get(ctx context.Context, ref vbs.Ref) (vbs.Blob, vbs.Receipt, error) {
	if got, ok := s.c.Get(ref); ok {
		e := got.(entry)
		return e.blob, e.receipt, nil
	}
	blob, receipt, err := s.s.Get(ctx, ref)
	if err != nil {
		return nil, vbs.Receipt{}, err
	}
	s.c.Add(ref, entry{blob: blob, receipt: receipt})
	return blob, receipt, nil
}

// Put adds a blob to the store.
func (s *Store) Put(ctx context.Context, b vbs.Blob) (vbs.Ref, vbs.Receipt, error) {
	ref, receipt, err := s.s.Put(ctx, b)
	if err != nil {
		return vbs.Zero, vbs.Receipt{}, err
	}
	s.c.Add(ref, entry{blob: append(vbs.Blob(nil), b...), receipt: receipt})
	return ref, receipt, nil
}

// Remove tombstones a put commit.
// The cache does not know which ref the receipt belongs to,
// so it is emptied.
func (s *Store) Remove(ctx context.Context, receipt vbs.Receipt) (vbs.Receipt, error) {
	rm, err := s.s.Remove(ctx, receipt)
	if err != nil {
		return vbs.Receipt{}, err
	}
	s.c.Purge()
	return rm, nil
}

// ListRefs produces all visible blob refs in the store, in lexicographic order.
func (s *Store) ListRefs(ctx context.Context, start vbs.Ref, f func(vbs.Ref) error) error {
	return s.s.ListRefs(ctx, start, f)
}

// PutLink adds a link to the index.
func (s *Store) PutLink(ctx context.Context, base, target vbs.Ref, tag string) (vbs.Receipt, error) {
	return s.s.PutLink(ctx, base, target, tag)
}

// Links gets the links from base with the given tag.
func (s *Store) Links(ctx context.Context, base vbs.Ref, tag string) ([]vbs.Link, error) {
	return s.s.Links(ctx, base, tag)
}

// DeleteLink removes a link from the index.
func (s *Store) DeleteLink(ctx context.Context, handle vbs.Receipt) error {
	return s.s.DeleteLink(ctx, handle)
}

func sizeParam(conf map[string]interface{}) (int, error) {
	switch v := conf["size"].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), errors.Wrap(err, `parsing "size" parameter`)
	}
	return 0, errors.New(`missing "size" parameter`)
}

func init() {
	store.Register("lru", func(ctx context.Context, conf map[string]interface{}) (vbs.Backend, error) {
		size, err := sizeParam(conf)
		if err != nil {
			return nil, err
		}
		nested, err := store.CreateNested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nested, size)
	})
}
