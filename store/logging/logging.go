// Package logging implements a backend that delegates everything to a nested backend,
// logging operations as they happen.
package logging

import (
	"context"
	"log"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store"
)

var _ vbs.Backend = &Store{}

type Store struct {
	s vbs.Backend
}

func New(s vbs.Backend) *Store {
	return &Store{s: s}
}

func (s *Store) Get(ctx context.Context, ref vbs.Ref) (vbs.Blob, vbs.Receipt, error) {
	b, receipt, err := s.s.Get(ctx, ref)
	if err != nil {
		log.Printf("ERROR Get %s: %s", ref, err)
	} else {
		log.Printf("Get %s: receipt %s", ref, receipt)
	}
	return b, receipt, err
}

func (s *Store) ListRefs(ctx context.Context, start vbs.Ref, f func(vbs.Ref) error) error {
	log.Printf("ListRefs, start=%s", start)
	return s.s.ListRefs(ctx, start, func(ref vbs.Ref) error {
		err := f(ref)
		if err != nil {
			log.Printf("  ERROR in ListRefs: %s: %s", ref, err)
		} else {
			log.Printf("  ListRefs: %s", ref)
		}
		return err
	})
}

func (s *Store) Put(ctx context.Context, b vbs.Blob) (vbs.Ref, vbs.Receipt, error) {
	ref, receipt, err := s.s.Put(ctx, b)
	if err != nil {
		log.Printf("ERROR in Put: %s", err)
	} else {
		log.Printf("Put %s, receipt %s", ref, receipt)
	}
	return ref, receipt, err
}

func (s *Store) Remove(ctx context.Context, receipt vbs.Receipt) (vbs.Receipt, error) {
	rm, err := s.s.Remove(ctx, receipt)
	if err != nil {
		log.Printf("ERROR in Remove(%s): %s", receipt, err)
	} else {
		log.Printf("Remove(%s): %s", receipt, rm)
	}
	return rm, err
}

func (s *Store) PutLink(ctx context.Context, base, target vbs.Ref, tag string) (vbs.Receipt, error) {
	handle, err := s.s.PutLink(ctx, base, target, tag)
	if err != nil {
		log.Printf("ERROR in PutLink(%s, %s, %s): %s", base, target, tag, err)
	} else {
		log.Printf("PutLink(%s, %s, %s): %s", base, target, tag, handle)
	}
	return handle, err
}

func (s *Store) Links(ctx context.Context, base vbs.Ref, tag string) ([]vbs.Link, error) {
	links, err := s.s.Links(ctx, base, tag)
	if err != nil {
		log.Printf("ERROR in Links(%s, %s): %s", base, tag, err)
	} else {
		log.Printf("Links(%s, %s): %d", base, tag, len(links))
	}
	return links, err
}

func (s *Store) DeleteLink(ctx context.Context, handle vbs.Receipt) error {
	err := s.s.DeleteLink(ctx, handle)
	if err != nil {
		log.Printf("ERROR in DeleteLink(%s): %s", handle, err)
	} else {
		log.Printf("DeleteLink(%s)", handle)
	}
	return err
}

func init() {
	store.Register("logging", func(ctx context.Context, conf map[string]interface{}) (vbs.Backend, error) {
		nested, err := store.CreateNested(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(nested), nil
	})
}
