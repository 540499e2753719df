// Package mem implements an in-memory blob store and link index.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store"
)

var _ vbs.Backend = &Store{}

// Store is a memory-based implementation of a blob store and link index.
type Store struct {
	clock vbs.Clock

	mu      sync.Mutex
	blobs   map[vbs.Ref]vbs.Blob
	puts    map[vbs.Ref][]vbs.Commit // live put commits, oldest first
	commits map[vbs.Receipt]vbs.Commit
	links   map[linkKey][]vbs.Link
	handles map[vbs.Receipt]linkKey
}

type linkKey struct {
	base vbs.Ref
	tag  string
}

// New produces a new Store.
func New() *Store {
	return &Store{
		clock:   vbs.SystemClock{},
		blobs:   make(map[vbs.Ref]vbs.Blob),
		puts:    make(map[vbs.Ref][]vbs.Commit),
		commits: make(map[vbs.Receipt]vbs.Commit),
		links:   make(map[linkKey][]vbs.Link),
		handles: make(map[vbs.Receipt]linkKey),
	}
}

// WithClock sets the clock used for timestamping commits and links.
func (s *Store) WithClock(c vbs.Clock) *Store {
	s.clock = c
	return s
}

// Get gets the blob with hash `ref`.
func (s *Store) Get(_ context.Context, ref vbs.Ref) (vbs.Blob, vbs.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	puts := s.puts[ref]
	if len(puts) == 0 {
		return nil, vbs.Receipt{}, vbs.ErrNotFound
	}
	return s.blobs[ref], puts[len(puts)-1].Receipt(), nil
}

// Put adds a blob to the store.
func (s *Store) Put(_ context.Context, b vbs.Blob) (vbs.Ref, vbs.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := b.Ref()
	if _, ok := s.blobs[ref]; !ok {
		s.blobs[ref] = append(vbs.Blob(nil), b...)
	}

	c := vbs.Commit{Op: vbs.OpPut, Ref: ref, At: s.clock.Now()}
	receipt := c.Receipt()
	if _, ok := s.commits[receipt]; !ok {
		s.commits[receipt] = c
		s.puts[ref] = append(s.puts[ref], c)
	}

	return ref, receipt, nil
}

// Remove tombstones a put commit.
func (s *Store) Remove(_ context.Context, receipt vbs.Receipt) (vbs.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.commits[receipt]
	if !ok || c.Op != vbs.OpPut {
		return vbs.Receipt{}, vbs.ErrNotFound
	}

	puts := s.puts[c.Ref]
	for i, p := range puts {
		if p.Receipt() != receipt {
			continue
		}
		s.puts[c.Ref] = append(puts[:i:i], puts[i+1:]...)

		rm := vbs.Commit{Op: vbs.OpRemove, Ref: c.Ref, Removes: receipt, At: s.clock.Now()}
		rmReceipt := rm.Receipt()
		s.commits[rmReceipt] = rm
		return rmReceipt, nil
	}

	return vbs.Receipt{}, vbs.ErrNotFound
}

// ListRefs produces all visible blob refs in the store, in lexicographic order.
func (s *Store) ListRefs(_ context.Context, start vbs.Ref, f func(vbs.Ref) error) error {
	s.mu.Lock()
	refs := make([]vbs.Ref, 0, len(s.puts))
	for ref, puts := range s.puts {
		if len(puts) > 0 {
			refs = append(refs, ref)
		}
	}
	s.mu.Unlock()

	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	index := sort.Search(len(refs), func(n int) bool {
		return start.Less(refs[n])
	})

	for i := index; i < len(refs); i++ {
		err := f(refs[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// PutLink adds a link to the index.
func (s *Store) PutLink(_ context.Context, base, target vbs.Ref, tag string) (vbs.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := vbs.Commit{Op: vbs.OpLink, Ref: base, Target: target, Tag: tag, At: s.clock.Now()}
	handle := c.Receipt()
	if _, ok := s.handles[handle]; ok {
		return handle, nil
	}

	key := linkKey{base: base, tag: tag}
	s.links[key] = append(s.links[key], vbs.Link{
		Base:   base,
		Target: target,
		Tag:    tag,
		At:     c.At,
		Handle: handle,
	})
	s.handles[handle] = key

	return handle, nil
}

// Links gets the links from base with the given tag, oldest first.
func (s *Store) Links(_ context.Context, base vbs.Ref, tag string) ([]vbs.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	links := s.links[linkKey{base: base, tag: tag}]
	result := make([]vbs.Link, len(links))
	copy(result, links)
	return result, nil
}

// DeleteLink removes a link from the index.
func (s *Store) DeleteLink(_ context.Context, handle vbs.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.handles[handle]
	if !ok {
		return vbs.ErrNotFound
	}
	delete(s.handles, handle)

	links := s.links[key]
	for i, l := range links {
		if l.Handle == handle {
			s.links[key] = append(links[:i:i], links[i+1:]...)
			break
		}
	}
	return nil
}

func init() {
	store.Register("mem", func(context.Context, map[string]interface{}) (vbs.Backend, error) {
		return New(), nil
	})
}
