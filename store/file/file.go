// Package file implements a blob store and link index as a file hierarchy.
//
// Blobs live in files named for their refs beneath root/blobs.
// Commits and links are recorded in two append-only logs,
// root/commits and root/links,
// each a sequence of length-prefixed vbs.Commit records.
// The logs are locked with flock while being read or appended,
// so several processes may share a root.
package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bobg/flock"
	"github.com/pkg/errors"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store"
)

var _ vbs.Backend = &Store{}

// Store is a file-based implementation of a blob store and link index.
type Store struct {
	root  string
	clock vbs.Clock

	mu      sync.Mutex // serializes log access within this process
	flocker flock.Locker
}

// New produces a new Store storing data beneath `root`.
func New(root string) *Store {
	return &Store{root: root, clock: vbs.SystemClock{}}
}

// WithClock sets the clock used for timestamping commits and links.
func (s *Store) WithClock(c vbs.Clock) *Store {
	s.clock = c
	return s
}

const (
	commitsLog = "commits"
	linksLog   = "links"
)

func (s *Store) blobroot() string {
	return filepath.Join(s.root, "blobs")
}

func (s *Store) blobpath(ref vbs.Ref) string {
	h := ref.String()
	return filepath.Join(s.blobroot(), h[:2], h[:4], h)
}

func (s *Store) logpath(name string) string {
	return filepath.Join(s.root, name)
}

// Get gets the blob with hash `ref`.
func (s *Store) Get(_ context.Context, ref vbs.Ref) (vbs.Blob, vbs.Receipt, error) {
	var receipt vbs.Receipt

	err := s.withLog(commitsLog, func(commits []vbs.Commit) ([]vbs.Commit, error) {
		live := livePuts(commits)[ref]
		if len(live) == 0 {
			return nil, vbs.ErrNotFound
		}
		receipt = live[len(live)-1]
		return nil, nil
	})
	if err != nil {
		return nil, vbs.Receipt{}, err
	}

	path := s.blobpath(ref)
	blob, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, vbs.Receipt{}, vbs.ErrNotFound
	}
	if err != nil {
		return nil, vbs.Receipt{}, errors.Wrapf(err, "reading %s", path)
	}
	return blob, receipt, nil
}

// Put adds a blob to the store.
func (s *Store) Put(_ context.Context, b vbs.Blob) (vbs.Ref, vbs.Receipt, error) {
	var (
		ref  = b.Ref()
		path = s.blobpath(ref)
		dir  = filepath.Dir(path)
	)

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return vbs.Zero, vbs.Receipt{}, errors.Wrapf(err, "ensuring path %s exists", dir)
	}

	err = func() error {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if os.IsExist(err) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "creating %s", path)
		}
		defer f.Close()

		_, err = f.Write(b)
		return errors.Wrapf(err, "writing data to %s", path)
	}()
	if err != nil {
		return vbs.Zero, vbs.Receipt{}, err
	}

	c := vbs.Commit{Op: vbs.OpPut, Ref: ref, At: s.clock.Now()}
	receipt := c.Receipt()

	err = s.withLog(commitsLog, func(commits []vbs.Commit) ([]vbs.Commit, error) {
		for _, existing := range commits {
			if existing.Receipt() == receipt {
				return nil, nil
			}
		}
		return []vbs.Commit{c}, nil
	})
	return ref, receipt, err
}

// Remove tombstones a put commit.
func (s *Store) Remove(_ context.Context, receipt vbs.Receipt) (vbs.Receipt, error) {
	var rmReceipt vbs.Receipt

	err := s.withLog(commitsLog, func(commits []vbs.Commit) ([]vbs.Commit, error) {
		var ref *vbs.Ref
		for r, receipts := range livePuts(commits) {
			for _, live := range receipts {
				if live == receipt {
					r := r
					ref = &r
				}
			}
		}
		if ref == nil {
			return nil, vbs.ErrNotFound
		}

		rm := vbs.Commit{Op: vbs.OpRemove, Ref: *ref, Removes: receipt, At: s.clock.Now()}
		rmReceipt = rm.Receipt()
		return []vbs.Commit{rm}, nil
	})

	return rmReceipt, err
}

// ListRefs produces all visible blob refs in the store, in lexicographic order.
func (s *Store) ListRefs(_ context.Context, start vbs.Ref, f func(vbs.Ref) error) error {
	var refs []vbs.Ref

	err := s.withLog(commitsLog, func(commits []vbs.Commit) ([]vbs.Commit, error) {
		for ref, receipts := range livePuts(commits) {
			if len(receipts) > 0 && start.Less(ref) {
				refs = append(refs, ref)
			}
		}
		return nil, nil
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

// PutLink adds a link to the index.
func (s *Store) PutLink(_ context.Context, base, target vbs.Ref, tag string) (vbs.Receipt, error) {
	var (
		c      = vbs.Commit{Op: vbs.OpLink, Ref: base, Target: target, Tag: tag, At: s.clock.Now()}
		handle = c.Receipt()
	)

	err := s.withLog(linksLog, func(commits []vbs.Commit) ([]vbs.Commit, error) {
		for _, l := range liveLinks(commits) {
			if l.Handle == handle {
				return nil, nil
			}
		}
		return []vbs.Commit{c}, nil
	})
	return handle, err
}

// Links gets the links from base with the given tag, oldest first.
func (s *Store) Links(_ context.Context, base vbs.Ref, tag string) ([]vbs.Link, error) {
	var result []vbs.Link

	err := s.withLog(linksLog, func(commits []vbs.Commit) ([]vbs.Commit, error) {
		for _, l := range liveLinks(commits) {
			if l.Base == base && l.Tag == tag {
				result = append(result, l)
			}
		}
		return nil, nil
	})
	return result, err
}

// DeleteLink removes a link from the index.
func (s *Store) DeleteLink(_ context.Context, handle vbs.Receipt) error {
	return s.withLog(linksLog, func(commits []vbs.Commit) ([]vbs.Commit, error) {
		for _, l := range liveLinks(commits) {
			if l.Handle == handle {
				return []vbs.Commit{{
					Op:      vbs.OpUnlink,
					Ref:     l.Base,
					Tag:     l.Tag,
					Removes: handle,
					At:      s.clock.Now(),
				}}, nil
			}
		}
		return nil, vbs.ErrNotFound
	})
}

// withLog locks the named log,
// reads its commits and passes them to f,
// and appends whatever commits f returns.
func (s *Store) withLog(name string, f func([]vbs.Commit) ([]vbs.Commit, error)) error {
	path := s.logpath(name)

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return errors.Wrapf(err, "ensuring %s exists", s.root)
	}
	lf, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	lf.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.flocker.Lock(path); err != nil {
		return errors.Wrapf(err, "locking %s", path)
	}
	defer s.flocker.Unlock(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	var commits []vbs.Commit
	err = vbs.EachCommit(data, func(c vbs.Commit) error {
		commits = append(commits, c)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}

	toAppend, err := f(commits)
	if err != nil || len(toAppend) == 0 {
		return err
	}

	var buf []byte
	for _, c := range toAppend {
		buf = vbs.AppendCommit(buf, c)
	}

	af, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening %s for append", path)
	}
	defer af.Close()

	if _, err = af.Write(buf); err != nil {
		return errors.Wrapf(err, "appending to %s", path)
	}
	return errors.Wrapf(af.Sync(), "syncing %s", path)
}

// livePuts maps each ref to the receipts of its unremoved puts, oldest first.
func livePuts(commits []vbs.Commit) map[vbs.Ref][]vbs.Receipt {
	result := make(map[vbs.Ref][]vbs.Receipt)
	for _, c := range commits {
		switch c.Op {
		case vbs.OpPut:
			result[c.Ref] = append(result[c.Ref], c.Receipt())

		case vbs.OpRemove:
			receipts := result[c.Ref]
			for i, r := range receipts {
				if r == c.Removes {
					result[c.Ref] = append(receipts[:i:i], receipts[i+1:]...)
					break
				}
			}
		}
	}
	return result
}

// liveLinks produces the undeleted links, oldest first.
func liveLinks(commits []vbs.Commit) []vbs.Link {
	var (
		links   []vbs.Link
		deleted = make(map[vbs.Receipt]bool)
	)
	for _, c := range commits {
		if c.Op == vbs.OpUnlink {
			deleted[c.Removes] = true
		}
	}
	for _, c := range commits {
		if c.Op != vbs.OpLink {
			continue
		}
		h := c.Receipt()
		if deleted[h] {
			continue
		}
		links = append(links, vbs.Link{
			Base:   c.Ref,
			Target: c.Target,
			Tag:    c.Tag,
			At:     c.At,
			Handle: h,
		})
	}
	return links
}

func init() {
	store.Register("file", func(_ context.Context, conf map[string]interface{}) (vbs.Backend, error) {
		root, ok := conf["root"].(string)
		if !ok {
			return nil, errors.New(`missing "root" parameter`)
		}
		return New(root), nil
	})
}
