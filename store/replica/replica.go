// Package replica implements a backend that mirrors the blobs written to a primary backend
// into other blob stores.
package replica

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store"
)

var _ vbs.Backend = (*Store)(nil)

// Store is a backend that delegates to a primary backend
// and copies every blob it writes into two sets of mirror stores.
//
// Reads, removals, and links go to the primary only,
// which alone determines what is visible and issues receipts and handles.
// The mirrors accumulate every blob ever put,
// e.g. for backup.
//
// One set of mirrors is synchronous:
// writes to all of these must succeed before a call to Put returns,
// and an error from any will cause Put to fail.
// The other set is asynchronous:
// a call to Put queues writes on these stores but does not wait for them to finish.
// However, if any asynchronous write encounters an error,
// the whole Store is put into an error state and further operations will fail.
type Store struct {
	primary vbs.Backend
	sync    []vbs.Store
	async   []asyncChans
	cancel  context.CancelFunc

	mu  sync.Mutex // protects err
	err error      // the error from an async goroutine, if any
}

type asyncChans struct {
	blobs chan<- vbs.Blob
	errs  <-chan error
}

// New produces a new Store.
// Either set of mirrors may be empty.
// If there are any asynchronous mirrors,
// goroutines are launched for them,
// and canceling the given context object causes those to exit,
// placing the Store in an error state.
//
// Normally, writes to asynchronous mirrors do not block calls to Put,
// but the queue for each one has a fixed length given by n,
// which must be 1 or greater.
// If any async mirror falls too far behind,
// Put will block until all requests can be queued.
func New(ctx context.Context, primary vbs.Backend, sync, async []vbs.Store, n int) *Store {
	result := &Store{primary: primary, sync: sync}

	if len(async) > 0 {
		ctx, result.cancel = context.WithCancel(ctx)

		selectCases := make([]reflect.SelectCase, 1+len(async))

		for i, a := range async {
			var (
				blobs = make(chan vbs.Blob, n)
				errs  = make(chan error, 1)
			)

			result.async = append(result.async, asyncChans{blobs: blobs, errs: errs})

			selectCases[i].Dir = reflect.SelectRecv
			selectCases[i].Chan = reflect.ValueOf(errs)

			a := a
			go runAsync(ctx, a, blobs, errs)
		}

		selectCases[len(async)].Dir = reflect.SelectRecv
		selectCases[len(async)].Chan = reflect.ValueOf(ctx.Done())

		go func() {
			chosen, errval, ok := reflect.Select(selectCases)
			result.cancel()
			result.mu.Lock()
			switch {
			case ok:
				result.err = errval.Interface().(error)
			case chosen == len(async):
				result.err = ctx.Err()
			}
			result.mu.Unlock()
		}()
	}

	return result
}

// Runs as a goroutine until ctx is canceled or an error occurs (which it writes to errs).
func runAsync(ctx context.Context, s vbs.Store, blobs <-chan vbs.Blob, errs chan<- error) {
	defer close(errs)

	for {
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return

		case blob := <-blobs:
			_, _, err := s.Put(ctx, blob)
			if err != nil {
				errs <- err
				return
			}
		}
	}
}

// Put stores the blob in the primary and in all synchronous mirrors.
// An error from any of them causes Put to return an error.
// The receipt is the primary's.
//
// A request to write the blob is queued for any asynchronous mirrors.
// Normally this does not block the call to Put,
// but if any async mirror falls too far behind,
// Put must wait for space to open in its request queue before proceeding.
// The size of this queue is given by the int passed to New.
func (s *Store) Put(ctx context.Context, blob vbs.Blob) (vbs.Ref, vbs.Receipt, error) {
	if err := s.checkErr(); err != nil {
		return vbs.Zero, vbs.Receipt{}, errors.Wrap(err, "in async-store goroutine")
	}

	var (
		ref     vbs.Ref
		receipt vbs.Receipt
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ref, receipt, err = s.primary.Put(gctx, blob)
		return errors.Wrap(err, "storing blob in primary")
	})
	for _, m := range s.sync {
		m := m
		g.Go(func() error {
			_, _, err := m.Put(gctx, blob)
			return errors.Wrap(err, "storing blob in mirror")
		})
	}

	for _, a := range s.async {
		select {
		case <-ctx.Done():
			return vbs.Zero, vbs.Receipt{}, ctx.Err()

		case a.blobs <- blob:
		}
	}

	if err := g.Wait(); err != nil {
		if s.cancel != nil {
			s.cancel()
		}
		return vbs.Zero, vbs.Receipt{}, err
	}
	return ref, receipt, nil
}

// Get gets a blob from the primary.
func (s *Store) Get(ctx context.Context, ref vbs.Ref) (vbs.Blob, vbs.Receipt, error) {
	if err := s.checkErr(); err != nil {
		return nil, vbs.Receipt{}, errors.Wrap(err, "in async-store goroutine")
	}
	return s.primary.Get(ctx, ref)
}

// ListRefs lists the refs visible in the primary.
func (s *Store) ListRefs(ctx context.Context, start vbs.Ref, f func(vbs.Ref) error) error {
	if err := s.checkErr(); err != nil {
		return errors.Wrap(err, "in async-store goroutine")
	}
	return s.primary.ListRefs(ctx, start, f)
}

// Remove tombstones a put commit in the primary.
// Mirrors keep their copies.
func (s *Store) Remove(ctx context.Context, receipt vbs.Receipt) (vbs.Receipt, error) {
	if err := s.checkErr(); err != nil {
		return vbs.Receipt{}, errors.Wrap(err, "in async-store goroutine")
	}
	return s.primary.Remove(ctx, receipt)
}

func (s *Store) PutLink(ctx context.Context, base, target vbs.Ref, tag string) (vbs.Receipt, error) {
	return s.primary.PutLink(ctx, base, target, tag)
}

func (s *Store) Links(ctx context.Context, base vbs.Ref, tag string) ([]vbs.Link, error) {
	return s.primary.Links(ctx, base, tag)
}

func (s *Store) DeleteLink(ctx context.Context, handle vbs.Receipt) error {
	return s.primary.DeleteLink(ctx, handle)
}

func (s *Store) checkErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func createMirrors(ctx context.Context, conf map[string]interface{}, key string) ([]vbs.Store, error) {
	items, ok := conf[key].([]interface{})
	if !ok {
		return nil, nil
	}
	var result []vbs.Store
	for _, item := range items {
		nested, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf(`%q item is not an object`, key)
		}
		nestedType, ok := nested["type"].(string)
		if !ok {
			return nil, errors.Errorf(`%q item missing "type"`, key)
		}
		m, err := store.Create(ctx, nestedType, nested)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %s mirror", key)
		}
		result = append(result, m)
	}
	return result, nil
}

func queueLen(conf map[string]interface{}) (int, error) {
	switch v := conf["queuelen"].(type) {
	case nil:
		return 10, nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), errors.Wrapf(err, "parsing queue length %v", v)
	}
	return 0, errors.New(`bad "queuelen" parameter`)
}

func init() {
	store.Register("replica", func(ctx context.Context, conf map[string]interface{}) (vbs.Backend, error) {
		primary, err := store.CreateNested(ctx, conf)
		if err != nil {
			return nil, err
		}
		syncMirrors, err := createMirrors(ctx, conf, "sync")
		if err != nil {
			return nil, err
		}
		asyncMirrors, err := createMirrors(ctx, conf, "async")
		if err != nil {
			return nil, err
		}
		n, err := queueLen(conf)
		if err != nil {
			return nil, err
		}
		return New(ctx, primary, syncMirrors, asyncMirrors, n), nil
	})
}
