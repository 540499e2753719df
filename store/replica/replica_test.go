package replica

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store"
	"github.com/bobg/vbs/store/mem"
	"github.com/bobg/vbs/testutil"
)

func newPrimary() *mem.Store {
	return mem.New().WithClock(testutil.NewStepClock(time.Unix(1000, 0), time.Millisecond))
}

func TestBlobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, newPrimary(), []vbs.Store{mem.New()}, []vbs.Store{mem.New()}, 1)
	testutil.Blobs(ctx, t, s)
}

func TestLinks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, newPrimary(), nil, nil, 1)
	testutil.Links(ctx, t, s)
}

func TestMirrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		primary = newPrimary()
		m1      = mem.New()
		m2      = mem.New()
		s       = New(ctx, primary, []vbs.Store{m1}, []vbs.Store{m2}, 1)
	)

	ref1, _, err := s.Put(ctx, vbs.Blob("foo"))
	if err != nil {
		t.Fatal(err)
	}
	ref2, receipt2, err := s.Put(ctx, vbs.Blob("bar"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = s.Remove(ctx, receipt2); err != nil {
		t.Fatal(err)
	}

	checkRefs(ctx, t, "primary", primary, ref1)
	checkRefs(ctx, t, "sync", m1, ref1, ref2)
	checkRefs(ctx, t, "replica", s, ref1)

	// The async mirror catches up eventually.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, _, err = m2.Get(ctx, ref2)
		if err == nil {
			break
		}
		if !errors.Is(err, vbs.ErrNotFound) {
			t.Fatal(err)
		}
		if time.Now().After(deadline) {
			t.Fatal("async mirror never received blob")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func checkRefs(ctx context.Context, t *testing.T, name string, s vbs.Getter, want ...vbs.Ref) {
	t.Run(name, func(t *testing.T) {
		var got []vbs.Ref
		err := s.ListRefs(ctx, vbs.Zero, func(r vbs.Ref) error {
			got = append(got, r)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		sort.Slice(want, func(i, j int) bool { return want[i].Less(want[j]) })
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestAsyncError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := New(ctx, newPrimary(), nil, []vbs.Store{mem.New()}, 1)
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for s.checkErr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("store never entered error state")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, _, err := s.Put(context.Background(), vbs.Blob("x")); err == nil {
		t.Error("got no error from Put in error state")
	}
}

func TestRegistry(t *testing.T) {
	conf := map[string]interface{}{
		"nested": map[string]interface{}{"type": "mem"},
		"sync": []interface{}{
			map[string]interface{}{"type": "mem"},
		},
		"queuelen": float64(5),
	}
	b, err := store.Create(context.Background(), "replica", conf)
	if err != nil {
		t.Fatal(err)
	}
	r, ok := b.(*Store)
	if !ok {
		t.Fatalf("got %T, want *Store", b)
	}
	if len(r.sync) != 1 || len(r.async) != 0 {
		t.Errorf("got %d sync and %d async mirrors, want 1 and 0", len(r.sync), len(r.async))
	}
}
