package version

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store/mem"
	"github.com/bobg/vbs/testutil"
)

func newTestStore() *mem.Store {
	return mem.New().WithClock(testutil.NewStepClock(time.Unix(1000, 0), time.Millisecond))
}

func TestResolveIdentity(t *testing.T) {
	var (
		ctx = context.Background()
		s   = newTestStore()
		id  = vbs.Ref{0x1d}
		v1  = vbs.Ref{0x01}
		v2  = vbs.Ref{0x02}
	)

	got, err := ResolveIdentity(ctx, s, id)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Errorf("got %s for an unlinked address, want itself", got)
	}

	if _, err = s.PutLink(ctx, v1, id, TagOrigin); err != nil {
		t.Fatal(err)
	}
	got, err = ResolveIdentity(ctx, s, v1)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Errorf("got %s, want %s", got, id)
	}

	if _, err = s.PutLink(ctx, v1, v2, TagOrigin); err != nil {
		t.Fatal(err)
	}
	_, err = ResolveIdentity(ctx, s, v1)
	var multi *vbs.MultipleOriginsError
	if !errors.As(err, &multi) {
		t.Fatalf("got error %v, want MultipleOriginsError", err)
	}
	if multi.Ref != v1 {
		t.Errorf("got ref %s, want %s", multi.Ref, v1)
	}

	// Duplicate links to the same origin are not an inconsistency.
	if _, err = s.PutLink(ctx, v2, id, TagOrigin); err != nil {
		t.Fatal(err)
	}
	if _, err = s.PutLink(ctx, v2, id, TagOrigin); err != nil {
		t.Fatal(err)
	}
	got, err = ResolveIdentity(ctx, s, v2)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Errorf("got %s, want %s", got, id)
	}
}

func TestFindLatest(t *testing.T) {
	if _, ok := FindLatest(nil); ok {
		t.Error("found a latest link among none")
	}

	at := time.Unix(1000, 0)
	links := []vbs.Link{
		{Target: vbs.Ref{1}, At: at, Handle: vbs.Receipt{1}},
		{Target: vbs.Ref{2}, At: at.Add(time.Second), Handle: vbs.Receipt{2}},
		{Target: vbs.Ref{3}, At: at.Add(2 * time.Second), Handle: vbs.Receipt{3}},
		{Target: vbs.Ref{4}, At: at.Add(2 * time.Second), Handle: vbs.Receipt{4}},
		{Target: vbs.Ref{5}, At: at.Add(time.Second), Handle: vbs.Receipt{5}},
	}

	for i := 0; i < 10; i++ {
		rand.Shuffle(len(links), func(a, b int) { links[a], links[b] = links[b], links[a] })
		got, ok := FindLatest(links)
		if !ok {
			t.Fatal("no latest link")
		}
		if got.Target != (vbs.Ref{4}) {
			t.Errorf("got target %s, want the newest link with the greater handle", got.Target)
		}
	}
}

func TestLatest(t *testing.T) {
	var (
		ctx = context.Background()
		s   = newTestStore()
	)

	id, _, err := s.Put(ctx, vbs.Blob(`{"v":1}`))
	if err != nil {
		t.Fatal(err)
	}

	current, origin, err := Latest(ctx, s, id)
	if err != nil {
		t.Fatal(err)
	}
	if current.Ref != id || origin.Ref != id {
		t.Errorf("got current %s and origin %s, want both %s", current.Ref, origin.Ref, id)
	}

	var versions []vbs.Ref
	for _, b := range []string{`{"v":2}`, `{"v":3}`} {
		ref, _, err := s.Put(ctx, vbs.Blob(b))
		if err != nil {
			t.Fatal(err)
		}
		if _, err = s.PutLink(ctx, id, ref, TagUpdate); err != nil {
			t.Fatal(err)
		}
		if _, err = s.PutLink(ctx, ref, id, TagOrigin); err != nil {
			t.Fatal(err)
		}
		versions = append(versions, ref)
	}

	current, origin, err = Latest(ctx, s, id)
	if err != nil {
		t.Fatal(err)
	}
	if current.Ref != versions[1] {
		t.Errorf("got current %s, want %s", current.Ref, versions[1])
	}
	if string(current.Blob) != `{"v":3}` {
		t.Errorf("got blob %s", current.Blob)
	}
	if origin.Ref != id {
		t.Errorf("got origin %s, want %s", origin.Ref, id)
	}

	_, _, err = Latest(ctx, s, versions[0])
	var notOrigin *vbs.NotOriginEntryError
	if !errors.As(err, &notOrigin) {
		t.Fatalf("got error %v, want NotOriginEntryError", err)
	}
	if notOrigin.Origin != id {
		t.Errorf("got origin %s, want %s", notOrigin.Origin, id)
	}

	_, _, err = Latest(ctx, s, vbs.Ref{0xab})
	var notFound *vbs.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("got error %v, want NotFoundError", err)
	}
	if !errors.Is(err, vbs.ErrNotFound) {
		t.Error("NotFoundError does not match ErrNotFound")
	}
}

func TestLatestMissingBlob(t *testing.T) {
	var (
		ctx = context.Background()
		s   = newTestStore()
	)

	id, _, err := s.Put(ctx, vbs.Blob(`{"v":1}`))
	if err != nil {
		t.Fatal(err)
	}
	ref, receipt, err := s.Put(ctx, vbs.Blob(`{"v":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = s.PutLink(ctx, id, ref, TagUpdate); err != nil {
		t.Fatal(err)
	}
	if _, err = s.Remove(ctx, receipt); err != nil {
		t.Fatal(err)
	}

	current, _, err := Latest(ctx, s, id)
	if err != nil {
		t.Fatal(err)
	}
	if current.Ref != id {
		t.Errorf("got current %s, want fallback to %s", current.Ref, id)
	}
}
