package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/bobg/vbs"
)

// Blobs tests putting, getting, and removing blobs in a Store.
// The store should be empty
// and its clock should not repeat readings.
func Blobs(ctx context.Context, t *testing.T, store vbs.Store) {
	var (
		b1 = vbs.Blob("the quick brown fox")
		b2 = vbs.Blob("jumps over the lazy dog")
	)

	ref1, r1a, err := store.Put(ctx, b1)
	if err != nil {
		t.Fatal(err)
	}
	if ref1 != b1.Ref() {
		t.Fatalf("got ref %s, want %s", ref1, b1.Ref())
	}

	got, gotReceipt, err := store.Get(ctx, ref1)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(b1) {
		t.Errorf("got %q, want %q", got, b1)
	}
	if gotReceipt != r1a {
		t.Errorf("got receipt %s, want %s", gotReceipt, r1a)
	}

	_, _, err = store.Get(ctx, b2.Ref())
	if !errors.Is(err, vbs.ErrNotFound) {
		t.Errorf("got error %v getting absent blob, want ErrNotFound", err)
	}

	// A second put of the same blob is a distinct commit.
	_, r1b, err := store.Put(ctx, b1)
	if err != nil {
		t.Fatal(err)
	}
	if r1b == r1a {
		t.Fatal("second put produced the same receipt")
	}

	ref2, r2, err := store.Put(ctx, b2)
	if err != nil {
		t.Fatal(err)
	}

	rm, err := store.Remove(ctx, r1b)
	if err != nil {
		t.Fatal(err)
	}
	if rm.IsZero() || rm == r1b {
		t.Errorf("got removal receipt %s", rm)
	}

	_, gotReceipt, err = store.Get(ctx, ref1)
	if err != nil {
		t.Fatalf("blob should remain visible while one put is live: %s", err)
	}
	if gotReceipt != r1a {
		t.Errorf("after removing second put, got receipt %s, want %s", gotReceipt, r1a)
	}

	if _, err = store.Remove(ctx, r1a); err != nil {
		t.Fatal(err)
	}
	_, _, err = store.Get(ctx, ref1)
	if !errors.Is(err, vbs.ErrNotFound) {
		t.Errorf("got error %v getting removed blob, want ErrNotFound", err)
	}

	if _, err = store.Remove(ctx, r1a); !errors.Is(err, vbs.ErrNotFound) {
		t.Errorf("got error %v removing twice, want ErrNotFound", err)
	}
	if _, err = store.Remove(ctx, vbs.Receipt{1}); !errors.Is(err, vbs.ErrNotFound) {
		t.Errorf("got error %v removing unknown receipt, want ErrNotFound", err)
	}

	var refs []vbs.Ref
	err = store.ListRefs(ctx, vbs.Zero, func(ref vbs.Ref) error {
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0] != ref2 {
		t.Errorf("got refs %v, want [%s]", refs, ref2)
	}

	// Putting a removed blob makes it visible again.
	_, r1c, err := store.Put(ctx, b1)
	if err != nil {
		t.Fatal(err)
	}
	_, gotReceipt, err = store.Get(ctx, ref1)
	if err != nil {
		t.Fatal(err)
	}
	if gotReceipt != r1c {
		t.Errorf("after re-put, got receipt %s, want %s", gotReceipt, r1c)
	}

	_, gotReceipt, err = store.Get(ctx, ref2)
	if err != nil {
		t.Fatal(err)
	}
	if gotReceipt != r2 {
		t.Errorf("got receipt %s for second blob, want %s", gotReceipt, r2)
	}
}
