package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bobg/vbs"
)

// Links tests creating, querying, and deleting links in a LinkIndex.
// The index should be empty
// and its clock should produce strictly increasing readings.
func Links(ctx context.Context, t *testing.T, idx vbs.LinkIndex) {
	var (
		base  = vbs.Ref{0xba}
		other = vbs.Ref{0x0b}
		t1    = vbs.Ref{0x01}
		t2    = vbs.Ref{0x02}
		t3    = vbs.Ref{0x03}
	)

	put := func(base, target vbs.Ref, tag string) vbs.Receipt {
		h, err := idx.PutLink(ctx, base, target, tag)
		if err != nil {
			t.Fatal(err)
		}
		return h
	}

	h1 := put(base, t1, "comment")
	h2 := put(base, t2, "comment")
	h3 := put(base, t3, "other")
	put(other, t1, "comment")
	h4 := put(base, t1, "comment") // duplicate edge

	got, err := idx.Links(ctx, base, "comment")
	if err != nil {
		t.Fatal(err)
	}

	type edge struct {
		Base, Target vbs.Ref
		Tag          string
		Handle       vbs.Receipt
	}
	edges := func(links []vbs.Link) []edge {
		var result []edge
		for _, l := range links {
			result = append(result, edge{Base: l.Base, Target: l.Target, Tag: l.Tag, Handle: l.Handle})
		}
		return result
	}

	want := []edge{
		{Base: base, Target: t1, Tag: "comment", Handle: h1},
		{Base: base, Target: t2, Tag: "comment", Handle: h2},
		{Base: base, Target: t1, Tag: "comment", Handle: h4},
	}
	if diff := cmp.Diff(want, edges(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		if !got[i].At.After(got[i-1].At) {
			t.Errorf("link %d timestamp %s is not after link %d timestamp %s", i, got[i].At, i-1, got[i-1].At)
		}
	}

	got, err = idx.Links(ctx, base, "other")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]edge{{Base: base, Target: t3, Tag: "other", Handle: h3}}, edges(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	got, err = idx.Links(ctx, t1, "comment")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d links from a non-base, want 0", len(got))
	}

	if err = idx.DeleteLink(ctx, h1); err != nil {
		t.Fatal(err)
	}
	got, err = idx.Links(ctx, base, "comment")
	if err != nil {
		t.Fatal(err)
	}
	want = []edge{
		{Base: base, Target: t2, Tag: "comment", Handle: h2},
		{Base: base, Target: t1, Tag: "comment", Handle: h4},
	}
	if diff := cmp.Diff(want, edges(got)); diff != "" {
		t.Errorf("after delete, mismatch (-want +got):\n%s", diff)
	}

	if err = idx.DeleteLink(ctx, h1); !errors.Is(err, vbs.ErrNotFound) {
		t.Errorf("got error %v deleting twice, want ErrNotFound", err)
	}
}
