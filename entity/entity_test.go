package entity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store/mem"
	"github.com/bobg/vbs/testutil"
)

type post struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (post) EntityType() Type { return Type{Name: "post", Model: "entry"} }

type postSummary struct {
	Title string `json:"title"`
}

func (postSummary) EntityType() Type { return Type{Name: "post", Model: "summary"} }

func TestChangeModel(t *testing.T) {
	e := Entity[post]{
		ID:      vbs.Ref{1},
		Address: vbs.Ref{2},
		Receipt: vbs.Receipt{3},
		Type:    post{}.EntityType(),
		Content: post{Title: "hi", Body: "there"},
	}

	got := ChangeModel(e, func(p post) postSummary { return postSummary{Title: p.Title} })
	if got.ID != e.ID || got.Address != e.Address || got.Receipt != e.Receipt {
		t.Errorf("identity changed: %+v", got)
	}
	if got.Type != (Type{Name: "post", Model: "summary"}) {
		t.Errorf("got type %+v", got.Type)
	}
	if got.Content.Title != "hi" {
		t.Errorf("got content %+v", got.Content)
	}

	custom := ChangeModelCustom(e, func(p post) (int, string) { return len(p.Body), "length" })
	if custom.Type != (Type{Name: "post", Model: "length"}) {
		t.Errorf("got type %+v", custom.Type)
	}
	if custom.Content != 5 {
		t.Errorf("got content %d, want 5", custom.Content)
	}
}

func newTestIndex() *mem.Store {
	return mem.New().WithClock(testutil.NewStepClock(time.Unix(1000, 0), time.Millisecond))
}

func TestLinks(t *testing.T) {
	var (
		ctx  = context.Background()
		idx  = newTestIndex()
		e    = EmptyEntity{ID: vbs.Ref{0xe}}
		base = vbs.Ref{0xb}
	)

	if _, err := e.LinkFrom(ctx, idx, base, "comment"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.LinkTo(ctx, idx, base, "parent"); err != nil {
		t.Fatal(err)
	}

	links, err := idx.Links(ctx, base, "comment")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].Target != e.ID {
		t.Errorf("got links %v from base", links)
	}
	links, err = idx.Links(ctx, e.ID, "parent")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].Target != base {
		t.Errorf("got links %v from entity", links)
	}

	ok, err := e.UnlinkFrom(ctx, idx, base, "comment")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("UnlinkFrom found no link")
	}
	ok, err = e.UnlinkFrom(ctx, idx, base, "comment")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second UnlinkFrom found a link")
	}
}

func TestMoveLinkFrom(t *testing.T) {
	var (
		ctx  = context.Background()
		idx  = newTestIndex()
		e    = EmptyEntity{ID: vbs.Ref{0xe}}
		old  = vbs.Ref{0x01}
		dest = vbs.Ref{0x02}
	)

	if _, err := e.LinkFrom(ctx, idx, old, "comment"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MoveLinkFrom(ctx, idx, "comment", old, dest); err != nil {
		t.Fatal(err)
	}

	links, err := idx.Links(ctx, old, "comment")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 0 {
		t.Errorf("got %d links from old base, want 0", len(links))
	}
	links, err = idx.Links(ctx, dest, "comment")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].Target != e.ID {
		t.Errorf("got links %v from new base", links)
	}
}

// failingIndex fails every PutLink after the first n.
type failingIndex struct {
	vbs.LinkIndex
	n int
}

var errInjected = errors.New("injected")

func (f *failingIndex) PutLink(ctx context.Context, base, target vbs.Ref, tag string) (vbs.Receipt, error) {
	if f.n <= 0 {
		return vbs.Receipt{}, errInjected
	}
	f.n--
	return f.LinkIndex.PutLink(ctx, base, target, tag)
}

func TestMoveLinkFromPartial(t *testing.T) {
	var (
		ctx  = context.Background()
		idx  = &failingIndex{LinkIndex: newTestIndex(), n: 1}
		e    = EmptyEntity{ID: vbs.Ref{0xe}}
		old  = vbs.Ref{0x01}
		dest = vbs.Ref{0x02}
	)

	if _, err := e.LinkFrom(ctx, idx, old, "comment"); err != nil {
		t.Fatal(err)
	}
	_, err := e.MoveLinkFrom(ctx, idx, "comment", old, dest)

	var partial *vbs.PartialMoveError
	if !errors.As(err, &partial) {
		t.Fatalf("got error %v, want PartialMoveError", err)
	}
	if partial.Base != dest {
		t.Errorf("got base %s, want %s", partial.Base, dest)
	}
	if !errors.Is(err, errInjected) {
		t.Error("PartialMoveError does not wrap the cause")
	}

	links, err := idx.Links(ctx, old, "comment")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 0 {
		t.Errorf("got %d links from old base, want 0", len(links))
	}

	// With no link to remove, a failed move is an ordinary error.
	_, err = e.MoveLinkFrom(ctx, idx, "comment", old, dest)
	if err == nil || errors.As(err, &partial) {
		t.Errorf("got error %v, want a plain error", err)
	}
}
