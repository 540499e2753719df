package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/bobg/subcmd"
	"github.com/google/go-cmp/cmp"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/entity"
	"github.com/bobg/vbs/store/mem"
)

func run(ctx context.Context, b vbs.Backend, in string, args ...string) (string, error) {
	out := new(bytes.Buffer)
	err := subcmd.Run(ctx, maincmd{b: b, in: strings.NewReader(in), out: out}, args)
	return out.String(), err
}

func TestDocuments(t *testing.T) {
	var (
		ctx = context.Background()
		b   = mem.New()
	)

	out, err := run(ctx, b, `{"n": 1}`, "create", "-kind", "note")
	if err != nil {
		t.Fatal(err)
	}
	var created entity.Entity[document]
	if err = json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID != created.Address {
		t.Errorf("got address %s, want %s", created.Address, created.ID)
	}
	if diff := cmp.Diff(entity.Type{Name: "note", Model: "entry"}, created.Type); diff != "" {
		t.Errorf("type mismatch (-want +got):\n%s", diff)
	}

	out, err = run(ctx, b, `{"n": 2}`, "update", created.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	var updated entity.Entity[document]
	if err = json.Unmarshal([]byte(out), &updated); err != nil {
		t.Fatal(err)
	}

	out, err = run(ctx, b, "", "get", created.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	var got entity.Entity[document]
	if err = json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.Address != updated.Address {
		t.Errorf("got address %s, want %s", got.Address, updated.Address)
	}
	if diff := cmp.Diff(map[string]interface{}{"n": float64(2)}, got.Content.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}

	out, err = run(ctx, b, "", "resolve", updated.Address.String())
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != created.ID.String() {
		t.Errorf("resolve: got %s, want %s", strings.TrimSpace(out), created.ID)
	}

	out, err = run(ctx, b, "", "delete", created.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != created.Receipt.String() {
		t.Errorf("delete: got receipt %s, want %s", strings.TrimSpace(out), created.Receipt)
	}

	_, err = run(ctx, b, "", "get", created.ID.String())
	if !errors.Is(err, vbs.ErrNotFound) {
		t.Errorf("got error %v after delete, want %v", err, vbs.ErrNotFound)
	}
}

func TestLinks(t *testing.T) {
	var (
		ctx = context.Background()
		b   = mem.New()
	)

	var ids []string
	for _, body := range []string{`"a"`, `"b"`, `"c"`} {
		out, err := run(ctx, b, body, "create", "-kind", "note")
		if err != nil {
			t.Fatal(err)
		}
		var e entity.Entity[document]
		if err = json.Unmarshal([]byte(out), &e); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, e.ID.String())
	}

	if _, err := run(ctx, b, "", "link", "-tag", "child", ids[0], ids[2]); err != nil {
		t.Fatal(err)
	}
	if _, err := run(ctx, b, "", "move", "-tag", "child", ids[0], ids[1], ids[2]); err != nil {
		t.Fatal(err)
	}

	out, err := run(ctx, b, "", "links", "-tag", "child", ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("got links %q from old base, want none", out)
	}

	out, err = run(ctx, b, "", "collection", "-tag", "child", ids[1])
	if err != nil {
		t.Fatal(err)
	}
	var coll entity.Collection[entity.Entity[document]]
	if err = json.Unmarshal([]byte(out), &coll); err != nil {
		t.Fatal(err)
	}
	if len(coll.Items) != 1 || coll.Items[0].ID.String() != ids[2] {
		t.Errorf("got collection %+v, want just %s", coll.Items, ids[2])
	}

	if _, err = run(ctx, b, "", "unlink", "-tag", "child", ids[1], ids[2]); err != nil {
		t.Fatal(err)
	}
	if _, err = run(ctx, b, "", "unlink", "-tag", "child", ids[1], ids[2]); err == nil {
		t.Error("got no error unlinking a missing link")
	}
}

func TestBlobs(t *testing.T) {
	var (
		ctx = context.Background()
		b   = mem.New()
	)

	out, err := run(ctx, b, "hello", "put")
	if err != nil {
		t.Fatal(err)
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		t.Fatalf("got put output %q, want ref and receipt", out)
	}
	if want := vbs.Blob("hello").Ref().String(); fields[0] != want {
		t.Errorf("got ref %s, want %s", fields[0], want)
	}

	out, err = run(ctx, b, "", "get-blob", fields[0])
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello" {
		t.Errorf("got blob %q, want %q", out, "hello")
	}

	out, err = run(ctx, b, "", "list-refs")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != fields[0] {
		t.Errorf("got refs %q, want %s", out, fields[0])
	}

	out, err = run(ctx, b, "", "list-refs", "-start", fields[0])
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("got refs %q after the only ref, want none", out)
	}
}

func TestUnknownSubcmd(t *testing.T) {
	_, err := run(context.Background(), mem.New(), "", "frobnicate")
	if !errors.Is(err, subcmd.ErrUnknown) {
		t.Errorf("got %v, want %v", err, subcmd.ErrUnknown)
	}
}
