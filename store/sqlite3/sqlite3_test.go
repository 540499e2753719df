package sqlite3

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/testutil"
)

func TestBlobs(t *testing.T) {
	ctx := context.Background()
	err := withTestStore(ctx, func(s *Store) error {
		testutil.Blobs(ctx, t, s)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLinks(t *testing.T) {
	ctx := context.Background()
	err := withTestStore(ctx, func(s *Store) error {
		testutil.Links(ctx, t, s)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestReopen(t *testing.T) {
	ctx := context.Background()

	f, err := os.CreateTemp("", "vbssqlite3test")
	if err != nil {
		t.Fatal(err)
	}
	tmpfile := f.Name()
	f.Close()
	defer os.Remove(tmpfile)

	open := func() (*sql.DB, *Store) {
		db, err := sql.Open("sqlite3", tmpfile)
		if err != nil {
			t.Fatal(err)
		}
		s, err := New(ctx, db)
		if err != nil {
			t.Fatal(err)
		}
		return db, s
	}

	db, s := open()
	ref, receipt, err := s.Put(ctx, vbs.Blob("persistent"))
	if err != nil {
		t.Fatal(err)
	}
	handle, err := s.PutLink(ctx, ref, ref, "self")
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, s = open()
	defer db.Close()

	_, gotReceipt, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if gotReceipt != receipt {
		t.Errorf("got receipt %s, want %s", gotReceipt, receipt)
	}
	links, err := s.Links(ctx, ref, "self")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].Handle != handle {
		t.Errorf("got links %v, want one with handle %s", links, handle)
	}
}

func withTestStore(ctx context.Context, fn func(*Store) error) error {
	f, err := os.CreateTemp("", "vbssqlite3test")
	if err != nil {
		return err
	}

	tmpfile := f.Name()
	f.Close()
	defer os.Remove(tmpfile)

	db, err := sql.Open("sqlite3", f.Name())
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := New(ctx, db)
	if err != nil {
		return err
	}

	return fn(s.WithClock(testutil.NewStepClock(time.Unix(1000, 0), time.Millisecond)))
}
