package pg

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/bobg/vbs/testutil"
)

func TestBlobs(t *testing.T) {
	withStore(t, func(ctx context.Context, store *Store) {
		testutil.Blobs(ctx, t, store)
	})
}

func TestLinks(t *testing.T) {
	withStore(t, func(ctx context.Context, store *Store) {
		testutil.Links(ctx, t, store)
	})
}

const connVar = "VBS_PG_TESTING_CONN"

// The conformance tests expect empty tables,
// so each test starts by dropping them.
func withStore(t *testing.T, f func(context.Context, *Store)) {
	connstr := os.Getenv(connVar)
	if connstr == "" {
		t.Skipf("to run %s, set %s to a valid Postgresql connection string", t.Name(), connVar)
	}

	db, err := sql.Open("postgres", connstr)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()

	if _, err = db.ExecContext(ctx, `DROP TABLE IF EXISTS blobs, commits, links`); err != nil {
		t.Fatal(err)
	}

	store, err := New(ctx, db)
	if err != nil {
		t.Fatal(err)
	}

	f(ctx, store.WithClock(testutil.NewStepClock(time.Unix(1000, 0), time.Millisecond)))
}
