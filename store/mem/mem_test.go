package mem

import (
	"context"
	"testing"
	"time"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/testutil"
)

func newTestStore() *Store {
	return New().WithClock(testutil.NewStepClock(time.Unix(1000, 0), time.Millisecond))
}

func TestBlobs(t *testing.T) {
	testutil.Blobs(context.Background(), t, newTestStore())
}

func TestLinks(t *testing.T) {
	testutil.Links(context.Background(), t, newTestStore())
}

func TestAllRefs(t *testing.T) {
	testutil.AllRefs(context.Background(), t, func() vbs.Store { return newTestStore() })
}
