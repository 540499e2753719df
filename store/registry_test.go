package store_test

import (
	"context"
	"testing"

	"github.com/bobg/vbs/store"
	"github.com/bobg/vbs/store/mem"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()

	b, err := store.Create(ctx, "mem", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.(*mem.Store); !ok {
		t.Errorf("got %T, want *mem.Store", b)
	}

	if _, err = store.Create(ctx, "no-such-type", nil); err == nil {
		t.Error("got no error creating an unregistered type")
	}

	var found bool
	for _, k := range store.Keys() {
		if k == "mem" {
			found = true
		}
	}
	if !found {
		t.Errorf("mem missing from keys %v", store.Keys())
	}
}

func TestCreateNested(t *testing.T) {
	ctx := context.Background()

	b, err := store.CreateNested(ctx, map[string]interface{}{
		"nested": map[string]interface{}{"type": "mem"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.(*mem.Store); !ok {
		t.Errorf("got %T, want *mem.Store", b)
	}

	if _, err = store.CreateNested(ctx, map[string]interface{}{}); err == nil {
		t.Error("got no error with no nested config")
	}
	if _, err = store.CreateNested(ctx, map[string]interface{}{"nested": map[string]interface{}{}}); err == nil {
		t.Error("got no error with no nested type")
	}
}
