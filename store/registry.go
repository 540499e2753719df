// Package store holds the registry of Backend implementations.
// Each implementation registers a factory under a type name in its init function,
// so importing an implementation's package for side effects makes it available to Create.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/bobg/vbs"
)

// Factory creates a Backend from a configuration map.
type Factory func(context.Context, map[string]interface{}) (vbs.Backend, error)

var registry = make(map[string]Factory)

// Register makes a factory available to Create under the given key.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create creates a Backend using the factory registered under key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (vbs.Backend, error) {
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}

// CreateNested creates the Backend described by conf["nested"],
// for implementations that wrap another Backend.
func CreateNested(ctx context.Context, conf map[string]interface{}) (vbs.Backend, error) {
	nested, ok := conf["nested"].(map[string]interface{})
	if !ok {
		return nil, errors.New(`missing "nested" parameter`)
	}
	nestedType, ok := nested["type"].(string)
	if !ok {
		return nil, errors.New(`"nested" parameter missing "type"`)
	}
	b, err := Create(ctx, nestedType, nested)
	return b, errors.Wrap(err, "creating nested store")
}

// Keys lists the registered keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
