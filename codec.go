package vbs

import (
	canonicaljson "github.com/gibson042/canonicaljson-go"
	"github.com/pkg/errors"
)

// Encode produces the canonical encoding of v:
// JSON with sorted object keys, canonical number formatting,
// and no insignificant whitespace.
// Equal values always encode to identical bytes,
// so the Ref of the result serves as v's content hash.
func Encode(v interface{}) (Blob, error) {
	b, err := canonicaljson.Marshal(v)
	return Blob(b), errors.Wrap(err, "encoding canonical JSON")
}

// Hash computes the content hash of v.
func Hash(v interface{}) (Ref, error) {
	b, err := Encode(v)
	if err != nil {
		return Zero, err
	}
	return b.Ref(), nil
}

// decode parses b into v.
// Decoding is permissive:
// unknown fields are ignored and missing ones are left zero.
func decode(b Blob, v interface{}) error {
	return canonicaljson.Unmarshal(b, v)
}
