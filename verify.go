package vbs

import "fmt"

// Decode parses the blob stored at ref as a T.
// It does not check that the blob really is a T;
// for that, use CheckType.
func Decode[T any](ref Ref, b Blob) (T, error) {
	var v T
	if err := decode(b, &v); err != nil {
		return v, &DeserializationError{Ref: ref, Shape: Shape[T]()}
	}
	return v, nil
}

// CheckType parses the blob stored at ref as a T
// and verifies that it really is one.
//
// A permissive decoder can parse bytes belonging to some other type,
// e.g. when T's fields are a subset of the stored ones.
// So after decoding,
// CheckType re-encodes the value and compares its hash to ref.
// A mismatch produces a *WrongEntryTypeError.
func CheckType[T any](ref Ref, b Blob) (T, error) {
	v, err := Decode[T](ref, b)
	if err != nil {
		return v, err
	}
	rehash, err := Hash(v)
	if err != nil {
		return v, &DeserializationError{Ref: ref, Shape: Shape[T]()}
	}
	if rehash != ref {
		return v, &WrongEntryTypeError{Ref: ref, Rehash: rehash, Shape: Shape[T]()}
	}
	return v, nil
}

// Shape names the Go type T for error messages.
func Shape[T any]() string {
	var v T
	return fmt.Sprintf("%T", v)
}
