package vbs

import "fmt"

// NotFoundError reports that no blob is visible at an address
// the caller expected to exist.
type NotFoundError struct {
	Ref Ref
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entry not found for address %s", e.Ref)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotOriginEntryError reports that an operation requiring an entity's identity
// was given the address of a later version.
type NotOriginEntryError struct {
	Ref    Ref
	Origin Ref
}

func (e *NotOriginEntryError) Error() string {
	return fmt.Sprintf("entry address %s is an update; use origin address %s as entry ID", e.Ref, e.Origin)
}

// MultipleOriginsError reports more than one distinct origin link from a single address.
type MultipleOriginsError struct {
	Ref Ref
}

func (e *MultipleOriginsError) Error() string {
	return fmt.Sprintf("found multiple origin links for entry %s", e.Ref)
}

// DeserializationError reports a blob that could not be decoded as the expected type.
type DeserializationError struct {
	Ref   Ref
	Shape string
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("failed to deserialize entry %s to type %s", e.Ref, e.Shape)
}

// WrongEntryTypeError reports a blob that decoded as the expected type
// but whose re-encoding does not hash back to its address.
type WrongEntryTypeError struct {
	Ref    Ref
	Rehash Ref
	Shape  string
}

func (e *WrongEntryTypeError) Error() string {
	return fmt.Sprintf("deserialized entry to wrong type %s; hash mismatch: addr=%s, rehash=%s", e.Shape, e.Ref, e.Rehash)
}

// LinkBaseWrongTypeError reports a collection query whose base is not of the expected type.
type LinkBaseWrongTypeError struct {
	Ref   Ref
	Shape string
}

func (e *LinkBaseWrongTypeError) Error() string {
	return fmt.Sprintf("link base %s is not the expected type %s", e.Ref, e.Shape)
}

// PartialMoveError reports a link move whose old link was deleted
// but whose new link could not be created.
// The relationship no longer exists from either base.
type PartialMoveError struct {
	Base Ref
	Err  error
}

func (e *PartialMoveError) Error() string {
	return fmt.Sprintf("removed old link but could not create new link from %s: %s", e.Base, e.Err)
}

func (e *PartialMoveError) Unwrap() error { return e.Err }
