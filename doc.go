// Package vbs is a versioned-entity layer over a content-addressable blob store.
//
// A blob store stores arbitrarily sized sequences of bytes,
// or _blobs_,
// and indexes them by their hash,
// which is used as a unique key.
// This key is called the blob’s reference, or _ref_.
// This module uses sha2-256.
//
// Content addressability has some desirable properties,
// but it does mean that if some data changes,
// so does its ref,
// which can make it tricky to keep track of a piece of data over its lifetime.
// So alongside the blob store,
// this module uses a link index:
// a set of directed, tagged, timestamped edges between refs.
//
// An _entity_ is a logical object whose first version's ref is its permanent ID.
// Each later version is a new blob,
// joined to the ID by a pair of links:
// "update" from the ID to the new version,
// and "origin" from the new version back to the ID.
// The current version is the target of the newest "update" link.
// See the version and crud subpackages.
//
// Stored values are encoded as canonical JSON (see Encode),
// so a value's ref can be recomputed from the value itself.
// That is how CheckType tells whether a blob really holds the type a caller expects.
//
// Backends implementing Store and LinkIndex live beneath the store subpackage.
package vbs
