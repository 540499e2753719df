package vbs

import (
	"bytes"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

type (
	// Blob is the type of a blob.
	Blob []byte

	// Ref is the ref of a blob: its sha256 hash.
	Ref [sha256.Size]byte

	// Receipt identifies a single write to a Store or LinkIndex.
	// It is the sha256 hash of the Commit describing the write.
	Receipt [sha256.Size]byte
)

// Ref computes the Ref of a blob.
func (b Blob) Ref() Ref {
	return sha256.Sum256(b)
}

// Zero is the zero value of a Ref.
var Zero Ref

func (r Ref) String() string {
	return hex.EncodeToString(r[:])
}

func (r Ref) IsZero() bool {
	return r == Zero
}

func (r Ref) Less(other Ref) bool {
	return bytes.Compare(r[:], other[:]) < 0
}

// FromHex sets r from its hex encoding.
func (r *Ref) FromHex(s string) error {
	return fromHex(r[:], s)
}

func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Ref) UnmarshalText(text []byte) error {
	return r.FromHex(string(text))
}

// Scan implements sql.Scanner.
func (r *Ref) Scan(src interface{}) error {
	return scanHash(r[:], src)
}

// Value implements driver.Valuer.
func (r Ref) Value() (driver.Value, error) {
	return r[:], nil
}

func RefFromBytes(b []byte) Ref {
	var out Ref
	copy(out[:], b)
	return out
}

func RefFromHex(s string) (Ref, error) {
	var out Ref
	err := out.FromHex(s)
	return out, err
}

func (r Receipt) String() string {
	return hex.EncodeToString(r[:])
}

func (r Receipt) IsZero() bool {
	return r == Receipt{}
}

func (r Receipt) Less(other Receipt) bool {
	return bytes.Compare(r[:], other[:]) < 0
}

// FromHex sets r from its hex encoding.
func (r *Receipt) FromHex(s string) error {
	return fromHex(r[:], s)
}

func (r Receipt) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Receipt) UnmarshalText(text []byte) error {
	return r.FromHex(string(text))
}

// Scan implements sql.Scanner.
func (r *Receipt) Scan(src interface{}) error {
	return scanHash(r[:], src)
}

// Value implements driver.Valuer.
func (r Receipt) Value() (driver.Value, error) {
	return r[:], nil
}

func ReceiptFromBytes(b []byte) Receipt {
	var out Receipt
	copy(out[:], b)
	return out
}

func ReceiptFromHex(s string) (Receipt, error) {
	var out Receipt
	err := out.FromHex(s)
	return out, err
}

func fromHex(dst []byte, s string) error {
	if len(s) != 2*len(dst) {
		return errors.New("wrong length")
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}

func scanHash(dst []byte, src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into a hash", src)
	}
	if len(b) != len(dst) {
		return fmt.Errorf("cannot scan %d bytes into a %d-byte hash", len(b), len(dst))
	}
	copy(dst, b)
	return nil
}
