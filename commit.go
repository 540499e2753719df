package vbs

import (
	"crypto/sha256"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Op is the kind of write a Commit records.
type Op int32

const (
	OpPut    Op = 1
	OpRemove Op = 2
	OpLink   Op = 3
	OpUnlink Op = 4
)

func (op Op) String() string {
	switch op {
	case OpPut:
		return "put"
	case OpRemove:
		return "remove"
	case OpLink:
		return "link"
	case OpUnlink:
		return "unlink"
	}
	return "unknown"
}

// Commit describes one write to a Store or LinkIndex.
// Its Receipt is the hash of its wire encoding.
//
// Which fields are meaningful depends on Op:
//
//	OpPut:    Ref (the blob), At
//	OpRemove: Ref (the blob), Removes (the put commit), At
//	OpLink:   Ref (the base), Target, Tag, At
//	OpUnlink: Ref (the base), Tag, Removes (the link handle), At
type Commit struct {
	Op      Op
	Ref     Ref
	Target  Ref
	Tag     string
	Removes Receipt
	At      time.Time
}

const (
	fieldOp      protowire.Number = 1
	fieldRef     protowire.Number = 2
	fieldTarget  protowire.Number = 3
	fieldTag     protowire.Number = 4
	fieldRemoves protowire.Number = 5
	fieldAt      protowire.Number = 6
)

// Bytes produces the deterministic protobuf wire encoding of c.
// Zero-valued fields are omitted.
func (c Commit) Bytes() []byte {
	var b []byte
	if c.Op != 0 {
		b = protowire.AppendTag(b, fieldOp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.Op))
	}
	if !c.Ref.IsZero() {
		b = protowire.AppendTag(b, fieldRef, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Ref[:])
	}
	if !c.Target.IsZero() {
		b = protowire.AppendTag(b, fieldTarget, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Target[:])
	}
	if c.Tag != "" {
		b = protowire.AppendTag(b, fieldTag, protowire.BytesType)
		b = protowire.AppendString(b, c.Tag)
	}
	if !c.Removes.IsZero() {
		b = protowire.AppendTag(b, fieldRemoves, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Removes[:])
	}
	if !c.At.IsZero() {
		b = protowire.AppendTag(b, fieldAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.At.UnixNano()))
	}
	return b
}

// Receipt computes the receipt identifying c.
func (c Commit) Receipt() Receipt {
	return sha256.Sum256(c.Bytes())
}

// ParseCommit parses the output of Commit.Bytes.
// Unknown fields are skipped.
func ParseCommit(b []byte) (Commit, error) {
	var c Commit
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Commit{}, errors.Wrap(protowire.ParseError(n), "parsing field tag")
		}
		b = b[n:]

		switch {
		case num == fieldOp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Commit{}, errors.Wrap(protowire.ParseError(n), "parsing op")
			}
			c.Op = Op(v)
			b = b[n:]

		case num == fieldAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Commit{}, errors.Wrap(protowire.ParseError(n), "parsing timestamp")
			}
			c.At = time.Unix(0, int64(v))
			b = b[n:]

		case num == fieldTag && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Commit{}, errors.Wrap(protowire.ParseError(n), "parsing tag")
			}
			c.Tag = v
			b = b[n:]

		case (num == fieldRef || num == fieldTarget || num == fieldRemoves) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Commit{}, errors.Wrapf(protowire.ParseError(n), "parsing field %d", num)
			}
			if len(v) != sha256.Size {
				return Commit{}, errors.Errorf("field %d has length %d, want %d", num, len(v), sha256.Size)
			}
			switch num {
			case fieldRef:
				c.Ref = RefFromBytes(v)
			case fieldTarget:
				c.Target = RefFromBytes(v)
			default:
				c.Removes = ReceiptFromBytes(v)
			}
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Commit{}, errors.Wrapf(protowire.ParseError(n), "skipping field %d", num)
			}
			b = b[n:]
		}
	}
	return c, nil
}

// AppendCommit appends the length-prefixed encoding of c to b.
// A sequence of such records can be read back with EachCommit.
func AppendCommit(b []byte, c Commit) []byte {
	return protowire.AppendBytes(b, c.Bytes())
}

// EachCommit parses a sequence of records written by AppendCommit,
// calling f on each one in order.
func EachCommit(b []byte, f func(Commit) error) error {
	for len(b) > 0 {
		rec, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "reading commit record")
		}
		b = b[n:]

		c, err := ParseCommit(rec)
		if err != nil {
			return err
		}
		if err = f(c); err != nil {
			return err
		}
	}
	return nil
}
