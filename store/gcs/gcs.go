// Package gcs implements a blob store and link index on Google Cloud Storage.
//
// Objects in the bucket are named by kind:
//
//	b:REF              blob content
//	c:REF:RECEIPT      a live put of REF; removed by deleting it
//	p:RECEIPT          the ref a put receipt refers to
//	r:RECEIPT          a removal commit
//	l:BASE:TAG:NANOS:HANDLE  a link; its target is in the object's metadata
//	h:HANDLE           the name of the l: object for a link handle
//
// REF, RECEIPT, BASE, TAG, and HANDLE are hex-encoded.
// NANOS is a zero-padded link timestamp,
// so that listing a base's links yields them oldest first.
package gcs

import (
	"context"
	"encoding/hex"
	stderrs "errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store"
)

var _ vbs.Backend = &Store{}

// Store is a Google Cloud Storage-based implementation of a blob store and link index.
type Store struct {
	bucket *storage.BucketHandle
	clock  vbs.Clock
}

// New produces a new Store.
func New(bucket *storage.BucketHandle) *Store {
	return &Store{bucket: bucket, clock: vbs.SystemClock{}}
}

// WithClock sets the clock used for timestamping commits and links.
func (s *Store) WithClock(c vbs.Clock) *Store {
	s.clock = c
	return s
}

const (
	atKey     = "at"
	targetKey = "target"
)

// Get gets the blob with hash `ref`.
func (s *Store) Get(ctx context.Context, ref vbs.Ref) (vbs.Blob, vbs.Receipt, error) {
	var (
		receipt vbs.Receipt
		latest  int64
		found   bool
		iter    = s.bucket.Objects(ctx, &storage.Query{Prefix: putPrefix(ref)})
	)
	for {
		attrs, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, vbs.Receipt{}, errors.Wrapf(err, "listing puts of %s", ref)
		}
		_, r, err := parsePutObjName(attrs.Name)
		if err != nil {
			return nil, vbs.Receipt{}, errors.Wrapf(err, "decoding object name %s", attrs.Name)
		}
		at, err := strconv.ParseInt(attrs.Metadata[atKey], 10, 64)
		if err != nil {
			return nil, vbs.Receipt{}, errors.Wrapf(err, "parsing timestamp of %s", attrs.Name)
		}
		if !found || at >= latest {
			receipt, latest, found = r, at, true
		}
	}
	if !found {
		return nil, vbs.Receipt{}, vbs.ErrNotFound
	}

	b, err := s.read(ctx, blobObjName(ref))
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return nil, vbs.Receipt{}, vbs.ErrNotFound
	}
	return b, receipt, err
}

// Put adds a blob to the store.
func (s *Store) Put(ctx context.Context, b vbs.Blob) (vbs.Ref, vbs.Receipt, error) {
	var (
		ref     = b.Ref()
		c       = vbs.Commit{Op: vbs.OpPut, Ref: ref, At: s.clock.Now()}
		receipt = c.Receipt()
	)

	err := s.write(ctx, blobObjName(ref), b, nil, true)
	if err != nil {
		return vbs.Zero, vbs.Receipt{}, err
	}
	err = s.write(ctx, receiptObjName(receipt), ref[:], nil, false)
	if err != nil {
		return vbs.Zero, vbs.Receipt{}, err
	}
	meta := map[string]string{atKey: strconv.FormatInt(c.At.UnixNano(), 10)}
	err = s.write(ctx, putObjName(ref, receipt), c.Bytes(), meta, false)
	return ref, receipt, err
}

// Remove tombstones a put commit.
func (s *Store) Remove(ctx context.Context, receipt vbs.Receipt) (vbs.Receipt, error) {
	refBytes, err := s.read(ctx, receiptObjName(receipt))
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return vbs.Receipt{}, vbs.ErrNotFound
	}
	if err != nil {
		return vbs.Receipt{}, err
	}
	ref := vbs.RefFromBytes(refBytes)

	name := putObjName(ref, receipt)
	err = s.bucket.Object(name).Delete(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return vbs.Receipt{}, vbs.ErrNotFound
	}
	if err != nil {
		return vbs.Receipt{}, errors.Wrapf(err, "deleting %s", name)
	}

	rm := vbs.Commit{Op: vbs.OpRemove, Ref: ref, Removes: receipt, At: s.clock.Now()}
	rmReceipt := rm.Receipt()
	err = s.write(ctx, removeObjName(rmReceipt), rm.Bytes(), nil, false)
	return rmReceipt, err
}

// ListRefs produces all visible blob refs in the store, in lexicographic order.
func (s *Store) ListRefs(ctx context.Context, start vbs.Ref, f func(vbs.Ref) error) error {
	// Google Cloud Storage iterators have no API for starting in the middle of a bucket.
	// But they can filter by object-name prefix.
	// So we take (the hex encoding of) `start` and repeatedly compute prefixes for the objects we want.
	// If `start` is e67a, for example, the sequence of generated prefixes is:
	//   e67b e67c e67d e67e e67f
	//   e68 e69 e6a e6b e6c e6d e6e e6f
	//   e7 e8 e9 ea eb ec ed ee ef
	//   f
	var last *vbs.Ref
	return eachHexPrefix(start.String(), false, func(prefix string) error {
		iter := s.bucket.Objects(ctx, &storage.Query{Prefix: "c:" + prefix})
		for {
			attrs, err := iter.Next()
			if stderrs.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				return err
			}
			ref, _, err := parsePutObjName(attrs.Name)
			if err != nil {
				return errors.Wrapf(err, "decoding object name %s", attrs.Name)
			}
			if last != nil && *last == ref {
				continue
			}
			last = &ref
			if err = f(ref); err != nil {
				return err
			}
		}
	})
}

// PutLink adds a link to the index.
func (s *Store) PutLink(ctx context.Context, base, target vbs.Ref, tag string) (vbs.Receipt, error) {
	var (
		c      = vbs.Commit{Op: vbs.OpLink, Ref: base, Target: target, Tag: tag, At: s.clock.Now()}
		handle = c.Receipt()
		name   = linkObjName(base, tag, c.At, handle)
		meta   = map[string]string{targetKey: target.String()}
	)

	if err := s.write(ctx, name, c.Bytes(), meta, false); err != nil {
		return vbs.Receipt{}, err
	}
	err := s.write(ctx, handleObjName(handle), []byte(name), nil, false)
	return handle, err
}

// Links gets the links from base with the given tag, oldest first.
func (s *Store) Links(ctx context.Context, base vbs.Ref, tag string) ([]vbs.Link, error) {
	var (
		result []vbs.Link
		iter   = s.bucket.Objects(ctx, &storage.Query{Prefix: linkPrefix(base, tag)})
	)
	for {
		attrs, err := iter.Next()
		if stderrs.Is(err, iterator.Done) {
			return result, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterating over link objects")
		}
		at, handle, err := parseLinkObjName(attrs.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding object name %s", attrs.Name)
		}
		target, err := vbs.RefFromHex(attrs.Metadata[targetKey])
		if err != nil {
			return nil, errors.Wrapf(err, "decoding target of %s", attrs.Name)
		}
		result = append(result, vbs.Link{
			Base:   base,
			Target: target,
			Tag:    tag,
			At:     at,
			Handle: handle,
		})
	}
}

// DeleteLink removes a link from the index.
func (s *Store) DeleteLink(ctx context.Context, handle vbs.Receipt) error {
	hname := handleObjName(handle)
	name, err := s.read(ctx, hname)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return vbs.ErrNotFound
	}
	if err != nil {
		return err
	}

	err = s.bucket.Object(string(name)).Delete(ctx)
	if stderrs.Is(err, storage.ErrObjectNotExist) {
		return vbs.ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "deleting %s", name)
	}
	err = s.bucket.Object(hname).Delete(ctx)
	return errors.Wrapf(err, "deleting %s", hname)
}

func (s *Store) read(ctx context.Context, name string) ([]byte, error) {
	r, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "reading object %s", name)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	return b, errors.Wrapf(err, "reading contents of object %s", name)
}

// write creates an object.
// If ifAbsent is true and the object already exists, write does nothing.
func (s *Store) write(ctx context.Context, name string, data []byte, meta map[string]string, ifAbsent bool) error {
	obj := s.bucket.Object(name)
	if ifAbsent {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.Metadata = meta

	_, err := w.Write(data)
	if err != nil {
		w.Close()
		return errors.Wrapf(err, "writing object %s", name)
	}

	err = w.Close()
	var e *googleapi.Error
	if ifAbsent && stderrs.As(err, &e) && e.Code == http.StatusPreconditionFailed {
		return nil
	}
	return errors.Wrapf(err, "writing object %s", name)
}

func eachHexPrefix(prefix string, incl bool, f func(string) error) error {
	prefix = strings.ToLower(prefix)
	for len(prefix) > 0 {
		end := hexval(prefix[len(prefix)-1:][0])
		if !incl {
			end++
		}
		prefix = prefix[:len(prefix)-1]
		for c := end; c < 16; c++ {
			err := f(prefix + string(hexdigit(c)))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func hexval(b byte) int {
	switch {
	case '0' <= b && b <= '9':
		return int(b - '0')
	case 'a' <= b && b <= 'f':
		return int(10 + b - 'a')
	case 'A' <= b && b <= 'F':
		return int(10 + b - 'A')
	}
	return 0
}

func hexdigit(n int) byte {
	if n < 10 {
		return byte(n + '0')
	}
	return byte(n - 10 + 'a')
}

func blobObjName(ref vbs.Ref) string {
	return "b:" + ref.String()
}

func putPrefix(ref vbs.Ref) string {
	return "c:" + ref.String() + ":"
}

func putObjName(ref vbs.Ref, receipt vbs.Receipt) string {
	return putPrefix(ref) + receipt.String()
}

var putNameRegex = regexp.MustCompile(`^c:([0-9a-f]{64}):([0-9a-f]{64})$`)

func parsePutObjName(name string) (vbs.Ref, vbs.Receipt, error) {
	m := putNameRegex.FindStringSubmatch(name)
	if len(m) < 3 {
		return vbs.Zero, vbs.Receipt{}, errors.New("malformed name")
	}
	ref, err := vbs.RefFromHex(m[1])
	if err != nil {
		return vbs.Zero, vbs.Receipt{}, errors.Wrap(err, "decoding ref")
	}
	receipt, err := vbs.ReceiptFromHex(m[2])
	return ref, receipt, errors.Wrap(err, "decoding receipt")
}

func receiptObjName(receipt vbs.Receipt) string {
	return "p:" + receipt.String()
}

func removeObjName(receipt vbs.Receipt) string {
	return "r:" + receipt.String()
}

func handleObjName(handle vbs.Receipt) string {
	return "h:" + handle.String()
}

func linkPrefix(base vbs.Ref, tag string) string {
	return "l:" + base.String() + ":" + hex.EncodeToString([]byte(tag)) + ":"
}

func linkObjName(base vbs.Ref, tag string, at time.Time, handle vbs.Receipt) string {
	return fmt.Sprintf("%s%020d:%s", linkPrefix(base, tag), at.UnixNano(), handle)
}

var linkNameRegex = regexp.MustCompile(`^l:[0-9a-f]{64}:[0-9a-f]*:(\d{20}):([0-9a-f]{64})$`)

func parseLinkObjName(name string) (time.Time, vbs.Receipt, error) {
	m := linkNameRegex.FindStringSubmatch(name)
	if len(m) < 3 {
		return time.Time{}, vbs.Receipt{}, errors.New("malformed name")
	}
	nanos, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, vbs.Receipt{}, errors.Wrap(err, "parsing int64")
	}
	handle, err := vbs.ReceiptFromHex(m[2])
	return time.Unix(0, nanos), handle, errors.Wrap(err, "decoding handle")
}

func init() {
	store.Register("gcs", func(ctx context.Context, conf map[string]interface{}) (vbs.Backend, error) {
		var options []option.ClientOption
		creds, ok := conf["creds"].(string)
		if !ok {
			return nil, errors.New(`missing "creds" parameter`)
		}
		bucketName, ok := conf["bucket"].(string)
		if !ok {
			return nil, errors.New(`missing "bucket" parameter`)
		}
		options = append(options, option.WithCredentialsFile(creds))
		c, err := storage.NewClient(ctx, options...)
		if err != nil {
			return nil, errors.Wrap(err, "creating cloud storage client")
		}
		return New(c.Bucket(bucketName)), nil
	})
}
