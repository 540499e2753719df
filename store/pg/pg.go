// Package pg implements a blob store and link index in a Postgresql database.
package pg

import (
	"context"
	"database/sql"
	stderrs "errors"
	"time"

	"github.com/bobg/sqlutil"
	_ "github.com/lib/pq" // register the postgres type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store"
)

var _ vbs.Backend = &Store{}

// Store is a Postgresql-based blob store and link index.
type Store struct {
	db    *sql.DB
	clock vbs.Clock
}

// Schema is the SQL that New executes.
// It creates the `blobs`, `commits`, and `links` tables if they do not exist.
// (If they do exist, they must have the columns, constraints, and indexing described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS blobs (
  ref BYTEA PRIMARY KEY NOT NULL,
  data BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS commits (
  seq BIGSERIAL NOT NULL,
  receipt BYTEA PRIMARY KEY NOT NULL,
  op INTEGER NOT NULL,
  ref BYTEA NOT NULL,
  removes BYTEA,
  removed_by BYTEA,
  at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS commit_ref_idx ON commits (ref);

CREATE TABLE IF NOT EXISTS links (
  seq BIGSERIAL NOT NULL,
  handle BYTEA PRIMARY KEY NOT NULL,
  base BYTEA NOT NULL,
  target BYTEA NOT NULL,
  tag TEXT NOT NULL,
  at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS link_idx ON links (base, tag);
`

// New produces a new Store using `db` for storage.
// It expects to create tables `blobs`, `commits`, and `links`,
// or for those tables already to exist with the correct schema.
// (See variable Schema.)
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db, clock: vbs.SystemClock{}}, errors.Wrap(err, "creating schema")
}

// WithClock sets the clock used for timestamping commits and links.
func (s *Store) WithClock(c vbs.Clock) *Store {
	s.clock = c
	return s
}

// Postgresql timestamps have microsecond resolution.
// Truncating before computing receipts keeps stored links identical to the commits they came from.
func (s *Store) now() time.Time {
	return s.clock.Now().Truncate(time.Microsecond)
}

// Get gets the blob with hash `ref`.
func (s *Store) Get(ctx context.Context, ref vbs.Ref) (vbs.Blob, vbs.Receipt, error) {
	const q = `SELECT blobs.data, commits.receipt
		FROM blobs JOIN commits ON commits.ref = blobs.ref
		WHERE blobs.ref = $1 AND commits.op = $2 AND commits.removed_by IS NULL
		ORDER BY commits.seq DESC LIMIT 1`

	var (
		data    []byte
		receipt vbs.Receipt
	)
	err := s.db.QueryRowContext(ctx, q, ref, vbs.OpPut).Scan(&data, &receipt)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, vbs.Receipt{}, vbs.ErrNotFound
	}
	if err != nil {
		return nil, vbs.Receipt{}, errors.Wrapf(err, "getting blob %s", ref)
	}
	return vbs.Blob(data), receipt, nil
}

// Put adds a blob to the store.
func (s *Store) Put(ctx context.Context, b vbs.Blob) (vbs.Ref, vbs.Receipt, error) {
	var (
		ref     = b.Ref()
		c       = vbs.Commit{Op: vbs.OpPut, Ref: ref, At: s.now()}
		receipt = c.Receipt()
	)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		const q = `INSERT INTO blobs (ref, data) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, q, ref, []byte(b)); err != nil {
			return errors.Wrap(err, "inserting blob")
		}

		const q2 = `INSERT INTO commits (receipt, op, ref, at) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`
		_, err := tx.ExecContext(ctx, q2, receipt, c.Op, ref, c.At)
		return errors.Wrap(err, "inserting commit")
	})

	return ref, receipt, err
}

// Remove tombstones a put commit.
func (s *Store) Remove(ctx context.Context, receipt vbs.Receipt) (vbs.Receipt, error) {
	var rmReceipt vbs.Receipt

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		const q = `SELECT ref FROM commits WHERE receipt = $1 AND op = $2 AND removed_by IS NULL FOR UPDATE`

		var ref vbs.Ref
		err := tx.QueryRowContext(ctx, q, receipt, vbs.OpPut).Scan(&ref)
		if stderrs.Is(err, sql.ErrNoRows) {
			return vbs.ErrNotFound
		}
		if err != nil {
			return errors.Wrapf(err, "finding commit %s", receipt)
		}

		rm := vbs.Commit{Op: vbs.OpRemove, Ref: ref, Removes: receipt, At: s.now()}
		rmReceipt = rm.Receipt()

		const q2 = `INSERT INTO commits (receipt, op, ref, removes, at) VALUES ($1, $2, $3, $4, $5)`
		if _, err = tx.ExecContext(ctx, q2, rmReceipt, rm.Op, ref, receipt, rm.At); err != nil {
			return errors.Wrap(err, "inserting removal commit")
		}

		const q3 = `UPDATE commits SET removed_by = $1 WHERE receipt = $2`
		_, err = tx.ExecContext(ctx, q3, rmReceipt, receipt)
		return errors.Wrap(err, "marking commit removed")
	})

	return rmReceipt, err
}

// ListRefs produces all visible blob refs in the store, in lexicographic order.
func (s *Store) ListRefs(ctx context.Context, start vbs.Ref, f func(vbs.Ref) error) error {
	const q = `SELECT DISTINCT ref FROM commits
		WHERE op = $1 AND removed_by IS NULL AND ref > $2
		ORDER BY ref`
	return sqlutil.ForQueryRows(ctx, s.db, q, vbs.OpPut, start, f)
}

// PutLink adds a link to the index.
func (s *Store) PutLink(ctx context.Context, base, target vbs.Ref, tag string) (vbs.Receipt, error) {
	var (
		c      = vbs.Commit{Op: vbs.OpLink, Ref: base, Target: target, Tag: tag, At: s.now()}
		handle = c.Receipt()
	)

	const q = `INSERT INTO links (handle, base, target, tag, at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`
	_, err := s.db.ExecContext(ctx, q, handle, base, target, tag, c.At)
	return handle, errors.Wrap(err, "inserting link")
}

// Links gets the links from base with the given tag, oldest first.
func (s *Store) Links(ctx context.Context, base vbs.Ref, tag string) ([]vbs.Link, error) {
	const q = `SELECT handle, target, at FROM links WHERE base = $1 AND tag = $2 ORDER BY seq`

	var result []vbs.Link
	err := sqlutil.ForQueryRows(ctx, s.db, q, base, tag, func(handle vbs.Receipt, target vbs.Ref, at time.Time) {
		result = append(result, vbs.Link{
			Base:   base,
			Target: target,
			Tag:    tag,
			At:     at,
			Handle: handle,
		})
	})
	return result, errors.Wrapf(err, "querying %s links from %s", tag, base)
}

// DeleteLink removes a link from the index.
func (s *Store) DeleteLink(ctx context.Context, handle vbs.Receipt) error {
	const q = `DELETE FROM links WHERE handle = $1`

	res, err := s.db.ExecContext(ctx, q, handle)
	if err != nil {
		return errors.Wrapf(err, "deleting link %s", handle)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if aff == 0 {
		return vbs.ErrNotFound
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, f func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func init() {
	store.Register("pg", func(ctx context.Context, conf map[string]interface{}) (vbs.Backend, error) {
		conn, ok := conf["conn"].(string)
		if !ok {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
