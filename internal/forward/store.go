// Package forward keeps the document metadata word of every indexed
// document, and the gamma-coded keyword offsets of each of its terms, in a
// bolt file that is built next to each reverse index generation.
package forward

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/boltdb/bolt"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/sequence"
)

var (
	bucketMeta      = []byte("doc-meta")
	bucketPositions = []byte("positions")
)

const batchSize = 10000

// Store maps document ids, without rank, to encoded DocumentMetadata.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open opens a store read-only. A missing file gives an empty store.
func Open(path string) (*Store, error) {
	logger := slog.Default().With("component", "forward-store")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Warn("forward metadata missing, documents will have no metadata", "path", path)
		return &Store{logger: logger}, nil
	}
	db, err := bolt.Open(path, 0644, &bolt.Options{ReadOnly: true, Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening forward store %s: %w", path, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Build writes a new store at path holding the metadata and term offsets of
// every entry in j. A later entry for the same document replaces an earlier
// one, offsets included.
func Build(ctx context.Context, path string, j journal.Reader) (int, error) {
	os.Remove(path)
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return 0, fmt.Errorf("creating forward store %s: %w", path, err)
	}
	defer db.Close()

	type termOffsets struct {
		termID int64
		data   []byte
	}
	type document struct {
		id      int64
		meta    int64
		replace bool
		terms   []termOffsets
	}
	seen := roaring64.New()
	batch := make([]document, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := db.Update(func(tx *bolt.Tx) error {
			mb, err := tx.CreateBucketIfNotExists(bucketMeta)
			if err != nil {
				return err
			}
			pb, err := tx.CreateBucketIfNotExists(bucketPositions)
			if err != nil {
				return err
			}
			var v [8]byte
			for _, d := range batch {
				binary.BigEndian.PutUint64(v[:], uint64(d.meta))
				if err := mb.Put(key(d.id), v[:]); err != nil {
					return err
				}
				if d.replace {
					if err := deletePrefix(pb, key(d.id)); err != nil {
						return err
					}
				}
				for _, t := range d.terms {
					if err := pb.Put(positionsKey(d.id, t.termID), t.data); err != nil {
						return err
					}
				}
			}
			return nil
		})
		batch = batch[:0]
		return err
	}

	written := 0
	err = j.ForEach(func(e journal.EntryView) error {
		id := model.RemoveRank(e.DocID)
		d := document{id: id, meta: e.DocMeta, replace: seen.Contains(uint64(id))}
		seen.Add(uint64(id))
		for i, run := range e.Positions() {
			if len(run) == 0 {
				continue
			}
			seq, err := sequence.EncodeGammaSequence(run)
			if err != nil {
				return fmt.Errorf("document %d: %w", id, err)
			}
			termID, _ := e.Term(i)
			d.terms = append(d.terms, termOffsets{termID: termID, data: seq.Bytes()})
		}
		batch = append(batch, d)
		written++
		if len(batch) == batchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err == nil {
		err = db.Update(func(tx *bolt.Tx) error {
			if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
				return err
			}
			_, err := tx.CreateBucketIfNotExists(bucketPositions)
			return err
		})
	}
	if err != nil {
		return 0, fmt.Errorf("building forward store: %w", err)
	}
	return written, nil
}

func deletePrefix(b *bolt.Bucket, prefix []byte) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, bytes.Clone(k))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func positionsKey(docID, termID int64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k, uint64(model.RemoveRank(docID)))
	binary.BigEndian.PutUint64(k[8:], uint64(termID))
	return k
}

func key(docID int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(model.RemoveRank(docID)))
	return k[:]
}

// Get returns the encoded metadata of docID, which may be rank-biased, or 0
// when the document is unknown.
func (s *Store) Get(docID int64) int64 {
	metas := s.GetMany([]int64{docID})
	return metas[0]
}

// GetMany looks up several documents in one transaction.
func (s *Store) GetMany(docIDs []int64) []int64 {
	out := make([]int64, len(docIDs))
	if s.db == nil {
		return out
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		for i, id := range docIDs {
			if v := b.Get(key(id)); len(v) == 8 {
				out[i] = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("forward lookup failed", "error", err)
	}
	return out
}

// Positions returns the keyword offsets of each of termIDs in every one of
// docIDs, in one transaction: out[d][t] for document d and term t. Terms a
// document holds no offsets for come back nil.
func (s *Store) Positions(docIDs, termIDs []int64) [][][]int {
	out := make([][][]int, len(docIDs))
	for i := range out {
		out[i] = make([][]int, len(termIDs))
	}
	if s.db == nil {
		return out
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPositions)
		if b == nil {
			return nil
		}
		for d, docID := range docIDs {
			for t, termID := range termIDs {
				if v := b.Get(positionsKey(docID, termID)); len(v) > 0 {
					out[d][t] = sequence.GammaSequenceFromBytes(v).Values()
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("positions lookup failed", "error", err)
	}
	return out
}

func (s *Store) Count() int {
	if s.db == nil {
		return 0
	}
	n := 0
	s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketMeta); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n
}

func (s *Store) IsAvailable() bool {
	return s.db != nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
