package reverse

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/btree"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/query"
)

// Reader answers term lookups against one generation of the reverse index.
// All methods are safe for concurrent use. A Reader opened over missing
// files is unavailable and answers every lookup with nothing.
type Reader struct {
	name      string
	words     *array.LongArray
	docs      *array.LongArray
	wordsTree *btree.Reader
	docsCtx   btree.Context
	header    fileHeader
	logger    *slog.Logger
}

// Open maps the two files of a generation. Missing files give an
// unavailable Reader rather than an error; files that exist but cannot be
// read as an index are an error.
func Open(name, wordsPath, docsPath string) (*Reader, error) {
	logger := slog.Default().With("component", "reverse-index", "index", name)
	r := &Reader{name: name, logger: logger}

	if !exists(wordsPath) || !exists(docsPath) {
		logger.Warn("index files missing, serving empty results", "words", wordsPath, "docs", docsPath)
		return r, nil
	}

	words, err := array.MmapForReadingShared(wordsPath)
	if err != nil {
		return nil, fmt.Errorf("opening words file: %w", err)
	}
	docs, err := array.MmapForReadingShared(docsPath)
	if err != nil {
		words.Close()
		return nil, fmt.Errorf("opening documents file: %w", err)
	}
	h, err := readFileHeader(words)
	if err != nil {
		words.Close()
		docs.Close()
		return nil, fmt.Errorf("opening %s: %w", wordsPath, err)
	}
	tree, err := btree.NewReader(words, treeContext(h.wordsBits), headerWords)
	if err != nil {
		words.Close()
		docs.Close()
		return nil, fmt.Errorf("opening words tree in %s: %w", wordsPath, err)
	}

	r.words, r.docs, r.wordsTree = words, docs, tree
	r.docsCtx = treeContext(h.docsBits)
	r.header = h
	logger.Info("index opened", "terms", tree.NumEntries(), "documents", h.documents, "postings", h.postings)
	return r, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

func (r *Reader) Name() string {
	return r.name
}

func (r *Reader) IsAvailable() bool {
	return r.wordsTree != nil
}

// postings returns the posting-list tree of termID, or nil when the term has
// no postings or the index is unavailable.
func (r *Reader) postings(termID int64) *btree.Reader {
	if r.wordsTree == nil {
		return nil
	}
	idx := r.wordsTree.FindEntry(termID)
	if idx < 0 {
		return nil
	}
	tree, err := btree.NewReader(r.docs, r.docsCtx, int(r.wordsTree.ValueAt(idx, 1)))
	if err != nil {
		r.logger.Warn("posting list unreadable", "term", termID, "error", err)
		return nil
	}
	if tree.NumEntries() == 0 {
		return nil
	}
	return tree
}

// Documents returns the term's posting list as an ascending source of
// rank-biased document ids.
func (r *Reader) Documents(termID int64) query.EntrySource {
	tree := r.postings(termID)
	if tree == nil {
		return query.EmptySource{}
	}
	return &postingSource{name: r.termName(termID), data: tree.Data(), n: tree.NumEntries()}
}

// Also returns a filter keeping documents that contain termID. A term with
// no postings gives query.NoPass.
func (r *Reader) Also(termID int64) query.Filter {
	tree := r.postings(termID)
	if tree == nil {
		return query.NoPass{}
	}
	return query.Retain{Name: r.termName(termID), List: tree.NewCursor()}
}

// Not returns a filter dropping documents that contain termID. A term with
// no postings gives query.LetThrough.
func (r *Reader) Not(termID int64) query.Filter {
	tree := r.postings(termID)
	if tree == nil {
		return query.LetThrough{}
	}
	return query.Reject{Name: r.termName(termID), List: tree.NewCursor()}
}

func (r *Reader) NumDocuments(termID int64) int {
	tree := r.postings(termID)
	if tree == nil {
		return 0
	}
	return tree.NumEntries()
}

// GetTermMeta returns the word metadata of termID for each document, 0 where
// the document lacks the term. sortedDocIDs must be strictly ascending.
func (r *Reader) GetTermMeta(termID int64, sortedDocIDs []int64) []int64 {
	tree := r.postings(termID)
	if tree == nil {
		return make([]int64, len(sortedDocIDs))
	}
	return tree.QueryData(sortedDocIDs, 1)
}

// PostingList is a read-only view of one term's postings.
type PostingList struct {
	tree *btree.Reader
}

func (p PostingList) Len() int               { return p.tree.NumEntries() }
func (p PostingList) DocID(i int) int64      { return p.tree.KeyAt(i) }
func (p PostingList) Meta(i int) int64       { return p.tree.ValueAt(i, 1) }
func (p PostingList) Contains(id int64) bool { return p.tree.FindEntry(id) >= 0 }

// EachPostingList calls fn for every term in ascending term id order.
func (r *Reader) EachPostingList(fn func(termID int64, pl PostingList) error) error {
	if r.wordsTree == nil {
		return nil
	}
	for i := 0; i < r.wordsTree.NumEntries(); i++ {
		termID := r.wordsTree.KeyAt(i)
		tree, err := btree.NewReader(r.docs, r.docsCtx, int(r.wordsTree.ValueAt(i, 1)))
		if err != nil {
			return fmt.Errorf("reading postings of term %d: %w", termID, err)
		}
		if err := fn(termID, PostingList{tree: tree}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) NumTerms() int {
	if r.wordsTree == nil {
		return 0
	}
	return r.wordsTree.NumEntries()
}

// DocumentCount is the number of distinct documents indexed.
func (r *Reader) DocumentCount() int64 {
	return r.header.documents
}

func (r *Reader) TotalPostings() int64 {
	return r.header.postings
}

func (r *Reader) termName(termID int64) string {
	return strconv.FormatInt(termID, 10)
}

// Close unmaps the files. The Reader must not be used afterwards.
func (r *Reader) Close() error {
	var errs []error
	if r.words != nil {
		errs = append(errs, r.words.Close())
	}
	if r.docs != nil {
		errs = append(errs, r.docs.Close())
	}
	return errors.Join(errs...)
}

type postingSource struct {
	name string
	data *array.LongArray
	n    int
	pos  int
}

func (s *postingSource) Read(buf []int64) int {
	k := min(len(buf), s.n-s.pos)
	for i := range k {
		buf[i] = s.data.Get((s.pos + i) * entrySize)
	}
	s.pos += k
	return k
}

func (s *postingSource) Name() string {
	return "docs(" + s.name + ")"
}
