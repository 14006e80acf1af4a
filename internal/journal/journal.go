// Package journal stores the (document, term, metadata) tuples the reverse
// index is constructed from. A journal file is a flat run of 64-bit words:
//
//	header   magic, version, entry count, entry words
//	entries  docID, docMeta, n, then n pairs of termID, termMeta, then p
//	         and p words holding the gamma-coded positions of every term
//
// Journals are written once, atomically, and read sequentially.
package journal

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/sequence"
)

const (
	Magic         int64 = 0x45494a524e4c0001
	FormatVersion int64 = 2
	HeaderWords         = 4
)

// Term is one term of a document. Positions are the ascending keyword
// offsets where it occurs; terms that come only from subjects, links or the
// url have none.
type Term struct {
	TermID    int64 `json:"termId"`
	Meta      int64 `json:"meta"`
	Positions []int `json:"positions,omitempty"`
}

// Entry is one document and its terms.
type Entry struct {
	DocID   int64  `json:"docId"`
	DocMeta int64  `json:"docMeta"`
	Terms   []Term `json:"terms"`
}

// encodePositions packs the positions of every term into words.
func (e Entry) encodePositions() ([]int64, error) {
	runs := make([][]int, len(e.Terms))
	for i, t := range e.Terms {
		runs[i] = t.Positions
	}
	words, err := sequence.EncodeGammaSequences(runs)
	if err != nil {
		return nil, fmt.Errorf("positions of document %d: %w", e.DocID, err)
	}
	return words, nil
}

// EntryView is an entry read in place. It is only valid for the duration of
// the callback it was passed to.
type EntryView struct {
	DocID     int64
	DocMeta   int64
	terms     []int64
	positions []int64
}

func (v EntryView) NumTerms() int {
	return len(v.terms) / 2
}

func (v EntryView) Term(i int) (termID, meta int64) {
	return v.terms[2*i], v.terms[2*i+1]
}

// Positions decodes the position runs of all terms, in term order. Views
// handed out by Filtered carry no positions.
func (v EntryView) Positions() [][]int {
	return sequence.DecodeGammaSequences(v.positions, v.NumTerms())
}

// Entry copies the view into a standalone Entry.
func (v EntryView) Entry() Entry {
	e := Entry{DocID: v.DocID, DocMeta: v.DocMeta, Terms: make([]Term, v.NumTerms())}
	positions := v.Positions()
	for i := range e.Terms {
		e.Terms[i].TermID, e.Terms[i].Meta = v.Term(i)
		e.Terms[i].Positions = positions[i]
	}
	return e
}

// Reader is a source of journal entries.
type Reader interface {
	// ForEach calls fn with every entry in order and stops at the first error.
	ForEach(fn func(EntryView) error) error
	EntryCount() int
	Close() error
}

// Memory is a Reader over entries held in memory.
type Memory struct {
	entries []Entry
}

func FromEntries(entries []Entry) *Memory {
	return &Memory{entries: entries}
}

func (m *Memory) ForEach(fn func(EntryView) error) error {
	for _, e := range m.entries {
		terms := make([]int64, 0, 2*len(e.Terms))
		for _, t := range e.Terms {
			terms = append(terms, t.TermID, t.Meta)
		}
		positions, err := e.encodePositions()
		if err != nil {
			return err
		}
		if err := fn(EntryView{DocID: e.DocID, DocMeta: e.DocMeta, terms: terms, positions: positions}); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) EntryCount() int { return len(m.entries) }
func (m *Memory) Close() error    { return nil }

// FileReader reads one journal file through a read-only mapping.
type FileReader struct {
	path    string
	arr     *array.LongArray
	entries int
}

func OpenFile(path string) (*FileReader, error) {
	arr, err := array.MmapForReadingShared(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if arr.Size() < HeaderWords {
		arr.Close()
		return nil, fmt.Errorf("opening journal %s: truncated header", path)
	}
	if arr.Get(0) != Magic {
		arr.Close()
		return nil, fmt.Errorf("invalid journal file %s: bad magic %x", path, arr.Get(0))
	}
	if v := arr.Get(1); v != FormatVersion {
		arr.Close()
		return nil, fmt.Errorf("journal %s: unsupported version %d", path, v)
	}
	if words := arr.Get(3); words != int64(arr.Size()-HeaderWords) {
		arr.Close()
		return nil, fmt.Errorf("journal %s: header claims %d words, file holds %d", path, words, arr.Size()-HeaderWords)
	}
	return &FileReader{path: path, arr: arr, entries: int(arr.Get(2))}, nil
}

func (r *FileReader) ForEach(fn func(EntryView) error) error {
	w := r.arr.Words()
	pos := HeaderWords
	for i := 0; i < r.entries; i++ {
		termsEnd, next, ok := entryBounds(w, pos)
		if !ok {
			return fmt.Errorf("journal %s: entry %d overruns the file", r.path, i)
		}
		view := EntryView{
			DocID:     w[pos],
			DocMeta:   w[pos+1],
			terms:     w[pos+3 : termsEnd],
			positions: w[termsEnd+1 : next],
		}
		if err := fn(view); err != nil {
			return err
		}
		pos = next
	}
	return nil
}

// entryBounds returns where the term pairs and the whole entry starting at
// pos end, or false when the entry runs past the end of w.
func entryBounds(w []int64, pos int) (termsEnd, next int, ok bool) {
	if pos+3 > len(w) {
		return 0, 0, false
	}
	n := w[pos+2]
	if n < 0 || n > int64(len(w)) {
		return 0, 0, false
	}
	termsEnd = pos + 3 + 2*int(n)
	if termsEnd >= len(w) {
		return 0, 0, false
	}
	p := w[termsEnd]
	if p < 0 || p > int64(len(w)-termsEnd-1) {
		return 0, 0, false
	}
	return termsEnd, termsEnd + 1 + int(p), true
}

func (r *FileReader) EntryCount() int { return r.entries }

func (r *FileReader) Close() error {
	return r.arr.Close()
}

// Filtered wraps a Reader and drops every term whose metadata fails keep.
// Entries left without terms are skipped, and positions are not carried.
func Filtered(r Reader, keep func(termMeta int64) bool) Reader {
	return &filtered{Reader: r, keep: keep}
}

type filtered struct {
	Reader
	keep func(int64) bool
}

func (f *filtered) ForEach(fn func(EntryView) error) error {
	var buf []int64
	return f.Reader.ForEach(func(v EntryView) error {
		buf = buf[:0]
		for i := 0; i < v.NumTerms(); i++ {
			id, meta := v.Term(i)
			if f.keep(meta) {
				buf = append(buf, id, meta)
			}
		}
		if len(buf) == 0 {
			return nil
		}
		return fn(EntryView{DocID: v.DocID, DocMeta: v.DocMeta, terms: buf})
	})
}
