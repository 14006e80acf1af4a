package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
)

// Writer appends entries to a single journal file. Nothing is visible at the
// final path until Close succeeds; the file is built under a .tmp name and
// renamed into place.
type Writer struct {
	path    string
	tmpPath string
	f       *os.File
	bw      *bufio.Writer
	buf     [8]byte
	entries int64
	words   int64
	closed  bool
}

func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("creating temp journal file: %w", err)
	}
	w := &Writer{path: path, tmpPath: tmpPath, f: f, bw: bufio.NewWriterSize(f, 1<<20)}
	for range HeaderWords {
		if err := w.putWord(0); err != nil {
			w.Abort()
			return nil, fmt.Errorf("writing journal header: %w", err)
		}
	}
	return w, nil
}

// Put appends one entry. An entry whose positions cannot be encoded is
// rejected before any of it is written.
func (w *Writer) Put(e Entry) error {
	if w.closed {
		return fmt.Errorf("journal %s: write after close", w.path)
	}
	positions, err := e.encodePositions()
	if err != nil {
		return err
	}
	if err := w.putWord(e.DocID); err != nil {
		return err
	}
	if err := w.putWord(e.DocMeta); err != nil {
		return err
	}
	if err := w.putWord(int64(len(e.Terms))); err != nil {
		return err
	}
	for _, t := range e.Terms {
		if err := w.putWord(t.TermID); err != nil {
			return err
		}
		if err := w.putWord(t.Meta); err != nil {
			return err
		}
	}
	if err := w.putWord(int64(len(positions))); err != nil {
		return err
	}
	for _, v := range positions {
		if err := w.putWord(v); err != nil {
			return err
		}
	}
	w.entries++
	w.words += int64(4 + 2*len(e.Terms) + len(positions))
	return nil
}

// Sync makes every entry put so far durable in the temporary file, where a
// PagedWriter reopened after a crash finds it.
func (w *Writer) Sync() error {
	if w.closed {
		return fmt.Errorf("journal %s: sync after close", w.path)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flushing journal %s: %w", w.path, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("syncing journal %s: %w", w.path, err)
	}
	return nil
}

func (w *Writer) EntryCount() int {
	return int(w.entries)
}

func (w *Writer) putWord(v int64) error {
	array.ByteOrder.PutUint64(w.buf[:], uint64(v))
	if _, err := w.bw.Write(w.buf[:]); err != nil {
		return fmt.Errorf("writing journal %s: %w", w.path, err)
	}
	return nil
}

// Close fills in the header, syncs and publishes the file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.bw.Flush(); err != nil {
		w.discard()
		return fmt.Errorf("flushing journal: %w", err)
	}
	if _, err := w.f.WriteAt(encodeHeader(w.entries, w.words), 0); err != nil {
		w.discard()
		return fmt.Errorf("updating journal header: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("syncing journal file: %w", err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("closing journal file: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("renaming journal file: %w", err)
	}
	return nil
}

func encodeHeader(entries, words int64) []byte {
	header := make([]byte, HeaderWords*array.WordSize)
	for i, v := range []int64{Magic, FormatVersion, entries, words} {
		array.ByteOrder.PutUint64(header[i*array.WordSize:], uint64(v))
	}
	return header
}

// Abort drops everything written so far.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.discard()
}

func (w *Writer) discard() {
	w.f.Close()
	os.Remove(w.tmpPath)
}

// WriteFile writes entries as a complete journal at path.
func WriteFile(path string, entries []Entry) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.Put(e); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Close()
}
