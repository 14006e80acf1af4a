package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

const (
	pagePrefix = "journal-"
	pageSuffix = ".dat"
	tmpSuffix  = pageSuffix + ".tmp"
)

func pageName(n int) string {
	return fmt.Sprintf("%s%06d%s", pagePrefix, n, pageSuffix)
}

// PagedWriter spreads a journal over numbered page files in one directory,
// starting a new page every pageSize entries. Completed pages are published
// atomically, so a reader only ever sees whole pages.
//
// Put syncs the open page before returning, and a page left unpublished by
// a crash is published when the directory is next opened, so an entry Put
// returned nil for is never lost.
type PagedWriter struct {
	mu       sync.Mutex
	dir      string
	pageSize int
	syncPut  bool
	next     int
	current  *Writer
	logger   *slog.Logger
}

type PagedOption func(*PagedWriter)

// WithoutSync skips the sync after every Put. Entries of the open page may
// then be lost in a crash; meant for batch imports that are rerun on failure.
func WithoutSync() PagedOption {
	return func(p *PagedWriter) { p.syncPut = false }
}

func NewPagedWriter(dir string, pageSize int, opts ...PagedOption) (*PagedWriter, error) {
	if pageSize <= 0 {
		return nil, pkgerrors.Newf(pkgerrors.ErrInvalidInput, "journal page size must be positive, got %d", pageSize)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	p := &PagedWriter{
		dir:      dir,
		pageSize: pageSize,
		syncPut:  true,
		logger:   slog.Default().With("component", "journal"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.recoverPages(); err != nil {
		return nil, err
	}
	pages, err := listPages(dir, pageSuffix)
	if err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		p.next = pages[len(pages)-1].n + 1
	}
	return p, nil
}

func (p *PagedWriter) Put(e Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		w, err := NewWriter(filepath.Join(p.dir, pageName(p.next)))
		if err != nil {
			return err
		}
		p.current = w
		p.next++
	}
	if err := p.current.Put(e); err != nil {
		return err
	}
	if p.current.EntryCount() >= p.pageSize {
		return p.rotateLocked()
	}
	if p.syncPut {
		return p.current.Sync()
	}
	return nil
}

// recoverPages publishes every page a crashed writer left under its temporary
// name.
func (p *PagedWriter) recoverPages() error {
	pages, err := listPages(p.dir, tmpSuffix)
	if err != nil {
		return err
	}
	for _, pg := range pages {
		entries, err := recoverPage(pg.path, filepath.Join(p.dir, pageName(pg.n)))
		if err != nil {
			return err
		}
		p.logger.Warn("recovered unpublished journal page", "path", pg.path, "entries", entries)
	}
	return nil
}

// recoverPage publishes the whole entries found in an unpublished page and
// cuts off a torn last entry. A page without a whole entry is removed.
func recoverPage(tmpPath, path string) (int, error) {
	raw, err := os.ReadFile(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("reading unpublished journal page: %w", err)
	}
	w := make([]int64, len(raw)/array.WordSize)
	for i := range w {
		w[i] = int64(array.ByteOrder.Uint64(raw[i*array.WordSize:]))
	}
	pos, entries := HeaderWords, 0
	for pos < len(w) {
		_, next, ok := entryBounds(w, pos)
		if !ok {
			break
		}
		pos = next
		entries++
	}
	if entries == 0 {
		if err := os.Remove(tmpPath); err != nil {
			return 0, fmt.Errorf("removing empty journal page: %w", err)
		}
		return 0, nil
	}

	f, err := os.OpenFile(tmpPath, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("opening unpublished journal page: %w", err)
	}
	if err := f.Truncate(int64(pos * array.WordSize)); err != nil {
		f.Close()
		return 0, fmt.Errorf("truncating torn journal entry: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(int64(entries), int64(pos-HeaderWords)), 0); err != nil {
		f.Close()
		return 0, fmt.Errorf("updating journal header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return 0, fmt.Errorf("syncing journal file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing journal file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("publishing recovered journal page: %w", err)
	}
	return entries, nil
}

// Rotate publishes the open page, if any.
func (p *PagedWriter) Rotate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rotateLocked()
}

func (p *PagedWriter) rotateLocked() error {
	if p.current == nil {
		return nil
	}
	w := p.current
	p.current = nil
	if err := w.Close(); err != nil {
		return fmt.Errorf("publishing journal page: %w", err)
	}
	p.logger.Info("journal page published", "path", w.path, "entries", w.EntryCount())
	return nil
}

func (p *PagedWriter) Close() error {
	return p.Rotate()
}

type page struct {
	n    int
	path string
}

func listPages(dir, suffix string) ([]page, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing journal directory: %w", err)
	}
	var pages []page
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, pagePrefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(strings.TrimSuffix(strings.TrimPrefix(name, pagePrefix), suffix), "%d", &n); err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })
	return pages, nil
}

// OpenPaged opens every published page in dir, in page order. An empty or
// missing directory yields ErrEmptyJournal.
func OpenPaged(dir string) (Reader, error) {
	pages, err := listPages(dir, pageSuffix)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.ErrEmptyJournal, "no journal pages in %s", dir)
	}
	m := &multiReader{}
	for _, pg := range pages {
		r, err := OpenFile(pg.path)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.readers = append(m.readers, r)
	}
	return m, nil
}

type multiReader struct {
	readers []Reader
}

func (m *multiReader) ForEach(fn func(EntryView) error) error {
	for _, r := range m.readers {
		if err := r.ForEach(fn); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiReader) EntryCount() int {
	n := 0
	for _, r := range m.readers {
		n += r.EntryCount()
	}
	return n
}

func (m *multiReader) Close() error {
	var errs []error
	for _, r := range m.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
