package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/reverse"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/metrics"
)

const defaultLockTimeout = 30 * time.Second

// SearchIndex serves queries from the live generation and replaces it when
// a new one has been constructed. Every query runs against exactly one
// generation: it holds a reference from Acquire until Release, and a
// replaced generation stays mapped until its last query releases it.
type SearchIndex struct {
	files       Files
	lockTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger

	current  atomic.Pointer[Generation]
	swapMu   sync.Mutex
	switchMu sync.Mutex
	onSwitch func(*Generation)
}

// Option configures a SearchIndex.
type Option func(*SearchIndex)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SearchIndex) { s.metrics = m }
}

func WithLockTimeout(d time.Duration) Option {
	return func(s *SearchIndex) { s.lockTimeout = d }
}

// WithSwitchHook registers fn to run after every switch with the new
// generation. fn must not retain g beyond the call without acquiring it.
func WithSwitchHook(fn func(g *Generation)) Option {
	return func(s *SearchIndex) { s.onSwitch = fn }
}

// NewSearchIndex promotes a waiting next generation, if any, and opens the
// current one. An index directory with no generation yet gives an
// unavailable index that answers every query with nothing.
func NewSearchIndex(ctx context.Context, files Files, opts ...Option) (*SearchIndex, error) {
	s := &SearchIndex{
		files:       files,
		lockTimeout: defaultLockTimeout,
		logger:      slog.Default().With("component", "search-index", "dir", files.Dir),
	}
	for _, o := range opts {
		o(s)
	}
	if _, err := s.promote(ctx); err != nil {
		return nil, err
	}
	g, err := OpenGeneration(files, s.metrics)
	if err != nil {
		return nil, fmt.Errorf("opening index generation: %w", err)
	}
	s.install(g)
	s.logger.Info("search index ready", "generation", g.ID, "available", g.IsAvailable())
	return s, nil
}

// OnSwitch replaces the switch hook set by WithSwitchHook.
func (s *SearchIndex) OnSwitch(fn func(g *Generation)) {
	s.switchMu.Lock()
	s.onSwitch = fn
	s.switchMu.Unlock()
}

// Acquire returns the live generation with a reference held for the
// caller, who must Release it.
func (s *SearchIndex) Acquire() (*Generation, error) {
	for {
		g := s.current.Load()
		if g == nil {
			return nil, pkgerrors.New(pkgerrors.ErrIndexUnavailable, "search index closed")
		}
		if g.acquire() {
			return g, nil
		}
		// g was replaced and closed after the load; the next load sees
		// its successor.
	}
}

// With runs fn against the live generation.
func (s *SearchIndex) With(fn func(g *Generation) error) error {
	g, err := s.Acquire()
	if err != nil {
		return err
	}
	defer g.Release()
	return fn(g)
}

// CurrentID returns the id of the live generation.
func (s *SearchIndex) CurrentID() string {
	g, err := s.Acquire()
	if err != nil {
		return ""
	}
	defer g.Release()
	return g.ID
}

// SwitchIndex promotes a waiting next generation and makes it live. It
// reports false when there was nothing to switch to. Queries in flight keep
// the generation they started with.
func (s *SearchIndex) SwitchIndex(ctx context.Context) (bool, error) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	promoted, err := s.promote(ctx)
	if err != nil {
		s.metrics.IndexSwitched("error")
		return false, err
	}
	if !promoted {
		s.metrics.IndexSwitched("noop")
		return false, nil
	}

	g, err := OpenGeneration(s.files, s.metrics)
	if err != nil {
		s.metrics.IndexSwitched("error")
		return false, fmt.Errorf("opening promoted generation: %w", err)
	}
	prev := s.install(g)
	s.metrics.IndexSwitched("switched")
	s.logger.Info("index switched", "from", prev, "to", g.ID)
	if s.onSwitch != nil {
		s.onSwitch(g)
	}
	return true, nil
}

func (s *SearchIndex) promote(ctx context.Context) (bool, error) {
	if !s.files.HasNext() {
		return false, nil
	}
	unlock, err := s.files.Lock(ctx, s.lockTimeout)
	if err != nil {
		return false, err
	}
	defer unlock()
	return s.files.Promote()
}

// install makes g live, drops the index's reference to the generation it
// replaces and returns that generation's id.
func (s *SearchIndex) install(g *Generation) string {
	s.swapMu.Lock()
	old := s.current.Swap(g)
	s.swapMu.Unlock()

	s.metrics.SetIndexSize("full", g.Full.DocumentCount(), g.Full.NumTerms())
	s.metrics.SetIndexSize("priority", g.Prio.DocumentCount(), g.Prio.NumTerms())
	if old == nil {
		return ""
	}
	old.Release()
	return old.ID
}

// Stats describes a generation.
type Stats struct {
	Generation     string `json:"generation"`
	Available      bool   `json:"available"`
	Documents      int64  `json:"documents"`
	Terms          int    `json:"terms"`
	Postings       int64  `json:"postings"`
	PrioDocuments  int64  `json:"prioDocuments"`
	PrioTerms      int    `json:"prioTerms"`
	PrioPostings   int64  `json:"prioPostings"`
	ForwardEntries int    `json:"forwardEntries"`
}

func (s *SearchIndex) Stats() (Stats, error) {
	var st Stats
	err := s.With(func(g *Generation) error {
		st = Stats{
			Generation:     g.ID,
			Available:      g.IsAvailable(),
			Documents:      g.Full.DocumentCount(),
			Terms:          g.Full.NumTerms(),
			Postings:       g.Full.TotalPostings(),
			PrioDocuments:  g.Prio.DocumentCount(),
			PrioTerms:      g.Prio.NumTerms(),
			PrioPostings:   g.Prio.TotalPostings(),
			ForwardEntries: g.Forward.Count(),
		}
		return nil
	})
	return st, err
}

// Close stops serving. Generations still held by queries close when they
// are released.
func (s *SearchIndex) Close() error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	s.swapMu.Lock()
	old := s.current.Swap(nil)
	s.swapMu.Unlock()
	if old != nil {
		old.Release()
	}
	return nil
}

// TermCount is how many documents one term is posted for.
type TermCount struct {
	TermID        int64 `json:"termId"`
	Documents     int   `json:"documents"`
	PrioDocuments int   `json:"prioDocuments"`
}

// LargestTerms returns the n terms with the longest full posting lists,
// longest first and ties by term id.
func (s *SearchIndex) LargestTerms(n int) ([]TermCount, error) {
	if n <= 0 {
		return nil, nil
	}
	var top []TermCount
	err := s.With(func(g *Generation) error {
		err := g.Full.EachPostingList(func(termID int64, pl reverse.PostingList) error {
			c := TermCount{TermID: termID, Documents: pl.Len()}
			i := sort.Search(len(top), func(i int) bool { return top[i].Documents < c.Documents })
			if i >= n {
				return nil
			}
			top = slices.Insert(top, i, c)
			if len(top) > n {
				top = top[:n]
			}
			return nil
		})
		if err != nil {
			return err
		}
		for i := range top {
			top[i].PrioDocuments = g.Prio.NumDocuments(top[i].TermID)
		}
		return nil
	})
	return top, err
}
