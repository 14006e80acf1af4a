package index

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/forward"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/reverse"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/metrics"
)

// Generation is one immutable build of the index: the full and priority
// reverse indexes and the forward metadata built from the same journal.
// Its files stay mapped until the last reference is released.
type Generation struct {
	ID      string
	Full    *reverse.Reader
	Prio    *reverse.Reader
	Forward *forward.Store

	refs    atomic.Int64
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// OpenGeneration opens the current files of f. Missing files give an
// unavailable generation. The caller owns the single initial reference.
func OpenGeneration(f Files, m *metrics.Metrics) (*Generation, error) {
	id := f.ReadID(Current)
	full, err := reverse.Open("full", f.Path(PartWords, Current), f.Path(PartDocs, Current))
	if err != nil {
		return nil, err
	}
	prio, err := reverse.Open("priority", f.Path(PartPrioWords, Current), f.Path(PartPrioDocs, Current))
	if err != nil {
		full.Close()
		return nil, err
	}
	fwd, err := forward.Open(f.Path(PartForward, Current))
	if err != nil {
		full.Close()
		prio.Close()
		return nil, err
	}

	g := &Generation{
		ID:      id,
		Full:    full,
		Prio:    prio,
		Forward: fwd,
		metrics: m,
		logger:  slog.Default().With("component", "generation", "generation", id),
	}
	g.refs.Store(1)
	m.GenerationOpened()
	return g, nil
}

// IsAvailable reports whether the full index of g has files behind it.
func (g *Generation) IsAvailable() bool {
	return g.Full.IsAvailable()
}

// acquire adds a reference unless g has already been closed.
func (g *Generation) acquire() bool {
	for {
		n := g.refs.Load()
		if n <= 0 {
			return false
		}
		if g.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference. The last release unmaps the files.
func (g *Generation) Release() {
	n := g.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic(fmt.Sprintf("generation %q released more often than acquired", g.ID))
	}
	if err := g.close(); err != nil {
		g.logger.Error("closing generation", "error", err)
		return
	}
	g.logger.Debug("generation closed")
}

func (g *Generation) close() error {
	g.metrics.GenerationClosed()
	return errors.Join(g.Full.Close(), g.Prio.Close(), g.Forward.Close())
}
