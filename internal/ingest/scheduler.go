package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/ranking"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/resilience"
)

const rankingsTimeout = 10 * time.Second

// Rotator closes the page a journal writer is filling so it becomes
// readable.
type Rotator interface {
	Rotate() error
}

// Scheduler periodically turns the journal into a next generation and
// announces it.
type Scheduler struct {
	Journal     Rotator
	JournalDir  string
	Constructor *index.Constructor
	// Rankings reloads domain rankings before every build. Nil keeps the
	// rankings the Constructor was created with.
	Rankings  func(ctx context.Context) (*ranking.DomainRankings, error)
	Publisher Publisher
	Interval  time.Duration
	logger    *slog.Logger
}

func (s *Scheduler) log() *slog.Logger {
	if s.logger == nil {
		s.logger = slog.Default().With("component", "construction-scheduler")
	}
	return s.logger
}

// RunOnce seals the journal page in progress, builds and announces a
// generation. An empty journal yields ErrEmptyJournal and no announcement.
func (s *Scheduler) RunOnce(ctx context.Context) (index.BuildResult, error) {
	if err := s.Journal.Rotate(); err != nil {
		return index.BuildResult{}, err
	}
	if s.Rankings != nil {
		loaded := make(chan *ranking.DomainRankings, 1)
		err := resilience.WithTimeout(ctx, rankingsTimeout, "load-rankings", func(ctx context.Context) error {
			r, err := s.Rankings(ctx)
			if err != nil {
				return err
			}
			loaded <- r
			return nil
		})
		if err != nil {
			s.log().Warn("keeping previous domain rankings", "domains", s.Constructor.Rankings.Size(), "error", err)
		} else {
			s.Constructor.Rankings = <-loaded
		}
	}

	res, err := s.Constructor.Build(ctx, func() (journal.Reader, error) {
		return journal.OpenPaged(s.JournalDir)
	})
	if err != nil {
		return res, err
	}
	if s.Publisher != nil {
		if err := AnnounceGeneration(ctx, s.Publisher, res); err != nil {
			// Searchers still pick the generation up on their next switch.
			s.log().Error("generation built but not announced", "generation", res.Generation, "error", err)
		}
	}
	return res, nil
}

// Start runs RunOnce every Interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	s.log().Info("construction scheduler started", "interval", s.Interval)
	for {
		select {
		case <-ctx.Done():
			s.log().Info("construction scheduler stopping")
			return
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			switch {
			case errors.Is(err, pkgerrors.ErrEmptyJournal):
				s.log().Debug("nothing journaled, skipping construction")
			case err != nil:
				s.log().Error("construction failed", "error", err)
			default:
				s.log().Info("generation ready", "generation", res.Generation, "entries", res.Entries)
			}
		}
	}
}
