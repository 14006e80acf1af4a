package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/forward"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/reverse"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/config"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/resilience"
)

// Constructor builds the next generation of an index directory from a
// journal. It never touches the current generation.
type Constructor struct {
	Files Files
	// TmpDir holds scratch files of the conversion. Empty uses the staging
	// directory.
	TmpDir         string
	Rankings       *ranking.DomainRankings
	Sorting        array.SortingContext
	Parallelism    int
	WordsBlockBits int
	DocsBlockBits  int
	Retry          resilience.RetryConfig
	LockTimeout    time.Duration
	Metrics        *metrics.Metrics
}

// NewConstructor configures a Constructor for the index directory of cfg.
func NewConstructor(cfg *config.Config, rankings *ranking.DomainRankings, m *metrics.Metrics) *Constructor {
	return &Constructor{
		Files:    Files{Dir: cfg.Index.DataDir},
		TmpDir:   cfg.Index.TmpDir,
		Rankings: rankings,
		Sorting: array.SortingContext{
			WorkDir:         cfg.Index.TmpDir,
			MemorySortLimit: cfg.Index.MemorySortLimit,
		},
		Parallelism:    cfg.Construction.Parallelism,
		WordsBlockBits: cfg.Index.WordsBlockBits,
		DocsBlockBits:  cfg.Index.DocsBlockBits,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Construction.RetryAttempts,
			InitialDelay:   cfg.Construction.RetryDelay,
			MaxDelay:       10 * cfg.Construction.RetryDelay,
			Multiplier:     2,
			JitterFraction: 0.1,
		},
		LockTimeout: cfg.Construction.LockTimeout,
		Metrics:     m,
	}
}

// BuildResult describes a published next generation.
type BuildResult struct {
	Generation string
	Entries    int
	Full       reverse.Stats
	Prio       reverse.Stats
	Forward    int
	Elapsed    time.Duration
}

// Build reads the journal returned by open and publishes its index as the
// next generation. open is called again for every retried attempt. Build
// fails with ErrConstructionInProgress when another construction holds the
// directory, and with ErrEmptyJournal when there is nothing to index.
func (c *Constructor) Build(ctx context.Context, open func() (journal.Reader, error)) (BuildResult, error) {
	start := time.Now()
	logger := slog.Default().With("component", "constructor", "dir", c.Files.Dir)

	timeout := c.LockTimeout
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	unlock, err := c.Files.Lock(ctx, timeout)
	if err != nil {
		c.Metrics.ObserveConstruction(pkgerrors.Category(err), time.Since(start))
		return BuildResult{}, err
	}
	defer unlock()

	// Leftovers of a construction that died while holding the lock.
	if stale, _ := filepath.Glob(filepath.Join(c.Files.Dir, "staging-*")); len(stale) > 0 {
		for _, dir := range stale {
			os.RemoveAll(dir)
		}
		logger.Warn("removed stale staging directories", "count", len(stale))
	}

	staging := filepath.Join(c.Files.Dir, "staging-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return BuildResult{}, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	retry := c.Retry
	retry.Retryable = retryable
	var res BuildResult
	err = resilience.Retry(ctx, "index-construction", retry, func() error {
		var err error
		res, err = c.buildOnce(ctx, open, staging)
		return err
	})
	if err != nil {
		c.Metrics.ObserveConstruction(pkgerrors.Category(err), time.Since(start))
		logger.Error("index construction failed", "error", err)
		return BuildResult{}, err
	}

	res.Generation = c.nextID()
	if err := c.publish(staging, res.Generation); err != nil {
		c.Metrics.ObserveConstruction("error", time.Since(start))
		return BuildResult{}, err
	}
	res.Elapsed = time.Since(start)
	c.Metrics.ObserveConstruction("success", res.Elapsed)
	logger.Info("next generation published",
		"generation", res.Generation,
		"entries", res.Entries,
		"terms", res.Full.Terms,
		"postings", res.Full.Postings,
		"prio_postings", res.Prio.Postings,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, pkgerrors.ErrEmptyJournal),
		errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrCorruptIndex),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (c *Constructor) buildOnce(ctx context.Context, open func() (journal.Reader, error), staging string) (BuildResult, error) {
	j, err := open()
	if err != nil {
		return BuildResult{}, fmt.Errorf("opening journal: %w", err)
	}
	defer j.Close()
	if j.EntryCount() == 0 {
		return BuildResult{}, pkgerrors.New(pkgerrors.ErrEmptyJournal, "journal has no entries")
	}

	tmp := c.TmpDir
	if tmp == "" {
		tmp = staging
	}
	converter := func(pred func(int64) bool) *reverse.Converter {
		return &reverse.Converter{
			TmpDir:         tmp,
			Rankings:       c.Rankings,
			Sorting:        c.Sorting,
			Parallelism:    c.Parallelism,
			Predicate:      pred,
			WordsBlockBits: c.WordsBlockBits,
			DocsBlockBits:  c.DocsBlockBits,
		}
	}
	staged := func(p Part) string { return filepath.Join(staging, StagedName(p)) }

	res := BuildResult{Entries: j.EntryCount()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := converter(nil).Convert(gctx, j, staged(PartWords), staged(PartDocs))
		res.Full = st
		return err
	})
	g.Go(func() error {
		st, err := converter(model.HasPriorityFlags).Convert(gctx, j, staged(PartPrioWords), staged(PartPrioDocs))
		res.Prio = st
		return err
	})
	g.Go(func() error {
		n, err := forward.Build(gctx, staged(PartForward), j)
		res.Forward = n
		return err
	})
	if err := g.Wait(); err != nil {
		return BuildResult{}, err
	}
	return res, nil
}

// nextID returns a generation id greater than any in the directory.
func (c *Constructor) nextID() string {
	id := time.Now().UnixMilli()
	for _, v := range []Version{Current, Next} {
		if prev, err := strconv.ParseInt(c.Files.ReadID(v), 10, 64); err == nil && prev >= id {
			id = prev + 1
		}
	}
	return strconv.FormatInt(id, 10)
}

// publish moves the staged files over the next generation. The id file is
// removed first and written last, so a half-published set is never
// promoted.
func (c *Constructor) publish(staging, id string) error {
	if err := os.Remove(c.Files.Path(PartID, Next)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("retracting previous next generation: %w", err)
	}
	idPath := filepath.Join(staging, StagedName(PartID))
	if err := os.WriteFile(idPath, []byte(id+"\n"), 0644); err != nil {
		return fmt.Errorf("writing generation id: %w", err)
	}
	for _, p := range parts {
		if err := os.Rename(filepath.Join(staging, StagedName(p)), c.Files.Path(p, Next)); err != nil {
			return fmt.Errorf("publishing %s: %w", p, err)
		}
	}
	return nil
}
