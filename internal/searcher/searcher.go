// Package searcher answers raw search strings: it parses them, serves
// repeated searches from the result cache and runs the rest against the
// live index generation.
package searcher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searcher/parser"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/tracing"
)

type Service struct {
	index    *index.SearchIndex
	executor *executor.Executor
	cache    *cache.QueryCache
	metrics  *metrics.Metrics
}

// New creates a Service. queryCache may be nil to disable caching.
func New(idx *index.SearchIndex, exec *executor.Executor, queryCache *cache.QueryCache, m *metrics.Metrics) *Service {
	return &Service{index: idx, executor: exec, cache: queryCache, metrics: m}
}

// Search runs raw and returns at most limit results. A query id is added to
// ctx for logging when it carries none.
func (s *Service) Search(ctx context.Context, raw string, limit int) (*executor.SearchResult, error) {
	start := time.Now()
	if logger.QueryID(ctx) == "" {
		ctx = logger.WithQueryID(ctx, uuid.NewString())
	}
	log := logger.FromContext(ctx)
	ctx, root := tracing.StartSpan(ctx, "search", logger.QueryID(ctx))
	defer func() {
		root.End()
		root.Log(log)
	}()

	plan, err := parser.Parse(raw)
	if err != nil {
		s.metrics.ObserveQuery(pkgerrors.Category(err), "none", time.Since(start), 0)
		return nil, err
	}
	limit = s.executor.Limit(limit)
	root.SetAttr("keywords", len(plan.Include))

	var (
		result      *executor.SearchResult
		cacheStatus = "disabled"
	)
	if s.cache != nil && !plan.IsEmpty() {
		key := cache.Key{Generation: s.index.CurrentID(), Query: plan.Key(), Limit: limit}
		var hit bool
		result, hit, err = s.cache.GetOrCompute(ctx, key, func() (*executor.SearchResult, error) {
			return s.executor.Execute(ctx, plan, limit)
		})
		cacheStatus = "miss"
		root.SetAttr("generation", key.Generation)
		if hit {
			cacheStatus = "hit"
			s.metrics.CacheHit()
		} else {
			s.metrics.CacheMiss()
		}
	} else {
		result, err = s.executor.Execute(ctx, plan, limit)
	}

	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveQuery(pkgerrors.Category(err), cacheStatus, elapsed, 0)
		log.Error("search failed", "query", raw, "error", err)
		return nil, err
	}

	outcome := "ok"
	switch {
	case result.BudgetExhausted:
		outcome = "budget_exhausted"
	case len(result.Results) == 0:
		outcome = "zero_result"
	}
	root.SetAttr("outcome", outcome)
	root.SetAttr("cache", cacheStatus)
	s.metrics.ObserveQuery(outcome, cacheStatus, elapsed, len(result.Results))
	log.Info("search",
		"query", raw,
		"generation", result.Generation,
		"results", len(result.Results),
		"total_hits", result.TotalHits,
		"cache", cacheStatus,
		"outcome", outcome,
		"elapsed", elapsed,
	)
	return result, nil
}

// InvalidateOnSwitch returns a switch hook that drops cached results. The
// cache is keyed by generation, so this only reclaims memory early.
func (s *Service) InvalidateOnSwitch(ctx context.Context) func(*index.Generation) {
	return func(g *index.Generation) {
		if s.cache == nil {
			return
		}
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.FromContext(ctx).Warn("cache invalidation after switch failed", "generation", g.ID, "error", err)
		}
	}
}
