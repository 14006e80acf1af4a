package executor

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/query"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searchset"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/sequence"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/tracing"
)

// proximityWindow keywords of text make one window when checking whether
// all keywords of a query occur near each other.
const proximityWindow = 16

// Result is one matching document. For queries of several keywords, Span is
// the smallest distance in keywords covering one occurrence of each, 0 when
// the document has no recorded offsets, and Windows lists the text windows
// holding all of them.
type Result struct {
	DocID    int64                  `json:"docId"`
	Domain   int                    `json:"domain"`
	Rank     int                    `json:"rank"`
	Head     index.Head             `json:"head"`
	Meta     model.DocumentMetadata `json:"meta"`
	TermMeta []int64                `json:"termMeta"`
	Span     int                    `json:"span,omitempty"`
	Windows  []int                  `json:"windows,omitempty"`
}

type SearchResult struct {
	Query           string         `json:"query"`
	Generation      string         `json:"generation"`
	TotalHits       int            `json:"totalHits"`
	Results         []Result       `json:"results"`
	HeadHits        map[string]int `json:"headHits"`
	Plans           []string       `json:"plans,omitempty"`
	BudgetExhausted bool           `json:"budgetExhausted"`
}

type Executor struct {
	index   *index.SearchIndex
	sets    *searchset.Registry
	cfg     config.SearchConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(idx *index.SearchIndex, sets *searchset.Registry, cfg config.SearchConfig, m *metrics.Metrics) *Executor {
	return &Executor{
		index:   idx,
		sets:    sets,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Limit clamps a requested result count to the configured bounds.
func (e *Executor) Limit(requested int) int {
	if requested <= 0 {
		requested = e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && requested > e.cfg.MaxResults {
		requested = e.cfg.MaxResults
	}
	return max(requested, 1)
}

// budget is the configured time budget, cut short by the context deadline.
func (e *Executor) budget(ctx context.Context) query.Budget {
	var deadline time.Time
	if e.cfg.TimeBudget > 0 {
		deadline = time.Now().Add(e.cfg.TimeBudget)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if deadline.IsZero() {
		return query.Budget{}
	}
	return query.BudgetUntil(deadline)
}

// Execute runs the heads of plan against the live generation, best head
// first, until enough candidates are found or the time budget runs out.
// A budget that runs out gives a partial result, not an error.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	limit = e.Limit(limit)
	result := &SearchResult{
		Query:    plan.RawQuery,
		Results:  []Result{},
		HeadHits: map[string]int{},
	}
	if plan.IsEmpty() {
		return result, nil
	}

	g, err := e.index.Acquire()
	if err != nil {
		return nil, err
	}
	defer g.Release()
	result.Generation = g.ID

	fetch := limit
	if len(plan.Include) == 1 && e.cfg.FetchSizeMultiplier > 1 {
		fetch *= e.cfg.FetchSizeMultiplier
	}
	bufSize := e.cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 512
	}

	budget := e.budget(ctx)
	heads := g.CreateQueries(
		index.Terms{Include: plan.Include, Exclude: plan.Exclude},
		g.Forward.Filter(plan.Params),
		searchset.Filter(e.sets.Get(plan.SearchSet)),
	)

	seen := make(map[int64]struct{}, fetch)
	var found []candidate
	buf := make([]int64, bufSize)
	for order, h := range heads {
		result.Plans = append(result.Plans, string(h.Head)+": "+h.Query.Describe())
		_, span := tracing.StartChildSpan(ctx, "head."+string(h.Head))
		added := 0
		for len(found) < fetch && h.Query.HasMore() && budget.HasTimeLeft() {
			n := h.Query.GetMoreResults(buf, budget)
			for _, id := range buf[:n] {
				if _, dup := seen[id]; dup || len(found) >= fetch {
					continue
				}
				seen[id] = struct{}{}
				found = append(found, candidate{id: id, head: h.Head, order: order})
				added++
			}
		}
		result.HeadHits[string(h.Head)] = added
		span.SetAttr("results", added)
		span.End()
		e.metrics.ObserveHead(string(h.Head), added)
		if h.Query.BudgetExhausted() || budget.Expired() {
			result.BudgetExhausted = true
			break
		}
		if len(found) >= fetch {
			break
		}
	}

	result.TotalHits = len(found)
	keywords := distinctTerms(plan.Include)
	if len(keywords) > 1 {
		_, span := tracing.StartChildSpan(ctx, "proximity")
		scoreProximity(g, keywords, found)
		span.End()
	}
	top := selectTop(found, limit)
	_, span := tracing.StartChildSpan(ctx, "describe")
	result.Results = e.describe(g, plan, keywords, top)
	span.End()

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"generation", g.ID,
		"candidates", len(found),
		"results", len(result.Results),
		"budget_exhausted", result.BudgetExhausted,
	)
	return result, nil
}

// distinctTerms returns the sorted distinct ids of terms.
func distinctTerms(terms []int64) []int64 {
	out := slices.Clone(terms)
	slices.Sort(out)
	return slices.Compact(out)
}

// scoreProximity looks up where each keyword occurs in every candidate and
// records how close together they are.
func scoreProximity(g *index.Generation, keywords []int64, found []candidate) {
	ids := make([]int64, len(found))
	for i, c := range found {
		ids[i] = c.id
	}
	positions := g.Forward.Positions(ids, keywords)
	for i := range found {
		found[i].near = sequence.IntersectSequences(windows(positions[i])...)
		found[i].span = sequence.MinDistance(positions[i]...)
	}
}

// windows maps each run of keyword offsets to the ascending, distinct
// windows it touches.
func windows(runs [][]int) [][]int {
	out := make([][]int, len(runs))
	for i, run := range runs {
		var w []int
		for _, p := range run {
			if b := p / proximityWindow; len(w) == 0 || w[len(w)-1] != b {
				w = append(w, b)
			}
		}
		out[i] = w
	}
	return out
}

// describe attaches document and per-term metadata to the selected ids.
func (e *Executor) describe(g *index.Generation, plan *parser.QueryPlan, keywords []int64, top []candidate) []Result {
	ids := make([]int64, len(top))
	for i, c := range top {
		ids[i] = c.id
	}
	docMeta := g.Forward.GetMany(ids)

	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	termMeta := make([][]int64, len(plan.Include))
	for t, termID := range plan.Include {
		termMeta[t] = g.Full.GetTermMeta(termID, sorted)
	}

	var positions [][][]int
	if len(keywords) > 1 {
		positions = g.Forward.Positions(ids, keywords)
	}

	results := make([]Result, len(top))
	for i, c := range top {
		pos, _ := slices.BinarySearch(sorted, c.id)
		tm := make([]int64, len(plan.Include))
		for t := range plan.Include {
			tm[t] = termMeta[t][pos]
		}
		results[i] = Result{
			DocID:    model.RemoveRank(c.id),
			Domain:   model.DomainID(c.id),
			Rank:     model.Rank(c.id),
			Head:     c.head,
			Meta:     model.DecodeDocumentMetadata(docMeta[i]),
			TermMeta: tm,
		}
		if positions != nil {
			if c.span != math.MaxInt {
				results[i].Span = c.span
			}
			results[i].Windows = sequence.FindIntersections(windows(positions[i])...)
		}
	}
	return results
}
