package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searchset"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/resilience"
)

var (
	d1 = model.EncodeDocID(1, 1)
	d2 = model.EncodeDocID(2, 1)
	d3 = model.EncodeDocID(1, 2)
	d4 = model.EncodeDocID(3, 1)
	d5 = model.EncodeDocID(2, 2)

	title = int64(model.FlagTitle)
)

func doc(id int64, quality int, words ...any) journal.Entry {
	e := journal.Entry{DocID: id, DocMeta: model.DocumentMetadata{Quality: quality}.Encode()}
	for i := 0; i+1 < len(words); i += 2 {
		e.Terms = append(e.Terms, journal.Term{
			TermID: lexicon.TermID(words[i].(string)),
			Meta:   words[i+1].(int64),
		})
	}
	return e
}

func corpus() []journal.Entry {
	return []journal.Entry{
		doc(d1, 8, "solar", title, "panel", title),
		doc(d2, 2, "solar", title, "panel", int64(0)),
		doc(d3, 9, "solar", int64(0), "panel", int64(0), "cheap", int64(0)),
		doc(d4, 7, "solar", int64(0), "panel", int64(0)),
		doc(d5, 1, "solar", int64(0)),
	}
}

func newExecutor(t *testing.T, cfg config.SearchConfig) (*Executor, *searchset.Registry) {
	t.Helper()
	return executorOver(t, cfg, corpus())
}

func executorOver(t *testing.T, cfg config.SearchConfig, entries []journal.Entry) (*Executor, *searchset.Registry) {
	t.Helper()
	dir := t.TempDir()
	c := &index.Constructor{
		Files:    index.Files{Dir: dir},
		Rankings: ranking.New(map[int]int{1: 0, 2: 5}),
		Retry:    resilience.RetryConfig{MaxAttempts: 1},
	}
	_, err := c.Build(context.Background(), func() (journal.Reader, error) {
		return journal.FromEntries(entries), nil
	})
	require.NoError(t, err)

	idx, err := index.NewSearchIndex(context.Background(), index.Files{Dir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	sets, err := searchset.LoadDir("")
	require.NoError(t, err)
	return New(idx, sets, cfg, nil), sets
}

func defaultCfg() config.SearchConfig {
	return config.SearchConfig{DefaultLimit: 10, MaxResults: 100, FetchSizeMultiplier: 2, BufferSize: 2}
}

func run(t *testing.T, e *Executor, q string, limit int) *SearchResult {
	t.Helper()
	plan, err := parser.Parse(q)
	require.NoError(t, err)
	res, err := e.Execute(context.Background(), plan, limit)
	require.NoError(t, err)
	return res
}

func ids(res *SearchResult) []int64 {
	out := make([]int64, len(res.Results))
	for i, r := range res.Results {
		out[i] = r.DocID
	}
	return out
}

func TestExecuteOrdersByRankThenHead(t *testing.T) {
	e, _ := newExecutor(t, defaultCfg())
	res := run(t, e, "solar panel", 0)

	assert.Equal(t, []int64{d1, d3, d2, d4}, ids(res))
	assert.Equal(t, 4, res.TotalHits)
	assert.False(t, res.BudgetExhausted)
	assert.NotEmpty(t, res.Generation)
	assert.Equal(t, map[string]int{"best": 1, "good": 0, "fallback": 3}, res.HeadHits)
	assert.Len(t, res.Plans, 3)

	first := res.Results[0]
	assert.Equal(t, index.HeadBest, first.Head)
	assert.Equal(t, 1, first.Domain)
	assert.Equal(t, 0, first.Rank)
	assert.Equal(t, 8, first.Meta.Quality)
	assert.Equal(t, []int64{title, title}, first.TermMeta)

	d2res := res.Results[2]
	assert.Equal(t, 5, d2res.Rank)
	assert.Equal(t, []int64{title, 0}, d2res.TermMeta)
	assert.Equal(t, model.MaxRank, res.Results[3].Rank)
}

func placed(id int64, solar, panel []int) journal.Entry {
	return journal.Entry{DocID: id, Terms: []journal.Term{
		{TermID: lexicon.TermID("solar"), Positions: solar},
		{TermID: lexicon.TermID("panel"), Positions: panel},
	}}
}

func TestExecuteOrdersByKeywordProximity(t *testing.T) {
	far := model.EncodeDocID(1, 10)
	adjacent := model.EncodeDocID(1, 11)
	unplaced := model.EncodeDocID(1, 12)
	nearby := model.EncodeDocID(1, 13)
	e, _ := executorOver(t, defaultCfg(), []journal.Entry{
		placed(far, []int{0}, []int{40}),
		placed(adjacent, []int{3, 50}, []int{52}),
		placed(unplaced, nil, nil),
		placed(nearby, []int{5}, []int{20}),
	})

	res := run(t, e, "solar panel", 0)
	assert.Equal(t, []int64{adjacent, nearby, far, unplaced}, ids(res))
	assert.Equal(t, 2, res.Results[0].Span)
	assert.Equal(t, []int{3}, res.Results[0].Windows)
	assert.Equal(t, 15, res.Results[1].Span)
	assert.Empty(t, res.Results[1].Windows)
	assert.Equal(t, 40, res.Results[2].Span)
	assert.Zero(t, res.Results[3].Span, "no recorded offsets")

	same := run(t, e, "panel solar", 0)
	assert.Equal(t, ids(res), ids(same), "keyword order does not change the ranking")

	single := run(t, e, "solar", 0)
	assert.Equal(t, []int64{far, adjacent, unplaced, nearby}, ids(single))
	for _, r := range single.Results {
		assert.Zero(t, r.Span)
		assert.Nil(t, r.Windows)
	}
}

func TestWindows(t *testing.T) {
	assert.Equal(t, [][]int{{0, 2}, nil, {1}}, windows([][]int{{1, 15, 33, 47}, nil, {16, 31}}))
}

func TestExecuteConstraints(t *testing.T) {
	e, sets := newExecutor(t, defaultCfg())

	assert.Equal(t, []int64{d1, d2, d4}, ids(run(t, e, "solar panel -cheap", 0)))
	assert.Equal(t, []int64{d1, d3}, ids(run(t, e, "solar panel q>=8", 0)))

	require.NoError(t, sets.Put(searchset.NewDomains("two", 2)))
	assert.Equal(t, []int64{d2, d5}, ids(run(t, e, "solar set:two", 0)))
	assert.Equal(t, []int64{d1, d3, d2, d5, d4}, ids(run(t, e, "solar set:unknown", 0)))
}

func TestExecuteLimit(t *testing.T) {
	e, _ := newExecutor(t, defaultCfg())

	res := run(t, e, "solar panel", 2)
	assert.Equal(t, []int64{d1, d3}, ids(res))
	assert.Equal(t, 2, res.TotalHits, "stops pulling once limit candidates are found")

	// Single-term searches fetch limit*FetchSizeMultiplier candidates.
	res = run(t, e, "solar", 2)
	assert.Equal(t, 4, res.TotalHits)
	assert.Len(t, res.Results, 2)

	cfg := defaultCfg()
	cfg.MaxResults = 1
	e, _ = newExecutor(t, cfg)
	assert.Len(t, run(t, e, "solar", 50).Results, 1)
}

func TestExecuteNothingToFind(t *testing.T) {
	e, _ := newExecutor(t, defaultCfg())

	res := run(t, e, "solar nonexistentword", 0)
	assert.Empty(t, res.Results)
	assert.Zero(t, res.TotalHits)

	res = run(t, e, "the of and", 0)
	assert.Empty(t, res.Results)
	assert.Empty(t, res.Generation, "a search with no keywords does not touch the index")
}

func TestExecuteExpiredBudgetIsPartial(t *testing.T) {
	e, _ := newExecutor(t, defaultCfg())
	plan, err := parser.Parse("solar panel")
	require.NoError(t, err)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	res, err := e.Execute(ctx, plan, 10)
	require.NoError(t, err)
	assert.True(t, res.BudgetExhausted)
	assert.Empty(t, res.Results)
}

func TestSelectTop(t *testing.T) {
	biased := func(rank int, id int64) int64 { return model.RankBiased(rank, id) }
	found := []candidate{
		{id: biased(3, 1), order: 0},
		{id: biased(0, 9), order: 2},
		{id: biased(0, 4), order: 2},
		{id: biased(0, 7), order: 1},
		{id: biased(9, 2), order: 0},
	}
	top := selectTop(found, 3)
	require.Len(t, top, 3)
	assert.Equal(t, biased(0, 7), top[0].id)
	assert.Equal(t, biased(0, 4), top[1].id)
	assert.Equal(t, biased(0, 9), top[2].id)

	assert.Len(t, selectTop(found, 10), 5)
}
