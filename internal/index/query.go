package index

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/query"
)

// QueryBuilder plans a query whose filters can come from either the full or
// the priority index of one generation.
type QueryBuilder struct {
	g *Generation
	b *query.Builder
}

// NewQueryBuilder starts a query over sources, usually posting lists of g.
func (g *Generation) NewQueryBuilder(sources ...query.EntrySource) *QueryBuilder {
	return &QueryBuilder{g: g, b: query.NewBuilder(g.Full, sources...)}
}

func (q *QueryBuilder) AlsoFull(termIDs ...int64) *QueryBuilder {
	q.b.Also(termIDs...)
	return q
}

func (q *QueryBuilder) NotFull(termIDs ...int64) *QueryBuilder {
	q.b.Not(termIDs...)
	return q
}

func (q *QueryBuilder) AlsoPrio(termIDs ...int64) *QueryBuilder {
	for _, id := range termIDs {
		q.b.AddInclusionFilter(q.g.Prio.Also(id))
	}
	return q
}

func (q *QueryBuilder) AddInclusionFilter(f query.Filter) *QueryBuilder {
	q.b.AddInclusionFilter(f)
	return q
}

func (q *QueryBuilder) Build() *query.IndexQuery {
	return q.b.Build()
}

// Head names one of the plans a search runs, in the order they run.
type Head string

const (
	// HeadBest pairs the two rarest terms in the priority index.
	HeadBest Head = "best"
	// HeadGood starts from the rarest term's priority postings.
	HeadGood Head = "good"
	// HeadFallback reads the full index.
	HeadFallback Head = "fallback"
)

type HeadQuery struct {
	Head  Head
	Query *query.IndexQuery
}

// Terms are the term ids a search requires and excludes.
type Terms struct {
	Include []int64
	Exclude []int64
}

// CreateQueries plans the heads of a search, rarest included term first.
// Every head excludes the excluded terms and applies filters. A search
// with no included terms has no heads; one whose rarest term has no
// postings gets a single empty head.
func (g *Generation) CreateQueries(t Terms, filters ...query.Filter) []HeadQuery {
	if len(t.Include) == 0 {
		return nil
	}
	include := slices.Clone(t.Include)
	slices.SortStableFunc(include, func(a, b int64) int {
		return g.Full.NumDocuments(a) - g.Full.NumDocuments(b)
	})
	first, rest := include[0], include[1:]
	if g.Full.NumDocuments(first) == 0 {
		return []HeadQuery{{Head: HeadFallback, Query: query.Empty()}}
	}

	finish := func(q *QueryBuilder) *query.IndexQuery {
		q.NotFull(t.Exclude...)
		for _, f := range filters {
			q.AddInclusionFilter(f)
		}
		return q.Build()
	}

	heads := make([]HeadQuery, 0, 3)
	if len(rest) > 0 {
		q := g.NewQueryBuilder(g.Prio.Documents(first)).AlsoPrio(rest[0]).AlsoFull(rest[1:]...)
		heads = append(heads, HeadQuery{Head: HeadBest, Query: finish(q)})
	}
	q := g.NewQueryBuilder(g.Prio.Documents(first)).AlsoFull(rest...)
	heads = append(heads, HeadQuery{Head: HeadGood, Query: finish(q)})
	q = g.NewQueryBuilder(g.Full.Documents(first)).AlsoFull(rest...)
	heads = append(heads, HeadQuery{Head: HeadFallback, Query: finish(q)})
	return heads
}
