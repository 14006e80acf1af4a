// Package query composes entry sources and filters into lazily evaluated
// queries over rank-ordered document ids.
package query

import (
	"iter"
	"strings"
)

const readBatch = 256

// Postings resolves terms to filters over their posting lists.
type Postings interface {
	Also(termID int64) Filter
	Not(termID int64) Filter
}

// Builder assembles an IndexQuery. Filters run in the order they were added,
// so callers add the most selective first.
type Builder struct {
	postings Postings
	sources  []EntrySource
	filters  []Filter
}

// NewBuilder starts a query over the given sources, which are drained one
// after another.
func NewBuilder(postings Postings, sources ...EntrySource) *Builder {
	return &Builder{postings: postings, sources: sources}
}

func (b *Builder) Also(termIDs ...int64) *Builder {
	for _, id := range termIDs {
		b.filters = append(b.filters, b.postings.Also(id))
	}
	return b
}

func (b *Builder) Not(termIDs ...int64) *Builder {
	for _, id := range termIDs {
		b.filters = append(b.filters, b.postings.Not(id))
	}
	return b
}

func (b *Builder) AddInclusionFilter(f Filter) *Builder {
	b.filters = append(b.filters, f)
	return b
}

// Build plans the query. A filter that rejects everything makes the whole
// query empty without reading any source.
func (b *Builder) Build() *IndexQuery {
	plan := make([]Filter, 0, len(b.filters))
	for _, f := range b.filters {
		switch f := Simplify(f).(type) {
		case NoPass:
			return Empty()
		case LetThrough:
		case FromPredicate, Retain, Reject, AnyOf:
			plan = append(plan, f)
		}
	}
	return &IndexQuery{sources: b.sources, filters: plan}
}

// IndexQuery pulls ids from its sources and yields those every filter
// accepts, preserving source order.
type IndexQuery struct {
	sources   []EntrySource
	filters   []Filter
	current   int
	pending   []int64
	pos       int
	exhausted bool
	timedOut  bool
}

// Empty returns a query with no results.
func Empty() *IndexQuery {
	return &IndexQuery{exhausted: true}
}

func (q *IndexQuery) HasMore() bool {
	if q.exhausted {
		return false
	}
	if q.pos < len(q.pending) {
		return true
	}
	return q.fill()
}

func (q *IndexQuery) fill() bool {
	if q.pending == nil {
		q.pending = make([]int64, readBatch)
	}
	for q.current < len(q.sources) {
		n := q.sources[q.current].Read(q.pending[:cap(q.pending)])
		if n > 0 {
			q.pending = q.pending[:n]
			q.pos = 0
			return true
		}
		q.current++
	}
	q.pending = q.pending[:0]
	q.pos = 0
	q.exhausted = true
	return false
}

// GetMoreResults writes up to len(dst) accepted ids into dst and returns how
// many it wrote. The budget is checked before every candidate; when it runs
// out the call returns early and BudgetExhausted reports true.
func (q *IndexQuery) GetMoreResults(dst []int64, budget Budget) int {
	n := 0
	for n < len(dst) && q.HasMore() {
		if budget.Expired() {
			q.timedOut = true
			break
		}
		id := q.pending[q.pos]
		q.pos++
		if q.accept(id) {
			dst[n] = id
			n++
		}
	}
	return n
}

func (q *IndexQuery) accept(id int64) bool {
	for _, f := range q.filters {
		if !f.Test(id) {
			return false
		}
	}
	return true
}

// BudgetExhausted reports whether evaluation stopped because time ran out.
func (q *IndexQuery) BudgetExhausted() bool {
	return q.timedOut
}

// All iterates the remaining results within budget.
func (q *IndexQuery) All(budget Budget) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		buf := make([]int64, readBatch)
		for {
			n := q.GetMoreResults(buf, budget)
			for _, id := range buf[:n] {
				if !yield(id) {
					return
				}
			}
			if n < len(buf) && (q.timedOut || !q.HasMore()) {
				return
			}
		}
	}
}

func (q *IndexQuery) Describe() string {
	if len(q.sources) == 0 {
		return "empty"
	}
	var sb strings.Builder
	for i, s := range q.sources {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(s.Name())
	}
	for _, f := range q.filters {
		sb.WriteString(" -> ")
		sb.WriteString(f.Describe())
	}
	return sb.String()
}
