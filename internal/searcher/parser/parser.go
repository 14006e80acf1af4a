// Package parser turns a raw search string into the term ids and document
// constraints a search runs with.
//
// Words are required unless prefixed with '-' or preceded by NOT. AND is
// accepted and ignored. Constraints on document metadata are written as
// q>5, year>=2010, size<100 or rank<=20, and set:name restricts the search
// to a named search set.
package parser

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/forward"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/searchset"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

type QueryPlan struct {
	RawQuery  string              `json:"query"`
	Keywords  []string            `json:"keywords"`
	Excludes  []string            `json:"excludes,omitempty"`
	Include   []int64             `json:"-"`
	Exclude   []int64             `json:"-"`
	Params    forward.QueryParams `json:"-"`
	SearchSet string              `json:"searchSet"`
}

// IsEmpty reports whether the plan requires no term.
func (p *QueryPlan) IsEmpty() bool {
	return len(p.Include) == 0
}

// Key is a canonical form of the plan: two queries with the same key
// return the same results.
func (p *QueryPlan) Key() string {
	kw := slices.Clone(p.Keywords)
	ex := slices.Clone(p.Excludes)
	slices.Sort(kw)
	slices.Sort(ex)
	kw = slices.Compact(kw)
	ex = slices.Compact(ex)
	parts := []string{strings.Join(kw, ",")}
	if len(ex) > 0 {
		parts = append(parts, "NOT:"+strings.Join(ex, ","))
	}
	if !p.Params.IsEmpty() {
		parts = append(parts, p.Params.String())
	}
	parts = append(parts, "SET:"+p.SearchSet)
	return strings.Join(parts, "|")
}

var limitFields = []string{"quality", "year", "size", "rank", "q"}

func Parse(query string) (*QueryPlan, error) {
	plan := &QueryPlan{
		RawQuery:  query,
		Keywords:  make([]string, 0),
		SearchSet: searchset.AnyName,
	}
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch strings.ToUpper(word) {
		case "AND":
			continue
		case "NOT":
			excludeNext = true
			continue
		}

		if name, ok := strings.CutPrefix(word, "set:"); ok {
			if name == "" {
				return nil, pkgerrors.New(pkgerrors.ErrInvalidInput, "empty search set name")
			}
			plan.SearchSet = name
			continue
		}
		if handled, err := parseLimit(plan, word); handled || err != nil {
			if err != nil {
				return nil, err
			}
			continue
		}

		exclude := excludeNext
		excludeNext = false
		if rest, ok := strings.CutPrefix(word, "-"); ok && rest != "" {
			exclude, word = true, rest
		}
		// A word like "e-mail" yields several keywords; all of them apply.
		for _, tk := range lexicon.Tokenize(word) {
			if exclude {
				plan.Excludes = append(plan.Excludes, tk.Term)
				plan.Exclude = append(plan.Exclude, tk.TermID)
			} else {
				plan.Keywords = append(plan.Keywords, tk.Term)
				plan.Include = append(plan.Include, tk.TermID)
			}
		}
	}
	return plan, nil
}

// parseLimit reports whether word is a metadata constraint and, if so,
// stores it in plan.
func parseLimit(plan *QueryPlan, word string) (bool, error) {
	lower := strings.ToLower(word)
	for _, field := range limitFields {
		rest, ok := strings.CutPrefix(lower, field)
		if !ok || rest == "" || !strings.ContainsAny(rest[:1], "<>=") {
			continue
		}
		limit, err := forward.ParseLimit(rest)
		if err != nil {
			return true, fmt.Errorf("constraint %q: %w", word, err)
		}
		switch field {
		case "q", "quality":
			plan.Params.Quality = limit
		case "year":
			plan.Params.Year = limit
		case "size":
			plan.Params.Size = limit
		case "rank":
			plan.Params.Rank = limit
		}
		return true, nil
	}
	return false, nil
}
