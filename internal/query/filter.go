package query

import (
	"fmt"
	"strings"
)

// Filter decides whether a candidate document id stays in the result. The
// set of filters is closed: NoPass, LetThrough, FromPredicate, Retain, Reject
// and AnyOf.
type Filter interface {
	Test(docID int64) bool
	Describe() string
	filter()
}

// Membership answers whether a document id is in a posting list. Membership
// values may keep a position between calls and are tested with ascending ids.
type Membership interface {
	Contains(docID int64) bool
}

// NoPass rejects everything. A query holding one is empty.
type NoPass struct{}

func (NoPass) Test(int64) bool  { return false }
func (NoPass) Describe() string { return "none" }
func (NoPass) filter()          {}

// LetThrough accepts everything and is dropped from query plans.
type LetThrough struct{}

func (LetThrough) Test(int64) bool  { return true }
func (LetThrough) Describe() string { return "all" }
func (LetThrough) filter()          {}

// FromPredicate wraps an arbitrary test.
type FromPredicate struct {
	Name string
	Fn   func(docID int64) bool
}

func (p FromPredicate) Test(docID int64) bool { return p.Fn(docID) }
func (p FromPredicate) Describe() string      { return p.Name }
func (FromPredicate) filter()                 {}

// Retain keeps ids that are in List.
type Retain struct {
	Name string
	List Membership
}

func (r Retain) Test(docID int64) bool { return r.List.Contains(docID) }
func (r Retain) Describe() string      { return "also(" + r.Name + ")" }
func (Retain) filter()                 {}

// Reject drops ids that are in List.
type Reject struct {
	Name string
	List Membership
}

func (r Reject) Test(docID int64) bool { return !r.List.Contains(docID) }
func (r Reject) Describe() string      { return "not(" + r.Name + ")" }
func (Reject) filter()                 {}

// AnyOf keeps ids accepted by at least one of its filters.
type AnyOf struct {
	Filters []Filter
}

func (a AnyOf) Test(docID int64) bool {
	for _, f := range a.Filters {
		if f.Test(docID) {
			return true
		}
	}
	return false
}

func (a AnyOf) Describe() string {
	parts := make([]string, len(a.Filters))
	for i, f := range a.Filters {
		parts[i] = f.Describe()
	}
	return fmt.Sprintf("any(%s)", strings.Join(parts, ", "))
}

func (AnyOf) filter() {}

// Simplify folds constant filters: an AnyOf holding LetThrough accepts
// everything, and one whose members are all NoPass rejects everything.
func Simplify(f Filter) Filter {
	a, ok := f.(AnyOf)
	if !ok {
		return f
	}
	kept := make([]Filter, 0, len(a.Filters))
	for _, sub := range a.Filters {
		switch s := Simplify(sub).(type) {
		case LetThrough:
			return LetThrough{}
		case NoPass:
		default:
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return NoPass{}
	case 1:
		return kept[0]
	}
	return AnyOf{Filters: kept}
}
