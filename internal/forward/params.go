package forward

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/query"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

type LimitType int

const (
	LimitNone LimitType = iota
	LimitEquals
	LimitLessThan
	LimitGreaterThan
)

// SpecificationLimit bounds one document metadata field. Bounds are
// inclusive.
type SpecificationLimit struct {
	Type  LimitType
	Value int
}

func (l SpecificationLimit) Test(v int) bool {
	switch l.Type {
	case LimitEquals:
		return v == l.Value
	case LimitLessThan:
		return v <= l.Value
	case LimitGreaterThan:
		return v >= l.Value
	}
	return true
}

func (l SpecificationLimit) String() string {
	switch l.Type {
	case LimitEquals:
		return "=" + strconv.Itoa(l.Value)
	case LimitLessThan:
		return "<=" + strconv.Itoa(l.Value)
	case LimitGreaterThan:
		return ">=" + strconv.Itoa(l.Value)
	}
	return "*"
}

// ParseLimit reads "=N", "<N", "<=N", ">N", ">=N" or "" (no limit). The
// strict forms are converted to inclusive bounds.
func ParseLimit(s string) (SpecificationLimit, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return SpecificationLimit{}, nil
	}
	var (
		typ    LimitType
		rest   string
		adjust int
	)
	switch {
	case strings.HasPrefix(s, "<="):
		typ, rest = LimitLessThan, s[2:]
	case strings.HasPrefix(s, ">="):
		typ, rest = LimitGreaterThan, s[2:]
	case strings.HasPrefix(s, "<"):
		typ, rest, adjust = LimitLessThan, s[1:], -1
	case strings.HasPrefix(s, ">"):
		typ, rest, adjust = LimitGreaterThan, s[1:], 1
	case strings.HasPrefix(s, "="):
		typ, rest = LimitEquals, s[1:]
	default:
		typ, rest = LimitEquals, s
	}
	v, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return SpecificationLimit{}, pkgerrors.Newf(pkgerrors.ErrInvalidInput, "limit %q: %v", s, err)
	}
	return SpecificationLimit{Type: typ, Value: v + adjust}, nil
}

// QueryParams restricts results by document metadata.
type QueryParams struct {
	Quality SpecificationLimit
	Year    SpecificationLimit
	Size    SpecificationLimit
	Rank    SpecificationLimit
}

func (p QueryParams) IsEmpty() bool {
	return p.Quality.Type == LimitNone && p.Year.Type == LimitNone &&
		p.Size.Type == LimitNone && p.Rank.Type == LimitNone
}

func (p QueryParams) Test(meta model.DocumentMetadata) bool {
	return p.Quality.Test(meta.Quality) && p.Year.Test(meta.Year) &&
		p.Size.Test(meta.Size) && p.Rank.Test(meta.Rank)
}

func (p QueryParams) String() string {
	return fmt.Sprintf("quality%s year%s size%s rank%s", p.Quality, p.Year, p.Size, p.Rank)
}

// Filter turns params into a query filter over rank-biased document ids.
// Empty params let everything through.
func (s *Store) Filter(p QueryParams) query.Filter {
	if p.IsEmpty() {
		return query.LetThrough{}
	}
	return query.FromPredicate{
		Name: "params(" + p.String() + ")",
		Fn: func(docID int64) bool {
			return p.Test(model.DecodeDocumentMetadata(s.Get(docID)))
		},
	}
}
