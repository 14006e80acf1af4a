package forward

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/query"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

func meta(quality, year int) int64 {
	return model.DocumentMetadata{Quality: quality, Year: year}.Encode()
}

func buildStore(t *testing.T, entries []journal.Entry) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forward.db")
	n, err := Build(context.Background(), path, journal.FromEntries(entries))
	require.NoError(t, err)
	assert.Equal(t, len(entries), n)
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuildAndGet(t *testing.T) {
	s := buildStore(t, []journal.Entry{
		{DocID: 1, DocMeta: meta(10, 2001)},
		{DocID: 2, DocMeta: meta(20, 2010)},
		{DocID: 1, DocMeta: meta(30, 2020)},
	})
	assert.True(t, s.IsAvailable())
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, 30, model.DecodeDocumentMetadata(s.Get(1)).Quality, "later entries win")
	assert.Equal(t, int64(0), s.Get(99))

	// Rank bits are ignored on lookup.
	assert.Equal(t, s.Get(2), s.Get(model.RankBiased(4, 2)))
	assert.Equal(t, []int64{s.Get(2), 0, s.Get(1)}, s.GetMany([]int64{2, 3, 1}))
}

func TestBuildManyBatches(t *testing.T) {
	entries := make([]journal.Entry, 2*batchSize+5)
	for i := range entries {
		entries[i] = journal.Entry{DocID: int64(i), DocMeta: int64(i + 1)}
	}
	s := buildStore(t, entries)
	assert.Equal(t, len(entries), s.Count())
	assert.Equal(t, int64(batchSize+1), s.Get(batchSize))
}

func TestPositions(t *testing.T) {
	s := buildStore(t, []journal.Entry{
		{DocID: 1, Terms: []journal.Term{
			{TermID: 10, Positions: []int{0, 4, 9}},
			{TermID: 11, Positions: []int{2}},
		}},
		{DocID: 2, Terms: []journal.Term{{TermID: 10, Positions: []int{3, 300}}, {TermID: 12}}},
		{DocID: 1, Terms: []journal.Term{{TermID: 10, Positions: []int{1}}}},
	})

	got := s.Positions([]int64{model.RankBiased(5, 1), 2, 3}, []int64{10, 11, 12})
	assert.Equal(t, [][]int{{1}, nil, nil}, got[0], "a later entry replaces every offset of the document")
	assert.Equal(t, [][]int{{3, 300}, nil, nil}, got[1])
	assert.Equal(t, [][]int{nil, nil, nil}, got[2])
}

func TestMissingStoreIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "none.db"))
	require.NoError(t, err)
	assert.False(t, s.IsAvailable())
	assert.Zero(t, s.Get(1))
	assert.Zero(t, s.Count())
	assert.Equal(t, [][][]int{{nil}}, s.Positions([]int64{1}, []int64{7}))
	assert.NoError(t, s.Close())
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want SpecificationLimit
	}{
		{"", SpecificationLimit{}},
		{"*", SpecificationLimit{}},
		{"5", SpecificationLimit{LimitEquals, 5}},
		{"=5", SpecificationLimit{LimitEquals, 5}},
		{"<=5", SpecificationLimit{LimitLessThan, 5}},
		{"<5", SpecificationLimit{LimitLessThan, 4}},
		{">=2000", SpecificationLimit{LimitGreaterThan, 2000}},
		{"> 2000", SpecificationLimit{LimitGreaterThan, 2001}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLimit(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := ParseLimit(">abc")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestParamsFilter(t *testing.T) {
	s := buildStore(t, []journal.Entry{
		{DocID: 1, DocMeta: meta(10, 2001)},
		{DocID: 2, DocMeta: meta(20, 2010)},
		{DocID: 3, DocMeta: meta(30, 2020)},
	})
	assert.Equal(t, query.LetThrough{}, s.Filter(QueryParams{}))

	p := QueryParams{
		Quality: SpecificationLimit{LimitGreaterThan, 15},
		Year:    SpecificationLimit{LimitLessThan, 2015},
	}
	f := s.Filter(p)
	ids := []int64{1, 2, 3, model.RankBiased(7, 2)}
	kept := slices.DeleteFunc(slices.Clone(ids), func(id int64) bool { return !f.Test(id) })
	assert.Equal(t, []int64{2, model.RankBiased(7, 2)}, kept)
	assert.Contains(t, f.Describe(), "quality>=15")
}
