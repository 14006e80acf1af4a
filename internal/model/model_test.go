package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocIDCodec(t *testing.T) {
	id := EncodeDocID(123456, 789)
	assert.Equal(t, 123456, DomainID(id))
	assert.Equal(t, 789, Ordinal(id))
	assert.Equal(t, 0, Rank(id))

	biased := RankBiased(17, id)
	assert.Equal(t, 17, Rank(biased))
	assert.Equal(t, id, RemoveRank(biased))
	assert.Equal(t, 123456, DomainID(biased))
	assert.Positive(t, biased)

	assert.Equal(t, MaxRank, Rank(RankBiased(500, id)), "ranks clamp to the worst rank")
	assert.Equal(t, MaxRank, Rank(RankBiased(MaxRank, EncodeDocID(MaxDomainID, MaxOrdinal))))
	assert.Positive(t, RankBiased(MaxRank, EncodeDocID(MaxDomainID, MaxOrdinal)))
}

func TestRankBiasOrdersByRankThenIdentity(t *testing.T) {
	good := RankBiased(1, EncodeDocID(900, 5))
	bad := RankBiased(2, EncodeDocID(1, 1))
	assert.Less(t, good, bad)

	a := RankBiased(3, EncodeDocID(10, 1))
	b := RankBiased(3, EncodeDocID(10, 2))
	assert.Less(t, a, b)
}

func TestWordMetadata(t *testing.T) {
	m := WordMetadata{Flags: FlagTitle | FlagUrlPath, TfIdf: 200, Positions: 0b1011}
	got := DecodeWordMetadata(m.Encode())
	assert.Equal(t, m, got)
	assert.True(t, HasPriorityFlags(m.Encode()))
	assert.False(t, HasPriorityFlags(WordMetadata{Flags: FlagNamesWords}.Encode()))
	assert.Equal(t, "title|url_path", m.Flags.String())
	assert.Equal(t, "none", WordFlag(0).String())
}

func TestDocumentMetadata(t *testing.T) {
	d := DocumentMetadata{Rank: 4, Year: 2021, Size: 12, Quality: 80, Topology: 3, Flags: DocJavascript | DocPersonalSite}
	assert.Equal(t, d, DecodeDocumentMetadata(d.Encode()))

	unknownYear := DecodeDocumentMetadata(DocumentMetadata{Year: 1980, Quality: 999}.Encode())
	assert.Equal(t, 0, unknownYear.Year)
	assert.Equal(t, 255, unknownYear.Quality)
}
