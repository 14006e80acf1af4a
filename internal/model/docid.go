// Package model defines the bit layouts shared by the index writer and its
// readers: document identifiers, word metadata and document metadata.
package model

// Document id layout (bit 63 is always clear):
//
//	bits 56..62  domain rank, 0 best .. 127 worst (only in rank-biased ids)
//	bits 26..55  domain id
//	bits  0..25  document ordinal within the domain
const (
	ordinalBits = 26
	domainBits  = 30
	rankShift   = ordinalBits + domainBits

	ordinalMask = 1<<ordinalBits - 1
	domainMask  = 1<<domainBits - 1
	idMask      = 1<<rankShift - 1

	// MaxRank is the worst rank and the rank of domains without one.
	MaxRank = 127
	// MaxDomainID is the largest encodable domain id.
	MaxDomainID = domainMask
	// MaxOrdinal is the largest encodable document ordinal.
	MaxOrdinal = ordinalMask
)

// EncodeDocID combines a domain id and an ordinal into a document id.
func EncodeDocID(domainID, ordinal int) int64 {
	return int64(domainID&domainMask)<<ordinalBits | int64(ordinal&ordinalMask)
}

// RankBiased replaces the rank bits of id so that lower ranks sort first.
func RankBiased(rank int, id int64) int64 {
	rank = min(max(rank, 0), MaxRank)
	return int64(rank)<<rankShift | id&idMask
}

// RemoveRank strips the rank bits, leaving the domain and ordinal.
func RemoveRank(id int64) int64 {
	return id & idMask
}

func Rank(id int64) int {
	return int(id >> rankShift & MaxRank)
}

func DomainID(id int64) int {
	return int(id >> ordinalBits & domainMask)
}

func Ordinal(id int64) int {
	return int(id & ordinalMask)
}
