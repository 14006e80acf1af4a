package model

import "fmt"

// WordFlag marks where or how a term occurred in a document.
type WordFlag uint8

const (
	FlagTitle WordFlag = 1 << iota
	FlagSubjects
	FlagNamesWords
	FlagSite
	FlagUrlDomain
	FlagUrlPath
	FlagTfIdfHigh
	FlagExternalLink
)

// PriorityFlags select the postings that go into the priority index.
const PriorityFlags = FlagTitle | FlagSubjects | FlagSite | FlagUrlDomain | FlagUrlPath | FlagExternalLink | FlagTfIdfHigh

var wordFlagNames = []string{"title", "subjects", "names", "site", "url_domain", "url_path", "tfidf_high", "external_link"}

func (f WordFlag) String() string {
	s := ""
	for i, name := range wordFlagNames {
		if f&(1<<i) != 0 {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// WordMetadata is the per-posting metadata word.
//
//	bits  0..7   flags
//	bits  8..15  tf-idf bucket
//	bits 16..63  position mask, one bit per sentence bucket
type WordMetadata struct {
	Flags     WordFlag
	TfIdf     uint8
	Positions uint64
}

const positionMask = 1<<48 - 1

func (m WordMetadata) Encode() int64 {
	return int64(m.Positions&positionMask)<<16 | int64(m.TfIdf)<<8 | int64(m.Flags)
}

func DecodeWordMetadata(v int64) WordMetadata {
	return WordMetadata{
		Flags:     WordFlag(v & 0xFF),
		TfIdf:     uint8(v >> 8 & 0xFF),
		Positions: uint64(v>>16) & positionMask,
	}
}

// HasPriorityFlags reports whether an encoded metadata word belongs in the
// priority index.
func HasPriorityFlags(meta int64) bool {
	return WordFlag(meta&0xFF)&PriorityFlags != 0
}

// DocumentFlag marks document-level features.
type DocumentFlag uint16

const (
	DocJavascript DocumentFlag = 1 << iota
	DocPlainText
	DocUsesAdTech
	DocGeneratorKnown
	DocPersonalSite
)

// DocumentMetadata is the per-document metadata word.
//
//	bits  0..7   rank
//	bits  8..15  year minus YearOffset
//	bits 16..23  encoded size
//	bits 24..31  quality
//	bits 32..39  topology
//	bits 40..55  flags
type DocumentMetadata struct {
	Rank     int
	Year     int
	Size     int
	Quality  int
	Topology int
	Flags    DocumentFlag
}

// YearOffset is the first year a document metadata word can express.
const YearOffset = 1995

func (d DocumentMetadata) Encode() int64 {
	year := 0
	if d.Year >= YearOffset {
		year = d.Year - YearOffset
	}
	return int64(clamp8(d.Rank)) |
		int64(clamp8(year))<<8 |
		int64(clamp8(d.Size))<<16 |
		int64(clamp8(d.Quality))<<24 |
		int64(clamp8(d.Topology))<<32 |
		int64(d.Flags)<<40
}

func DecodeDocumentMetadata(v int64) DocumentMetadata {
	year := int(v >> 8 & 0xFF)
	if year != 0 {
		year += YearOffset
	}
	return DocumentMetadata{
		Rank:     int(v & 0xFF),
		Year:     year,
		Size:     int(v >> 16 & 0xFF),
		Quality:  int(v >> 24 & 0xFF),
		Topology: int(v >> 32 & 0xFF),
		Flags:    DocumentFlag(v >> 40 & 0xFFFF),
	}
}

func (d DocumentMetadata) String() string {
	return fmt.Sprintf("rank=%d year=%d size=%d quality=%d topology=%d flags=%#x", d.Rank, d.Year, d.Size, d.Quality, d.Topology, uint16(d.Flags))
}

func clamp8(v int) int {
	return min(max(v, 0), 0xFF)
}
