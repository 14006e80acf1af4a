package ingest

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
)

const (
	maxTitleLength = 1024
	maxBodyLength  = 1048576

	// positionBucket keywords share one bit of the position mask.
	positionBucket = 16
	positionBits   = 48
	// tfIdfHighCount occurrences mark a term as prominent in the document.
	tfIdfHighCount = 5
	// sizeUnit keywords make one step of the encoded document size.
	sizeUnit = 32
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	slices.Sort(parts)
	return strings.Join(parts, "; ")
}

// Validate checks the identifiers and text lengths of ev.
func Validate(ev *DocumentEvent) error {
	errs := make(map[string]string)
	if ev.DomainID < 0 || ev.DomainID > model.MaxDomainID {
		errs["domain_id"] = fmt.Sprintf("domain id must be in [0, %d]", model.MaxDomainID)
	}
	if ev.Ordinal < 0 || ev.Ordinal > model.MaxOrdinal {
		errs["ordinal"] = fmt.Sprintf("ordinal must be in [0, %d]", model.MaxOrdinal)
	}
	if len(ev.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(ev.Body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d characters", maxBodyLength)
	}
	if strings.TrimSpace(ev.Title) == "" && strings.TrimSpace(ev.Body) == "" {
		errs["body"] = "title or body is required"
	}
	if ev.URL != "" {
		if _, err := url.Parse(ev.URL); err != nil {
			errs["url"] = "url is malformed"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

type termStats struct {
	flags     model.WordFlag
	count     int
	positions uint64
	offsets   []int
}

// ToEntry converts a validated event into a journal entry: one term per
// distinct keyword, carrying where it occurred, how often, roughly where in
// the text, and the exact keyword offsets of the title followed by the body.
func ToEntry(ev *DocumentEvent) journal.Entry {
	stats := make(map[int64]*termStats)
	get := func(id int64) *termStats {
		s, ok := stats[id]
		if !ok {
			s = &termStats{}
			stats[id] = s
		}
		return s
	}

	title := lexicon.Tokenize(ev.Title)
	body := lexicon.Tokenize(ev.Body)
	for _, tok := range title {
		s := get(tok.TermID)
		s.flags |= model.FlagTitle
		s.count++
		s.positions |= positionBit(tok.Position)
		s.offsets = append(s.offsets, tok.Position)
	}
	for _, tok := range body {
		s := get(tok.TermID)
		s.count++
		s.positions |= positionBit(len(title) + tok.Position)
		s.offsets = append(s.offsets, len(title)+tok.Position)
	}

	for _, subject := range ev.Subjects {
		for _, tok := range lexicon.Tokenize(subject) {
			get(tok.TermID).flags |= model.FlagSubjects
		}
	}
	for keyword, link := range ev.Links {
		if link.Count <= 0 {
			continue
		}
		for _, tok := range lexicon.Tokenize(keyword) {
			get(tok.TermID).flags |= model.FlagExternalLink
		}
	}
	if u, err := url.Parse(ev.URL); err == nil && ev.URL != "" {
		for _, tok := range lexicon.Tokenize(u.Hostname()) {
			get(tok.TermID).flags |= model.FlagUrlDomain
		}
		for _, tok := range lexicon.Tokenize(u.Path) {
			get(tok.TermID).flags |= model.FlagUrlPath
		}
	}

	entry := journal.Entry{
		DocID: model.EncodeDocID(ev.DomainID, ev.Ordinal),
		DocMeta: model.DocumentMetadata{
			Year:     ev.Year,
			Size:     (len(title) + len(body)) / sizeUnit,
			Quality:  ev.Quality,
			Topology: ev.Topology,
			Flags:    model.DocumentFlag(ev.Flags),
		}.Encode(),
		Terms: make([]journal.Term, 0, len(stats)),
	}
	for id, s := range stats {
		if s.count >= tfIdfHighCount {
			s.flags |= model.FlagTfIdfHigh
		}
		meta := model.WordMetadata{
			Flags:     s.flags,
			TfIdf:     uint8(min(s.count, 255)),
			Positions: s.positions,
		}
		entry.Terms = append(entry.Terms, journal.Term{TermID: id, Meta: meta.Encode(), Positions: s.offsets})
	}
	slices.SortFunc(entry.Terms, func(a, b journal.Term) int { return cmp.Compare(a.TermID, b.TermID) })
	return entry
}

func positionBit(pos int) uint64 {
	return 1 << min(pos/positionBucket, positionBits-1)
}
