// Package ingest turns processed-document events from Kafka into journal
// entries and announces finished index generations.
package ingest

import "time"

// DocumentEvent is the Kafka payload describing one processed document.
type DocumentEvent struct {
	DomainID int    `json:"domain_id"`
	Ordinal  int    `json:"ordinal"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	// Subjects are keywords the document is about, as judged upstream.
	Subjects []string              `json:"subjects,omitempty"`
	Year     int                   `json:"year,omitempty"`
	Quality  int                   `json:"quality,omitempty"`
	Topology int                   `json:"topology,omitempty"`
	Flags    uint16                `json:"flags,omitempty"`
	Links    map[string]LinkSource `json:"links,omitempty"`
	SentAt   time.Time             `json:"sent_at"`
}

// LinkSource describes anchor text of external links pointing at the
// document, keyed by keyword.
type LinkSource struct {
	Count int `json:"count"`
}

// IndexCompleteEvent announces that a next generation has been published
// in an index directory.
type IndexCompleteEvent struct {
	Generation string    `json:"generation"`
	Entries    int       `json:"entries"`
	Documents  int64     `json:"documents"`
	Terms      int       `json:"terms"`
	Postings   int64     `json:"postings"`
	BuiltAt    time.Time `json:"built_at"`
}
