package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/edge-index/pkg/metrics"
)

// EntryWriter accepts journal entries, typically a journal.PagedWriter.
type EntryWriter interface {
	Put(journal.Entry) error
}

// HandleDocuments returns a Kafka MessageHandler that appends every valid
// document event to w. Undecodable and invalid events are logged and
// dropped so they do not block the partition; write failures are returned
// and leave the message uncommitted.
func HandleDocuments(w EntryWriter, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "journal-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[DocumentEvent](value)
		if err != nil {
			logger.Error("failed to decode document event",
				"error", err,
				"key", string(key),
			)
			m.JournalEntry("invalid")
			return nil
		}
		if err := Validate(&event); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				logger.Warn("dropping invalid document event",
					"key", string(key),
					"fields", verr.Fields,
				)
			}
			m.JournalEntry("invalid")
			return nil
		}

		entry := ToEntry(&event)
		if err := w.Put(entry); err != nil {
			m.JournalEntry("error")
			return fmt.Errorf("journaling document %d/%d: %w", event.DomainID, event.Ordinal, err)
		}
		m.JournalEntry("written")
		logger.Debug("document journaled",
			"domain_id", event.DomainID,
			"ordinal", event.Ordinal,
			"terms", len(entry.Terms),
		)
		return nil
	}
}

// Publisher is the subset of kafka.Producer used to announce generations.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// CompleteEvent describes a freshly built generation.
func CompleteEvent(r index.BuildResult) IndexCompleteEvent {
	return IndexCompleteEvent{
		Generation: r.Generation,
		Entries:    r.Entries,
		Documents:  r.Full.Documents,
		Terms:      r.Full.Terms,
		Postings:   r.Full.Postings,
		BuiltAt:    time.Now().UTC(),
	}
}

// AnnounceGeneration publishes r keyed by its generation id.
func AnnounceGeneration(ctx context.Context, p Publisher, r index.BuildResult) error {
	ev := CompleteEvent(r)
	if err := p.Publish(ctx, kafka.Event{Key: ev.Generation, Value: ev}); err != nil {
		return fmt.Errorf("announcing generation %s: %w", ev.Generation, err)
	}
	return nil
}

// Switcher is the subset of index.SearchIndex that reacts to announcements.
type Switcher interface {
	SwitchIndex(ctx context.Context) (bool, error)
}

// HandleIndexComplete returns a Kafka MessageHandler that switches idx to
// the announced generation. A failed switch is returned so the announcement
// is redelivered.
func HandleIndexComplete(idx Switcher) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-watcher")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IndexCompleteEvent](value)
		if err != nil {
			logger.Error("failed to decode index complete event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		switched, err := idx.SwitchIndex(ctx)
		if err != nil {
			return fmt.Errorf("switching to generation %s: %w", event.Generation, err)
		}
		logger.Info("index complete event handled",
			"generation", event.Generation,
			"switched", switched,
			"documents", event.Documents,
		)
		return nil
	}
}
