// Package index owns the on-disk generations of the reverse index and the
// live, atomically switchable view queries run against.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

// Version tells the live generation's files from the ones being built.
type Version string

const (
	Current Version = "current"
	Next    Version = "next"
)

// Part is one of the files that make up a generation.
type Part string

const (
	PartWords     Part = "rev-words"
	PartDocs      Part = "rev-docs"
	PartPrioWords Part = "rev-prio-words"
	PartPrioDocs  Part = "rev-prio-docs"
	PartForward   Part = "forward-meta"
	PartID        Part = "generation"
)

// parts lists every part in promotion order; the generation id goes last so
// it only names a generation once all of its files are in place.
var parts = []Part{PartWords, PartDocs, PartPrioWords, PartPrioDocs, PartForward, PartID}

func (p Part) ext() string {
	switch p {
	case PartForward:
		return ".db"
	case PartID:
		return ".id"
	}
	return ".dat"
}

const lockName = "construction.lock"

// Files names the files of the index generations kept in one directory.
type Files struct {
	Dir string
}

func (f Files) Path(p Part, v Version) string {
	return filepath.Join(f.Dir, fmt.Sprintf("%s.%s%s", p, v, p.ext()))
}

// StagedName is the name a part has inside a staging directory.
func StagedName(p Part) string {
	return string(p) + p.ext()
}

// HasNext reports whether a complete next generation is waiting.
func (f Files) HasNext() bool {
	_, err := os.Stat(f.Path(PartID, Next))
	return err == nil
}

// ReadID returns the id of a generation, or "" when it has none.
func (f Files) ReadID(v Version) string {
	b, err := os.ReadFile(f.Path(PartID, v))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// Promote renames every next file over its current counterpart. It returns
// false when no next generation is waiting. Callers hold the lock.
func (f Files) Promote() (bool, error) {
	if !f.HasNext() {
		return false, nil
	}
	for _, p := range parts {
		err := os.Rename(f.Path(p, Next), f.Path(p, Current))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("promoting %s: %w", p, err)
		}
	}
	return true, nil
}

// Lock takes the directory's construction lock, waiting up to timeout. The
// same lock serialises building a next generation and promoting it.
func (f Files) Lock(ctx context.Context, timeout time.Duration) (unlock func(), err error) {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	path := filepath.Join(f.Dir, lockName)
	l := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquiring %s: %w", path, err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, pkgerrors.Newf(pkgerrors.ErrConstructionInProgress, "lock %s is held", path)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
