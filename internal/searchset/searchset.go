// Package searchset restricts queries to a named set of domains.
package searchset

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/query"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

const (
	// AnyName names the set that holds every domain.
	AnyName = "any"
	fileExt = ".roaring"
)

type SearchSet interface {
	Name() string
	ContainsDomain(domainID int) bool
}

// Any holds every domain.
type Any struct{}

func (Any) Name() string            { return AnyName }
func (Any) ContainsDomain(int) bool { return true }

// Domains is an explicit set of domain ids.
type Domains struct {
	name string
	bm   *roaring.Bitmap
}

func NewDomains(name string, domainIDs ...int) *Domains {
	bm := roaring.New()
	for _, id := range domainIDs {
		bm.Add(uint32(id))
	}
	return &Domains{name: name, bm: bm}
}

func (d *Domains) Name() string { return d.name }

func (d *Domains) ContainsDomain(domainID int) bool {
	return domainID >= 0 && d.bm.Contains(uint32(domainID))
}

// Add must not race with lookups.
func (d *Domains) Add(domainID int) {
	d.bm.Add(uint32(domainID))
}

func (d *Domains) Len() int {
	return int(d.bm.GetCardinality())
}

// Save writes the set to path, replacing any existing file atomically.
func (d *Domains) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating search set file: %w", err)
	}
	d.bm.RunOptimize()
	if _, err := d.bm.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing search set %s: %w", d.name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing search set %s: %w", d.name, err)
	}
	f.Close()
	return os.Rename(tmp, path)
}

// Load reads a set written by Save. The set is named after the file.
func Load(path string) (*Domains, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening search set: %w", err)
	}
	defer f.Close()
	bm := roaring.New()
	if _, err := bm.ReadFrom(f); err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrCorruptIndex, "reading search set %s: %v", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), fileExt)
	return &Domains{name: name, bm: bm}, nil
}

// Filter keeps documents whose domain is in s.
func Filter(s SearchSet) query.Filter {
	if _, ok := s.(Any); ok {
		return query.LetThrough{}
	}
	return query.FromPredicate{
		Name: "searchset(" + s.Name() + ")",
		Fn: func(docID int64) bool {
			return s.ContainsDomain(model.DomainID(docID))
		},
	}
}

// Registry resolves search sets by name. Unknown names resolve to Any.
type Registry struct {
	mu   sync.RWMutex
	dir  string
	sets map[string]SearchSet
}

// LoadDir reads every *.roaring file in dir. A missing dir gives a registry
// that only knows Any.
func LoadDir(dir string) (*Registry, error) {
	r := &Registry{dir: dir, sets: map[string]SearchSet{AnyName: Any{}}}
	if dir == "" {
		return r, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("listing search sets: %w", err)
	}
	for _, p := range paths {
		d, err := Load(p)
		if err != nil {
			return nil, err
		}
		r.sets[d.Name()] = d
	}
	if len(paths) == 0 {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			slog.Default().With("component", "searchset").Warn("search set directory missing", "dir", dir)
		}
	}
	return r, nil
}

func (r *Registry) Get(name string) SearchSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sets[name]; ok {
		return s
	}
	return Any{}
}

// Put registers d and, when the registry has a directory, persists it.
func (r *Registry) Put(d *Domains) error {
	if d.Name() == AnyName {
		return pkgerrors.New(pkgerrors.ErrInvalidInput, "the any search set is built in")
	}
	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0755); err != nil {
			return fmt.Errorf("creating search set directory: %w", err)
		}
		if err := d.Save(filepath.Join(r.dir, d.Name()+fileExt)); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.sets[d.Name()] = d
	r.mu.Unlock()
	return nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sets))
	for n := range r.sets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
