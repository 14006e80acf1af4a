package reverse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/btree"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/ranking"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

// sortChunkWords is roughly how much scattered data one sort task takes on.
const sortChunkWords = 1 << 16

const ctxCheckInterval = 1 << 14

// Converter turns a journal into the two files of a reverse index.
type Converter struct {
	// TmpDir holds the scatter file and external sort runs.
	TmpDir   string
	Rankings *ranking.DomainRankings
	Sorting  array.SortingContext
	// Parallelism bounds concurrent sort tasks; zero or less means one.
	Parallelism int
	// Predicate, when set, keeps only postings whose word metadata passes.
	Predicate func(termMeta int64) bool

	WordsBlockBits int
	DocsBlockBits  int
}

// Stats describes a finished conversion.
type Stats struct {
	Terms     int
	Documents int64
	Postings  int64
	Elapsed   time.Duration
}

// Convert reads j twice and writes wordsPath and docsPath. Existing files at
// those paths are replaced.
func (c *Converter) Convert(ctx context.Context, j journal.Reader, wordsPath, docsPath string) (Stats, error) {
	start := time.Now()
	logger := slog.Default().With("component", "converter", "words", wordsPath)

	wordsCtx := treeContext(orDefault(c.WordsBlockBits, DefaultWordsBlockBits))
	docsCtx := treeContext(orDefault(c.DocsBlockBits, DefaultDocsBlockBits))
	if err := wordsCtx.Validate(); err != nil {
		return Stats{}, err
	}
	if err := docsCtx.Validate(); err != nil {
		return Stats{}, err
	}

	src := j
	if c.Predicate != nil {
		src = journal.Filtered(j, c.Predicate)
	}

	vocab, err := c.countTerms(ctx, src)
	if err != nil {
		return Stats{}, err
	}
	logger.Info("vocabulary collected", "terms", len(vocab.terms), "documents", vocab.documents)

	offsets := array.Wrap(slices.Clone(vocab.counts))
	total := offsets.CountsToOffsets(entrySize)

	scatter, cleanup, err := c.scatterFile(int(total))
	if err != nil {
		return Stats{}, err
	}
	defer cleanup()

	if err := c.scatter(ctx, src, vocab, offsets, scatter); err != nil {
		return Stats{}, err
	}

	lengths, err := c.sortAndMerge(ctx, vocab, offsets, scatter)
	if err != nil {
		return Stats{}, err
	}

	postings, err := writeDocs(docsPath, docsCtx, offsets, lengths, scatter)
	if err != nil {
		return Stats{}, err
	}
	if err := writeWords(wordsPath, wordsCtx, docsCtx, vocab, lengths, vocab.documents, postings); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Terms:     len(vocab.terms),
		Documents: vocab.documents,
		Postings:  postings,
		Elapsed:   time.Since(start),
	}
	logger.Info("reverse index written", "terms", stats.Terms, "postings", stats.Postings, "elapsed", stats.Elapsed)
	return stats, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type vocabulary struct {
	terms     []int64
	index     map[int64]int
	counts    []int64
	documents int64
}

func (c *Converter) countTerms(ctx context.Context, src journal.Reader) (*vocabulary, error) {
	occurrences := make(map[int64]int64)
	docs := roaring64.New()
	seen := 0
	err := src.ForEach(func(e journal.EntryView) error {
		if seen++; seen%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if e.DocID < 0 {
			return pkgerrors.Newf(pkgerrors.ErrInvalidInput, "journal entry %d: negative document id %d", seen, e.DocID)
		}
		if e.DocID != model.RemoveRank(e.DocID) {
			return pkgerrors.Newf(pkgerrors.ErrInvalidInput, "journal entry %d: document id %x has rank bits set", seen, e.DocID)
		}
		if e.NumTerms() == 0 {
			return nil
		}
		docs.Add(uint64(e.DocID))
		for i := 0; i < e.NumTerms(); i++ {
			id, _ := e.Term(i)
			occurrences[id]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("counting terms: %w", err)
	}

	v := &vocabulary{
		terms:     make([]int64, 0, len(occurrences)),
		index:     make(map[int64]int, len(occurrences)),
		documents: int64(docs.GetCardinality()),
	}
	for id := range occurrences {
		v.terms = append(v.terms, id)
	}
	slices.Sort(v.terms)
	v.counts = make([]int64, len(v.terms))
	for i, id := range v.terms {
		v.index[id] = i
		v.counts[i] = occurrences[id]
	}
	return v, nil
}

func (c *Converter) scatterFile(words int) (*array.LongArray, func(), error) {
	f, err := os.CreateTemp(c.TmpDir, "scatter-*.dat")
	if err != nil {
		return nil, nil, fmt.Errorf("creating scatter file: %w", err)
	}
	path := f.Name()
	if err := f.Truncate(int64(words) * array.WordSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, nil, fmt.Errorf("sizing scatter file: %w", err)
	}
	f.Close()
	arr, err := array.MmapForModifyingShared(path)
	if err != nil {
		os.Remove(path)
		return nil, nil, err
	}
	return arr, func() {
		arr.Close()
		os.Remove(path)
	}, nil
}

// scatter writes every (biased doc id, word meta) pair into its term's span.
func (c *Converter) scatter(ctx context.Context, src journal.Reader, v *vocabulary, offsets, out *array.LongArray) error {
	cursor := slices.Clone(offsets.Words())
	seen := 0
	err := src.ForEach(func(e journal.EntryView) error {
		if seen++; seen%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if e.NumTerms() == 0 {
			return nil
		}
		biased := c.Rankings.Bias(e.DocID)
		for i := 0; i < e.NumTerms(); i++ {
			id, meta := e.Term(i)
			t, ok := v.index[id]
			if !ok {
				return pkgerrors.Newf(pkgerrors.ErrInternal, "term %d appeared between journal passes", id)
			}
			pos := int(cursor[t])
			out.Set(pos, biased)
			out.Set(pos+1, meta)
			cursor[t] += entrySize
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scattering postings: %w", err)
	}
	return nil
}

// sortAndMerge sorts each term's span by document id and folds duplicate
// documents into one entry, OR-ing their metadata. It returns the number of
// entries left in each span.
func (c *Converter) sortAndMerge(ctx context.Context, v *vocabulary, offsets, data *array.LongArray) ([]int, error) {
	lengths := make([]int, len(v.terms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.Parallelism, 1))

	sortCtx := c.Sorting
	if sortCtx.WorkDir == "" {
		sortCtx.WorkDir = c.TmpDir
	}

	for lo := 0; lo < len(v.terms); {
		hi, words := lo, int64(0)
		for hi < len(v.terms) && (hi == lo || words < sortChunkWords) {
			words += v.counts[hi] * entrySize
			hi++
		}
		from, to := lo, hi
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for t := from; t < to; t++ {
				start := int(offsets.Get(t))
				end := start + int(v.counts[t])*entrySize
				if err := data.SortLargeSpanN(sortCtx, entrySize, start, end); err != nil {
					return fmt.Errorf("sorting postings of term %d: %w", v.terms[t], err)
				}
				lengths[t] = mergeDuplicates(data.Range(start, end))
			}
			return nil
		})
		lo = hi
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lengths, nil
}

// mergeDuplicates compacts a sorted span of (doc, meta) entries so each doc
// appears once and returns the entry count.
func mergeDuplicates(span *array.LongArray) int {
	n := span.Size() / entrySize
	if n == 0 {
		return 0
	}
	w := 0
	for r := 1; r < n; r++ {
		doc, meta := span.Get(r*entrySize), span.Get(r*entrySize+1)
		if doc == span.Get(w*entrySize) {
			span.Set(w*entrySize+1, span.Get(w*entrySize+1)|meta)
			continue
		}
		w++
		span.Set(w*entrySize, doc)
		span.Set(w*entrySize+1, meta)
	}
	return w + 1
}

func writeDocs(path string, ctx btree.Context, offsets *array.LongArray, lengths []int, data *array.LongArray) (int64, error) {
	size := 0
	var postings int64
	for _, n := range lengths {
		size += ctx.CalculateSize(n)
		postings += int64(n)
	}
	out, err := array.MmapForWritingConfined(path, size)
	if err != nil {
		return 0, fmt.Errorf("creating documents file: %w", err)
	}
	w := btree.NewWriter(out, ctx)
	pos := 0
	for t, n := range lengths {
		src := int(offsets.Get(t))
		written, err := w.Write(pos, n, func(dst *array.LongArray) error {
			dst.CopyFrom(data, src, 0, n*entrySize)
			return nil
		})
		if err != nil {
			out.Close()
			return 0, fmt.Errorf("writing posting list %d: %w", t, err)
		}
		pos += written
	}
	if err := out.Force(); err != nil {
		out.Close()
		return 0, err
	}
	return postings, out.Close()
}

func writeWords(path string, wordsCtx, docsCtx btree.Context, v *vocabulary, lengths []int, documents, postings int64) error {
	out, err := array.MmapForWritingConfined(path, headerWords+wordsCtx.CalculateSize(len(v.terms)))
	if err != nil {
		return fmt.Errorf("creating words file: %w", err)
	}
	fileHeader{
		wordsBits: wordsCtx.BlockSizeBits,
		docsBits:  docsCtx.BlockSizeBits,
		documents: documents,
		postings:  postings,
	}.write(out)

	docsOffset := 0
	_, err = btree.NewWriter(out, wordsCtx).Write(headerWords, len(v.terms), func(data *array.LongArray) error {
		for i, id := range v.terms {
			data.Set(i*entrySize, id)
			data.Set(i*entrySize+1, int64(docsOffset))
			docsOffset += docsCtx.CalculateSize(lengths[i])
		}
		return nil
	})
	if err != nil {
		out.Close()
		return fmt.Errorf("writing words tree: %w", err)
	}
	if err := out.Force(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
