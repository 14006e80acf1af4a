// Package array provides LongArray, a flat array of 64-bit words backed either
// by the Go heap or by a memory-mapped file. It is the storage primitive under
// every on-disk index structure: search trees, posting lists, the journal and
// the construction scratch space all read and write words through it.
//
// A LongArray and every view derived from it (Range, Shifted) share one
// underlying region. Close releases the region; any view used after Close is a
// programming error. Files are written in host byte order.
package array

import (
	"fmt"
	"sync"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

// WordSize is the size in bytes of one array element.
const WordSize = 8

// region owns the memory behind one or more LongArray views.
type region struct {
	b        backing
	shared   bool
	readOnly bool
	once     sync.Once
	closeErr error
}

func (r *region) close() error {
	r.once.Do(func() {
		r.closeErr = r.b.close()
	})
	return r.closeErr
}

// LongArray is a view over a contiguous run of int64 words.
type LongArray struct {
	data []int64
	r    *region
}

// Allocate returns a zeroed heap-backed array of n words.
func Allocate(n int) *LongArray {
	return newArray(&heapBacking{data: make([]int64, n)}, false, false)
}

// Wrap returns a heap-backed array over an existing slice without copying.
func Wrap(words []int64) *LongArray {
	return newArray(&heapBacking{data: words}, false, false)
}

func newArray(b backing, shared, readOnly bool) *LongArray {
	return &LongArray{
		data: b.words(),
		r:    &region{b: b, shared: shared, readOnly: readOnly},
	}
}

// Size returns the number of words in the view.
func (a *LongArray) Size() int {
	return len(a.data)
}

// Words exposes the raw words of the view for tight loops. The slice aliases
// the mapping and must not be retained past Close.
func (a *LongArray) Words() []int64 {
	return a.data
}

func (a *LongArray) Get(pos int) int64 {
	return a.data[pos]
}

func (a *LongArray) Set(pos int, value int64) {
	a.mustWritable()
	a.data[pos] = value
}

func (a *LongArray) Increment(pos int) int64 {
	a.mustWritable()
	a.data[pos]++
	return a.data[pos]
}

func (a *LongArray) Swap(i, j int) {
	a.mustWritable()
	a.data[i], a.data[j] = a.data[j], a.data[i]
}

// SwapN swaps the n-word entries starting at i and j.
func (a *LongArray) SwapN(n, i, j int) {
	a.mustWritable()
	for k := 0; k < n; k++ {
		a.data[i+k], a.data[j+k] = a.data[j+k], a.data[i+k]
	}
}

// Fill sets every word in [start, end) to value.
func (a *LongArray) Fill(start, end int, value int64) {
	a.mustWritable()
	a.checkRange(start, end)
	for i := start; i < end; i++ {
		a.data[i] = value
	}
}

// Range returns a zero-copy view of [start, end).
func (a *LongArray) Range(start, end int) *LongArray {
	a.checkRange(start, end)
	return &LongArray{data: a.data[start:end:end], r: a.r}
}

// Shifted returns a zero-copy view starting at offset and running to the end.
func (a *LongArray) Shifted(offset int) *LongArray {
	return a.Range(offset, len(a.data))
}

// CopyFrom copies n words from src[srcStart:] into a[dstStart:].
func (a *LongArray) CopyFrom(src *LongArray, srcStart, dstStart, n int) {
	a.mustWritable()
	src.checkRange(srcStart, srcStart+n)
	a.checkRange(dstStart, dstStart+n)
	copy(a.data[dstStart:dstStart+n], src.data[srcStart:srcStart+n])
}

// Force flushes pending writes of a file-backed array to disk. It is a no-op
// for heap arrays.
func (a *LongArray) Force() error {
	if err := a.r.b.force(); err != nil {
		return fmt.Errorf("forcing array to disk: %w", err)
	}
	return nil
}

// Close releases the memory behind the array and every view sharing it.
// Calling Close more than once is safe.
func (a *LongArray) Close() error {
	if err := a.r.close(); err != nil {
		return fmt.Errorf("closing array: %w", err)
	}
	return nil
}

// IsShared reports whether the mapping may be read from several goroutines.
// Confined arrays belong to the goroutine that created them.
func (a *LongArray) IsShared() bool {
	return a.r.shared
}

// IsReadOnly reports whether the array was mapped without write access.
func (a *LongArray) IsReadOnly() bool {
	return a.r.readOnly
}

func (a *LongArray) mustWritable() {
	if a.r.readOnly {
		panic(pkgerrors.New(pkgerrors.ErrInvalidInput, "write to read-only array"))
	}
}

func (a *LongArray) checkRange(start, end int) {
	if start < 0 || end < start || end > len(a.data) {
		panic(pkgerrors.Newf(pkgerrors.ErrOutOfBounds, "range [%d, %d) of array with %d words", start, end, len(a.data)))
	}
}
