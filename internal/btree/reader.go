package btree

import (
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

// Reader answers lookups against one tree. It holds no mutable state and may
// be shared between goroutines; Cursors may not.
type Reader struct {
	arr    *array.LongArray
	ctx    Context
	header Header
	data   *array.LongArray
	keys   []int
	starts []int
	blocks int
}

func NewReader(arr *array.LongArray, ctx Context, offset int) (*Reader, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	h, err := ReadHeader(arr, offset)
	if err != nil {
		return nil, err
	}
	if want := MakeHeader(ctx, offset, h.NumEntries); want != h {
		return nil, pkgerrors.Newf(pkgerrors.ErrCorruptIndex, "tree at %d does not match its context: %+v", offset, h)
	}
	dataEnd := h.DataOffset + h.NumEntries*ctx.EntrySize
	if dataEnd > arr.Size() {
		return nil, pkgerrors.Newf(pkgerrors.ErrCorruptIndex, "tree at %d: data ends at %d beyond %d words", offset, dataEnd, arr.Size())
	}
	keys := ctx.layerKeys(h.NumEntries)
	return &Reader{
		arr:    arr,
		ctx:    ctx,
		header: h,
		data:   arr.Range(h.DataOffset, dataEnd),
		keys:   keys,
		starts: layerStarts(h.IndexOffset, keys, ctx.PageSize()),
		blocks: ceilDiv(h.NumEntries, ctx.PageSize()),
	}, nil
}

func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) NumEntries() int {
	return r.header.NumEntries
}

// Data returns the data region: NumEntries entries of EntrySize words.
func (r *Reader) Data() *array.LongArray {
	return r.data
}

func (r *Reader) KeyAt(idx int) int64 {
	return r.data.Get(idx * r.ctx.EntrySize)
}

func (r *Reader) ValueAt(idx, slot int) int64 {
	return r.data.Get(idx*r.ctx.EntrySize + slot)
}

// FindEntry returns the index of the entry whose key equals key, or -1.
func (r *Reader) FindEntry(key int64) int {
	return r.NewCursor().Find(key)
}

// QueryData returns, for each of the ascending keys, the word at slot of the
// matching entry, or 0 when the key is absent.
func (r *Reader) QueryData(sortedKeys []int64, slot int) []int64 {
	out := make([]int64, len(sortedKeys))
	c := r.NewCursor()
	for i, k := range sortedKeys {
		idx := c.Find(k)
		if idx >= 0 {
			out[i] = r.ValueAt(idx, slot)
		} else if c.exhausted {
			break
		}
	}
	return out
}

// findBlock walks the index from the root and returns the data block that
// would hold key, or -1 when key exceeds every key in the tree.
func (r *Reader) findBlock(key int64) int {
	if r.header.NumEntries == 0 {
		return -1
	}
	if len(r.keys) == 0 {
		if key > r.KeyAt(r.header.NumEntries-1) {
			return -1
		}
		return 0
	}
	p := r.ctx.PageSize()
	idx := 0
	for l := len(r.keys) - 1; l >= 0; l-- {
		pageStart := r.starts[l] + idx*p
		pos := r.arr.BinarySearchUpperBound(key, pageStart, pageStart+p)
		idx = idx*p + (pos - pageStart)
		if idx >= r.keys[l] {
			return -1
		}
	}
	return idx
}

// Cursor looks up keys in ascending order, reusing the last data block and
// search position while the keys stay inside it.
type Cursor struct {
	r         *Reader
	blk       int
	from, end int
	max       int64
	last      int64
	exhausted bool
}

func (r *Reader) NewCursor() *Cursor {
	return &Cursor{r: r, blk: -1}
}

// Find returns the entry index of key or -1. Keys smaller than the previous
// one restart the walk from the root.
func (c *Cursor) Find(key int64) int {
	r := c.r
	es := r.ctx.EntrySize
	if key < c.last {
		c.blk = -1
		c.exhausted = false
	}
	c.last = key
	if c.exhausted {
		return -1
	}
	if c.blk < 0 || key > c.max {
		blk := r.findBlock(key)
		if blk < 0 {
			c.exhausted = true
			c.blk = -1
			return -1
		}
		p := r.ctx.PageSize()
		c.blk = blk
		c.from = blk * p
		c.end = min(c.from+p, r.header.NumEntries)
		c.max = r.KeyAt(c.end - 1)
	}
	pos := r.data.BinarySearchN(es, key, c.from*es, c.end*es)
	if pos >= 0 {
		c.from = pos / es
		return c.from
	}
	c.from = array.DecodeSearchMiss(pos) / es
	return -1
}

// Contains reports whether key is in the tree.
func (c *Cursor) Contains(key int64) bool {
	return c.Find(key) >= 0
}
