package btree

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
)

type Writer struct {
	arr *array.LongArray
	ctx Context
}

func NewWriter(arr *array.LongArray, ctx Context) *Writer {
	return &Writer{arr: arr, ctx: ctx}
}

// Write lays out a tree of numEntries entries at offset. fill receives a view
// of the data region and must populate it with entries in ascending key
// order; the index layers are derived from it afterwards. Write returns the
// number of words the tree occupies.
func (w *Writer) Write(offset, numEntries int, fill func(data *array.LongArray) error) (int, error) {
	if err := w.ctx.Validate(); err != nil {
		return 0, err
	}
	size := w.ctx.CalculateSize(numEntries)
	if offset < 0 || offset+size > w.arr.Size() {
		return 0, fmt.Errorf("writing tree of %d words at %d: array holds %d words", size, offset, w.arr.Size())
	}
	h := MakeHeader(w.ctx, offset, numEntries)
	if h.Layers > w.ctx.MaxLayers {
		return 0, fmt.Errorf("writing tree: %d entries need %d layers, limit is %d", numEntries, h.Layers, w.ctx.MaxLayers)
	}
	h.write(w.arr, offset)

	es := w.ctx.EntrySize
	data := w.arr.Range(h.DataOffset, h.DataOffset+numEntries*es)
	if err := fill(data); err != nil {
		return 0, fmt.Errorf("filling tree data: %w", err)
	}
	if !data.IsSortedN(es, 0, data.Size()) {
		return 0, fmt.Errorf("filling tree data: entries are not in ascending key order")
	}

	w.writeIndex(h, data)
	return size, nil
}

func (w *Writer) writeIndex(h Header, data *array.LongArray) {
	p := w.ctx.PageSize()
	es := w.ctx.EntrySize
	keys := w.ctx.layerKeys(h.NumEntries)
	starts := layerStarts(h.IndexOffset, keys, p)

	for l, n := range keys {
		layerStart := starts[l]
		for i := 0; i < n; i++ {
			var key int64
			if l == 0 {
				last := min((i+1)*p, h.NumEntries) - 1
				key = data.Get(last * es)
			} else {
				below := keys[l-1]
				last := min((i+1)*p, below) - 1
				key = w.arr.Get(starts[l-1] + last)
			}
			w.arr.Set(layerStart+i, key)
		}
		padEnd := layerStart + ceilDiv(n, p)*p
		w.arr.Fill(layerStart+n, padEnd, math.MaxInt64)
	}
}

// layerStarts returns the absolute offset of each layer, bottom first, for
// an index region that stores the top layer first.
func layerStarts(indexOffset int, keys []int, p int) []int {
	starts := make([]int, len(keys))
	pos := indexOffset
	for l := len(keys) - 1; l >= 0; l-- {
		starts[l] = pos
		pos += ceilDiv(keys[l], p) * p
	}
	return starts
}
