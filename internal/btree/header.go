package btree

import (
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

type Header struct {
	Layers      int
	NumEntries  int
	IndexOffset int
	DataOffset  int
}

// MakeHeader computes the header of a tree of numEntries written at offset.
func MakeHeader(ctx Context, offset, numEntries int) Header {
	indexOffset := offset + HeaderSize
	return Header{
		Layers:      ctx.NumIndexLayers(numEntries),
		NumEntries:  numEntries,
		IndexOffset: indexOffset,
		DataOffset:  indexOffset + ctx.indexWords(numEntries),
	}
}

func (h Header) write(arr *array.LongArray, offset int) {
	arr.Set(offset, int64(h.Layers)<<layerShift|int64(h.NumEntries))
	arr.Set(offset+1, int64(h.IndexOffset))
	arr.Set(offset+2, int64(h.DataOffset))
}

// ReadHeader decodes and sanity checks the header at offset.
func ReadHeader(arr *array.LongArray, offset int) (Header, error) {
	if offset < 0 || offset+HeaderSize > arr.Size() {
		return Header{}, pkgerrors.Newf(pkgerrors.ErrCorruptIndex, "tree header at %d beyond %d words", offset, arr.Size())
	}
	w0 := arr.Get(offset)
	h := Header{
		Layers:      int(w0 >> layerShift),
		NumEntries:  int(w0 & (1<<layerShift - 1)),
		IndexOffset: int(arr.Get(offset + 1)),
		DataOffset:  int(arr.Get(offset + 2)),
	}
	if h.IndexOffset != offset+HeaderSize || h.DataOffset < h.IndexOffset || h.DataOffset > arr.Size() {
		return Header{}, pkgerrors.Newf(pkgerrors.ErrCorruptIndex, "tree header at %d: index %d data %d", offset, h.IndexOffset, h.DataOffset)
	}
	return h, nil
}
