package sequence

import (
	"math/bits"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

type BitReader struct {
	arr      *array.LongArray
	pos      int
	word     uint64
	bitsLeft int
	read     int
}

func NewBitReader(arr *array.LongArray) *BitReader {
	return &BitReader{arr: arr}
}

// HasMore reports whether unread bits remain in the backing words.
func (r *BitReader) HasMore() bool {
	return r.read < r.arr.Size()*64
}

func (r *BitReader) GetBit() bool {
	return r.get(1) == 1
}

// Get reads a width-bit field written by PutBits.
func (r *BitReader) Get(width int) uint32 {
	if width < 0 || width > MaxFieldWidth {
		panic(pkgerrors.Newf(pkgerrors.ErrInvalidCodecInput, "field width %d", width))
	}
	return uint32(r.get(width))
}

func (r *BitReader) get(width int) uint64 {
	if width == 0 {
		return 0
	}
	if r.bitsLeft == 0 {
		r.load()
	}
	r.read += width
	if width <= r.bitsLeft {
		r.bitsLeft -= width
		return (r.word >> r.bitsLeft) & mask(width)
	}
	first := r.bitsLeft
	hi := r.word & mask(first)
	rest := width - first
	r.load()
	r.bitsLeft -= rest
	return hi<<rest | (r.word>>r.bitsLeft)&mask(rest)
}

// TakeWhileZero consumes zero bits up to (not including) the next one bit and
// returns how many it consumed.
func (r *BitReader) TakeWhileZero() int {
	count := 0
	for {
		if r.bitsLeft == 0 {
			r.load()
		}
		rem := r.word & mask(r.bitsLeft)
		if rem == 0 {
			count += r.bitsLeft
			r.read += r.bitsLeft
			r.bitsLeft = 0
			continue
		}
		zeros := bits.LeadingZeros64(rem) - (64 - r.bitsLeft)
		count += zeros
		r.read += zeros
		r.bitsLeft -= zeros
		return count
	}
}

func (r *BitReader) GetGamma() int {
	zeros := r.TakeWhileZero()
	return int(r.get(zeros + 1))
}

func (r *BitReader) GetDelta() int {
	b := r.GetGamma()
	return int(r.get(b))
}

func (r *BitReader) load() {
	r.word = uint64(r.arr.Get(r.pos))
	r.pos++
	r.bitsLeft = 64
}
