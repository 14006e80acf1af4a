// Package sequence implements a bit-level codec over LongArray storage:
// fixed-width fields, Elias gamma and Elias delta codes. Bits are packed
// most-significant first within each word, so the byte image of a finished
// writer reads in the same order the bits were written.
package sequence

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

// MaxFieldWidth is the widest field PutBits and Get accept.
const MaxFieldWidth = 32

// MaxCodable is the largest value the gamma and delta codes accept.
const MaxCodable = math.MaxInt32

type BitWriter struct {
	arr      *array.LongArray
	pos      int
	word     uint64
	bitsLeft int
	total    int
	finished bool
}

func NewBitWriter(arr *array.LongArray) *BitWriter {
	return &BitWriter{arr: arr, bitsLeft: 64}
}

func (w *BitWriter) PutBit(bit bool) {
	var v uint64
	if bit {
		v = 1
	}
	w.putBits(v, 1)
}

// PutBits writes the low width bits of value, most significant first.
func (w *BitWriter) PutBits(value uint32, width int) {
	if width < 0 || width > MaxFieldWidth {
		panic(pkgerrors.Newf(pkgerrors.ErrInvalidCodecInput, "field width %d", width))
	}
	w.putBits(uint64(value), width)
}

func (w *BitWriter) putBits(value uint64, width int) {
	if width == 0 {
		return
	}
	value &= mask(width)
	if width <= w.bitsLeft {
		w.bitsLeft -= width
		w.word |= value << w.bitsLeft
		if w.bitsLeft == 0 {
			w.flushWord()
		}
	} else {
		spill := width - w.bitsLeft
		w.word |= value >> spill
		w.flushWord()
		w.bitsLeft = 64 - spill
		w.word = value << w.bitsLeft
	}
	w.total += width
}

// PutGamma writes v as an Elias gamma code: bits.Len(v)-1 zero bits followed
// by v itself.
func (w *BitWriter) PutGamma(v int) error {
	if v <= 0 || v > MaxCodable {
		return pkgerrors.Newf(pkgerrors.ErrInvalidCodecInput, "gamma code of %d", v)
	}
	b := bits.Len64(uint64(v))
	w.putBits(0, b-1)
	w.putBits(uint64(v), b)
	return nil
}

// PutDelta writes v as an Elias delta code: the gamma code of bits.Len(v)
// followed by all bits.Len(v) bits of v.
func (w *BitWriter) PutDelta(v int) error {
	if v <= 0 || v > MaxCodable {
		return pkgerrors.Newf(pkgerrors.ErrInvalidCodecInput, "delta code of %d", v)
	}
	b := bits.Len64(uint64(v))
	if err := w.PutGamma(b); err != nil {
		return err
	}
	w.putBits(uint64(v), b)
	return nil
}

// BitsWritten returns the number of bits written so far.
func (w *BitWriter) BitsWritten() int {
	return w.total
}

// Finish writes out the partially filled last word and returns the number of
// meaningful bytes.
func (w *BitWriter) Finish() int {
	if !w.finished {
		if w.bitsLeft < 64 {
			w.arr.Set(w.pos, int64(w.word))
		}
		w.finished = true
	}
	return (w.total + 7) / 8
}

// Bytes finishes the writer and returns its byte image.
func (w *BitWriter) Bytes() []byte {
	n := w.Finish()
	words := (n + 7) / 8
	out := make([]byte, words*8)
	for i := 0; i < words; i++ {
		binary.BigEndian.PutUint64(out[i*8:], uint64(w.arr.Get(i)))
	}
	return out[:n]
}

func (w *BitWriter) flushWord() {
	w.arr.Set(w.pos, int64(w.word))
	w.pos++
	w.word = 0
	w.bitsLeft = 64
}

// FromBytes loads a byte image produced by Bytes back into words.
func FromBytes(b []byte) *array.LongArray {
	words := make([]int64, (len(b)+7)/8)
	var buf [8]byte
	for i := range words {
		n := copy(buf[:], b[i*8:])
		clear(buf[n:])
		words[i] = int64(binary.BigEndian.Uint64(buf[:]))
	}
	return array.Wrap(words)
}

func mask(width int) uint64 {
	if width >= 64 {
		return math.MaxUint64
	}
	return 1<<uint(width) - 1
}
