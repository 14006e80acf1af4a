package sequence

import (
	"iter"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

// GammaCodedSequence stores a strictly ascending run of non-negative ints,
// typically term positions within a document. The layout is gamma(count+1),
// gamma(first+1), then gamma(gap) for every following value.
type GammaCodedSequence struct {
	data []byte
}

// EncodeGammaSequence packs values into a GammaCodedSequence.
func EncodeGammaSequence(values []int) (*GammaCodedSequence, error) {
	// Worst case per value is 2*31 bits; one word per value plus the count
	// is always enough.
	w := NewBitWriter(array.Allocate(len(values) + 2))
	if err := putGammaRun(w, values); err != nil {
		return nil, err
	}
	return &GammaCodedSequence{data: w.Bytes()}, nil
}

// EncodeGammaSequences writes several ascending runs back to back into one
// bit stream, each laid out like a GammaCodedSequence. Runs that are all
// empty encode to no words at all.
func EncodeGammaSequences(runs [][]int) ([]int64, error) {
	values := 0
	for _, r := range runs {
		values += len(r)
	}
	if values == 0 {
		return nil, nil
	}
	arr := array.Allocate(values + len(runs) + 1)
	w := NewBitWriter(arr)
	for _, r := range runs {
		if err := putGammaRun(w, r); err != nil {
			return nil, err
		}
	}
	n := w.Finish()
	return arr.Words()[:(n+7)/8], nil
}

// DecodeGammaSequences reads back n runs written by EncodeGammaSequences.
// Empty runs, and every run of an empty stream, come back nil.
func DecodeGammaSequences(words []int64, n int) [][]int {
	out := make([][]int, n)
	if len(words) == 0 {
		return out
	}
	r := NewBitReader(array.Wrap(words))
	for i := range out {
		count := r.GetGamma() - 1
		if count <= 0 {
			continue
		}
		run := make([]int, count)
		prev := -1
		for j := range run {
			prev += r.GetGamma()
			run[j] = prev
		}
		out[i] = run
	}
	return out
}

func putGammaRun(w *BitWriter, values []int) error {
	if err := w.PutGamma(len(values) + 1); err != nil {
		return err
	}
	prev := -1
	for i, v := range values {
		if v <= prev {
			return pkgerrors.Newf(pkgerrors.ErrInvalidCodecInput, "value %d at %d is not above %d", v, i, prev)
		}
		if err := w.PutGamma(v - prev); err != nil {
			return err
		}
		prev = v
	}
	return nil
}

// GammaSequenceFromBytes wraps bytes produced by Bytes.
func GammaSequenceFromBytes(b []byte) *GammaCodedSequence {
	return &GammaCodedSequence{data: b}
}

func (s *GammaCodedSequence) Bytes() []byte {
	return s.data
}

func (s *GammaCodedSequence) Len() int {
	if len(s.data) == 0 {
		return 0
	}
	return NewBitReader(FromBytes(s.data)).GetGamma() - 1
}

// All yields the decoded values in order.
func (s *GammaCodedSequence) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		if len(s.data) == 0 {
			return
		}
		r := NewBitReader(FromBytes(s.data))
		n := r.GetGamma() - 1
		prev := -1
		for i := 0; i < n; i++ {
			prev += r.GetGamma()
			if !yield(prev) {
				return
			}
		}
	}
}

func (s *GammaCodedSequence) Values() []int {
	out := make([]int, 0, s.Len())
	for v := range s.All() {
		out = append(out, v)
	}
	return out
}
