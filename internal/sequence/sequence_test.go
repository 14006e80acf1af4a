package sequence

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

func newWriter(words int) *BitWriter {
	return NewBitWriter(array.Allocate(words))
}

func TestPutBitsByteImage(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *BitWriter)
		want  []byte
	}{
		{
			name: "single bits",
			write: func(w *BitWriter) {
				for _, b := range []bool{false, true, true, true, true, true, true, false} {
					w.PutBit(b)
				}
			},
			want: []byte{0b0111_1110},
		},
		{
			name:  "field",
			write: func(w *BitWriter) { w.PutBits(0b0111_1110, 8) },
			want:  []byte{0x7E},
		},
		{
			name: "partial byte rounds up",
			write: func(w *BitWriter) {
				w.PutBits(0b101, 3)
				w.PutBits(0b11, 2)
				w.PutBit(true)
				w.PutBits(0b1, 4)
			},
			want: []byte{0b1011_1100, 0b0100_0000},
		},
		{
			name: "field split across words",
			write: func(w *BitWriter) {
				w.PutBits(0, 30)
				w.PutBits(0, 30)
				w.PutBits(0x0F, 8)
			},
			want: []byte{0, 0, 0, 0, 0, 0, 0, 0, 0xF0},
		},
		{
			name: "gamma codes",
			write: func(w *BitWriter) {
				require.NoError(t, w.PutGamma(1))
				require.NoError(t, w.PutGamma(2))
				require.NoError(t, w.PutGamma(5))
			},
			want: []byte{0b1010_0010, 0b1000_0000},
		},
		{
			name: "delta codes",
			write: func(w *BitWriter) {
				require.NoError(t, w.PutDelta(1))
				require.NoError(t, w.PutDelta(5))
			},
			want: []byte{0b1101_1101},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWriter(4)
			tt.write(w)
			assert.Equal(t, tt.want, w.Bytes())
		})
	}
}

func TestFinishByteCount(t *testing.T) {
	w := newWriter(2)
	assert.Equal(t, 0, w.Finish())

	w = newWriter(2)
	w.PutBits(1, 9)
	assert.Equal(t, 2, w.Finish())
	assert.Equal(t, 2, w.Finish(), "finish is idempotent")
}

func TestFieldRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	type field struct {
		v     uint32
		width int
	}
	fields := make([]field, 2000)
	for i := range fields {
		width := rng.Intn(MaxFieldWidth + 1)
		fields[i] = field{v: uint32(rng.Int63()) & uint32(mask(width)), width: width}
	}

	arr := array.Allocate(len(fields))
	w := NewBitWriter(arr)
	for _, f := range fields {
		w.PutBits(f.v, f.width)
	}
	w.Finish()

	r := NewBitReader(arr)
	for i, f := range fields {
		require.Equal(t, f.v, r.Get(f.width), "field %d", i)
	}
}

func TestGammaDeltaRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	values := []int{1, 2, 3, 4, 7, 8, 255, 256, 1 << 20, MaxCodable - 1, MaxCodable}
	for i := 0; i < 1000; i++ {
		values = append(values, 1+rng.Intn(MaxCodable))
	}

	arr := array.Allocate(len(values) * 3)
	w := NewBitWriter(arr)
	for i, v := range values {
		if i%2 == 0 {
			require.NoError(t, w.PutGamma(v))
		} else {
			require.NoError(t, w.PutDelta(v))
		}
		w.PutBit(i%3 == 0)
	}
	w.Finish()

	r := NewBitReader(arr)
	for i, v := range values {
		if i%2 == 0 {
			require.Equal(t, v, r.GetGamma(), "gamma value %d", i)
		} else {
			require.Equal(t, v, r.GetDelta(), "delta value %d", i)
		}
		require.Equal(t, i%3 == 0, r.GetBit())
	}
}

func TestRejectsNonPositiveInput(t *testing.T) {
	w := newWriter(1)
	for _, v := range []int{0, -1, math.MinInt32, MaxCodable + 1} {
		assert.ErrorIs(t, w.PutGamma(v), pkgerrors.ErrInvalidCodecInput, "gamma %d", v)
		assert.ErrorIs(t, w.PutDelta(v), pkgerrors.ErrInvalidCodecInput, "delta %d", v)
	}
	assert.Equal(t, 0, w.BitsWritten(), "rejected values write nothing")
}

func TestTakeWhileZeroAcrossWords(t *testing.T) {
	arr := array.Allocate(3)
	w := NewBitWriter(arr)
	w.PutBits(0, 32)
	w.PutBits(0, 32)
	w.PutBits(0, 30)
	w.PutBit(true)
	w.Finish()

	r := NewBitReader(arr)
	assert.Equal(t, 94, r.TakeWhileZero())
	assert.True(t, r.GetBit())
}

func TestBytesRoundTripThroughFromBytes(t *testing.T) {
	w := newWriter(8)
	for v := 1; v < 40; v++ {
		require.NoError(t, w.PutGamma(v))
	}
	r := NewBitReader(FromBytes(w.Bytes()))
	for v := 1; v < 40; v++ {
		assert.Equal(t, v, r.GetGamma())
	}
}

func TestGammaCodedSequence(t *testing.T) {
	values := []int{0, 1, 5, 9, 1000, 1 << 24}
	seq, err := EncodeGammaSequence(values)
	require.NoError(t, err)

	assert.Equal(t, len(values), seq.Len())
	assert.Equal(t, values, seq.Values())

	restored := GammaSequenceFromBytes(seq.Bytes())
	assert.Equal(t, values, restored.Values())

	var firstTwo []int
	for v := range restored.All() {
		firstTwo = append(firstTwo, v)
		if len(firstTwo) == 2 {
			break
		}
	}
	assert.Equal(t, []int{0, 1}, firstTwo)
}

func TestGammaCodedSequenceEmptyAndInvalid(t *testing.T) {
	seq, err := EncodeGammaSequence(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, seq.Len())
	assert.Empty(t, seq.Values())

	_, err = EncodeGammaSequence([]int{3, 3})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCodecInput)

	_, err = EncodeGammaSequence([]int{-2})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCodecInput)
}

func TestGammaSequencesShareOneStream(t *testing.T) {
	runs := [][]int{{0, 3, 17}, nil, {2}, {5, 6, 7, 1 << 20}}
	words, err := EncodeGammaSequences(runs)
	require.NoError(t, err)
	assert.Equal(t, runs, DecodeGammaSequences(words, len(runs)))

	single, err := EncodeGammaSequence(runs[0])
	require.NoError(t, err)
	assert.Equal(t, single.Values(), DecodeGammaSequences(words, 1)[0], "runs use the single sequence layout")

	empty, err := EncodeGammaSequences([][]int{nil, {}})
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, [][]int{nil, nil}, DecodeGammaSequences(empty, 2))

	_, err = EncodeGammaSequences([][]int{{1}, {4, 2}})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCodecInput)
}

func TestSequenceOperations(t *testing.T) {
	a := []int{1, 4, 9, 12}
	b := []int{2, 4, 12, 20}
	c := []int{4, 5, 12}

	assert.True(t, IntersectSequences(a, b, c))
	assert.Equal(t, []int{4, 12}, FindIntersections(a, b, c))
	assert.False(t, IntersectSequences(a, []int{2, 3}))
	assert.Empty(t, FindIntersections(a, nil))

	assert.Equal(t, 0, MinDistance(a, b, c))
	assert.Equal(t, 1, MinDistance([]int{1, 10}, []int{11, 30}))
	assert.Equal(t, 3, MinDistance([]int{1, 20}, []int{4}, []int{2}))
	assert.Equal(t, math.MaxInt, MinDistance(a, nil))
}
