package btree

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/array"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

var smallCtx = Context{MaxLayers: 8, EntrySize: 2, BlockSizeBits: 2}

// writeTree writes keys (with value key*10 in slot 1) at offset and returns a
// reader over it.
func writeTree(t *testing.T, arr *array.LongArray, ctx Context, offset int, keys []int64) *Reader {
	t.Helper()
	_, err := NewWriter(arr, ctx).Write(offset, len(keys), func(data *array.LongArray) error {
		for i, k := range keys {
			data.Set(i*ctx.EntrySize, k)
			if ctx.EntrySize > 1 {
				data.Set(i*ctx.EntrySize+1, k*10)
			}
		}
		return nil
	})
	require.NoError(t, err)
	r, err := NewReader(arr, ctx, offset)
	require.NoError(t, err)
	return r
}

func spacedKeys(n int) []int64 {
	keys := make([]int64, n)
	for i := range keys {
		keys[i] = int64(3*i + 1)
	}
	return keys
}

func TestLayerCount(t *testing.T) {
	ctx := Context{MaxLayers: 8, EntrySize: 1, BlockSizeBits: 6}
	p := ctx.PageSize()

	assert.Equal(t, 0, ctx.NumIndexLayers(0))
	assert.Equal(t, 0, ctx.NumIndexLayers(p/2))
	assert.Equal(t, 0, ctx.NumIndexLayers(p))
	assert.Equal(t, 1, ctx.NumIndexLayers(p+1))
	assert.Equal(t, 1, ctx.NumIndexLayers(p*p-1))
	assert.Equal(t, 1, ctx.NumIndexLayers(p*p))
	assert.Equal(t, 2, ctx.NumIndexLayers(p*p+1))
	assert.Equal(t, 3, ctx.NumIndexLayers(p*p*p+1))
}

func TestSmallTreeHasNoIndex(t *testing.T) {
	ctx := Context{MaxLayers: 3, EntrySize: 2, BlockSizeBits: 6}
	h := MakeHeader(ctx, 1024, ctx.PageSize()/2)

	assert.Equal(t, 0, h.Layers)
	assert.Equal(t, 1024+HeaderSize, h.IndexOffset)
	assert.Equal(t, h.IndexOffset, h.DataOffset)
	assert.Equal(t, HeaderSize+ctx.PageSize(), ctx.CalculateSize(ctx.PageSize()/2))
}

func TestFindEntryAcrossLayers(t *testing.T) {
	for _, n := range []int{1, 3, 4, 5, 16, 17, 64, 65, 1000} {
		t.Run(fmt.Sprintf("entries=%d", n), func(t *testing.T) {
			keys := spacedKeys(n)
			arr := array.Allocate(smallCtx.CalculateSize(n))
			r := writeTree(t, arr, smallCtx, 0, keys)

			assert.Equal(t, n, r.NumEntries())
			for i, k := range keys {
				idx := r.FindEntry(k)
				require.Equal(t, i, idx, "key %d", k)
				assert.Equal(t, k*10, r.ValueAt(idx, 1))
			}
			for _, k := range keys {
				assert.Negative(t, r.FindEntry(k-1))
				assert.Negative(t, r.FindEntry(k+1))
			}
			assert.Negative(t, r.FindEntry(keys[n-1]+100))
			assert.Negative(t, r.FindEntry(-5))
		})
	}
}

func TestQueryData(t *testing.T) {
	keys := spacedKeys(200)
	arr := array.Allocate(smallCtx.CalculateSize(len(keys)))
	r := writeTree(t, arr, smallCtx, 0, keys)

	query := []int64{0, 1, 2, 4, 60, 62, 300, 598, 1000, 5000}
	got := r.QueryData(query, 1)

	want := []int64{0, 10, 0, 40, 0, 0, 0, 5980, 0, 0}
	assert.Equal(t, want, got)
}

func TestCursorRestartsOnDescendingKey(t *testing.T) {
	keys := spacedKeys(100)
	arr := array.Allocate(smallCtx.CalculateSize(len(keys)))
	r := writeTree(t, arr, smallCtx, 0, keys)

	c := r.NewCursor()
	assert.True(t, c.Contains(4))
	assert.True(t, c.Contains(295))
	assert.False(t, c.Contains(10000))
	assert.True(t, c.Contains(7), "a smaller key restarts from the root")
	assert.False(t, c.Contains(8))
	assert.True(t, c.Contains(10))
}

func TestSeveralTreesInOneArray(t *testing.T) {
	ctx := Context{MaxLayers: 4, EntrySize: 2, BlockSizeBits: 3}
	first := spacedKeys(70)
	second := []int64{5, 6, 7}

	size1 := ctx.CalculateSize(len(first))
	size2 := ctx.CalculateSize(len(second))
	path := filepath.Join(t.TempDir(), "trees.dat")
	arr, err := array.MmapForWritingConfined(path, size1+size2)
	require.NoError(t, err)
	writeTree(t, arr, ctx, 0, first)
	writeTree(t, arr, ctx, size1, second)
	require.NoError(t, arr.Close())

	ro, err := array.MmapForReadingShared(path)
	require.NoError(t, err)
	defer ro.Close()

	r1, err := NewReader(ro, ctx, 0)
	require.NoError(t, err)
	r2, err := NewReader(ro, ctx, size1)
	require.NoError(t, err)

	assert.Equal(t, 69, r1.FindEntry(first[69]))
	assert.Equal(t, int64(60), r2.ValueAt(r2.FindEntry(6), 1))
	assert.Negative(t, r2.FindEntry(first[0]))
}

func TestRandomTreesMatchSortedSet(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 20; round++ {
		n := 1 + rng.Intn(3000)
		set := map[int64]bool{}
		for len(set) < n {
			set[rng.Int63n(1<<40)] = true
		}
		keys := make([]int64, 0, n)
		for k := range set {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		ctx := Context{MaxLayers: 16, EntrySize: 2, BlockSizeBits: 1 + rng.Intn(6)}
		arr := array.Allocate(ctx.CalculateSize(n))
		r := writeTree(t, arr, ctx, 0, keys)

		for i := 0; i < 200; i++ {
			k := keys[rng.Intn(n)]
			require.GreaterOrEqual(t, r.FindEntry(k), 0)
			key := rng.Int63n(1 << 40)
			assert.Equal(t, set[key], r.FindEntry(key) >= 0)
		}
	}
}

func TestEmptyTree(t *testing.T) {
	arr := array.Allocate(smallCtx.CalculateSize(0))
	r := writeTree(t, arr, smallCtx, 0, nil)
	assert.Equal(t, 0, r.NumEntries())
	assert.Negative(t, r.FindEntry(1))
	assert.Equal(t, []int64{0}, r.QueryData([]int64{1}, 1))
}

func TestWriteRejectsTooManyLayers(t *testing.T) {
	ctx := Context{MaxLayers: 1, EntrySize: 1, BlockSizeBits: 1}
	arr := array.Allocate(ctx.CalculateSize(100))
	_, err := NewWriter(arr, ctx).Write(0, 100, func(*array.LongArray) error { return nil })
	assert.Error(t, err)
}

func TestWriteRejectsUnsortedData(t *testing.T) {
	arr := array.Allocate(smallCtx.CalculateSize(3))
	_, err := NewWriter(arr, smallCtx).Write(0, 3, func(data *array.LongArray) error {
		data.Set(0, 5)
		data.Set(2, 3)
		data.Set(4, 9)
		return nil
	})
	assert.Error(t, err)
}

func TestWriteRejectsOverflow(t *testing.T) {
	arr := array.Allocate(smallCtx.CalculateSize(10) - 1)
	_, err := NewWriter(arr, smallCtx).Write(0, 10, func(*array.LongArray) error { return nil })
	assert.Error(t, err)
}

func TestReaderRejectsCorruptHeader(t *testing.T) {
	keys := spacedKeys(40)
	arr := array.Allocate(smallCtx.CalculateSize(len(keys)))
	writeTree(t, arr, smallCtx, 0, keys)

	arr.Set(2, int64(arr.Size()+10))
	_, err := NewReader(arr, smallCtx, 0)
	assert.ErrorIs(t, err, pkgerrors.ErrCorruptIndex)

	_, err = NewReader(arr, smallCtx, arr.Size())
	assert.ErrorIs(t, err, pkgerrors.ErrCorruptIndex)
}

func BenchmarkFindEntry(b *testing.B) {
	ctx := Context{MaxLayers: 5, EntrySize: 2, BlockSizeBits: 7}
	const n = 1 << 18
	arr := array.Allocate(ctx.CalculateSize(n))
	_, err := NewWriter(arr, ctx).Write(0, n, func(data *array.LongArray) error {
		for i := 0; i < n; i++ {
			data.Set(2*i, int64(i*2))
		}
		return nil
	})
	require.NoError(b, err)
	r, err := NewReader(arr, ctx, 0)
	require.NoError(b, err)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.FindEntry(int64((i * 7919) % (2 * n)))
	}
}
