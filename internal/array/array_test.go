package array

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/edge-index/pkg/errors"
)

func TestGetSetRangeShifted(t *testing.T) {
	a := Allocate(16)
	for i := 0; i < a.Size(); i++ {
		a.Set(i, int64(i*10))
	}

	view := a.Range(4, 8)
	assert.Equal(t, 4, view.Size())
	assert.Equal(t, int64(40), view.Get(0))

	view.Set(1, -1)
	assert.Equal(t, int64(-1), a.Get(5), "views share storage with their parent")

	shifted := a.Shifted(12)
	assert.Equal(t, 4, shifted.Size())
	assert.Equal(t, int64(150), shifted.Get(3))

	assert.Equal(t, int64(1), a.Increment(0))
}

func TestRangeOutOfBoundsPanics(t *testing.T) {
	a := Allocate(4)
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, pkgerrors.ErrOutOfBounds))
	}()
	a.Range(2, 5)
}

func TestGetOutOfBoundsPanics(t *testing.T) {
	a := Allocate(4)
	assert.Panics(t, func() { a.Get(4) })
	assert.Panics(t, func() { a.Set(-1, 0) })
}

func TestSwapN(t *testing.T) {
	a := Wrap([]int64{1, 2, 3, 4, 5, 6})
	a.SwapN(2, 0, 4)
	assert.Equal(t, []int64{5, 6, 3, 4, 1, 2}, a.Words())
}

func TestFoldAndTransform(t *testing.T) {
	a := Wrap([]int64{1, 2, 3, 4})
	sum := a.Fold(0, 0, 4, func(acc, v int64) int64 { return acc + v })
	assert.Equal(t, int64(10), sum)

	a.TransformEach(1, 3, func(pos int, old int64) int64 { return old * int64(pos) })
	assert.Equal(t, []int64{1, 2, 6, 4}, a.Words())

	visited := 0
	a.ForEach(0, 4, func(pos int, v int64) { visited++ })
	assert.Equal(t, 4, visited)

	stop := errors.New("stop")
	_, err := a.FoldErr(0, 0, 4, func(acc, v int64) (int64, error) {
		if v == 6 {
			return acc, stop
		}
		return acc + v, nil
	})
	assert.ErrorIs(t, err, stop)
}

func TestCountsToOffsets(t *testing.T) {
	a := Wrap([]int64{3, 0, 2, 1})
	total := a.CountsToOffsets(2)
	assert.Equal(t, int64(12), total)
	assert.Equal(t, []int64{0, 6, 6, 10}, a.Words())
}

func TestMmapWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.dat")

	w, err := MmapForWritingConfined(path, 1000)
	require.NoError(t, err)
	for i := 0; i < w.Size(); i++ {
		w.Set(i, int64(i)*3)
	}
	require.NoError(t, w.Force())
	require.NoError(t, w.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1000*WordSize), st.Size())

	r, err := MmapForReadingShared(path)
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.IsReadOnly())
	assert.True(t, r.IsShared())
	assert.Equal(t, 1000, r.Size())
	assert.Equal(t, int64(2997), r.Get(999))
	assert.Panics(t, func() { r.Set(0, 1) })
}

func TestMmapModifyPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.dat")
	require.NoError(t, Wrap([]int64{5, 6, 7}).WriteFile(path))

	m, err := MmapForModifyingConfined(path)
	require.NoError(t, err)
	m.Set(1, 60)
	require.NoError(t, m.Close())

	loaded, err := MmapForReadingConfined(path)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Equal(t, []int64{5, 60, 7}, loaded.Words())
}

func TestMmapEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.dat")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	a, err := MmapForReadingConfined(path)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Size())
	assert.NoError(t, a.Close())
}

func TestMmapRejectsRaggedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.dat")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, err := MmapForReadingShared(path)
	assert.Error(t, err)
}

func TestSharedCloseIsIdempotentAcrossGoroutines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.dat")
	require.NoError(t, Wrap([]int64{1, 2, 3, 4}).WriteFile(path))

	a, err := MmapForReadingShared(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Close())
		}()
	}
	wg.Wait()
}

func TestSortVariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sizes := []int{0, 1, 2, 31, 32, 33, 500, 5000}
	for _, size := range sizes {
		data := make([]int64, size)
		for i := range data {
			data[i] = rng.Int63n(int64(size/2 + 1))
		}
		want := slices.Clone(data)
		slices.Sort(want)

		q := Wrap(slices.Clone(data))
		q.QuickSort(0, size)
		assert.Equal(t, want, q.Words(), "quicksort size %d", size)

		if size <= 500 {
			ins := Wrap(slices.Clone(data))
			ins.InsertionSort(0, size)
			assert.Equal(t, want, ins.Words(), "insertion sort size %d", size)
		}
	}
}

func TestQuickSortNKeepsEntriesTogether(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	const entries = 300
	a := Allocate(entries * 2)
	for i := 0; i < entries; i++ {
		k := rng.Int63n(1000)
		a.Set(2*i, k)
		a.Set(2*i+1, -k)
	}
	a.QuickSortN(2, 0, a.Size())

	require.True(t, a.IsSortedN(2, 0, a.Size()))
	for i := 0; i < entries; i++ {
		assert.Equal(t, -a.Get(2*i), a.Get(2*i+1))
	}
}

func TestSortLargeSpanUsesScratchFile(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const entries = 1000
	a := Allocate(entries * 2)
	for i := 0; i < entries; i++ {
		k := rng.Int63()
		a.Set(2*i, k)
		a.Set(2*i+1, k%97)
	}
	dir := t.TempDir()
	err := a.SortLargeSpanN(SortingContext{WorkDir: dir, MemorySortLimit: 64}, 2, 0, a.Size())
	require.NoError(t, err)

	assert.True(t, a.IsSortedN(2, 0, a.Size()))
	for i := 0; i < entries; i++ {
		assert.Equal(t, a.Get(2*i)%97, a.Get(2*i+1))
	}

	leftovers, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "scratch files are removed")
}

func TestSortLargeSpanSubrange(t *testing.T) {
	a := Wrap([]int64{99, 5, 4, 3, 2, 1, -99})
	require.NoError(t, a.SortLargeSpan(SortingContext{WorkDir: t.TempDir(), MemorySortLimit: 2}, 1, 6))
	assert.Equal(t, []int64{99, 1, 2, 3, 4, 5, -99}, a.Words())
}

func TestSearches(t *testing.T) {
	a := Wrap([]int64{2, 4, 4, 8, 16, 32})

	assert.Equal(t, 3, a.BinarySearch(8, 0, 6))
	assert.Equal(t, 1, a.BinarySearch(4, 0, 6))
	assert.Equal(t, EncodeSearchMiss(3), a.BinarySearch(5, 0, 6))
	assert.Equal(t, 3, DecodeSearchMiss(a.BinarySearch(5, 0, 6)))
	assert.Equal(t, EncodeSearchMiss(6), a.BinarySearch(64, 0, 6))

	assert.Equal(t, 4, a.BinarySearchUpperBound(9, 0, 6))
	assert.Equal(t, 6, a.BinarySearchUpperBound(33, 0, 6))
	assert.Equal(t, 0, a.BinarySearchUpperBound(-1, 0, 6))

	assert.Equal(t, 3, a.LinearSearch(8, 0, 6))
	assert.Equal(t, EncodeSearchMiss(0), a.LinearSearch(1, 0, 6))
}

func TestBinarySearchN(t *testing.T) {
	a := Wrap([]int64{10, 100, 20, 200, 30, 300})
	assert.Equal(t, 2, a.BinarySearchN(2, 20, 0, 6))
	assert.Equal(t, EncodeSearchMiss(4), a.BinarySearchN(2, 25, 0, 6))
	assert.Equal(t, 4, a.BinarySearchUpperBoundN(2, 25, 0, 6))
}

func TestInterpolationSearchMatchesBinarySearch(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	data := make([]int64, 4096)
	for i := range data {
		data[i] = rng.Int63n(1 << 40)
	}
	slices.Sort(data)
	a := Wrap(data)

	for i := 0; i < 500; i++ {
		key := data[rng.Intn(len(data))]
		pos := a.InterpolationSearch(key, 0, len(data))
		require.GreaterOrEqual(t, pos, 0)
		assert.Equal(t, key, a.Get(pos))
		assert.Equal(t, a.BinarySearch(key, 0, len(data)), pos)

		miss := rng.Int63n(1 << 40)
		if a.BinarySearch(miss, 0, len(data)) < 0 {
			assert.Less(t, a.InterpolationSearch(miss, 0, len(data)), 0)
		}
	}
}

func BenchmarkQuickSort(b *testing.B) {
	rng := rand.New(rand.NewSource(5))
	src := make([]int64, 1<<16)
	for i := range src {
		src[i] = rng.Int63()
	}
	buf := Allocate(len(src))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		copy(buf.Words(), src)
		buf.QuickSort(0, buf.Size())
	}
}
