package array

import (
	"fmt"
	"os"
)

// Spans shorter than this many entries are insertion sorted.
const insertionSortThreshold = 32

// SortingContext bounds how much of a span is sorted in memory at once.
// Spans larger than MemorySortLimit words are merge sorted through a scratch
// file in WorkDir.
type SortingContext struct {
	WorkDir         string
	MemorySortLimit int
}

// IsSorted reports whether [start, end) is non-decreasing.
func (a *LongArray) IsSorted(start, end int) bool {
	return a.IsSortedN(1, start, end)
}

// IsSortedN reports whether the n-word entries in [start, end) are
// non-decreasing by their first word.
func (a *LongArray) IsSortedN(n, start, end int) bool {
	a.checkRange(start, end)
	for i := start + n; i < end; i += n {
		if a.data[i] < a.data[i-n] {
			return false
		}
	}
	return true
}

func (a *LongArray) InsertionSort(start, end int) {
	a.InsertionSortN(1, start, end)
}

// InsertionSortN sorts the n-word entries of [start, end) by their first word.
func (a *LongArray) InsertionSortN(n, start, end int) {
	a.mustWritable()
	a.checkSpan(n, start, end)
	insertionSortN(a.data[start:end], n)
}

func (a *LongArray) QuickSort(start, end int) {
	a.QuickSortN(1, start, end)
}

// QuickSortN sorts the n-word entries of [start, end) by their first word.
// The sort is not stable.
func (a *LongArray) QuickSortN(n, start, end int) {
	a.mustWritable()
	a.checkSpan(n, start, end)
	quickSortN(a.data[start:end], n)
}

func (a *LongArray) SortLargeSpan(ctx SortingContext, start, end int) error {
	return a.SortLargeSpanN(ctx, 1, start, end)
}

// SortLargeSpanN sorts like QuickSortN when the span fits in
// ctx.MemorySortLimit and otherwise sorts limit-sized runs in place and merges
// them back and forth through a temporary file mapping.
func (a *LongArray) SortLargeSpanN(ctx SortingContext, n, start, end int) error {
	a.mustWritable()
	a.checkSpan(n, start, end)
	span := end - start
	if ctx.MemorySortLimit <= 0 || span <= ctx.MemorySortLimit {
		quickSortN(a.data[start:end], n)
		return nil
	}

	d := a.data[start:end]
	run := (ctx.MemorySortLimit / n) * n
	if run < n {
		run = n
	}
	for off := 0; off < span; off += run {
		quickSortN(d[off:min(off+run, span)], n)
	}

	scratch, cleanup, err := scratchArray(ctx.WorkDir, span)
	if err != nil {
		return fmt.Errorf("allocating merge scratch space: %w", err)
	}
	defer cleanup()

	src, dst := d, scratch.data
	for width := run; width < span; width *= 2 {
		for lo := 0; lo < span; lo += 2 * width {
			mid := min(lo+width, span)
			hi := min(lo+2*width, span)
			mergeN(dst[lo:hi], src[lo:mid], src[mid:hi], n)
		}
		src, dst = dst, src
	}
	if &src[0] != &d[0] {
		copy(d, src)
	}
	return nil
}

func scratchArray(dir string, size int) (*LongArray, func(), error) {
	f, err := os.CreateTemp(dir, "sort-*.dat")
	if err != nil {
		return nil, nil, err
	}
	path := f.Name()
	f.Close()
	arr, err := MmapForWritingConfined(path, size)
	if err != nil {
		os.Remove(path)
		return nil, nil, err
	}
	return arr, func() {
		arr.Close()
		os.Remove(path)
	}, nil
}

func (a *LongArray) checkSpan(n, start, end int) {
	a.checkRange(start, end)
	if n <= 0 || (end-start)%n != 0 {
		panic(fmt.Sprintf("array: span [%d, %d) is not a whole number of %d-word entries", start, end, n))
	}
}

func swapN(d []int64, n, i, j int) {
	i *= n
	j *= n
	for k := 0; k < n; k++ {
		d[i+k], d[j+k] = d[j+k], d[i+k]
	}
}

func insertionSortN(d []int64, n int) {
	m := len(d) / n
	for i := 1; i < m; i++ {
		for j := i; j > 0 && d[j*n] < d[(j-1)*n]; j-- {
			swapN(d, n, j, j-1)
		}
	}
}

func quickSortN(d []int64, n int) {
	for len(d)/n > insertionSortThreshold {
		lt, gt := partitionN(d, n)
		left, right := d[:lt*n], d[gt*n:]
		if len(left) < len(right) {
			quickSortN(left, n)
			d = right
		} else {
			quickSortN(right, n)
			d = left
		}
	}
	insertionSortN(d, n)
}

// partitionN does a three-way partition around a median-of-three pivot and
// returns the entry bounds of the run equal to the pivot.
func partitionN(d []int64, n int) (lt, gt int) {
	m := len(d) / n
	pivot := medianOf3(d[0], d[(m/2)*n], d[(m-1)*n])
	lt, i, gt := 0, 0, m
	for i < gt {
		switch k := d[i*n]; {
		case k < pivot:
			swapN(d, n, lt, i)
			lt++
			i++
		case k > pivot:
			gt--
			swapN(d, n, i, gt)
		default:
			i++
		}
	}
	return lt, gt
}

func medianOf3(a, b, c int64) int64 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		return a
	}
	return b
}

func mergeN(dst, left, right []int64, n int) {
	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		if left[i] <= right[j] {
			copy(dst[k:k+n], left[i:i+n])
			i += n
		} else {
			copy(dst[k:k+n], right[j:j+n])
			j += n
		}
		k += n
	}
	k += copy(dst[k:], left[i:])
	copy(dst[k:], right[j:])
}
