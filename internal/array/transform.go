package array

// Fold reduces [start, end) left to right.
func (a *LongArray) Fold(zero int64, start, end int, fn func(acc, value int64) int64) int64 {
	a.checkRange(start, end)
	acc := zero
	for _, v := range a.data[start:end] {
		acc = fn(acc, v)
	}
	return acc
}

// FoldErr is Fold with a fallible reducer; it stops at the first error.
func (a *LongArray) FoldErr(zero int64, start, end int, fn func(acc, value int64) (int64, error)) (int64, error) {
	a.checkRange(start, end)
	acc := zero
	for _, v := range a.data[start:end] {
		var err error
		if acc, err = fn(acc, v); err != nil {
			return acc, err
		}
	}
	return acc, nil
}

// ForEach calls fn with every position and value in [start, end).
func (a *LongArray) ForEach(start, end int, fn func(pos int, value int64)) {
	a.checkRange(start, end)
	for i := start; i < end; i++ {
		fn(i, a.data[i])
	}
}

// TransformEach replaces every value in [start, end) with fn(pos, value).
func (a *LongArray) TransformEach(start, end int, fn func(pos int, old int64) int64) {
	a.mustWritable()
	a.checkRange(start, end)
	for i := start; i < end; i++ {
		a.data[i] = fn(i, a.data[i])
	}
}

// TransformEachErr is TransformEach with a fallible transform.
func (a *LongArray) TransformEachErr(start, end int, fn func(pos int, old int64) (int64, error)) error {
	a.mustWritable()
	a.checkRange(start, end)
	for i := start; i < end; i++ {
		v, err := fn(i, a.data[i])
		if err != nil {
			return err
		}
		a.data[i] = v
	}
	return nil
}

// CountsToOffsets replaces per-bucket counts with the start offset of each
// bucket, counting entrySize words per entry, and returns the total size.
func (a *LongArray) CountsToOffsets(entrySize int) int64 {
	var total int64
	a.TransformEach(0, len(a.data), func(_ int, count int64) int64 {
		offset := total
		total += count * int64(entrySize)
		return offset
	})
	return total
}
