package array

// Searches return the position of a match, or EncodeSearchMiss(p) where p is
// the position the key would be inserted at. Positions are absolute word
// offsets into the view.

const interpolationMinSpan = 64

// EncodeSearchMiss encodes an insertion point as a negative search result.
func EncodeSearchMiss(pos int) int {
	return -1 - pos
}

// DecodeSearchMiss recovers the insertion point from a negative search result.
func DecodeSearchMiss(result int) int {
	return -1 - result
}

func (a *LongArray) LinearSearch(key int64, start, end int) int {
	return a.LinearSearchN(1, key, start, end)
}

// LinearSearchN scans the n-word entries of a sorted span for key.
func (a *LongArray) LinearSearchN(n int, key int64, start, end int) int {
	a.checkRange(start, end)
	for pos := start; pos < end; pos += n {
		v := a.data[pos]
		if v == key {
			return pos
		}
		if v > key {
			return EncodeSearchMiss(pos)
		}
	}
	return EncodeSearchMiss(end)
}

func (a *LongArray) BinarySearch(key int64, start, end int) int {
	return a.BinarySearchN(1, key, start, end)
}

// BinarySearchN looks for key among the first words of the n-word entries of a
// sorted span.
func (a *LongArray) BinarySearchN(n int, key int64, start, end int) int {
	pos := a.BinarySearchUpperBoundN(n, key, start, end)
	if pos < end && a.data[pos] == key {
		return pos
	}
	return EncodeSearchMiss(pos)
}

// BinarySearchUpperBound returns the first position in a sorted span whose
// value is >= key, or end when every value is smaller.
func (a *LongArray) BinarySearchUpperBound(key int64, start, end int) int {
	return a.BinarySearchUpperBoundN(1, key, start, end)
}

func (a *LongArray) BinarySearchUpperBoundN(n int, key int64, start, end int) int {
	a.checkRange(start, end)
	lo, hi := 0, (end-start)/n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if a.data[start+mid*n] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return start + lo*n
}

// InterpolationSearch looks into a sorted span at the position a uniform key
// distribution predicts, falling back to binary search on short spans.
func (a *LongArray) InterpolationSearch(key int64, start, end int) int {
	a.checkRange(start, end)
	lo, hi := start, end-1
	for hi-lo >= interpolationMinSpan {
		lv, hv := a.data[lo], a.data[hi]
		if key < lv {
			return EncodeSearchMiss(lo)
		}
		if key > hv {
			return EncodeSearchMiss(hi + 1)
		}
		if lv == hv {
			return lo
		}
		frac := (float64(key) - float64(lv)) / (float64(hv) - float64(lv))
		mid := lo + int(frac*float64(hi-lo))
		switch v := a.data[mid]; {
		case v == key:
			for mid > start && a.data[mid-1] == key {
				mid--
			}
			return mid
		case v < key:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	if lo > hi {
		return EncodeSearchMiss(lo)
	}
	return a.BinarySearch(key, lo, hi+1)
}
