package sequence

import "math"

// IntersectSequences reports whether every ascending sequence contains at
// least one common value.
func IntersectSequences(seqs ...[]int) bool {
	found := false
	walkIntersections(seqs, func(int) bool {
		found = true
		return false
	})
	return found
}

// FindIntersections returns the values present in every ascending sequence.
func FindIntersections(seqs ...[]int) []int {
	var out []int
	walkIntersections(seqs, func(v int) bool {
		out = append(out, v)
		return true
	})
	return out
}

func walkIntersections(seqs [][]int, fn func(int) bool) {
	if len(seqs) == 0 {
		return
	}
	heads := make([]int, len(seqs))
	for {
		target := math.MinInt
		for i, s := range seqs {
			if heads[i] >= len(s) {
				return
			}
			target = max(target, s[heads[i]])
		}
		agree := true
		for i, s := range seqs {
			for heads[i] < len(s) && s[heads[i]] < target {
				heads[i]++
			}
			if heads[i] >= len(s) {
				return
			}
			if s[heads[i]] != target {
				agree = false
			}
		}
		if agree {
			if !fn(target) {
				return
			}
			for i := range heads {
				heads[i]++
			}
		}
	}
}

// MinDistance returns the smallest window max-min that holds one value from
// every ascending sequence, or math.MaxInt when any sequence is empty.
func MinDistance(seqs ...[]int) int {
	if len(seqs) == 0 {
		return math.MaxInt
	}
	heads := make([]int, len(seqs))
	best := math.MaxInt
	for {
		lo, hi, loIdx := math.MaxInt, math.MinInt, -1
		for i, s := range seqs {
			if heads[i] >= len(s) {
				return best
			}
			v := s[heads[i]]
			if v < lo {
				lo, loIdx = v, i
			}
			hi = max(hi, v)
		}
		best = min(best, hi-lo)
		if best == 0 {
			return 0
		}
		heads[loIdx]++
	}
}
