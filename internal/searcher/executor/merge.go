package executor

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/index"
	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
)

type candidate struct {
	id    int64
	head  index.Head
	order int
	// near is set when one window of text holds every keyword; span is the
	// smallest distance covering one occurrence of each. Both stay zero for
	// single keyword queries.
	near bool
	span int
}

// better orders candidates by domain rank, then by the head that found
// them, then by how close together the keywords occur, then by id.
func better(a, b candidate) bool {
	ra, rb := model.Rank(a.id), model.Rank(b.id)
	if ra != rb {
		return ra < rb
	}
	if a.order != b.order {
		return a.order < b.order
	}
	if a.near != b.near {
		return a.near
	}
	if a.span != b.span {
		return a.span < b.span
	}
	return a.id < b.id
}

// selectTop returns the best limit candidates, best first.
func selectTop(found []candidate, limit int) []candidate {
	if limit <= 0 {
		limit = 10
	}
	h := &candidateHeap{}
	heap.Init(h)
	for _, c := range found {
		heap.Push(h, c)
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]candidate, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(candidate)
	}
	return result
}

// candidateHeap keeps the worst candidate on top.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
