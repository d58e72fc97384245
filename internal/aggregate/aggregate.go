// internal/aggregate/aggregate.go
package aggregate

import (
	"container/heap"

	"commit-reporter/internal/model"
)

// Sequence is one repository's commit stream, already classified and sorted
// by timestamp descending.
type Sequence struct {
	// Order is the repository's registration index; it breaks ties when
	// timestamps collide across repositories.
	Order   int
	Commits []model.CommitRecord
}

// Merge combines N per-repository sequences into one timeline sorted by
// timestamp descending. Ordering is fully deterministic: equal timestamps
// fall back to registration order, then to the commit hash, so the result
// is independent of extraction completion order. Runs in
// O(total commits * log k) for k sequences.
func Merge(sequences []Sequence) []model.CommitRecord {
	total := 0
	h := make(mergeHeap, 0, len(sequences))
	for _, seq := range sequences {
		if len(seq.Commits) == 0 {
			continue
		}
		total += len(seq.Commits)
		h = append(h, cursor{order: seq.Order, commits: seq.Commits})
	}
	heap.Init(&h)

	merged := make([]model.CommitRecord, 0, total)
	for h.Len() > 0 {
		top := &h[0]
		merged = append(merged, top.commits[top.pos])
		top.pos++
		if top.pos == len(top.commits) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return merged
}

// DropNoise returns the timeline with noise commits removed. The input is
// left untouched.
func DropNoise(timeline []model.CommitRecord) []model.CommitRecord {
	kept := make([]model.CommitRecord, 0, len(timeline))
	for _, c := range timeline {
		if !c.Noise {
			kept = append(kept, c)
		}
	}
	return kept
}

// cursor tracks the next unconsumed commit of one sequence.
type cursor struct {
	order   int
	commits []model.CommitRecord
	pos     int
}

func (c *cursor) head() model.CommitRecord {
	return c.commits[c.pos]
}

type mergeHeap []cursor

func (h mergeHeap) Len() int { return len(h) }

// Less orders by (timestamp descending, registration order ascending,
// hash ascending).
func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i].head(), h[j].head()
	if !a.When.Equal(b.When) {
		return a.When.After(b.When)
	}
	if h[i].order != h[j].order {
		return h[i].order < h[j].order
	}
	return a.Hash < b.Hash
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(cursor)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
