package stats

import "container/heap"

// topHeap is a bounded min-heap over entry records, ordered so the root is
// the weakest member of the current top-N: lowest usage count, ties broken
// by oldest last use. Each record carries its heap index so an updated
// entry can be fixed in O(log N).
type topHeap []*entryRecord

var _ heap.Interface = (*topHeap)(nil)

func (h topHeap) Len() int { return len(h) }

func (h topHeap) Less(i, j int) bool {
	if h[i].usageCount != h[j].usageCount {
		return h[i].usageCount < h[j].usageCount
	}
	return h[i].lastUsedAt.Before(h[j].lastUsedAt)
}

func (h topHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *topHeap) Push(x any) {
	rec := x.(*entryRecord)
	rec.heapIndex = len(*h)
	*h = append(*h, rec)
}

func (h *topHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil
	rec.heapIndex = -1
	*h = old[:n-1]
	return rec
}

// beats reports whether a beats b for top-N membership.
func beats(a, b *entryRecord) bool {
	if a.usageCount != b.usageCount {
		return a.usageCount > b.usageCount
	}
	return a.lastUsedAt.After(b.lastUsedAt)
}
