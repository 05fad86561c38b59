// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

// jobHeapEntry pairs a job with its insertion sequence number so the
// priority queue's tie-break is a stable, monotonically increasing
// secondary key (spec.md §9).
type jobHeapEntry struct {
	job *Job
	seq int64
}

// jobHeap is a container/heap-ordered priority queue: lower priority
// value first, insertion order breaking ties. The reference corpus uses
// container/heap for exactly this kind of deterministic-order traversal
// (see DESIGN.md); no third-party priority-queue library appears anywhere
// in the retrieved pack, so this stays on the standard library.
type jobHeap struct {
	entries []*jobHeapEntry
}

func newJobHeap() *jobHeap { return &jobHeap{} }

func (h *jobHeap) Len() int { return len(h.entries) }

func (h *jobHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.job.Priority != b.job.Priority {
		return a.job.Priority < b.job.Priority
	}
	return a.seq < b.seq
}

func (h *jobHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

func (h *jobHeap) Push(x any) {
	h.entries = append(h.entries, x.(*jobHeapEntry))
}

func (h *jobHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	h.entries = old[:n-1]
	return e
}
