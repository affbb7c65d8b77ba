// Package sequence builds balanced presentation orders for repeated stimuli.
//
// Repeats of the same option are spread as far apart as possible so that
// adjacent flashes of one stimulus do not contaminate the per-flash signal.
package sequence

// #region imports
import (
	"container/heap"
	"math/rand"
)

// #endregion

// #region heap

// item is one option's remaining emission budget.
type item struct {
	remaining int
	index     int
}

// countHeap is a max-heap on remaining count, index ascending on ties.
type countHeap []item

func (h countHeap) Len() int { return len(h) }

func (h countHeap) Less(i, j int) bool {
	if h[i].remaining != h[j].remaining {
		return h[i].remaining > h[j].remaining
	}
	return h[i].index < h[j].index
}

func (h countHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *countHeap) Push(x any) { *h = append(*h, x.(item)) }

func (h *countHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// #endregion

// #region build

// Build produces a presentation order for optionCount options, each repeated
// a uniform random number of times in [minRepeat, maxRepeat]. The returned
// order holds option indices; plan[i] is the realized repeat count of option
// i, with len(order) == sum(plan).
//
// No two adjacent positions hold the same index unless a single option's
// remaining count outlasts all others, in which case its tail run is emitted
// consecutively. optionCount must be >= 1; minRepeat is clamped to >= 1 and
// maxRepeat to >= minRepeat.
func Build(rng *rand.Rand, optionCount, minRepeat, maxRepeat int) (order []int, plan []int) {
	if minRepeat < 1 {
		minRepeat = 1
	}
	if maxRepeat < minRepeat {
		maxRepeat = minRepeat
	}

	plan = make([]int, optionCount)
	total := 0
	for i := range plan {
		plan[i] = minRepeat + rng.Intn(maxRepeat-minRepeat+1)
		total += plan[i]
	}

	order = spread(plan, total)
	shuffleNonAdjacent(rng, order)
	return order, plan
}

// #endregion

// #region spread

// spread emits indices greedily by largest remaining count, holding the
// just-emitted option out of the heap for one extraction so it cannot be
// chosen on the immediately following step.
func spread(plan []int, total int) []int {
	h := make(countHeap, 0, len(plan))
	for i, count := range plan {
		h = append(h, item{remaining: count, index: i})
	}
	heap.Init(&h)

	order := make([]int, 0, total)
	var held item
	for h.Len() > 0 {
		cur := heap.Pop(&h).(item)
		if held.remaining > 0 {
			heap.Push(&h, held)
		}
		order = append(order, cur.index)
		cur.remaining--
		held = cur
	}

	// Only one option still owed emissions: its tail run is unavoidable.
	for ; held.remaining > 0; held.remaining-- {
		order = append(order, held.index)
	}
	return order
}

// #endregion

// #region shuffle

// shuffleNonAdjacent randomizes residual structure in the greedy order with
// pairwise swaps, committing a swap only when neither touched neighborhood
// gains an adjacent repeat.
func shuffleNonAdjacent(rng *rand.Rand, order []int) {
	n := len(order)
	for k := 0; k < 2*n; k++ {
		i := rng.Intn(n)
		j := rng.Intn(n)
		if i == j || order[i] == order[j] {
			continue
		}
		order[i], order[j] = order[j], order[i]
		if adjacentAt(order, i) || adjacentAt(order, j) {
			order[i], order[j] = order[j], order[i]
		}
	}
}

// adjacentAt reports whether position i equals either neighbor.
func adjacentAt(order []int, i int) bool {
	if i > 0 && order[i-1] == order[i] {
		return true
	}
	if i+1 < len(order) && order[i+1] == order[i] {
		return true
	}
	return false
}

// #endregion
