// Package ordering computes sparse integer positions for ordered sibling
// sets (channels in a category, categories in a server, roles in a server)
// so a single item can be moved without renumbering every sibling.
package ordering

const (
	// Spacing is the gap left between consecutive positions on append and
	// rebalance. Each midpoint insertion roughly halves the local gap, so
	// this allows ~20 consecutive insertions between two neighbors before
	// a rebalance is forced.
	Spacing int64 = 1 << 20

	// MinGap is the threshold below which midpoint insertion between two
	// neighbors is considered degenerate and a rebalance runs first.
	MinGap int64 = 10
)

// Append returns the position for a new item appended after count existing
// siblings.
func Append(count int) int64 {
	return int64(count) * Spacing
}

// Between returns a tentative position between two neighbors. Either
// neighbor may be nil (insertion at the head or the tail); with neither,
// the set is empty and the first position is 0.
func Between(prev, next *int64) int64 {
	switch {
	case prev != nil && next != nil:
		return (*prev + *next) / 2
	case prev != nil:
		return *prev + Spacing
	case next != nil:
		return *next - Spacing
	default:
		return 0
	}
}

// NeedsRebalance reports whether the gap between two neighbors is too
// small for a midpoint insertion. Only a bounded gap can be degenerate,
// so it is false whenever either neighbor is absent.
func NeedsRebalance(prev, next *int64) bool {
	return prev != nil && next != nil && *next-*prev <= MinGap
}

// Rebalanced returns the renumbered positions for a sibling set of size n
// in its current relative order: index * Spacing. Pure renumbering; the
// caller writes positions back by index, never reordering.
func Rebalanced(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i) * Spacing
	}
	return out
}

// Move is the result of planning a single-item move within a sibling set.
type Move struct {
	// Index is the clamped target index within the sibling set (the set
	// excluding the moved item).
	Index int
	// Prev and Next are the neighbor positions at that index, nil at the
	// edges.
	Prev, Next *int64
	// NoOp is true when the item already sits between those neighbors.
	NoOp bool
	// Rebalance is true when the neighbor gap is degenerate and the
	// caller must renumber the sibling set before recomputing a position.
	Rebalance bool
}

// PlanMove computes where an item lands when moved to targetIndex within
// siblings, which must be the positions of the sibling set sorted
// ascending and excluding the moved item itself. current is the moved
// item's present position, or nil when it is entering this set from a
// different parent.
func PlanMove(siblings []int64, current *int64, targetIndex int) Move {
	// Negative or past-the-end indexes clamp, they are not errors.
	if targetIndex < 0 {
		targetIndex = 0
	}
	if targetIndex > len(siblings) {
		targetIndex = len(siblings)
	}

	m := Move{Index: targetIndex}
	if targetIndex > 0 {
		p := siblings[targetIndex-1]
		m.Prev = &p
	}
	if targetIndex < len(siblings) {
		n := siblings[targetIndex]
		m.Next = &n
	}

	if current != nil {
		belowOK := m.Prev == nil || *m.Prev < *current
		aboveOK := m.Next == nil || *current < *m.Next
		if belowOK && aboveOK {
			m.NoOp = true
			return m
		}
	}

	m.Rebalance = NeedsRebalance(m.Prev, m.Next)
	return m
}
