package orchestrator

import "sort"

// orderedQueue keeps item states sorted by creation sequence. Membership is
// decided by keep and refreshed with sync after every change to an item.
type orderedQueue struct {
	keep  func(*itemState) bool
	items []*itemState
}

func newOrderedQueue(keep func(*itemState) bool) *orderedQueue {
	return &orderedQueue{keep: keep}
}

func (q *orderedQueue) sync(st *itemState) {
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].seq >= st.seq })
	present := i < len(q.items) && q.items[i] == st
	want := q.keep(st)
	switch {
	case want && !present:
		q.items = append(q.items, nil)
		copy(q.items[i+1:], q.items[i:])
		q.items[i] = st
	case !want && present:
		q.items = append(q.items[:i], q.items[i+1:]...)
	}
}

func (q *orderedQueue) len() int {
	return len(q.items)
}

// ids returns member ids in sequence order.
func (q *orderedQueue) ids() []string {
	out := make([]string, 0, len(q.items))
	for _, st := range q.items {
		out = append(out, st.item.ID)
	}
	return out
}
