package actions

// queued is one pending action. Entries are ordered by tick, then by the
// order they were enqueued in.
type queued struct {
	tick   uint32
	seq    uint64
	action Action
}

type actionQueue []queued

func (q actionQueue) Len() int { return len(q) }

func (q actionQueue) Less(i, j int) bool {
	if q[i].tick != q[j].tick {
		return q[i].tick < q[j].tick
	}
	return q[i].seq < q[j].seq
}

func (q actionQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *actionQueue) Push(x any) { *q = append(*q, x.(queued)) }

func (q *actionQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = queued{}
	*q = old[:n-1]
	return x
}
