// Package barrier implements a reusable rendezvous point: N
// concurrent arrivals, each carrying a contribution, release together
// once the last one arrives, carrying a combined result computed by
// whichever goroutine arrived last. Both collective backends
// (localmem's goroutines, grpcc's per-RPC handler goroutines) use the
// same primitive to implement reduce/broadcast/all-reduce without a
// per-cabinet lock on the hot path.
package barrier

import "sync"

// Barrier is one cyclic rendezvous point, reused round after round.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	generation int
	arrived    int
	contribs   []interface{}
	result     interface{}
}

// New allocates a barrier for `size` participants.
func New(size int) *Barrier {
	b := &Barrier{contribs: make([]interface{}, size)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Enter contributes data under the given participant slot (0-indexed,
// stable across rounds) and blocks until every slot has entered the
// current round. combine is invoked exactly once per round, by
// whichever goroutine arrives last, over every slot's contribution in
// slot order; its return value is handed back to every participant.
func (b *Barrier) Enter(slot int, data interface{}, combine func([]interface{}) interface{}) interface{} {
	b.mu.Lock()
	size := len(b.contribs)
	gen := b.generation
	b.contribs[slot] = data
	b.arrived++

	if b.arrived == size {
		result := combine(b.contribs)
		b.result = result
		b.arrived = 0
		b.contribs = make([]interface{}, size)
		b.generation++
		b.cond.Broadcast()
		b.mu.Unlock()
		return result
	}

	for b.generation == gen {
		b.cond.Wait()
	}
	result := b.result
	b.mu.Unlock()
	return result
}
