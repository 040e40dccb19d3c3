// Package localmem implements the collective layer in-process, as a
// set of goroutines sharing a hub instead of OS processes sharing a
// network. It doubles as the trivial single-worker backend when
// Size()==1 (every rendezvous degenerates to a single arrival). It is
// the "shared-memory variant" from Design Notes: per-cabinet
// contention is avoided by having each rank hand the hub its own
// contribution and letting the last arriver fold them, rather than
// taking a per-cabinet lock on a shared accumulator.
package localmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/Siddhant-K-code/cabinets/pkg/collective"
	"github.com/Siddhant-K-code/cabinets/pkg/collective/barrier"
)

var _ collective.Backend = (*Backend)(nil)

// Hub is the shared rendezvous point for one run's W ranks. Create one
// with NewHub and hand out one *Backend per rank via Backend(rank).
type Hub struct {
	size int

	broadcastPt *barrier.Barrier
	reducePt    *barrier.Barrier
	allreducePt *barrier.Barrier

	mailboxMu sync.Mutex
	mailboxes map[string]chan []byte
}

// NewHub allocates a hub for size workers.
func NewHub(size int) *Hub {
	return &Hub{
		size:        size,
		broadcastPt: barrier.New(size),
		reducePt:    barrier.New(size),
		allreducePt: barrier.New(size),
		mailboxes:   make(map[string]chan []byte),
	}
}

// Backend returns the collective.Backend view of the hub for the
// given rank.
func (h *Hub) Backend(rank int) *Backend {
	return &Backend{hub: h, rank: rank}
}

func (h *Hub) mailbox(key string) chan []byte {
	h.mailboxMu.Lock()
	defer h.mailboxMu.Unlock()
	ch, ok := h.mailboxes[key]
	if !ok {
		ch = make(chan []byte, 1)
		h.mailboxes[key] = ch
	}
	return ch
}

// Backend is one rank's view of a Hub.
type Backend struct {
	hub  *Hub
	rank int
}

func (b *Backend) Rank() int { return b.rank }
func (b *Backend) Size() int { return b.hub.size }

type broadcastInput struct {
	root int
	data []float64
}

// Broadcast rendezvous: every rank contributes its buffer (only
// root's is meaningful); the combine step picks root's contribution
// and hands a copy back to everyone, who copy it into their own buf.
func (b *Backend) Broadcast(ctx context.Context, buf []float64, root int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	contribution := broadcastInput{root: root}
	if b.rank == root {
		contribution.data = append([]float64(nil), buf...)
	}
	result := b.hub.broadcastPt.Enter(b.rank, contribution, func(all []interface{}) interface{} {
		for _, c := range all {
			in := c.(broadcastInput)
			if in.root == root && in.data != nil {
				return in.data
			}
		}
		return []float64(nil)
	})
	copy(buf, result.([]float64))
	return nil
}

// ReduceSum rendezvous: every rank contributes in; the last arriver
// sums element-wise and hands the sum back; only root keeps it.
func (b *Backend) ReduceSum(ctx context.Context, in, out []float64, root int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	contribution := append([]float64(nil), in...)
	result := b.hub.reducePt.Enter(b.rank, contribution, func(all []interface{}) interface{} {
		n := len(contribution)
		sum := make([]float64, n)
		for _, c := range all {
			v := c.([]float64)
			for i := 0; i < n; i++ {
				sum[i] += v[i]
			}
		}
		return sum
	})
	if b.rank == root {
		copy(out, result.([]float64))
	}
	return nil
}

// AllReduceSum rendezvous: every rank contributes val; everyone gets
// the sum.
func (b *Backend) AllReduceSum(ctx context.Context, val int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	result := b.hub.allreducePt.Enter(b.rank, val, func(all []interface{}) interface{} {
		var total int64
		for _, c := range all {
			total += c.(int64)
		}
		return total
	})
	return result.(int64), nil
}

func mailboxKey(src, dest, tag int) string {
	return fmt.Sprintf("%d->%d#%d", src, dest, tag)
}

// Send places a copy of buf in dest's mailbox for tag and returns
// without waiting for a matching Recv. The mailbox is a capacity-1
// channel, so Send blocks only while an earlier message on the same
// (src,dest,tag) triple has not yet been received.
func (b *Backend) Send(ctx context.Context, buf []byte, dest int, tag int) error {
	ch := b.hub.mailbox(mailboxKey(b.rank, dest, tag))
	select {
	case ch <- append([]byte(nil), buf...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv blocks until a message tagged tag has arrived from src.
func (b *Backend) Recv(ctx context.Context, src int, tag int) ([]byte, error) {
	ch := b.hub.mailbox(mailboxKey(src, b.rank, tag))
	select {
	case buf := <-ch:
		return buf, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
