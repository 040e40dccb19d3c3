package grpcc

import (
	"context"
	"fmt"
	"sync"

	"github.com/Siddhant-K-code/cabinets/pkg/collective/barrier"
)

// Coordinator is the rank-0 side of the real multi-process backend.
// It hosts a gRPC server (see Serve) that ranks 1..W-1 dial, and it
// also answers its own rank's collective calls directly — the
// coordinator is rank 0 and runs in the same process as the server,
// so its contribution never goes over the wire. Every collective in
// this engine's iteration controller and I/O adapters has its root
// (or its only destination) at the coordinator, so a hub topology
// rooted here is sufficient; no worker ever talks to another worker.
type Coordinator struct {
	size int

	broadcastPt *barrier.Barrier
	reducePt    *barrier.Barrier
	allreducePt *barrier.Barrier

	mailboxMu sync.Mutex
	mailboxes map[string]chan []byte
}

var _ CollectiveServer = (*Coordinator)(nil)

// NewCoordinator allocates server-side state for a run of `size`
// workers (including the coordinator itself as rank 0).
func NewCoordinator(size int) *Coordinator {
	return &Coordinator{
		size:        size,
		broadcastPt: barrier.New(size),
		reducePt:    barrier.New(size),
		allreducePt: barrier.New(size),
		mailboxes:   make(map[string]chan []byte),
	}
}

func (c *Coordinator) mailbox(key string) chan []byte {
	c.mailboxMu.Lock()
	defer c.mailboxMu.Unlock()
	ch, ok := c.mailboxes[key]
	if !ok {
		ch = make(chan []byte, 1)
		c.mailboxes[key] = ch
	}
	return ch
}

func (c *Coordinator) Broadcast(ctx context.Context, req *BroadcastRequest) (*BroadcastReply, error) {
	contribution := broadcastInput{root: req.Root}
	if req.CallerRank == req.Root {
		contribution.data = req.Data
	}
	result := c.broadcastPt.Enter(req.CallerRank, contribution, func(all []interface{}) interface{} {
		for _, v := range all {
			in := v.(broadcastInput)
			if in.root == req.Root && in.data != nil {
				return in.data
			}
		}
		return []float64(nil)
	})
	return &BroadcastReply{Data: result.([]float64)}, nil
}

type broadcastInput struct {
	root int
	data []float64
}

func (c *Coordinator) ReduceSum(ctx context.Context, req *ReduceRequest) (*ReduceReply, error) {
	result := c.reducePt.Enter(req.CallerRank, req.Data, func(all []interface{}) interface{} {
		n := len(req.Data)
		sum := make([]float64, n)
		for _, v := range all {
			row := v.([]float64)
			for i := 0; i < n; i++ {
				sum[i] += row[i]
			}
		}
		return sum
	})
	if req.CallerRank != req.Root {
		return &ReduceReply{}, nil
	}
	return &ReduceReply{Sum: result.([]float64)}, nil
}

func (c *Coordinator) AllReduceSum(ctx context.Context, req *AllReduceRequest) (*AllReduceReply, error) {
	result := c.allreducePt.Enter(req.CallerRank, req.Value, func(all []interface{}) interface{} {
		var total int64
		for _, v := range all {
			total += v.(int64)
		}
		return total
	})
	return &AllReduceReply{Sum: result.(int64)}, nil
}

func (c *Coordinator) Send(ctx context.Context, req *SendRequest) (*SendReply, error) {
	ch := c.mailbox(mailboxKey(req.SrcRank, req.Dest, req.Tag))
	select {
	case ch <- req.Data:
		return &SendReply{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) Recv(ctx context.Context, req *RecvRequest) (*RecvReply, error) {
	ch := c.mailbox(mailboxKey(req.Src, req.DstRank, req.Tag))
	select {
	case data := <-ch:
		return &RecvReply{Data: data}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func mailboxKey(src, dest, tag int) string {
	return fmt.Sprintf("%d->%d#%d", src, dest, tag)
}
