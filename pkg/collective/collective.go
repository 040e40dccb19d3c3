// Package collective defines the thin abstraction over the four
// collectives the iteration controller needs: broadcast, reduce-sum,
// all-reduce-sum, and blocking point-to-point send/recv. Two concrete
// backends live in the localmem and grpcc subpackages; both satisfy
// Backend so the controller never knows which one it's driving.
package collective

import "context"

// Backend is the collective communication surface one worker sees.
// Every method is collective: every worker in the run must call it
// with matching arguments (buffer sizes, root, tag), in the same
// order, or the run hangs or corrupts state — that contract is
// enforced by the caller (the iteration controller), not here.
type Backend interface {
	// Rank returns this worker's index in [0, Size()).
	Rank() int

	// Size returns W, the number of workers in the run.
	Size() int

	// Broadcast sends buf's content from root to every worker; after
	// it returns, every worker's buf holds root's content. The caller
	// at root passes its source buffer; callers elsewhere pass a
	// same-length destination buffer to be filled in place.
	Broadcast(ctx context.Context, buf []float64, root int) error

	// ReduceSum computes the element-wise sum of in across every
	// worker and writes it into out, valid only at root. in and out
	// must be the same length on every worker; out on non-root
	// workers is untouched.
	ReduceSum(ctx context.Context, in, out []float64, root int) error

	// AllReduceSum returns the sum of val across every worker, to
	// every worker.
	AllReduceSum(ctx context.Context, val int64) (int64, error)

	// Send blocks until buf has been delivered to dest under tag.
	Send(ctx context.Context, buf []byte, dest int, tag int) error

	// Recv blocks until a buffer tagged tag has arrived from src, and
	// returns its content.
	Recv(ctx context.Context, src int, tag int) ([]byte, error)
}
