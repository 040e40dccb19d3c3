package grpcc

import (
	"context"
	"fmt"
	"net"

	"github.com/Siddhant-K-code/cabinets/pkg/collective"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Serve starts a gRPC listener on addr hosting coord and blocks until
// ctx is cancelled or the listener errors. Run it in its own goroutine
// on the coordinator process.
func Serve(ctx context.Context, addr string, coord *Coordinator) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpcc: listen %s: %w", addr, err)
	}
	srv := grpc.NewServer()
	RegisterCollectiveServer(srv, coord)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		srv.GracefulStop()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RootBackend is the coordinator's own collective.Backend: rank 0
// talks to the Coordinator directly, in-process, never over the wire.
type RootBackend struct {
	coord *Coordinator
	size  int
}

var _ collective.Backend = (*RootBackend)(nil)

// NewRootBackend wraps coord as rank 0's Backend.
func NewRootBackend(coord *Coordinator, size int) *RootBackend {
	return &RootBackend{coord: coord, size: size}
}

func (r *RootBackend) Rank() int { return 0 }
func (r *RootBackend) Size() int { return r.size }

func (r *RootBackend) Broadcast(ctx context.Context, buf []float64, root int) error {
	reply, err := r.coord.Broadcast(ctx, &BroadcastRequest{CallerRank: 0, Root: root, Data: buf})
	if err != nil {
		return err
	}
	copy(buf, reply.Data)
	return nil
}

func (r *RootBackend) ReduceSum(ctx context.Context, in, out []float64, root int) error {
	reply, err := r.coord.ReduceSum(ctx, &ReduceRequest{CallerRank: 0, Root: root, Data: in})
	if err != nil {
		return err
	}
	if root == 0 {
		copy(out, reply.Sum)
	}
	return nil
}

func (r *RootBackend) AllReduceSum(ctx context.Context, val int64) (int64, error) {
	reply, err := r.coord.AllReduceSum(ctx, &AllReduceRequest{CallerRank: 0, Value: val})
	if err != nil {
		return 0, err
	}
	return reply.Sum, nil
}

func (r *RootBackend) Send(ctx context.Context, buf []byte, dest int, tag int) error {
	_, err := r.coord.Send(ctx, &SendRequest{SrcRank: 0, Dest: dest, Tag: tag, Data: buf})
	return err
}

func (r *RootBackend) Recv(ctx context.Context, src int, tag int) ([]byte, error) {
	reply, err := r.coord.Recv(ctx, &RecvRequest{Src: src, DstRank: 0, Tag: tag})
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// Backend is a non-coordinator rank's client view: every call becomes
// a unary RPC to the coordinator, carried with the gob content-subtype
// so plain Go structs cross the wire without protoc.
type Backend struct {
	conn *grpc.ClientConn
	rank int
	size int
}

var _ collective.Backend = (*Backend)(nil)

// Dial connects to the coordinator at addr as the given rank within a
// run of size workers. The caller owns the returned Backend's
// underlying connection and should Close it when the run ends.
func Dial(ctx context.Context, addr string, rank, size int) (*Backend, error) {
	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcc: dial %s: %w", addr, err)
	}
	return &Backend{conn: conn, rank: rank, size: size}, nil
}

// Close tears down the underlying connection.
func (b *Backend) Close() error { return b.conn.Close() }

func (b *Backend) Rank() int { return b.rank }
func (b *Backend) Size() int { return b.size }

func (b *Backend) invoke(ctx context.Context, method string, in, out interface{}) error {
	return b.conn.Invoke(ctx, method, in, out, grpc.CallContentSubtype(codecName))
}

func (b *Backend) Broadcast(ctx context.Context, buf []float64, root int) error {
	req := &BroadcastRequest{CallerRank: b.rank, Root: root}
	if b.rank == root {
		req.Data = buf
	}
	reply := new(BroadcastReply)
	if err := b.invoke(ctx, "/cabinets.collective.Collective/Broadcast", req, reply); err != nil {
		return err
	}
	copy(buf, reply.Data)
	return nil
}

func (b *Backend) ReduceSum(ctx context.Context, in, out []float64, root int) error {
	req := &ReduceRequest{CallerRank: b.rank, Root: root, Data: in}
	reply := new(ReduceReply)
	if err := b.invoke(ctx, "/cabinets.collective.Collective/ReduceSum", req, reply); err != nil {
		return err
	}
	if b.rank == root {
		copy(out, reply.Sum)
	}
	return nil
}

func (b *Backend) AllReduceSum(ctx context.Context, val int64) (int64, error) {
	req := &AllReduceRequest{CallerRank: b.rank, Value: val}
	reply := new(AllReduceReply)
	if err := b.invoke(ctx, "/cabinets.collective.Collective/AllReduceSum", req, reply); err != nil {
		return 0, err
	}
	return reply.Sum, nil
}

func (b *Backend) Send(ctx context.Context, buf []byte, dest int, tag int) error {
	req := &SendRequest{SrcRank: b.rank, Dest: dest, Tag: tag, Data: buf}
	reply := new(SendReply)
	return b.invoke(ctx, "/cabinets.collective.Collective/Send", req, reply)
}

func (b *Backend) Recv(ctx context.Context, src int, tag int) ([]byte, error) {
	req := &RecvRequest{Src: src, DstRank: b.rank, Tag: tag}
	reply := new(RecvReply)
	if err := b.invoke(ctx, "/cabinets.collective.Collective/Recv", req, reply); err != nil {
		return nil, err
	}
	return reply.Data, nil
}
