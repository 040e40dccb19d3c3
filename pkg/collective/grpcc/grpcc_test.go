package grpcc

import (
	"context"
	"sync"
	"testing"
	"time"
)

// startTestCoordinator boots a real gRPC listener on addr hosting a
// fresh Coordinator for `size` ranks, returning a cleanup to stop it.
func startTestCoordinator(t *testing.T, addr string, size int) (*Coordinator, func()) {
	t.Helper()
	coord := NewCoordinator(size)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, addr, coord) }()

	return coord, func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Fatal("grpc server did not shut down in time")
		}
	}
}

func TestBroadcast_RootBackendAndDialedWorkerAgree(t *testing.T) {
	const addr = "127.0.0.1:18943"
	coord, stop := startTestCoordinator(t, addr, 2)
	defer stop()

	ctx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	worker, err := Dial(ctx, addr, 1, 2)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer worker.Close()

	root := NewRootBackend(coord, 2)

	var wg sync.WaitGroup
	var rootBuf, workerBuf []float64
	wg.Add(2)
	go func() {
		defer wg.Done()
		rootBuf = []float64{1, 2, 3}
		if err := root.Broadcast(ctx, rootBuf, 0); err != nil {
			t.Errorf("root Broadcast failed: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		workerBuf = make([]float64, 3)
		if err := worker.Broadcast(ctx, workerBuf, 0); err != nil {
			t.Errorf("worker Broadcast failed: %v", err)
		}
	}()
	wg.Wait()

	for i, v := range rootBuf {
		if workerBuf[i] != v {
			t.Errorf("workerBuf[%d] = %v, want %v", i, workerBuf[i], v)
		}
	}
}

func TestAllReduceSum_RootBackendAndDialedWorkerAgree(t *testing.T) {
	const addr = "127.0.0.1:18944"
	coord, stop := startTestCoordinator(t, addr, 2)
	defer stop()

	ctx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	worker, err := Dial(ctx, addr, 1, 2)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer worker.Close()

	root := NewRootBackend(coord, 2)

	var wg sync.WaitGroup
	var rootSum, workerSum int64
	var rootErr, workerErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		rootSum, rootErr = root.AllReduceSum(ctx, 4)
	}()
	go func() {
		defer wg.Done()
		workerSum, workerErr = worker.AllReduceSum(ctx, 6)
	}()
	wg.Wait()

	if rootErr != nil || workerErr != nil {
		t.Fatalf("AllReduceSum failed: root=%v worker=%v", rootErr, workerErr)
	}
	if rootSum != 10 || workerSum != 10 {
		t.Errorf("expected both ranks to see sum 10, got root=%d worker=%d", rootSum, workerSum)
	}
}

func TestSendRecv_DialedWorkerToRootBackend(t *testing.T) {
	const addr = "127.0.0.1:18945"
	coord, stop := startTestCoordinator(t, addr, 2)
	defer stop()

	ctx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	worker, err := Dial(ctx, addr, 1, 2)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer worker.Close()

	root := NewRootBackend(coord, 2)

	errCh := make(chan error, 1)
	go func() {
		errCh <- worker.Send(ctx, []byte("payload"), 0, 9)
	}()

	got, err := root.Recv(ctx, 1, 9)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if sendErr := <-errCh; sendErr != nil {
		t.Fatalf("Send failed: %v", sendErr)
	}
	if string(got) != "payload" {
		t.Errorf("Recv = %q, want %q", got, "payload")
	}
}
