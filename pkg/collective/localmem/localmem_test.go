package localmem

import (
	"context"
	"sync"
	"testing"
)

func TestBroadcast_EveryRankReceivesRootsBuffer(t *testing.T) {
	hub := NewHub(3)
	ctx := context.Background()

	want := []float64{1, 2, 3}
	var wg sync.WaitGroup
	got := make([][]float64, 3)

	for rank := 0; rank < 3; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			buf := make([]float64, 3)
			if rank == 1 {
				copy(buf, want)
			}
			if err := hub.Backend(rank).Broadcast(ctx, buf, 1); err != nil {
				t.Errorf("rank %d: Broadcast failed: %v", rank, err)
			}
			got[rank] = buf
		}(rank)
	}
	wg.Wait()

	for rank, buf := range got {
		for i, v := range want {
			if buf[i] != v {
				t.Errorf("rank %d: buf[%d] = %v, want %v", rank, i, buf[i], v)
			}
		}
	}
}

func TestReduceSum_OnlyRootReceivesResult(t *testing.T) {
	hub := NewHub(3)
	ctx := context.Background()

	var wg sync.WaitGroup
	out := make([][]float64, 3)

	for rank := 0; rank < 3; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			in := []float64{float64(rank + 1)}
			o := make([]float64, 1)
			if err := hub.Backend(rank).ReduceSum(ctx, in, o, 0); err != nil {
				t.Errorf("rank %d: ReduceSum failed: %v", rank, err)
			}
			out[rank] = o
		}(rank)
	}
	wg.Wait()

	if out[0][0] != 6 {
		t.Errorf("root expected sum 6, got %v", out[0][0])
	}
}

func TestAllReduceSum_EveryRankGetsTheSum(t *testing.T) {
	hub := NewHub(4)
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]int64, 4)

	for rank := 0; rank < 4; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			sum, err := hub.Backend(rank).AllReduceSum(ctx, int64(rank))
			if err != nil {
				t.Errorf("rank %d: AllReduceSum failed: %v", rank, err)
			}
			got[rank] = sum
		}(rank)
	}
	wg.Wait()

	for rank, sum := range got {
		if sum != 6 {
			t.Errorf("rank %d: expected sum 6 (0+1+2+3), got %d", rank, sum)
		}
	}
}

func TestAllReduceSum_AllZeroWhenNothingMoved(t *testing.T) {
	hub := NewHub(2)
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]int64, 2)
	for rank := 0; rank < 2; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			sum, _ := hub.Backend(rank).AllReduceSum(ctx, 0)
			got[rank] = sum
		}(rank)
	}
	wg.Wait()

	for rank, sum := range got {
		if sum != 0 {
			t.Errorf("rank %d: expected convergence sum 0, got %d", rank, sum)
		}
	}
}

func TestSendRecv_RoundTrip(t *testing.T) {
	hub := NewHub(2)
	ctx := context.Background()

	want := []byte("hello")
	errCh := make(chan error, 1)
	go func() {
		errCh <- hub.Backend(0).Send(ctx, want, 1, 7)
	}()

	got, err := hub.Backend(1).Recv(ctx, 0, 7)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("Recv = %q, want %q", got, want)
	}
}

func TestSendRecv_DistinctTagsDoNotCollide(t *testing.T) {
	hub := NewHub(2)
	ctx := context.Background()

	go func() {
		_ = hub.Backend(0).Send(ctx, []byte("a"), 1, 1)
	}()
	go func() {
		_ = hub.Backend(0).Send(ctx, []byte("b"), 1, 2)
	}()

	gotA, err := hub.Backend(1).Recv(ctx, 0, 1)
	if err != nil {
		t.Fatalf("Recv tag 1 failed: %v", err)
	}
	gotB, err := hub.Backend(1).Recv(ctx, 0, 2)
	if err != nil {
		t.Fatalf("Recv tag 2 failed: %v", err)
	}
	if string(gotA) != "a" || string(gotB) != "b" {
		t.Errorf("expected tagged messages to stay separate, got %q and %q", gotA, gotB)
	}
}

func TestBackend_RankAndSize(t *testing.T) {
	hub := NewHub(5)
	b := hub.Backend(2)
	if b.Rank() != 2 {
		t.Errorf("expected rank 2, got %d", b.Rank())
	}
	if b.Size() != 5 {
		t.Errorf("expected size 5, got %d", b.Size())
	}
}
