package partition

import "testing"

func TestPlan_EvenSplit(t *testing.T) {
	p := New(8, 4)
	for w := 0; w < 4; w++ {
		if got := p.Count(w); got != 2 {
			t.Errorf("worker %d: expected count 2, got %d", w, got)
		}
	}
	if p.Offset(0) != 0 || p.Offset(1) != 2 || p.Offset(2) != 4 || p.Offset(3) != 6 {
		t.Errorf("unexpected offsets: %d %d %d %d", p.Offset(0), p.Offset(1), p.Offset(2), p.Offset(3))
	}
}

func TestPlan_RemainderGoesToHighestWorkers(t *testing.T) {
	// 10 documents across 4 workers: base=2, remainder=2, so workers
	// 2 and 3 get 3 each, workers 0 and 1 get 2 each.
	p := New(10, 4)
	want := []int{2, 2, 3, 3}
	for w, expect := range want {
		if got := p.Count(w); got != expect {
			t.Errorf("worker %d: expected count %d, got %d", w, expect, got)
		}
	}

	total := 0
	for w := 0; w < 4; w++ {
		total += p.Count(w)
	}
	if total != 10 {
		t.Errorf("counts do not sum to document count: got %d", total)
	}
}

func TestPlan_ContiguousNonOverlappingRanges(t *testing.T) {
	p := New(17, 5)
	seen := make(map[int]int)
	for w := 0; w < 5; w++ {
		offset, count := p.Offset(w), p.Count(w)
		for doc := offset; doc < offset+count; doc++ {
			if prev, ok := seen[doc]; ok {
				t.Fatalf("document %d owned by both worker %d and %d", doc, prev, w)
			}
			seen[doc] = w
		}
	}
	if len(seen) != 17 {
		t.Errorf("expected every one of 17 documents to be covered, got %d", len(seen))
	}
}

func TestPlan_Owner(t *testing.T) {
	p := New(10, 4)
	for doc := 0; doc < 10; doc++ {
		w := p.Owner(doc)
		offset, count := p.Offset(w), p.Count(w)
		if doc < offset || doc >= offset+count {
			t.Errorf("Owner(%d) = %d, but doc falls outside that worker's range [%d, %d)", doc, w, offset, offset+count)
		}
	}
}

func TestPlan_SingleWorker(t *testing.T) {
	p := New(6, 1)
	if p.Count(0) != 6 || p.Offset(0) != 0 {
		t.Errorf("expected single worker to own all 6 documents, got count=%d offset=%d", p.Count(0), p.Offset(0))
	}
	for doc := 0; doc < 6; doc++ {
		if p.Owner(doc) != 0 {
			t.Errorf("Owner(%d) = %d, expected 0", doc, p.Owner(doc))
		}
	}
}

func TestInitialCabinet(t *testing.T) {
	cases := []struct {
		doc, cabinets, want int
	}{
		{0, 3, 0},
		{1, 3, 1},
		{2, 3, 2},
		{3, 3, 0},
		{5, 1, 0},
	}
	for _, c := range cases {
		if got := InitialCabinet(c.doc, c.cabinets); got != c.want {
			t.Errorf("InitialCabinet(%d, %d) = %d, want %d", c.doc, c.cabinets, got, c.want)
		}
	}
}

func TestInitialCabinet_EveryCabinetSeeded(t *testing.T) {
	// The six-step contract requires every cabinet index < D to receive
	// at least one document at t=0.
	cabinets := 3
	documents := 9
	seeded := make(map[int]bool)
	for doc := 0; doc < documents; doc++ {
		seeded[InitialCabinet(doc, cabinets)] = true
	}
	for c := 0; c < cabinets; c++ {
		if !seeded[c] {
			t.Errorf("cabinet %d never received a seed document", c)
		}
	}
}
