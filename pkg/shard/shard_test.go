package shard

import (
	"testing"

	"github.com/Siddhant-K-code/cabinets/pkg/types"
)

func newDocs(vectors ...[]float64) []types.Document {
	docs := make([]types.Document, len(vectors))
	for i, v := range vectors {
		docs[i] = types.Document{ID: i, Subjects: v}
	}
	return docs
}

func TestNew_AllocatesByDocumentDimension(t *testing.T) {
	docs := newDocs([]float64{1, 2}, []float64{3, 4})
	s := New(docs, 3)

	if s.Subjects != 2 {
		t.Errorf("expected Subjects=2, got %d", s.Subjects)
	}
	if len(s.DeltaSum) != 3*2 {
		t.Errorf("expected DeltaSum len 6, got %d", len(s.DeltaSum))
	}
	if len(s.DeltaCount) != 3 {
		t.Errorf("expected DeltaCount len 3, got %d", len(s.DeltaCount))
	}
}

func TestAssign_FoldsMoveIntoDeltas(t *testing.T) {
	docs := newDocs([]float64{1, 1})
	docs[0].Assigned = 0
	s := New(docs, 2)

	s.Assign(0, 1)

	if s.Assigned(0) != 1 {
		t.Errorf("expected document reassigned to cabinet 1, got %d", s.Assigned(0))
	}
	if s.DeltaCount[0] != -1 || s.DeltaCount[1] != 1 {
		t.Errorf("expected delta counts [-1, 1], got [%d, %d]", s.DeltaCount[0], s.DeltaCount[1])
	}
	if s.deltaRow(0)[0] != -1 || s.deltaRow(1)[0] != 1 {
		t.Errorf("expected delta sums to mirror the moved vector, got row0=%v row1=%v", s.deltaRow(0), s.deltaRow(1))
	}
}

func TestAssign_NoopWhenSameCabinet(t *testing.T) {
	docs := newDocs([]float64{1, 1})
	docs[0].Assigned = 0
	s := New(docs, 2)

	s.Assign(0, 0)

	if s.DeltaCount[0] != 0 {
		t.Errorf("expected no delta change for a same-cabinet assign, got %d", s.DeltaCount[0])
	}
}

func TestResetDeltas(t *testing.T) {
	docs := newDocs([]float64{1, 1})
	s := New(docs, 2)
	s.Assign(0, 1)

	s.ResetDeltas()

	for _, v := range s.DeltaSum {
		if v != 0 {
			t.Errorf("expected DeltaSum zeroed, got %v", s.DeltaSum)
		}
	}
	for _, c := range s.DeltaCount {
		if c != 0 {
			t.Errorf("expected DeltaCount zeroed, got %v", s.DeltaCount)
		}
	}
}

func TestSeedInitialDeltas(t *testing.T) {
	docs := newDocs([]float64{2, 2}, []float64{4, 4})
	docs[0].Assigned = 0
	docs[1].Assigned = 1
	s := New(docs, 2)

	s.SeedInitialDeltas()

	if s.DeltaCount[0] != 1 || s.DeltaCount[1] != 1 {
		t.Errorf("expected one seed document per cabinet, got %v", s.DeltaCount)
	}
	if s.deltaRow(0)[0] != 2 || s.deltaRow(1)[0] != 4 {
		t.Errorf("expected delta rows to equal seeded vectors, got row0=%v row1=%v", s.deltaRow(0), s.deltaRow(1))
	}
}

func TestRefreshDistancesAndReassign_MovesToNearestCabinet(t *testing.T) {
	docs := newDocs([]float64{0, 0}, []float64{10, 10})
	docs[0].Assigned = 1 // deliberately wrong: closer to cabinet 0
	docs[1].Assigned = 1
	s := New(docs, 2)

	mu := []float64{0, 0, 10, 10} // cabinet 0 at origin, cabinet 1 at (10,10)
	s.RefreshDistances(mu)

	moved, count := s.Reassign()
	if !moved || count != 1 {
		t.Fatalf("expected exactly one document to move, got moved=%v count=%d", moved, count)
	}
	if s.Assigned(0) != 0 {
		t.Errorf("expected document 0 reassigned to cabinet 0, got %d", s.Assigned(0))
	}
	if s.Assigned(1) != 1 {
		t.Errorf("expected document 1 to remain in cabinet 1, got %d", s.Assigned(1))
	}
}

func TestReassign_TieBreaksTowardCurrentAssignment(t *testing.T) {
	docs := newDocs([]float64{5, 5})
	docs[0].Assigned = 1
	s := New(docs, 2)

	// Equidistant from both cabinets (cabinet 0 at origin, cabinet 1 at (10,10)).
	mu := []float64{0, 0, 10, 10}
	s.RefreshDistances(mu)

	moved, count := s.Reassign()
	if moved || count != 0 {
		t.Errorf("expected a tie to stay put, got moved=%v count=%d", moved, count)
	}
	if s.Assigned(0) != 1 {
		t.Errorf("expected document to remain in cabinet 1 on a tie, got %d", s.Assigned(0))
	}
}

func TestReassign_TieBreaksTowardLowestIndexWhenNotCurrent(t *testing.T) {
	docs := newDocs([]float64{5, 5})
	docs[0].Assigned = 2
	s := New(docs, 3)

	// Cabinets 0 and 1 tie at equal distance, cabinet 2 (current) is farther.
	mu := []float64{0, 0, 10, 10, 100, 100}
	s.RefreshDistances(mu)

	moved, count := s.Reassign()
	if !moved || count != 1 {
		t.Fatalf("expected the document to move off a worse current cabinet, got moved=%v count=%d", moved, count)
	}
	if s.Assigned(0) != 0 {
		t.Errorf("expected a tie between non-current cabinets to break toward the lowest index, got %d", s.Assigned(0))
	}
}

func TestObjective_SumsSquaredDistanceToAssignedCabinet(t *testing.T) {
	docs := newDocs([]float64{3, 4})
	docs[0].Assigned = 0
	s := New(docs, 1)

	mu := []float64{0, 0}
	s.RefreshDistances(mu)

	if got, want := s.Objective(), 25.0; got != want {
		t.Errorf("Objective() = %v, want %v", got, want)
	}
}

func TestAssignments_ReflectsCurrentState(t *testing.T) {
	docs := newDocs([]float64{1}, []float64{2})
	docs[0].Assigned = 0
	docs[1].Assigned = 1
	s := New(docs, 2)

	got := s.Assignments()
	want := []struct{ docID, cabinet int }{{0, 0}, {1, 1}}
	for i, w := range want {
		if got[i].DocID != w.docID || got[i].Cabinet != w.cabinet {
			t.Errorf("Assignments()[%d] = %+v, want DocID=%d Cabinet=%d", i, got[i], w.docID, w.cabinet)
		}
	}
}
