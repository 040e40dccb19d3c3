package types

import "testing"

func TestClone_DeepCopiesSubjects(t *testing.T) {
	d := &Document{ID: 1, Subjects: []float64{1, 2, 3}, Assigned: 2}
	c := d.Clone()

	c.Subjects[0] = 99
	c.Assigned = 5

	if d.Subjects[0] != 1 {
		t.Errorf("expected original untouched, got %v", d.Subjects[0])
	}
	if c.ID != d.ID {
		t.Errorf("expected clone to carry the same ID, got %d want %d", c.ID, d.ID)
	}
}

func TestDimension_ReturnsSubjectCount(t *testing.T) {
	d := &Document{Subjects: []float64{1, 2, 3, 4}}
	if d.Dimension() != 4 {
		t.Errorf("expected Dimension 4, got %d", d.Dimension())
	}
}

func TestFinalObjective_EmptyLogReturnsZero(t *testing.T) {
	s := &RunStats{}
	if got := s.FinalObjective(); got != 0 {
		t.Errorf("expected 0 for empty log, got %v", got)
	}
}

func TestFinalObjective_ReturnsLastEntry(t *testing.T) {
	s := &RunStats{ObjectiveLog: []float64{10, 6, 3}}
	if got := s.FinalObjective(); got != 3 {
		t.Errorf("expected last entry 3, got %v", got)
	}
}
