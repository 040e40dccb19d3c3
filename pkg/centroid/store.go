// Package centroid holds the replicated centroid/population state of
// every cabinet, and the coordinator-only incremental fold that keeps
// it current without re-summing the whole corpus each iteration.
package centroid

import "github.com/Siddhant-K-code/cabinets/pkg/vecmath"

// Store is a row-major C*S buffer of centroids plus a per-cabinet
// population count. One authoritative copy lives at the coordinator;
// every worker holds a read-only replica kept in sync by broadcast.
type Store struct {
	Subjects int
	Mu       []float64 // len Cabinets*Subjects, row c at [c*Subjects : (c+1)*Subjects]
	N        []int64   // len Cabinets
}

// New allocates a zeroed store for the given number of cabinets and
// subjects. At t=0 every centroid is the zero vector and every
// population is zero, per spec.
func New(cabinets, subjects int) *Store {
	return &Store{
		Subjects: subjects,
		Mu:       make([]float64, cabinets*subjects),
		N:        make([]int64, cabinets),
	}
}

// Cabinets returns the number of cabinets the store was sized for.
func (s *Store) Cabinets() int {
	return len(s.N)
}

// Row returns the non-owning view of cabinet c's centroid.
func (s *Store) Row(c int) []float64 {
	return s.Mu[c*s.Subjects : (c+1)*s.Subjects]
}

// Fold folds a merged (reduced) set of per-cabinet deltas into the
// store. For every cabinet c:
//
//	n'  := n_c + deltaCount[c]
//	if n' == 0: mu_c := 0
//	else, for each subject i: mu_c[i] := (mu_c[i]*n_c + deltaSum[c][i]) / n'
//	n_c := n'
//
// This is the closed-form weighted-mean update; it is the only fold
// formula this engine implements (see Design Notes: the
// per-document-division variant is deliberately not replicated).
// deltaSum is a row-major C*S buffer shaped like Mu.
func (s *Store) Fold(deltaSum []float64, deltaCount []int64) {
	for c := 0; c < s.Cabinets(); c++ {
		nPrime := s.N[c] + deltaCount[c]
		row := s.Row(c)
		deltaRow := deltaSum[c*s.Subjects : (c+1)*s.Subjects]

		if nPrime == 0 {
			vecmath.Zero(row)
			s.N[c] = 0
			continue
		}

		n := float64(s.N[c])
		invNPrime := 1.0 / float64(nPrime)
		for i := range row {
			row[i] = (row[i]*n + deltaRow[i]) * invNPrime
		}
		s.N[c] = nPrime
	}
}

// Clone returns a deep copy of the store, used by replicas receiving
// a broadcast so they never alias the coordinator's buffers.
func (s *Store) Clone() *Store {
	out := &Store{
		Subjects: s.Subjects,
		Mu:       make([]float64, len(s.Mu)),
		N:        make([]int64, len(s.N)),
	}
	copy(out.Mu, s.Mu)
	copy(out.N, s.N)
	return out
}

// CopyFrom overwrites the receiver's content with src's, without
// reallocating — the shape used by broadcast replicas so the
// destination buffer identity stays stable across iterations.
func (s *Store) CopyFrom(src *Store) {
	copy(s.Mu, src.Mu)
	copy(s.N, src.N)
}

// TotalPopulation returns sum_c N[c], which the invariant in spec.md
// requires to equal D between iterations.
func (s *Store) TotalPopulation() int64 {
	var total int64
	for _, n := range s.N {
		total += n
	}
	return total
}
