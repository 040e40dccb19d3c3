// Package shard holds one worker's slice of the document corpus: the
// subject vectors and assignments it owns, plus the per-cabinet
// accumulators that record this worker's net contribution since the
// last merge. Grounded on the concurrent assignment/update loop used
// by a single-process k-means (see dedup.Engine.kMeans), generalized
// from a full rescan into the incremental delta form the distributed
// kernel requires.
package shard

import (
	"github.com/Siddhant-K-code/cabinets/pkg/types"
	"github.com/Siddhant-K-code/cabinets/pkg/vecmath"
)

// Shard is the per-worker state: owned documents (subject vectors +
// current assignment) and the delta accumulators folded at merge time.
type Shard struct {
	Subjects int
	Cabinets int

	docs []types.Document // local index order

	// DeltaSum[c*Subjects : (c+1)*Subjects] / DeltaCount[c] record the
	// net change this worker has made to cabinet c's sum/count since
	// the last merge. Both are zeroed by ResetDeltas.
	DeltaSum   []float64
	DeltaCount []int64

	// dist[d*Cabinets : (d+1)*Cabinets] holds the most recently
	// refreshed distances for owned document d against every cabinet.
	dist []float64
}

// New allocates a shard for the given owned documents.
func New(docs []types.Document, cabinets int) *Shard {
	subjects := 0
	if len(docs) > 0 {
		subjects = docs[0].Dimension()
	}
	return &Shard{
		Subjects:   subjects,
		Cabinets:   cabinets,
		docs:       docs,
		DeltaSum:   make([]float64, cabinets*subjects),
		DeltaCount: make([]int64, cabinets),
		dist:       make([]float64, len(docs)*cabinets),
	}
}

// Len returns the number of documents owned by this shard.
func (s *Shard) Len() int {
	return len(s.docs)
}

// Doc returns the local document at the given local index (read-only
// access to id/subjects; use Assigned() for the mutable cabinet).
func (s *Shard) Doc(localIdx int) *types.Document {
	return &s.docs[localIdx]
}

// Assigned returns the current cabinet of the document at localIdx.
func (s *Shard) Assigned(localIdx int) int {
	return s.docs[localIdx].Assigned
}

// deltaRow returns the non-owning view of cabinet c's delta-sum row.
func (s *Shard) deltaRow(c int) []float64 {
	return s.DeltaSum[c*s.Subjects : (c+1)*s.Subjects]
}

// Assign updates the owner's view of doc's cabinet and folds the move
// into the accumulators. Calling with newCabinet == current assignment
// is a no-op.
func (s *Shard) Assign(localIdx, newCabinet int) {
	doc := &s.docs[localIdx]
	oldCabinet := doc.Assigned
	if newCabinet == oldCabinet {
		return
	}

	vecmath.SubInPlace(s.deltaRow(oldCabinet), doc.Subjects)
	vecmath.AddInPlace(s.deltaRow(newCabinet), doc.Subjects)
	s.DeltaCount[oldCabinet]--
	s.DeltaCount[newCabinet]++

	doc.Assigned = newCabinet
}

// ResetDeltas zeros both accumulators; called by every shard right
// after its deltas have been merged into the coordinator.
func (s *Shard) ResetDeltas() {
	vecmath.Zero(s.DeltaSum)
	for i := range s.DeltaCount {
		s.DeltaCount[i] = 0
	}
}

// SeedInitialDeltas populates the accumulators from the seed
// assignment (doc id mod C) applied during ingest, for iteration 0's
// special-cased first merge: every owned document is treated as
// having just moved from "nowhere" into its seed cabinet.
func (s *Shard) SeedInitialDeltas() {
	for i := range s.docs {
		doc := &s.docs[i]
		vecmath.AddInPlace(s.deltaRow(doc.Assigned), doc.Subjects)
		s.DeltaCount[doc.Assigned]++
	}
}

// DistRow returns the non-owning distance row computed for the
// document at localIdx by the last RefreshDistances call.
func (s *Shard) DistRow(localIdx int) []float64 {
	return s.dist[localIdx*s.Cabinets : (localIdx+1)*s.Cabinets]
}

// RefreshDistances recomputes dist[d,c] = Distance2(s_d, mu_c) for
// every owned document against every cabinet centroid. mu is a
// row-major C*Subjects buffer (the broadcast replica).
func (s *Shard) RefreshDistances(mu []float64) {
	for d := range s.docs {
		row := s.DistRow(d)
		subjects := s.docs[d].Subjects
		for c := 0; c < s.Cabinets; c++ {
			row[c] = vecmath.Distance2(subjects, mu[c*s.Subjects:(c+1)*s.Subjects])
		}
	}
}

// Reassign scans owned documents in local index order, reassigning
// each to its nearest cabinet (ties broken toward the current
// assignment, then toward the lowest index). Returns whether at least
// one document moved and how many did, the latter purely for
// reporting (the convergence probe only ever consults the former,
// all-reduced across workers as a 0/1 bit per spec.md's §4.6 step 6).
func (s *Shard) Reassign() (bool, int) {
	moved := 0
	for d := range s.docs {
		row := s.DistRow(d)
		current := s.docs[d].Assigned
		best := 0
		bestDist := row[0]
		for c := 1; c < s.Cabinets; c++ {
			if row[c] < bestDist {
				bestDist = row[c]
				best = c
			}
		}
		// Tie-break: prefer the current assignment if it ties the
		// minimum, otherwise the lowest index (already guaranteed by
		// the strict '<' scan above, except when current itself ties
		// a lower-indexed cabinet found earlier).
		if row[current] == bestDist {
			best = current
		}
		if best != current {
			s.Assign(d, best)
			moved++
		}
	}
	return moved > 0, moved
}

// Objective returns sum_d Distance2(s_d, mu_{a_d}) over owned
// documents, using the most recently refreshed distance rows.
func (s *Shard) Objective() float64 {
	var total float64
	for d := range s.docs {
		total += s.DistRow(d)[s.docs[d].Assigned]
	}
	return total
}

// Assignments returns the final (DocID, Cabinet) pairs in local index
// order, for the gather step of the I/O adapters.
func (s *Shard) Assignments() []types.Assignment {
	out := make([]types.Assignment, len(s.docs))
	for i, doc := range s.docs {
		out[i] = types.Assignment{DocID: doc.ID, Cabinet: doc.Assigned}
	}
	return out
}
