// Package engine drives the fixed-point iteration loop described by
// the data flow in the system overview: merge deltas, recompute
// centroids, broadcast, recompute distances, reassign, detect global
// convergence. It bundles the pieces every worker needs — its shard,
// its centroid replica, its collective handle — into one Run
// aggregate instead of scattering them across package-level globals,
// grounded on the teacher's kMeans orchestration method but
// restructured around the distributed kernel's incremental deltas
// rather than a full local recompute every iteration.
package engine

import (
	"context"
	"fmt"

	"github.com/Siddhant-K-code/cabinets/pkg/centroid"
	"github.com/Siddhant-K-code/cabinets/pkg/collective"
	"github.com/Siddhant-K-code/cabinets/pkg/metrics"
	"github.com/Siddhant-K-code/cabinets/pkg/shard"
	"github.com/Siddhant-K-code/cabinets/pkg/telemetry"
	"github.com/Siddhant-K-code/cabinets/pkg/types"
)

const coordinatorRank = 0

// Run is one worker's view of a clustering run: its shard of owned
// documents, a local centroid replica, and (only at rank 0) the
// authoritative centroid store. Instrumentation is optional — Metrics
// and Tracer may be left nil for a bare run.
type Run struct {
	Backend  collective.Backend
	Shard    *shard.Shard
	Cabinets int
	Subjects int

	// store is non-nil only at the coordinator; it is the single
	// writer the spec requires for the authoritative centroid state.
	store *centroid.Store

	// mu is every rank's read-only replica, refreshed by Broadcast.
	mu []float64

	Metrics *metrics.Metrics
	Tracer  *telemetry.Provider
	RunID   string

	iteration int
}

// New constructs a Run for one worker. cabinets and subjects must
// agree across every worker in the run (they are fixed for the
// lifetime of the run per the data model).
func New(backend collective.Backend, sh *shard.Shard, cabinets, subjects int) *Run {
	r := &Run{
		Backend:  backend,
		Shard:    sh,
		Cabinets: cabinets,
		Subjects: subjects,
		mu:       make([]float64, cabinets*subjects),
	}
	if backend.Rank() == coordinatorRank {
		r.store = centroid.New(cabinets, subjects)
	}
	return r
}

// Step performs exactly one cycle of the six-step contract and
// reports whether any document moved. It is collective: every worker
// in the run must call Step the same number of times with the same
// Cabinets/Subjects, or the run hangs.
func (r *Run) Step(ctx context.Context) (bool, error) {
	r.iteration++
	rank := r.Backend.Rank()

	// 1. Merge: reduce_sum of delta_sum and delta_count into the
	// coordinator's aggregate, then every shard zeros its own.
	var mergedSum []float64
	var mergedCountF []float64
	if rank == coordinatorRank {
		mergedSum = make([]float64, r.Cabinets*r.Subjects)
		mergedCountF = make([]float64, r.Cabinets)
	}
	if r.Tracer != nil {
		mctx, span := r.Tracer.StartMerge(ctx, rank, r.iteration)
		err := r.mergeDeltas(mctx, mergedSum, mergedCountF)
		span.End()
		if err != nil {
			return false, err
		}
	} else if err := r.mergeDeltas(ctx, mergedSum, mergedCountF); err != nil {
		return false, err
	}

	// 2. Recompute centroids: coordinator folds the merged deltas.
	if rank == coordinatorRank {
		if r.Tracer != nil {
			_, span := r.Tracer.StartFold(ctx, r.iteration, r.Cabinets)
			r.store.Fold(mergedSum, floatsToInts(mergedCountF))
			copy(r.mu, r.store.Mu)
			span.End()
		} else {
			r.store.Fold(mergedSum, floatsToInts(mergedCountF))
			copy(r.mu, r.store.Mu)
		}
	}

	// 3. Broadcast: coordinator broadcasts mu to all workers.
	var broadcastErr error
	if r.Tracer != nil {
		bctx, span := r.Tracer.StartBroadcast(ctx, rank, r.iteration)
		broadcastErr = r.Backend.Broadcast(bctx, r.mu, coordinatorRank)
		span.End()
	} else {
		broadcastErr = r.Backend.Broadcast(ctx, r.mu, coordinatorRank)
	}
	if broadcastErr != nil {
		return false, fmt.Errorf("engine: broadcast centroids: %w", broadcastErr)
	}

	// 4 & 5. Distance refresh and reassign.
	var localMoved bool
	var localMovedCount int
	if r.Tracer != nil {
		_, span := r.Tracer.StartReassign(ctx, rank, r.iteration, r.Shard.Len())
		r.Shard.RefreshDistances(r.mu)
		localMoved, localMovedCount = r.Shard.Reassign()
		span.End()
	} else {
		r.Shard.RefreshDistances(r.mu)
		localMoved, localMovedCount = r.Shard.Reassign()
	}

	// 6. Convergence probe: all-reduce the local moved bit.
	var movedLocal int64
	if localMoved {
		movedLocal = 1
	}
	var movedGlobal int64
	var probeErr error
	if r.Tracer != nil {
		cctx, span := r.Tracer.StartConverge(ctx, rank, r.iteration)
		movedGlobal, probeErr = r.Backend.AllReduceSum(cctx, movedLocal)
		span.End()
	} else {
		movedGlobal, probeErr = r.Backend.AllReduceSum(ctx, movedLocal)
	}
	if probeErr != nil {
		return false, fmt.Errorf("engine: convergence probe: %w", probeErr)
	}

	if r.Metrics != nil {
		r.Metrics.RecordIteration(r.RunID, localMovedCount, r.Shard.Objective())
	}

	return movedGlobal != 0, nil
}

// mergeDeltas reduces this shard's delta_sum and delta_count into
// mergedSum/mergedCount (valid only at the coordinator), then zeros
// the shard's own accumulators. delta_count is carried over the
// []float64 reduce primitive (the collective layer exposes no integer
// vector reduce) and converted back to int64 by the caller.
func (r *Run) mergeDeltas(ctx context.Context, mergedSum, mergedCount []float64) error {
	if err := r.Backend.ReduceSum(ctx, r.Shard.DeltaSum, mergedSum, coordinatorRank); err != nil {
		return fmt.Errorf("engine: merge delta_sum: %w", err)
	}
	countAsFloat := intsToFloats(r.Shard.DeltaCount)
	if err := r.Backend.ReduceSum(ctx, countAsFloat, mergedCount, coordinatorRank); err != nil {
		return fmt.Errorf("engine: merge delta_count: %w", err)
	}
	r.Shard.ResetDeltas()
	return nil
}

// Seed performs the iteration-0 special case: every shard treats its
// seed assignment as having just moved in from nowhere, then runs the
// ordinary six-step cycle so the first fold produces the correct
// initial centroids (see centroid.Store.Fold's t=0 contract).
func (r *Run) Seed(ctx context.Context) (bool, error) {
	r.Shard.SeedInitialDeltas()
	return r.Step(ctx)
}

// RunToConvergence seeds the run and then steps until the global
// moved-count reaches zero, returning run statistics. maxIterations
// bounds the loop as a safety net; the spec guarantees termination in
// fewer steps than the document count, but a caller-supplied cap keeps
// a misconfigured run from looping forever under collective failure
// retries upstream of this package.
func (r *Run) RunToConvergence(ctx context.Context, maxIterations int) (*types.RunStats, error) {
	stats := &types.RunStats{
		Subjects: r.Subjects,
		Cabinets: r.Cabinets,
		Workers:  r.Backend.Size(),
	}

	moved, err := r.Seed(ctx)
	if err != nil {
		return nil, err
	}
	stats.Iterations++
	stats.ObjectiveLog = append(stats.ObjectiveLog, r.Shard.Objective())

	for moved {
		if maxIterations > 0 && stats.Iterations >= maxIterations {
			break
		}
		moved, err = r.Step(ctx)
		if err != nil {
			return nil, err
		}
		stats.Iterations++
		stats.ObjectiveLog = append(stats.ObjectiveLog, r.Shard.Objective())
	}

	stats.Converged = !moved
	return stats, nil
}

// CentroidReplica returns this worker's most recently broadcast
// centroid replica (row-major Cabinets*Subjects), read-only.
func (r *Run) CentroidReplica() []float64 {
	return r.mu
}

// Store returns the authoritative centroid store; nil at every rank
// except the coordinator.
func (r *Run) Store() *centroid.Store {
	return r.store
}

func intsToFloats(in []int64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func floatsToInts(in []float64) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}
