// Package export defines the centroid-export sink contract and the
// shared vector representation its backends upsert. A run's
// coordinator exports the final C centroids once RunToConvergence
// returns, one vector per cabinet, so the clustering result can be
// queried by downstream retrieval systems the same way the teacher's
// retriever package queries them back out.
package export

import (
	"context"
	"fmt"
)

// Centroid is one cabinet's final position, ready for upsert into a
// vector index.
type Centroid struct {
	ID       string
	Values   []float32
	Metadata map[string]interface{}
}

// Sink upserts a batch of centroid vectors into an external vector
// store. Implementations must be safe to call once per run, after
// convergence.
type Sink interface {
	UpsertCentroids(ctx context.Context, centroids []Centroid) error
	Close() error
}

// FromReplica converts a coordinator's row-major Cabinets*Subjects
// centroid buffer into the Centroid slice every Sink consumes.
func FromReplica(mu []float64, cabinets, subjects int) []Centroid {
	out := make([]Centroid, cabinets)
	for c := 0; c < cabinets; c++ {
		row := mu[c*subjects : (c+1)*subjects]
		values := make([]float32, subjects)
		for i, v := range row {
			values[i] = float32(v)
		}
		out[c] = Centroid{
			ID:     fmt.Sprintf("cabinet-%d", c),
			Values: values,
			Metadata: map[string]interface{}{
				"cabinet": c,
			},
		}
	}
	return out
}
