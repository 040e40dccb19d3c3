package export

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig holds Pinecone sink configuration.
type PineconeConfig struct {
	APIKey    string
	IndexName string
	Namespace string

	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPineconeConfig returns sensible retry defaults.
func DefaultPineconeConfig() PineconeConfig {
	return PineconeConfig{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// PineconeSink upserts centroids into a Pinecone index via its gRPC
// data plane.
type PineconeSink struct {
	cfg     PineconeConfig
	pc      *pinecone.Client
	idxConn *pinecone.IndexConnection
	stats   Stats
}

// Stats tracks sink operation counters.
type Stats struct {
	UpsertedVectors int64
	FailedVectors   int64
	RetryCount      int64
	BatchCount      int64
}

// NewPineconeSink dials Pinecone and connects to the target index.
func NewPineconeSink(ctx context.Context, cfg PineconeConfig) (*PineconeSink, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("export: pinecone api key is required")
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("export: pinecone index name is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("export: create pinecone client: %w", err)
	}

	idx, err := pc.DescribeIndex(ctx, cfg.IndexName)
	if err != nil {
		return nil, fmt.Errorf("export: describe index %q: %w", cfg.IndexName, err)
	}

	idxConn, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      idx.Host,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("export: connect to index: %w", err)
	}

	return &PineconeSink{cfg: cfg, pc: pc, idxConn: idxConn}, nil
}

// UpsertCentroids upserts the given centroids with exponential-backoff
// retry on transient (429/503) errors.
func (s *PineconeSink) UpsertCentroids(ctx context.Context, centroids []Centroid) error {
	if len(centroids) == 0 {
		return nil
	}

	vectors := make([]*pinecone.Vector, len(centroids))
	for i, c := range centroids {
		values := c.Values
		vectors[i] = &pinecone.Vector{
			Id:       c.ID,
			Values:   &values,
			Metadata: convertMetadata(c.Metadata),
		}
	}

	var lastErr error
	backoff := s.cfg.InitialBackoff
	retries := 0

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if attempt > 0 {
			retries++
			atomic.AddInt64(&s.stats.RetryCount, 1)
			time.Sleep(backoff)
			backoff = time.Duration(math.Min(float64(backoff*2), float64(s.cfg.MaxBackoff)))
		}

		_, err := s.idxConn.UpsertVectors(ctx, vectors)
		if err == nil {
			atomic.AddInt64(&s.stats.UpsertedVectors, int64(len(centroids)))
			atomic.AddInt64(&s.stats.BatchCount, 1)
			return nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	atomic.AddInt64(&s.stats.FailedVectors, int64(len(centroids)))
	return fmt.Errorf("export: upsert failed after %d retries: %w", retries, lastErr)
}

// GetStats returns a snapshot of the sink's operation counters.
func (s *PineconeSink) GetStats() Stats {
	return Stats{
		UpsertedVectors: atomic.LoadInt64(&s.stats.UpsertedVectors),
		FailedVectors:   atomic.LoadInt64(&s.stats.FailedVectors),
		RetryCount:      atomic.LoadInt64(&s.stats.RetryCount),
		BatchCount:      atomic.LoadInt64(&s.stats.BatchCount),
	}
}

// Close closes the index connection.
func (s *PineconeSink) Close() error {
	if s.idxConn != nil {
		return s.idxConn.Close()
	}
	return nil
}

func convertMetadata(m map[string]interface{}) *structpb.Struct {
	if len(m) == 0 {
		return nil
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil
	}
	return st
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "unavailable") ||
		strings.Contains(errStr, "temporarily")
}
