package export

import (
	"context"
	"crypto/tls"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// QdrantConfig holds Qdrant sink configuration.
type QdrantConfig struct {
	Host       string
	APIKey     string
	Collection string
	UseTLS     bool

	// GRPCPort is the gRPC port (default: 6334).
	GRPCPort int
}

// QdrantSink upserts centroids into a Qdrant collection via its
// gRPC PointsClient.
type QdrantSink struct {
	cfg        QdrantConfig
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

// NewQdrantSink dials Qdrant and returns a sink bound to cfg.Collection.
func NewQdrantSink(ctx context.Context, cfg QdrantConfig) (*QdrantSink, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("export: qdrant host is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("export: qdrant collection is required")
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = 6334
	}

	var opts []grpc.DialOption
	if cfg.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort)
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("export: connect to qdrant at %s: %w", addr, err)
	}

	return &QdrantSink{
		cfg:        cfg,
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
	}, nil
}

// UpsertCentroids upserts the given centroids as Qdrant points, one
// point per cabinet, keyed by its numeric index.
func (s *QdrantSink) UpsertCentroids(ctx context.Context, centroids []Centroid) error {
	if len(centroids) == 0 {
		return nil
	}

	if s.cfg.APIKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", s.cfg.APIKey)
	}

	points := make([]*pb.PointStruct, len(centroids))
	for i, c := range centroids {
		cabinet, _ := c.Metadata["cabinet"].(int)
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Num{Num: uint64(cabinet)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: c.Values},
				},
			},
			Payload: buildPayload(c.Metadata),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("export: qdrant upsert failed: %w", err)
	}
	return nil
}

// Close releases the gRPC connection.
func (s *QdrantSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func buildPayload(m map[string]interface{}) map[string]*pb.Value {
	if len(m) == 0 {
		return nil
	}
	payload := make(map[string]*pb.Value, len(m))
	for k, v := range m {
		if val := toQdrantValue(v); val != nil {
			payload[k] = val
		}
	}
	return payload
}

func toQdrantValue(v interface{}) *pb.Value {
	switch val := v.(type) {
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}
	default:
		return nil
	}
}
