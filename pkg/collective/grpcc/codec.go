package grpcc

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype negotiated between client and
// server ("application/grpc+gob"); it must be lowercase per grpc-go's
// encoding.RegisterCodec contract.
const codecName = "gob"

// gobCodec implements encoding.Codec over encoding/gob so the
// Collective service can exchange plain Go structs without a
// protoc-generated marshaler. The teacher's gRPC clients (Qdrant,
// Pinecone) always talk to a server that already speaks protobuf;
// here we own both ends of the wire, so a lighter codec is a better
// fit than hand-authoring .pb.go files.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(gobCodec{})
}
