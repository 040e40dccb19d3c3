package grpcc

// Wire messages for the Collective gRPC service. These are plain Go
// structs (no generated .pb.go) because the gobCodec registered in
// codec.go marshals them with encoding/gob instead of protobuf.

// BroadcastRequest carries the broadcast payload; only the caller at
// Root sets Data, everyone else sends Root alone.
type BroadcastRequest struct {
	CallerRank int
	Root       int
	Data       []float64
}

// BroadcastReply carries root's content back to the caller.
type BroadcastReply struct {
	Data []float64
}

// ReduceRequest carries one rank's contribution to a reduce-sum.
type ReduceRequest struct {
	CallerRank int
	Root       int
	Data       []float64
}

// ReduceReply carries the summed result; populated only when the
// caller is Root.
type ReduceReply struct {
	Sum []float64
}

// AllReduceRequest carries one rank's scalar contribution.
type AllReduceRequest struct {
	CallerRank int
	Value      int64
}

// AllReduceReply carries the summed scalar, valid for every caller.
type AllReduceReply struct {
	Sum int64
}

// SendRequest delivers a point-to-point message to the coordinator's
// mailbox for (src=caller rank, dest, tag).
type SendRequest struct {
	SrcRank int
	Dest    int
	Tag     int
	Data    []byte
}

// SendReply is empty; its presence is the acknowledgement.
type SendReply struct{}

// RecvRequest asks the coordinator for the message addressed
// (src, dest=caller rank, tag); it blocks server-side until available.
type RecvRequest struct {
	Src     int
	DstRank int
	Tag     int
}

// RecvReply carries the delivered message bytes.
type RecvReply struct {
	Data []byte
}
