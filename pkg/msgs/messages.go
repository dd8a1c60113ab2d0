package msgs

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/pingpong/pkg/dma"
)

// RingStats reports the counters and positions of a ring.
type RingStats struct {
	Completions uint32 `protobuf:"varint,1,opt,name=completions,proto3" json:"completions,omitempty"`
	Timeouts    uint32 `protobuf:"varint,2,opt,name=timeouts,proto3" json:"timeouts,omitempty"`
	Spurious    uint32 `protobuf:"varint,3,opt,name=spurious,proto3" json:"spurious,omitempty"`
	Overruns    uint32 `protobuf:"varint,4,opt,name=overruns,proto3" json:"overruns,omitempty"`
	Exposed     uint64 `protobuf:"varint,5,opt,name=exposed,proto3" json:"exposed,omitempty"`
	Consumed    uint64 `protobuf:"varint,6,opt,name=consumed,proto3" json:"consumed,omitempty"`
	Available   uint32 `protobuf:"varint,7,opt,name=available,proto3" json:"available,omitempty"`
	Head        uint32 `protobuf:"varint,8,opt,name=head,proto3" json:"head,omitempty"`
	Tail        uint32 `protobuf:"varint,9,opt,name=tail,proto3" json:"tail,omitempty"`
	Capacity    uint32 `protobuf:"varint,10,opt,name=capacity,proto3" json:"capacity,omitempty"`
	Chunks      uint32 `protobuf:"varint,11,opt,name=chunks,proto3" json:"chunks,omitempty"`
	Sent        uint64 `protobuf:"varint,12,opt,name=sent,proto3" json:"sent,omitempty"`
}

// NewRingStats snapshots a ring, and the pacer transmitting from it if any.
func NewRingStats(r *dma.Ring, p *dma.Pacer) *RingStats {
	s := r.Stats()
	m := &RingStats{
		Completions: s.Completions,
		Timeouts:    s.Timeouts,
		Spurious:    s.Spurious,
		Overruns:    s.Overruns,
		Exposed:     s.Exposed,
		Consumed:    s.Consumed,
		Available:   uint32(r.Consumer().Available()),
		Head:        uint32(r.Head()),
		Tail:        uint32(r.Tail()),
		Capacity:    uint32(r.Capacity()),
	}
	if p != nil {
		ps := p.Stats()
		m.Chunks, m.Sent = ps.Chunks, ps.Sent
	}
	return m
}

// NewMessage implements SerializableMessage.
func (m *RingStats) NewMessage() SerializableMessage { return &RingStats{} }

// TypeID implements SerializableMessage.
func (m *RingStats) TypeID() uint32 { return RingStatsTypeID }

// Reset implements proto.Message.
func (m *RingStats) Reset() { *m = RingStats{} }

// String implements proto.Message.
func (m *RingStats) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*RingStats) ProtoMessage() {}

// Chunk carries received stream bytes. Offset is the position of the first
// byte in the stream since the ring was reset.
type Chunk struct {
	Offset uint64 `protobuf:"varint,1,opt,name=offset,proto3" json:"offset,omitempty"`
	Data   []byte `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
}

// NewMessage implements SerializableMessage.
func (m *Chunk) NewMessage() SerializableMessage { return &Chunk{} }

// TypeID implements SerializableMessage.
func (m *Chunk) TypeID() uint32 { return ChunkTypeID }

// Reset implements proto.Message.
func (m *Chunk) Reset() { *m = Chunk{} }

// String implements proto.Message.
func (m *Chunk) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Chunk) ProtoMessage() {}

// FrameMsg carries a frame parsed from the stream.
type FrameMsg struct {
	Seq  uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Code uint32 `protobuf:"varint,2,opt,name=code,proto3" json:"code,omitempty"`
	Data []byte `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
}

// NewMessage implements SerializableMessage.
func (m *FrameMsg) NewMessage() SerializableMessage { return &FrameMsg{} }

// TypeID implements SerializableMessage.
func (m *FrameMsg) TypeID() uint32 { return FrameMsgTypeID }

// Reset implements proto.Message.
func (m *FrameMsg) Reset() { *m = FrameMsg{} }

// String implements proto.Message.
func (m *FrameMsg) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*FrameMsg) ProtoMessage() {}

// TxRequest asks a bridge to transmit bytes.
type TxRequest struct {
	Data []byte `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
}

// NewMessage implements SerializableMessage.
func (m *TxRequest) NewMessage() SerializableMessage { return &TxRequest{} }

// TypeID implements SerializableMessage.
func (m *TxRequest) TypeID() uint32 { return TxRequestTypeID }

// Reset implements proto.Message.
func (m *TxRequest) Reset() { *m = TxRequest{} }

// String implements proto.Message.
func (m *TxRequest) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*TxRequest) ProtoMessage() {}

// TypeID Groups
const (
	GroupStream uint32 = 0x00010000
	GroupCustom uint32 = 0x7f000000 // base group id for custom messages.
)

// TypeIDs
const (
	TxRequestTypeID uint32 = GroupStream | 0x0001
	ChunkTypeID     uint32 = TypeIDKindEvent | GroupStream | 0x0001
	FrameMsgTypeID  uint32 = TypeIDKindEvent | GroupStream | 0x0002
	RingStatsTypeID uint32 = TypeIDKindEvent | GroupStream | 0x0003
)
