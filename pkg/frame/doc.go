// Package frame provides a small framing protocol over a byte stream.
package frame

// Frames are meant for a peer-to-peer stream such as a serial line read
// through a DMA ring. A frame is
//
//	Start Seq Code|Len [Len] Data... Sum
//
// where Len is carried in bits 4-6 of the code byte for up to 6 data bytes
// and in an explicit byte otherwise, and Sum is the XOR of every byte after
// Start. The receiver resynchronizes on the next Start byte after any error
// and drops a partial frame when the line goes idle in the middle of it.
// Sequence numbers only detect lost frames; there is no retransmission.
