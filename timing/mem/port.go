// Package mem models the core-to-memory interface: independent load and
// store channels with valid/ready handshakes and configurable latency.
//
// The core issues at most one outstanding load and one outstanding store.
// A request is accepted only when the channel is free; a rejected request
// must be re-presented unchanged on a later cycle. Load responses carry the
// request's opaque tag so stale responses (for loads squashed while in
// flight) can be identified and dropped by the requester.
package mem

// LoadRequest is a read request on the load channel.
type LoadRequest struct {
	// Addr is the byte address of the access.
	Addr uint32
	// Size is the access width in bytes (1, 2, or 4).
	Size int
	// Tag is an opaque requester-chosen identifier echoed in the response.
	Tag uint64
}

// LoadResponse is the reply to a LoadRequest.
type LoadResponse struct {
	// Tag echoes the request's tag.
	Tag uint64
	// Data holds the accessed bytes in the low Size bytes, little-endian.
	Data uint32
}

// StoreRequest is a byte-masked write request on the store channel.
type StoreRequest struct {
	// Addr is the word-aligned base address of the write.
	Addr uint32
	// Data is the write data; only bytes selected by Mask are written.
	Data uint32
	// Mask selects which of the four bytes at Addr are written (bit i for
	// byte Addr+i).
	Mask uint8
}

// Port is the memory-side interface the load-store unit drives. The
// underlying model must serve every accepted request eventually (no
// starvation); internal timing is its own concern.
type Port interface {
	// IssueLoad presents a load request. It returns false when the load
	// channel cannot accept the request this cycle.
	IssueLoad(req LoadRequest) bool

	// PeekLoadResponse returns the pending load response, if any, without
	// consuming it.
	PeekLoadResponse() (LoadResponse, bool)

	// TakeLoadResponse consumes the pending load response.
	TakeLoadResponse()

	// IssueStore presents a store request. It returns false when the store
	// channel cannot accept the request this cycle.
	IssueStore(req StoreRequest) bool

	// TakeStoreAck consumes the completion acknowledgment for the
	// outstanding store, if one is available.
	TakeStoreAck() bool
}
