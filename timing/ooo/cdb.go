package ooo

// Completer is a functional-unit-side completion buffer: it presents at
// most one result and holds it unchanged until drained.
type Completer interface {
	// PeekCompletion returns the pending completion without consuming it.
	PeekCompletion() (WritebackPacket, bool)
	// DrainCompletion releases the pending completion after it won the bus.
	DrainCompletion()
}

// CDB is the common data bus arbiter. At most one completion per cycle
// reaches the writeback channel; sources are served in fixed priority
// order, so a losing source holds its result for a future cycle.
type CDB struct {
	sources []Completer
}

// NewCDB creates an arbiter over the given sources, highest priority first.
func NewCDB(sources ...Completer) *CDB {
	return &CDB{sources: sources}
}

// Grant returns the highest-priority pending completion and its source.
// The caller drains the source once the packet has been delivered.
func (c *CDB) Grant() (WritebackPacket, Completer, bool) {
	for _, src := range c.sources {
		if pkt, ok := src.PeekCompletion(); ok {
			return pkt, src, true
		}
	}
	return WritebackPacket{}, nil, false
}
