package sequence

import "sync/atomic"

// Sequencer generates strictly monotonic sequence IDs. It is
// deterministic and replay-safe: recovery resets it from the restored
// snapshot before any live request is accepted, so a restart never
// reuses a previously issued sequence.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer; the first Next after New(start) is start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence ID.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset sets the sequencer to a specific value. Only used after
// snapshot restore / journal replay.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
