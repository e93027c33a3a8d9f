// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import "sync/atomic"

// sequencer allocates the 64-bit, monotonically increasing sequence ids a
// Client stamps onto every Request. Startup may initialize it to any value
// (spec §4.5); a fresh sequencer starts at zero's successor, 1, so that a
// zero sequence is never confused with "unset".
type sequencer struct {
	next uint64
}

func newSequencer() *sequencer {
	return &sequencer{next: 0}
}

// allocate returns the next sequence. Overflow wraps silently; collisions
// against still-outstanding entries are caught by the pending-call table's
// insert-if-absent check and surfaced as DuplicateSequenceError.
func (s *sequencer) allocate() uint64 {
	return atomic.AddUint64(&s.next, 1)
}
