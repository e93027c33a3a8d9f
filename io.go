// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import "code.hybscloud.com/iox"

// These are provided as package-level aliases so callers can reference the
// semantic control-flow errors without importing iox directly, matching
// the teacher's framer.ErrWouldBlock / framer.ErrMore convention.
var (
	// ErrWouldBlock means "no further progress without waiting". net.Conn
	// reads and writes are blocking by default and never produce it, but a
	// caller-supplied net.Conn backed by a non-blocking descriptor may.
	ErrWouldBlock = iox.ErrWouldBlock

	// ErrMore means "this completion is usable and more completions will
	// follow"; reserved for future streaming transports, kept for parity
	// with the control-flow vocabulary the retry loops already speak.
	ErrMore = iox.ErrMore
)
