// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import "time"

// clock abstracts "now" so the sweeper and deadline arithmetic can be
// exercised deterministically in tests without sleeping, mirroring the
// teacher's habit of isolating small pieces of state (offset/length) behind
// a narrow type rather than threading raw time.Time through every call.
type clock interface {
	now() time.Time
}

type realClock struct{}

func (realClock) now() time.Time { return time.Now() }

var systemClock clock = realClock{}

// fakeClock is used by tests to control deadline expiry deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }
