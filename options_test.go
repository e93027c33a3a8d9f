// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"testing"
	"time"
)

func TestApplyOptionsDefaults(t *testing.T) {
	o := applyOptions(nil)
	if o.Address != defaultAddress {
		t.Errorf("Address = %q, want %q", o.Address, defaultAddress)
	}
	if o.Port != defaultPort {
		t.Errorf("Port = %d, want %d", o.Port, defaultPort)
	}
	if o.ReceiveBufferSize != defaultReceiveBufferSize {
		t.Errorf("ReceiveBufferSize = %d, want %d", o.ReceiveBufferSize, defaultReceiveBufferSize)
	}
	if o.ScannerPeriod != defaultScannerPeriod {
		t.Errorf("ScannerPeriod = %v, want %v", o.ScannerPeriod, defaultScannerPeriod)
	}
	if o.KeepAlivePeriod != defaultKeepAlivePeriod {
		t.Errorf("KeepAlivePeriod = %v, want %v", o.KeepAlivePeriod, defaultKeepAlivePeriod)
	}
	if o.KeepAlivePeriod >= o.ServerLivenessPeriod {
		t.Errorf("KeepAlivePeriod (%v) must be well below ServerLivenessPeriod (%v) for the liveness check to stay sound", o.KeepAlivePeriod, o.ServerLivenessPeriod)
	}
	if o.Logger == nil {
		t.Errorf("Logger should default to a non-nil logger")
	}
	if o.Listener == nil {
		t.Errorf("Listener should default to a non-nil no-op listener")
	}
	if o.Scanner == nil {
		t.Errorf("Scanner should default to a non-nil ticker scheduler")
	}
}

func TestApplyOptionsOverrides(t *testing.T) {
	o := applyOptions([]Option{
		WithAddress("127.0.0.1"),
		WithPort(9000),
		WithReceiveBufferSize(1),
		WithScannerPeriod(2 * time.Second),
		WithScannerInitialDelay(time.Second),
		WithServerLivenessPeriod(7 * time.Second),
		WithListenBacklog(5),
		WithMaxFrameBytes(1024),
		WithKeepAlivePeriod(500 * time.Millisecond),
	})
	if o.Address != "127.0.0.1" {
		t.Errorf("Address = %q", o.Address)
	}
	if o.Port != 9000 {
		t.Errorf("Port = %d", o.Port)
	}
	if o.ReceiveBufferSize != 4 {
		t.Errorf("ReceiveBufferSize = %d, want clamped to 4", o.ReceiveBufferSize)
	}
	if o.ScannerPeriod != 2*time.Second {
		t.Errorf("ScannerPeriod = %v", o.ScannerPeriod)
	}
	if o.ServerLivenessPeriod != 7*time.Second {
		t.Errorf("ServerLivenessPeriod = %v", o.ServerLivenessPeriod)
	}
	if o.ListenBacklog != 5 {
		t.Errorf("ListenBacklog = %d", o.ListenBacklog)
	}
	if o.MaxFrameBytes != 1024 {
		t.Errorf("MaxFrameBytes = %d", o.MaxFrameBytes)
	}
	if o.KeepAlivePeriod != 500*time.Millisecond {
		t.Errorf("KeepAlivePeriod = %v", o.KeepAlivePeriod)
	}
}

func TestApplyOptionsLastWriterWins(t *testing.T) {
	o := applyOptions([]Option{WithPort(1), WithPort(2), WithPort(3)})
	if o.Port != 3 {
		t.Errorf("Port = %d, want 3 (last option wins)", o.Port)
	}
}
