// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import "time"

// Options configures a Client or Server. Zero value means "use defaults";
// callers normally build one through functional Option values rather than
// populating the struct directly.
type Options struct {
	Address string
	Port    int

	ReceiveBufferSize int

	ScannerPeriod       time.Duration
	ScannerInitialDelay time.Duration

	ServerLivenessPeriod time.Duration
	ListenBacklog        int

	// KeepAlivePeriod bounds how long a Client will go without writing
	// anything to its connection before sending a reserved no-op ping frame
	// (spec §4.3's liveness check is sound only if a quiet-but-alive peer's
	// connInfo.lastSeen keeps being refreshed; see Client.keepAlive). Keep
	// this comfortably below the server's ServerLivenessPeriod.
	KeepAlivePeriod time.Duration

	// MaxFrameBytes caps a single frame's body length. Zero means no cap.
	MaxFrameBytes int

	Logger   FieldLogger
	Listener SocketEventListener
	Scanner  Scheduler
}

const (
	defaultAddress              = "0.0.0.0"
	defaultPort                 = 5000
	defaultReceiveBufferSize    = 4096
	defaultScannerPeriod        = time.Second
	defaultScannerInitialDelay  = 3 * time.Second
	defaultServerLivenessPeriod = 3 * time.Second
	defaultListenBacklog        = 128
	// defaultKeepAlivePeriod is a third of ServerLivenessPeriod. Client.keepAlive
	// skips a tick that finds the last write less than one period old, so on a
	// quiet connection a ping goes out about every two periods (two thirds of
	// the liveness window), keeping each gap inside the server's idle window.
	defaultKeepAlivePeriod = defaultServerLivenessPeriod / 3
)

var defaultOptions = Options{
	Address:              defaultAddress,
	Port:                 defaultPort,
	ReceiveBufferSize:    defaultReceiveBufferSize,
	ScannerPeriod:        defaultScannerPeriod,
	ScannerInitialDelay:  defaultScannerInitialDelay,
	ServerLivenessPeriod: defaultServerLivenessPeriod,
	ListenBacklog:        defaultListenBacklog,
	KeepAlivePeriod:      defaultKeepAlivePeriod,
}

// Option mutates an Options value. Following the functional-options idiom,
// options apply in order and later options win.
type Option func(*Options)

func WithAddress(address string) Option {
	return func(o *Options) { o.Address = address }
}

func WithPort(port int) Option {
	return func(o *Options) { o.Port = port }
}

func WithReceiveBufferSize(n int) Option {
	return func(o *Options) {
		if n < 4 {
			n = 4
		}
		o.ReceiveBufferSize = n
	}
}

func WithScannerPeriod(d time.Duration) Option {
	return func(o *Options) { o.ScannerPeriod = d }
}

func WithScannerInitialDelay(d time.Duration) Option {
	return func(o *Options) { o.ScannerInitialDelay = d }
}

func WithServerLivenessPeriod(d time.Duration) Option {
	return func(o *Options) { o.ServerLivenessPeriod = d }
}

func WithListenBacklog(n int) Option {
	return func(o *Options) { o.ListenBacklog = n }
}

// WithKeepAlivePeriod overrides how often a Client pings an idle connection
// so a quiet-but-alive client is never evicted by the server's liveness
// check (spec §4.3).
func WithKeepAlivePeriod(d time.Duration) Option {
	return func(o *Options) { o.KeepAlivePeriod = d }
}

// WithMaxFrameBytes caps the body length a receiver will accept. A longer
// frame ends the receive loop with ErrTooLong and closes the connection.
func WithMaxFrameBytes(n int) Option {
	return func(o *Options) { o.MaxFrameBytes = n }
}

// WithLogger sets the logger used for the diagnostic log sites named in the
// error-handling design (dropped response, missing handler, framing error,
// scheduler panic). A nil logger falls back to logrus's standard logger.
func WithLogger(l FieldLogger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithSocketEventListener sets the optional accept/disconnect/receive-error
// listener. Unset leaves a no-op listener installed.
func WithSocketEventListener(l SocketEventListener) Option {
	return func(o *Options) { o.Listener = l }
}

// WithScheduler overrides the periodic scanner hook (C7). Unset installs the
// built-in ticker-based Scheduler.
func WithScheduler(s Scheduler) Option {
	return func(o *Options) { o.Scanner = s }
}

func applyOptions(opts []Option) Options {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = defaultLogger()
	}
	if o.Listener == nil {
		o.Listener = noopSocketEventListener{}
	}
	if o.Scanner == nil {
		ts := NewTickerScheduler().(*tickerScheduler)
		log := o.Logger
		ts.onPanic = func(id TaskID, r any) {
			log.WithField("task", id).Errorf("remoting: scheduled action panicked: %v", r)
		}
		o.Scanner = ts
	}
	return o
}
