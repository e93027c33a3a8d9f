// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"errors"
	"testing"
	"time"
)

func TestSendErrorUnwrap(t *testing.T) {
	cause := errors.New("broken pipe")
	err := &SendError{Remote: "10.0.0.1:5000", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is should unwrap to cause")
	}
	if err.Error() == "" {
		t.Fatalf("Error() should not be empty")
	}
}

func TestFramingErrorUnwrap(t *testing.T) {
	cause := errors.New("bad header")
	err := &FramingError{Remote: "10.0.0.1:5000", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is should unwrap to cause")
	}
}

func TestHandlerNotFoundErrorUnwrapsToSentinel(t *testing.T) {
	err := &HandlerNotFoundError{Code: 42}
	if !errors.Is(err, ErrNoHandler) {
		t.Fatalf("errors.Is should unwrap to ErrNoHandler")
	}
}

func TestTimeoutErrorMessageIncludesFields(t *testing.T) {
	err := newTimeoutError("10.0.0.1:5000", 7, 3, 250*time.Millisecond)
	if err.Sequence != 7 || err.Code != 3 || err.TimeoutMs != 250 {
		t.Fatalf("unexpected fields: %+v", err)
	}
	if err.Error() == "" {
		t.Fatalf("Error() should not be empty")
	}
}

func TestDuplicateSequenceErrorMessage(t *testing.T) {
	err := &DuplicateSequenceError{Sequence: 99}
	if err.Error() == "" {
		t.Fatalf("Error() should not be empty")
	}
}
