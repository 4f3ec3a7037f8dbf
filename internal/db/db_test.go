package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForReady(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		timeout   time.Duration
		wantErr   bool
		wantCalls int
	}{
		{"ready at once", 0, time.Second, false, 1},
		{"ready after retries", 2, 2 * time.Second, false, 3},
		{"never ready", 1 << 30, 120 * time.Millisecond, true, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &flakyPinger{failures: tc.failures}
			err := WaitForReady(context.Background(), p, tc.timeout)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				if !errors.Is(err, context.DeadlineExceeded) || !strings.Contains(err.Error(), "connection refused") {
					t.Errorf("error should carry deadline and last ping failure: %v", err)
				}
				return
			}
			if p.calls != tc.wantCalls {
				t.Errorf("pings = %d, want %d", p.calls, tc.wantCalls)
			}
		})
	}
}

func TestError_Unwraps(t *testing.T) {
	err := &Error{Op: OpGet, Err: ErrKeyNotFound}
	if !errors.Is(err, ErrKeyNotFound) || err.Error() != "GET: db: key not found" {
		t.Errorf("unexpected error %q", err)
	}
}
