// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	permanent := errors.New("manifest rejected")
	transient := errors.New("Could not resolve host")

	tests := []struct {
		name      string
		attempts  int
		failUntil int // attempts before this index fail
		retry     bool
		wantCalls int
		wantErr   error
	}{
		{name: "first attempt succeeds", attempts: 3, failUntil: 0, wantCalls: 1},
		{name: "retries then succeeds", attempts: 5, failUntil: 2, retry: true, wantCalls: 3},
		{name: "exhausts attempts", attempts: 3, failUntil: 99, retry: true, wantCalls: 3, wantErr: transient},
		{name: "permanent error stops at once", attempts: 5, failUntil: 99, retry: false, wantCalls: 1, wantErr: permanent},
		{name: "zero attempts still runs once", attempts: 0, failUntil: 0, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := RetryWithBackoff(t.Context(), tt.attempts, time.Millisecond, func(attempt int) (bool, error) {
				calls++
				if attempt < tt.failUntil {
					if tt.retry {
						return true, transient
					}
					return false, permanent
				}
				return false, nil
			})
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("RetryWithBackoff() error = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryWithBackoffCancelledDuringWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	start := time.Now()
	err := RetryWithBackoff(ctx, 5, time.Hour, func(int) (bool, error) {
		calls++
		cancel()
		return true, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if time.Since(start) > time.Minute {
		t.Error("cancellation did not interrupt the backoff wait")
	}
}

func TestRetryWithBackoffDoublesWait(t *testing.T) {
	t.Parallel()

	start := time.Now()
	_ = RetryWithBackoff(t.Context(), 3, 20*time.Millisecond, func(int) (bool, error) {
		return true, errors.New("retry")
	})
	// 20ms + 40ms between the three attempts.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("elapsed %v, want at least 60ms of backoff", elapsed)
	}
}
