// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/svcpack/svcpack/pkg/types"
)

// Base tracks the lifecycle of one service process. Concrete launchers embed
// it and drive the transitions; readers use the lock-free accessors.
type Base struct {
	state atomic.Int32

	// mu serializes transitions and guards the exit record.
	mu       sync.Mutex
	exitCode types.ExitCode
	lastErr  error

	ctx       context.Context
	cancel    context.CancelFunc
	startedCh chan struct{}
	doneCh    chan struct{}
	hooks     []func(from, to State)
}

// NewBase creates a Base in StateCreated.
func NewBase(opts ...Option) *Base {
	b := &Base{
		startedCh: make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	b.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state (atomic, lock-free read).
func (b *Base) State() State {
	return State(b.state.Load())
}

// IsRunning returns true if the process is in the Running state.
func (b *Base) IsRunning() bool {
	return b.State() == StateRunning
}

// LastError returns the error that caused the Failed state, or nil.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// ExitCode returns the recorded exit status. It is only meaningful once
// Done is closed.
func (b *Base) ExitCode() types.ExitCode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exitCode
}

// Context is cancelled when a stop is requested, the parent context of
// BeginStart is cancelled, or the process reaches a terminal state.
// It is nil before BeginStart.
func (b *Base) Context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// Started is closed when the process reaches Running.
func (b *Base) Started() <-chan struct{} { return b.startedCh }

// Done is closed when the process reaches a terminal state.
func (b *Base) Done() <-chan struct{} { return b.doneCh }

// BeginStart moves Created to Starting and derives the process context from
// parent. A parent that is already cancelled fails the start without
// leaving Created half-initialized.
func (b *Base) BeginStart(parent context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if from := b.State(); !from.CanTransition(StateStarting) {
		return &TransitionError{From: from, To: StateStarting}
	}
	if err := parent.Err(); err != nil {
		b.finishLocked(StateFailed, types.ExitFailure, fmt.Errorf("context cancelled before start: %w", err))
		return b.lastErr
	}
	_ = b.moveLocked(StateStarting)
	b.ctx, b.cancel = context.WithCancel(parent)
	return nil
}

// MarkRunning moves Starting to Running and releases WaitForReady callers.
func (b *Base) MarkRunning() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.moveLocked(StateRunning); err != nil {
		return err
	}
	close(b.startedCh)
	return nil
}

// Fail records err and moves to Failed from any non-terminal state.
func (b *Base) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State().IsTerminal() {
		return
	}
	b.finishLocked(StateFailed, types.ExitFailure, err)
}

// Finish records how the process ended. A clean exit, or any exit after a
// stop request, is Stopped; a non-zero exit or err is Failed.
func (b *Base) Finish(code types.ExitCode, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State().IsTerminal() {
		return
	}

	next := StateStopped
	if b.State() != StateStopping && (err != nil || !code.IsSuccess()) {
		next = StateFailed
	}
	b.finishLocked(next, code, err)
}

// RequestStop moves Starting or Running to Stopping and cancels Context.
// It returns false when there is nothing to stop. A Base that was never
// started is marked Stopped.
func (b *Base) RequestStop() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.State() {
	case StateCreated:
		b.finishLocked(StateStopped, types.ExitSuccess, nil)
		return false
	case StateStarting, StateRunning:
		_ = b.moveLocked(StateStopping)
		b.cancel()
		return true
	default:
		return false
	}
}

// WaitForReady blocks until the process is running, has ended, or ctx is
// cancelled. A process that ended before becoming ready returns its error.
func (b *Base) WaitForReady(ctx context.Context) error {
	select {
	case <-b.startedCh:
		return nil
	case <-b.doneCh:
		if err := b.LastError(); err != nil {
			return err
		}
		return fmt.Errorf("process ended in state %s before it was ready", b.State())
	case <-ctx.Done():
		return fmt.Errorf("waiting for process ready: %w", ctx.Err())
	}
}

// Wait blocks until the process ends or ctx is cancelled and returns the
// recorded exit code and error.
func (b *Base) Wait(ctx context.Context) (types.ExitCode, error) {
	select {
	case <-b.doneCh:
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.exitCode, b.lastErr
	case <-ctx.Done():
		return types.ExitFailure, fmt.Errorf("waiting for process exit: %w", ctx.Err())
	}
}

func (b *Base) moveLocked(next State) error {
	from := b.State()
	if !from.CanTransition(next) {
		return &TransitionError{From: from, To: next}
	}
	b.state.Store(int32(next))
	for _, hook := range b.hooks {
		hook(from, next)
	}
	return nil
}

func (b *Base) finishLocked(next State, code types.ExitCode, err error) {
	_ = b.moveLocked(next)
	b.exitCode = code
	b.lastErr = err
	if b.cancel != nil {
		b.cancel()
	}
	close(b.doneCh)
}
