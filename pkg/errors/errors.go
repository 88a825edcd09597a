// Copyright (c) 2019 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors defines the sentinel errors shared across ringbus.
package errors

import (
	"errors"
	"strconv"
)

var (
	// ErrInvalidArgument occurs when a claim count is non-positive or
	// exceeds the ring buffer's capacity.
	ErrInvalidArgument = errors.New("ringbus: invalid argument")
	// ErrInvalidCapacity occurs when a ring buffer is constructed with a
	// size that is not a power of two, or is less than one.
	ErrInvalidCapacity = errors.New("ringbus: capacity must be a power of two >= 1")
	// ErrInsufficientCapacity occurs when a non-blocking claim could not
	// make room for the requested count without overwriting unconsumed
	// slots.
	ErrInsufficientCapacity = errors.New("ringbus: insufficient ring buffer capacity")
	// ErrAlerted occurs when a blocking wait on a sequence barrier was
	// interrupted by halt(). It is internal plumbing: event processors
	// catch it at the loop boundary and it should only surface to callers
	// that invoke SequenceBarrier.WaitFor directly.
	ErrAlerted = errors.New("ringbus: wait was alerted")
	// ErrShutdown occurs when a worker pool is started after it was
	// already started or halted, or halted a second time.
	ErrShutdown = errors.New("ringbus: processor is shut down")
)

// HandlerFailure wraps an error an EventHandler or WorkHandler raised while
// processing Sequence. A FatalExceptionHandler rethrows it from the
// processor loop; an IgnoreExceptionHandler only logs it.
type HandlerFailure struct {
	Sequence int64
	Err      error
}

func (e *HandlerFailure) Error() string {
	return "ringbus: handler failed at sequence " + strconv.FormatInt(e.Sequence, 10) + ": " + e.Err.Error()
}

func (e *HandlerFailure) Unwrap() error {
	return e.Err
}
