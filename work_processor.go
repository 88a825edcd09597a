// Copyright (c) 2024 The ringbus Authors. All rights reserved.
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

package ringbus

import (
	"errors"

	"go.uber.org/atomic"

	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

// WorkProcessor is one worker in a WorkerPool. All workers of a pool share
// a single workSequence claim counter; each claims a disjoint batch of
// WorkBatchSize sequences at a time, waits for upstream to publish them,
// and invokes handler.OnEvent for each. A published sequence therefore
// reaches exactly one worker.
type WorkProcessor[E any] struct {
	ring          *RingBuffer[E]
	barrier       *SequenceBarrier
	handler       WorkHandler[E]
	excHdlr       ExceptionHandler[E]
	workSequence  *Sequence
	workBatchSize int64

	ownSequence *Sequence
	state       atomic.Int32
}

func newWorkProcessor[E any](ring *RingBuffer[E], barrier *SequenceBarrier, handler WorkHandler[E], excHdlr ExceptionHandler[E], workSequence *Sequence, workBatchSize int64) *WorkProcessor[E] {
	if excHdlr == nil {
		excHdlr = NewIgnoreExceptionHandler[E]()
	}
	if workBatchSize < 1 {
		workBatchSize = 1
	}
	return &WorkProcessor[E]{
		ring:          ring,
		barrier:       barrier,
		handler:       handler,
		excHdlr:       excHdlr,
		workSequence:  workSequence,
		workBatchSize: workBatchSize,
		ownSequence:   NewSequence(),
	}
}

// Sequence returns the worker's own gating sequence.
func (w *WorkProcessor[E]) Sequence() *Sequence {
	return w.ownSequence
}

// IsRunning reports whether the worker is between Run and halt.
func (w *WorkProcessor[E]) IsRunning() bool {
	return ProcessorState(w.state.Load()) != ProcessorIdle
}

// Halt requests the worker to stop.
func (w *WorkProcessor[E]) Halt() {
	w.state.Store(int32(ProcessorHalting))
	w.barrier.Alert()
}

// Run claims and processes batches of work until Halt is called.
func (w *WorkProcessor[E]) Run() error {
	if !w.state.CAS(int32(ProcessorIdle), int32(ProcessorRunning)) {
		// Halt was called before Run started (or Run is already active):
		// return at once instead of clearing the alert Halt raised.
		w.state.CAS(int32(ProcessorHalting), int32(ProcessorIdle))
		return nil
	}
	w.barrier.ClearAlert()
	w.notifyStart()

	var loopErr error

	// nextSequence/claimedHi persist across iterations: a new batch is only
	// claimed from workSequence once the previous one is fully consumed, so
	// no claimed sequence is ever skipped.
	nextSequence := int64(0)
	claimedHi := int64(-1)

	for ProcessorState(w.state.Load()) == ProcessorRunning {
		if nextSequence > claimedHi {
			base := w.workSequence.GetAndAdd(w.workBatchSize)
			nextSequence = base + 1
			claimedHi = base + w.workBatchSize
		}

		available, err := w.barrier.WaitFor(nextSequence)
		if err != nil {
			if errors.Is(err, ringbuserrors.ErrAlerted) {
				if ProcessorState(w.state.Load()) == ProcessorHalting {
					break
				}
				continue
			}
			loopErr = err
			break
		}
		if available < nextSequence {
			continue
		}

		hi := available
		if hi > claimedHi {
			hi = claimedHi
		}

		for ; nextSequence <= hi; nextSequence++ {
			event := w.ring.Get(nextSequence)
			if evErr := w.handler.OnEvent(event, nextSequence); evErr != nil {
				// Work-queue policy: a poisoned message must not stall
				// the pool, so failures here are always swallowed after
				// being delivered to the exception handler.
				w.excHdlr.HandleEventException(evErr, nextSequence, event)
			}
			w.ownSequence.Set(nextSequence)
		}
	}

	w.notifyShutdown()
	w.state.Store(int32(ProcessorIdle))
	return loopErr
}

func (w *WorkProcessor[E]) notifyStart() {
	defer func() {
		if r := recover(); r != nil {
			w.excHdlr.HandleOnStartException(panicToError(r))
		}
	}()
	w.handler.OnStart()
}

func (w *WorkProcessor[E]) notifyShutdown() {
	defer func() {
		if r := recover(); r != nil {
			w.excHdlr.HandleOnShutdownException(panicToError(r))
		}
	}()
	w.handler.OnShutdown()
}
