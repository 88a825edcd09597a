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

// ProcessorState is one of the three BatchEventProcessor lifecycle states.
type ProcessorState int32

const (
	ProcessorIdle ProcessorState = iota
	ProcessorRunning
	ProcessorHalting
)

// BatchEventProcessor drains a RingBuffer through a SequenceBarrier,
// invoking handler.OnEvent for every sequence the barrier releases, and
// advancing its own Sequence so upstream producers and downstream
// processors can gate on its progress.
type BatchEventProcessor[E any] struct {
	ring    *RingBuffer[E]
	barrier *SequenceBarrier
	handler EventHandler[E]
	excHdlr ExceptionHandler[E]

	ownSequence *Sequence
	state       atomic.Int32
}

// NewBatchEventProcessor constructs a processor over ring, gated by
// barrier, driving handler. If excHdlr is nil, a FatalExceptionHandler is
// used, matching spec's default policy for batch processors.
func NewBatchEventProcessor[E any](ring *RingBuffer[E], barrier *SequenceBarrier, handler EventHandler[E], excHdlr ExceptionHandler[E]) *BatchEventProcessor[E] {
	if excHdlr == nil {
		excHdlr = NewFatalExceptionHandler[E]()
	}
	return &BatchEventProcessor[E]{
		ring:        ring,
		barrier:     barrier,
		handler:     handler,
		excHdlr:     excHdlr,
		ownSequence: NewSequence(),
	}
}

// Sequence returns the processor's own gating sequence, to be registered
// with RingBuffer.AddGatingSequences by the host before Run is started, and
// used as a dependency for any downstream barrier.
func (p *BatchEventProcessor[E]) Sequence() *Sequence {
	return p.ownSequence
}

// IsRunning reports whether the processor is between Run and halt.
func (p *BatchEventProcessor[E]) IsRunning() bool {
	return ProcessorState(p.state.Load()) != ProcessorIdle
}

// Halt requests the processor to stop: it alerts the barrier so a blocked
// WaitFor returns promptly, and the running Run loop exits at its next
// alert check. Halt does not block for the loop to actually exit.
func (p *BatchEventProcessor[E]) Halt() {
	p.state.Store(int32(ProcessorHalting))
	p.barrier.Alert()
}

// Run drives the processor's loop until Halt is called. It is intended to
// be launched on its own goroutine (or handed to a host-supplied thread
// pool, per the external "thread supplier" contract); Run blocks for as
// long as the processor is active.
func (p *BatchEventProcessor[E]) Run() error {
	p.state.Store(int32(ProcessorRunning))
	p.barrier.ClearAlert()
	p.notifyStart()

	next := p.ownSequence.Get() + 1
	var loopErr error

loop:
	for ProcessorState(p.state.Load()) != ProcessorIdle {
		available, err := p.barrier.WaitFor(next)
		if err != nil {
			if errors.Is(err, ringbuserrors.ErrAlerted) {
				if ProcessorState(p.state.Load()) == ProcessorHalting {
					break
				}
				continue
			}
			loopErr = err
			break
		}

		for seq := next; seq <= available; seq++ {
			event := p.ring.Get(seq)
			if evErr := p.handler.OnEvent(event, seq, seq == available); evErr != nil {
				if fatal := p.excHdlr.HandleEventException(evErr, seq, event); fatal != nil {
					// Policy decision: advance ownSequence to the
					// failing sequence before halting, so the pipeline
					// does not stall indefinitely on a poisoned event.
					p.ownSequence.Set(seq)
					loopErr = fatal
					break loop
				}
				p.ownSequence.Set(seq)
				next = seq + 1
				continue
			}
		}
		p.ownSequence.Set(available)
		next = available + 1
	}

	p.notifyShutdown()
	p.state.Store(int32(ProcessorIdle))
	return loopErr
}

func (p *BatchEventProcessor[E]) notifyStart() {
	defer func() {
		if r := recover(); r != nil {
			p.excHdlr.HandleOnStartException(panicToError(r))
		}
	}()
	p.handler.OnStart()
}

func (p *BatchEventProcessor[E]) notifyShutdown() {
	defer func() {
		if r := recover(); r != nil {
			p.excHdlr.HandleOnShutdownException(panicToError(r))
		}
	}()
	p.handler.OnShutdown()
}

func panicToError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &ringbuserrors.HandlerFailure{Sequence: -1, Err: errors.New("ringbus: panic in handler lifecycle hook")}
}
