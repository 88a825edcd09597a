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
	"sync"

	"go.uber.org/multierr"

	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

// WorkerPool is a set of WorkProcessor workers sharing a single claim
// Sequence, so every published sequence reaches exactly one worker. The
// pool's combined gating sequence (registered with the ring buffer through
// RingBuffer.AddGatingSequences) is the minimum of every worker's own
// Sequence.
type WorkerPool[E any] struct {
	ring         *RingBuffer[E]
	workSequence *Sequence
	workers      []*WorkProcessor[E]

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	halted  bool
	runErrs []error
}

// NewWorkerPool constructs a WorkerPool of len(handlers) workers, each
// claiming workBatchSize sequences at a time from a shared counter. Every
// worker is given its own SequenceBarrier over ring's dependents, and all
// workers share excHdlr (nil selects IgnoreExceptionHandler, the default
// for work pools).
func NewWorkerPool[E any](ring *RingBuffer[E], handlers []WorkHandler[E], workBatchSize int64, excHdlr ExceptionHandler[E], dependents ...*Sequence) *WorkerPool[E] {
	pool := &WorkerPool[E]{
		ring:         ring,
		workSequence: NewSequence(),
		workers:      make([]*WorkProcessor[E], len(handlers)),
	}
	for i, h := range handlers {
		barrier := ring.NewBarrier(dependents...)
		pool.workers[i] = newWorkProcessor(ring, barrier, h, excHdlr, pool.workSequence, workBatchSize)
	}
	return pool
}

// Sequences returns every worker's own gating sequence, for registering
// with RingBuffer.AddGatingSequences before Start is called.
func (p *WorkerPool[E]) Sequences() []*Sequence {
	seqs := make([]*Sequence, len(p.workers))
	for i, w := range p.workers {
		seqs[i] = w.Sequence()
	}
	return seqs
}

// Start launches every worker via launch (typically a thread pool's submit
// function, or a plain `func(f func()) { go f() }`), and returns
// immediately; workers run until Halt is called. Start returns
// pkg/errors.ErrShutdown if the pool was already started or has already
// been halted.
func (p *WorkerPool[E]) Start(launch func(func())) error {
	p.mu.Lock()
	if p.started || p.halted {
		p.mu.Unlock()
		return ringbuserrors.ErrShutdown
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(len(p.workers))
	for _, w := range p.workers {
		w := w
		launch(func() {
			defer p.wg.Done()
			if err := w.Run(); err != nil {
				p.mu.Lock()
				p.runErrs = append(p.runErrs, err)
				p.mu.Unlock()
			}
		})
	}
	return nil
}

// Halt stops every worker and blocks until all of their Run calls have
// returned, aggregating any errors encountered into a single error via
// go.uber.org/multierr. Halt is idempotent: calling it again after the pool
// has already halted returns pkg/errors.ErrShutdown instead of waiting again.
func (p *WorkerPool[E]) Halt() error {
	p.mu.Lock()
	if p.halted {
		p.mu.Unlock()
		return ringbuserrors.ErrShutdown
	}
	p.halted = true
	p.mu.Unlock()

	for _, w := range p.workers {
		w.Halt()
	}
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return multierr.Combine(p.runErrs...)
}
