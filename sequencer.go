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

import ringbuserrors "github.com/ringbus/ringbus/pkg/errors"

// ProducerMode selects which claim/publish protocol a RingBuffer's
// sequencer uses.
type ProducerMode int

const (
	// SingleProducer dedicates the ring buffer to exactly one producer
	// goroutine and uses the fast, lock-free single-writer sequencer.
	SingleProducer ProducerMode = iota
	// MultiProducer allows any number of producer goroutines to claim
	// concurrently via CAS and per-slot availability tracking.
	MultiProducer
)

// sequencer is the unexported capability both producer-claim protocols
// implement. RingBuffer delegates every claim/publish call to one of these.
type sequencer interface {
	bufferSize() int64
	getCursor() *Sequence
	getWaitStrategy() WaitStrategy

	hasAvailableCapacity(requiredCapacity int64) bool
	next(n int64) (int64, error)
	tryNext(n int64) (int64, error)
	publish(sequence int64)
	publishRange(lo, hi int64)
	isAvailable(sequence int64) bool
	getHighestPublishedSequence(lowerBound, availableSequence int64) int64

	addGatingSequences(sequences ...*Sequence)
	removeGatingSequence(sequence *Sequence) bool
	newBarrier(dependents ...*Sequence) *SequenceBarrier
}

// abstractSequencer holds the state common to both producer modes: the
// ring's size, its wait strategy, the published cursor, and the set of
// consumer gating sequences producers must not outrun.
type abstractSequencer struct {
	size         int64
	waitStrategy WaitStrategy
	cursor       *Sequence
	gating       gatingSequences
}

func newAbstractSequencer(size int64, waitStrategy WaitStrategy) abstractSequencer {
	return abstractSequencer{
		size:         size,
		waitStrategy: waitStrategy,
		cursor:       NewSequence(),
	}
}

func (a *abstractSequencer) bufferSize() int64          { return a.size }
func (a *abstractSequencer) getCursor() *Sequence       { return a.cursor }
func (a *abstractSequencer) getWaitStrategy() WaitStrategy { return a.waitStrategy }

func (a *abstractSequencer) addGatingSequences(sequences ...*Sequence) {
	a.gating.add(sequences...)
}

func (a *abstractSequencer) removeGatingSequence(sequence *Sequence) bool {
	return a.gating.remove(sequence)
}

func (a *abstractSequencer) minimumGating(initial int64) int64 {
	return a.gating.minimum(initial)
}

func validateN(n, max int64) error {
	if n < 1 {
		return ringbuserrors.ErrInvalidArgument
	}
	if max > 0 && n > max {
		return ringbuserrors.ErrInvalidArgument
	}
	return nil
}
