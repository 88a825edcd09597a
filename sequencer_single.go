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
	"runtime"

	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

// singleProducerSequencer is the fast path for a ring buffer with exactly
// one producer goroutine. nextValue and cachedGatingValue are owned
// exclusively by that goroutine and never touched concurrently, so they
// need no atomics of their own; only the cursor they eventually publish to
// is shared with consumers.
type singleProducerSequencer struct {
	abstractSequencer

	nextValue         int64
	cachedGatingValue int64
}

func newSingleProducerSequencer(size int64, waitStrategy WaitStrategy) *singleProducerSequencer {
	return &singleProducerSequencer{
		abstractSequencer: newAbstractSequencer(size, waitStrategy),
		nextValue:         InitialSequenceValue,
		cachedGatingValue: InitialSequenceValue,
	}
}

func (s *singleProducerSequencer) hasAvailableCapacity(requiredCapacity int64) bool {
	return s.hasAvailableCapacityDoStore(requiredCapacity, false)
}

func (s *singleProducerSequencer) hasAvailableCapacityDoStore(requiredCapacity int64, doStore bool) bool {
	wrapPoint := (s.nextValue + requiredCapacity) - s.size
	cachedGating := s.cachedGatingValue

	if wrapPoint > cachedGating || cachedGating > s.nextValue {
		if doStore {
			s.cursor.SetRelaxed(s.nextValue)
		}
		minSequence := s.minimumGating(s.nextValue)
		s.cachedGatingValue = minSequence
		if wrapPoint > minSequence {
			return false
		}
	}
	return true
}

func (s *singleProducerSequencer) next(n int64) (int64, error) {
	if err := validateN(n, s.size); err != nil {
		return -1, err
	}

	nextSeq := s.nextValue + n
	wrapPoint := nextSeq - s.size
	cachedGating := s.cachedGatingValue

	if wrapPoint > cachedGating || cachedGating > s.nextValue {
		// Publish our progress so consumers can make forward progress
		// before we park waiting on them.
		s.cursor.Set(s.nextValue)
		var minSequence int64
		for {
			minSequence = s.minimumGating(s.nextValue)
			if wrapPoint <= minSequence {
				break
			}
			runtime.Gosched()
		}
		s.cachedGatingValue = minSequence
	}

	s.nextValue = nextSeq
	return nextSeq, nil
}

func (s *singleProducerSequencer) tryNext(n int64) (int64, error) {
	if n < 1 {
		return -1, ringbuserrors.ErrInvalidArgument
	}
	if !s.hasAvailableCapacityDoStore(n, true) {
		return -1, ringbuserrors.ErrInsufficientCapacity
	}
	s.nextValue += n
	return s.nextValue, nil
}

func (s *singleProducerSequencer) publish(sequence int64) {
	s.cursor.Set(sequence)
	s.waitStrategy.SignalAllWhenBlocking()
}

func (s *singleProducerSequencer) publishRange(_, hi int64) {
	s.publish(hi)
}

func (s *singleProducerSequencer) isAvailable(sequence int64) bool {
	current := s.cursor.Get()
	return sequence <= current && sequence > current-s.size
}

func (s *singleProducerSequencer) getHighestPublishedSequence(_, availableSequence int64) int64 {
	return availableSequence
}

func (s *singleProducerSequencer) newBarrier(dependents ...*Sequence) *SequenceBarrier {
	return newSequenceBarrier(s, s.cursor, dependents, nil)
}
