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

	"go.uber.org/atomic"

	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

// multiProducerSequencer lets any number of producer goroutines claim
// concurrently. Claims are disjoint because cursor.GetAndAdd hands out a
// unique interval per caller; publication is tracked per slot in
// availableBuffer using a round-number encoding so the same slot can be
// reused by successive laps with no ambiguity about which lap published it.
type multiProducerSequencer struct {
	abstractSequencer

	gatingSequenceCache *Sequence
	availableBuffer     []atomic.Int32
	indexMask           int64
	indexShift          uint
}

func newMultiProducerSequencer(size int64, waitStrategy WaitStrategy) *multiProducerSequencer {
	s := &multiProducerSequencer{
		abstractSequencer:   newAbstractSequencer(size, waitStrategy),
		gatingSequenceCache: NewSequence(),
		availableBuffer:     make([]atomic.Int32, size),
		indexMask:           size - 1,
		indexShift:          log2i(size),
	}
	for i := range s.availableBuffer {
		s.availableBuffer[i].Store(-1)
	}
	return s
}

func log2i(value int64) uint {
	var r uint
	for (int64(1) << r) < value {
		r++
	}
	return r
}

func (s *multiProducerSequencer) hasAvailableCapacity(requiredCapacity int64) bool {
	return s.hasAvailableCapacityAt(requiredCapacity, s.cursor.Get())
}

func (s *multiProducerSequencer) hasAvailableCapacityAt(requiredCapacity, cursorValue int64) bool {
	wrapPoint := (cursorValue + requiredCapacity) - s.size
	cachedGating := s.gatingSequenceCache.Get()

	if wrapPoint > cachedGating || cachedGating > cursorValue {
		minSequence := s.minimumGating(cursorValue)
		s.gatingSequenceCache.Set(minSequence)
		if wrapPoint > minSequence {
			return false
		}
	}
	return true
}

func (s *multiProducerSequencer) next(n int64) (int64, error) {
	if err := validateN(n, s.size); err != nil {
		return -1, err
	}

	current := s.cursor.GetAndAdd(n)
	nextSequence := current + n
	wrapPoint := nextSequence - s.size
	cachedGating := s.gatingSequenceCache.Get()

	if wrapPoint > cachedGating || cachedGating > current {
		var gatingSequence int64
		for {
			gatingSequence = s.minimumGating(current)
			if wrapPoint <= gatingSequence {
				break
			}
			runtime.Gosched()
		}
		s.gatingSequenceCache.Set(gatingSequence)
	}

	return nextSequence, nil
}

func (s *multiProducerSequencer) tryNext(n int64) (int64, error) {
	if n < 1 {
		return -1, ringbuserrors.ErrInvalidArgument
	}

	for {
		current := s.cursor.Get()
		nextSequence := current + n
		if !s.hasAvailableCapacityAt(n, current) {
			return -1, ringbuserrors.ErrInsufficientCapacity
		}
		if s.cursor.CompareAndSet(current, nextSequence) {
			return nextSequence, nil
		}
	}
}

func (s *multiProducerSequencer) publish(sequence int64) {
	s.setAvailable(sequence)
	s.waitStrategy.SignalAllWhenBlocking()
}

func (s *multiProducerSequencer) publishRange(lo, hi int64) {
	for seq := lo; seq <= hi; seq++ {
		s.setAvailable(seq)
	}
	s.waitStrategy.SignalAllWhenBlocking()
}

func (s *multiProducerSequencer) setAvailable(sequence int64) {
	index := s.calculateIndex(sequence)
	flag := s.calculateAvailabilityFlag(sequence)
	s.availableBuffer[index].Store(flag)
}

func (s *multiProducerSequencer) calculateAvailabilityFlag(sequence int64) int32 {
	return int32(sequence >> s.indexShift)
}

func (s *multiProducerSequencer) calculateIndex(sequence int64) int64 {
	return sequence & s.indexMask
}

func (s *multiProducerSequencer) isAvailable(sequence int64) bool {
	index := s.calculateIndex(sequence)
	flag := s.calculateAvailabilityFlag(sequence)
	return s.availableBuffer[index].Load() == flag
}

// getHighestPublishedSequence scans forward from lowerBound and returns the
// highest sequence such that every sequence in [lowerBound, result] is
// published — the only point multi-producer consumers may safely consume
// up to, since publication within a claimed interval can complete
// out of order across producers.
func (s *multiProducerSequencer) getHighestPublishedSequence(lowerBound, availableSequence int64) int64 {
	for sequence := lowerBound; sequence <= availableSequence; sequence++ {
		if !s.isAvailable(sequence) {
			return sequence - 1
		}
	}
	return availableSequence
}

func (s *multiProducerSequencer) newBarrier(dependents ...*Sequence) *SequenceBarrier {
	return newSequenceBarrier(s, s.cursor, dependents, s)
}
