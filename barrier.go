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

import "go.uber.org/atomic"

// highestPublishedScanner is implemented by multi-producer sequencers; a
// SequenceBarrier bound to one uses it to clamp the wait strategy's answer
// down to the highest contiguously published sequence, since publication
// within a claimed batch can complete out of order across producers.
type highestPublishedScanner interface {
	getHighestPublishedSequence(lowerBound, availableSequence int64) int64
}

// SequenceBarrier is the consumer-side wait coordinator: it combines the
// producer's cursor, a set of upstream dependency sequences, and an alert
// flag behind a single WaitFor call. A BatchEventProcessor or WorkProcessor
// owns exactly one and never calls the wait strategy directly.
type SequenceBarrier struct {
	waitStrategy WaitStrategy
	cursor       *Sequence
	dependents   []*Sequence
	scanner      highestPublishedScanner
	alerted      atomic.Bool
}

func newSequenceBarrier(seq sequencer, cursor *Sequence, dependents []*Sequence, scanner highestPublishedScanner) *SequenceBarrier {
	return &SequenceBarrier{
		waitStrategy: seq.getWaitStrategy(),
		cursor:       cursor,
		dependents:   dependents,
		scanner:      scanner,
	}
}

// WaitFor blocks until target is produced by the cursor and reached by
// every dependency, then returns the available sequence (which may be
// below target in multi-producer mode when no contiguous region has formed
// yet — callers should retry). Returns ErrAlerted if halted mid-wait.
func (b *SequenceBarrier) WaitFor(target int64) (int64, error) {
	available, err := b.waitStrategy.WaitFor(target, b.cursor, b.dependents, &b.alerted)
	if err != nil {
		return -1, err
	}
	if b.scanner != nil {
		available = b.scanner.getHighestPublishedSequence(target, available)
	}
	return available, nil
}

// GetCursor returns the producer's published high-water mark.
func (b *SequenceBarrier) GetCursor() int64 {
	return b.cursor.Get()
}

// IsAlerted reports whether halt() has alerted this barrier.
func (b *SequenceBarrier) IsAlerted() bool {
	return b.alerted.Load()
}

// Alert sets the alert flag and wakes any goroutine parked in the wait
// strategy, so a blocking WaitFor returns ErrAlerted promptly.
func (b *SequenceBarrier) Alert() {
	b.alerted.Store(true)
	b.waitStrategy.SignalAllWhenBlocking()
}

// ClearAlert clears the alert flag. Processors call this when (re)starting.
func (b *SequenceBarrier) ClearAlert() {
	b.alerted.Store(false)
}
