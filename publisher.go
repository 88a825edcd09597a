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

	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

// BatchPublisher wraps a RingBuffer with two batched-claim modes: a
// fixed-size mode that amortizes claim overhead across a constant batch,
// and a dynamic mode that claims exactly as many slots as each caller
// needs. Both are equivalent to calling NextN/PublishRange directly; this
// type exists to save callers from tracking low/high sequences themselves.
type BatchPublisher[E any] struct {
	ring *RingBuffer[E]

	defaultBatchSize int64
	highSequence     int64
	lowSequence      int64
	nextSequence     int64
	batchCapacity    int64
	currentBatchSize int64
}

// NewBatchPublisher returns a BatchPublisher over ring using
// defaultBatchSize for the fixed-size Claim/PublishBatch mode.
func NewBatchPublisher[E any](ring *RingBuffer[E], defaultBatchSize int64) *BatchPublisher[E] {
	if defaultBatchSize < 1 {
		defaultBatchSize = 1
	}
	return &BatchPublisher[E]{ring: ring, defaultBatchSize: defaultBatchSize}
}

// Claim returns the next event slot in fixed-size mode, claiming a new
// batch of defaultBatchSize whenever the current one is exhausted. Call
// PublishBatch once IsFull reports true (or when no more events remain).
func (p *BatchPublisher[E]) Claim() (*E, error) {
	if p.currentBatchSize == 0 {
		high, err := p.ring.NextN(p.defaultBatchSize)
		if err != nil {
			return nil, err
		}
		p.highSequence = high
		p.lowSequence = high - p.defaultBatchSize + 1
		p.nextSequence = p.lowSequence
		p.batchCapacity = p.defaultBatchSize
	}

	event := p.ring.Get(p.nextSequence)
	p.nextSequence++
	p.currentBatchSize++
	return event, nil
}

// IsFull reports whether the current fixed-size batch is fully claimed and
// should be published.
func (p *BatchPublisher[E]) IsFull() bool {
	return p.currentBatchSize >= p.batchCapacity
}

// PublishBatch publishes every event claimed via Claim since the last
// publish.
func (p *BatchPublisher[E]) PublishBatch() {
	if p.currentBatchSize > 0 {
		p.ring.PublishRange(p.lowSequence, p.lowSequence+p.currentBatchSize-1)
		p.currentBatchSize = 0
	}
}

// BeginBatch claims exactly size slots for the dynamic mode, blocking until
// they are available.
func (p *BatchPublisher[E]) BeginBatch(size int64) error {
	high, err := p.ring.NextN(size)
	if err != nil {
		return err
	}
	p.highSequence = high
	p.lowSequence = high - size + 1
	p.batchCapacity = size
	p.currentBatchSize = size
	return nil
}

// TryBeginBatch is the non-blocking counterpart of BeginBatch; it returns
// false (with no error) when capacity is unavailable rather than blocking.
func (p *BatchPublisher[E]) TryBeginBatch(size int64) (bool, error) {
	high, err := p.ring.TryNextN(size)
	if errors.Is(err, ringbuserrors.ErrInsufficientCapacity) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.highSequence = high
	p.lowSequence = high - size + 1
	p.batchCapacity = size
	p.currentBatchSize = size
	return true, nil
}

// GetEvent returns the slot at index within the current dynamic batch.
func (p *BatchPublisher[E]) GetEvent(index int64) *E {
	return p.ring.Get(p.lowSequence + index)
}

// GetSequence returns the sequence number of index within the current
// dynamic batch.
func (p *BatchPublisher[E]) GetSequence(index int64) int64 {
	return p.lowSequence + index
}

// EndBatch publishes every slot claimed by BeginBatch/TryBeginBatch.
func (p *BatchPublisher[E]) EndBatch() {
	p.ring.PublishRange(p.lowSequence, p.highSequence)
	p.currentBatchSize = 0
}

// EndBatchN publishes only the first count slots of the current dynamic
// batch, a partial publish for callers that claimed more than they ended
// up using.
func (p *BatchPublisher[E]) EndBatchN(count int64) {
	if count > 0 && count <= p.batchCapacity {
		p.ring.PublishRange(p.lowSequence, p.lowSequence+count-1)
	}
	p.currentBatchSize = 0
}
