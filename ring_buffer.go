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
	"github.com/ringbus/ringbus/internal/math"
	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

// RingBuffer is a fixed-capacity, preallocated array of event slots shared
// between one or more producers and one or more consumers. It is generic
// over the event type E, the opaque payload the core never interprets;
// every operation on it is delegated to the sequencer chosen at
// construction (single- or multi-producer).
type RingBuffer[E any] struct {
	entries []E
	mask    int64
	seq     sequencer
}

// New constructs a RingBuffer of the given size (must be a power of two
// >= 1) and invokes factory exactly size times to populate every slot
// before returning, so no producer or consumer ever observes a
// zero-valued slot.
func New[E any](size int64, factory func() E, opts ...Option) (*RingBuffer[E], error) {
	if size < 1 || !math.IsPowerOfTwo(int(size)) {
		return nil, ringbuserrors.ErrInvalidCapacity
	}

	cfg := newConfig(opts...)

	var seq sequencer
	switch cfg.ProducerMode {
	case MultiProducer:
		seq = newMultiProducerSequencer(size, cfg.WaitStrategy)
	default:
		seq = newSingleProducerSequencer(size, cfg.WaitStrategy)
	}

	entries := make([]E, size)
	for i := range entries {
		entries[i] = factory()
	}

	return &RingBuffer[E]{
		entries: entries,
		mask:    size - 1,
		seq:     seq,
	}, nil
}

// BufferSize returns the ring's fixed capacity.
func (r *RingBuffer[E]) BufferSize() int64 {
	return r.seq.bufferSize()
}

// Next claims the next single sequence, blocking until room is available.
func (r *RingBuffer[E]) Next() (int64, error) {
	return r.seq.next(1)
}

// NextN claims the next n sequences (1 <= n <= BufferSize), returning the
// high (last) sequence of the batch, blocking until room is available.
func (r *RingBuffer[E]) NextN(n int64) (int64, error) {
	return r.seq.next(n)
}

// TryNext is the non-blocking counterpart of Next: it fails with
// ErrInsufficientCapacity instead of waiting.
func (r *RingBuffer[E]) TryNext() (int64, error) {
	return r.seq.tryNext(1)
}

// TryNextN is the non-blocking counterpart of NextN.
func (r *RingBuffer[E]) TryNextN(n int64) (int64, error) {
	return r.seq.tryNext(n)
}

// Publish marks sequence as produced and wakes any waiting consumer.
func (r *RingBuffer[E]) Publish(sequence int64) {
	r.seq.publish(sequence)
}

// PublishRange marks every sequence in [lo, hi] as produced.
func (r *RingBuffer[E]) PublishRange(lo, hi int64) {
	r.seq.publishRange(lo, hi)
}

// Get returns the slot at sequence & (BufferSize-1). The caller must have
// either just claimed that sequence (as a producer) or had it released by
// a SequenceBarrier (as a consumer); RingBuffer does not validate this.
func (r *RingBuffer[E]) Get(sequence int64) *E {
	return &r.entries[sequence&r.mask]
}

// NewBarrier constructs a SequenceBarrier bound to this ring's cursor and
// the given dependency sequences (and, for multi-producer rings, this
// ring's sequencer, so the barrier can scan for the highest contiguously
// published sequence).
func (r *RingBuffer[E]) NewBarrier(dependents ...*Sequence) *SequenceBarrier {
	return r.seq.newBarrier(dependents...)
}

// AddGatingSequences registers consumer sequences the producer must not
// outrun. Call before starting processors.
func (r *RingBuffer[E]) AddGatingSequences(sequences ...*Sequence) {
	r.seq.addGatingSequences(sequences...)
}

// RemoveGatingSequence retires a consumer sequence from the gating set.
func (r *RingBuffer[E]) RemoveGatingSequence(sequence *Sequence) bool {
	return r.seq.removeGatingSequence(sequence)
}

// Cursor returns the producer's published high-water mark.
func (r *RingBuffer[E]) Cursor() int64 {
	return r.seq.getCursor().Get()
}

// IsAvailable reports whether sequence has been published and not yet
// wrapped past by the producer.
func (r *RingBuffer[E]) IsAvailable(sequence int64) bool {
	return r.seq.isAvailable(sequence)
}
