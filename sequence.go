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
	"strconv"
	"unsafe"

	"go.uber.org/atomic"
)

// CacheLineSize is the assumed width, in bytes, of a CPU cache line on the
// target platform. Sequence pads both sides of its payload to this width so
// that a producer's hot sequence never shares a line with an unrelated
// value and suffers false sharing.
const CacheLineSize = 64

// InitialSequenceValue is the value a Sequence holds before anything has
// been claimed or published against it.
const InitialSequenceValue int64 = -1

// FirstSequenceValue is the first sequence a producer ever claims.
const FirstSequenceValue int64 = 0

// Sequence is a monotonically non-decreasing 64-bit counter, the unit of
// progress for every producer and consumer in ringbus. Reads and writes use
// the orderings documented on each method; callers that need plain,
// unordered access (because they already established ordering through some
// other variable) should reach for the Relaxed variants.
//
// The struct is padded on both sides of its single atomic field so that its
// total size is at least twice CacheLineSize; this keeps a Sequence's
// payload alone on its own cache line even when several Sequences are
// allocated adjacently (e.g. in a WorkerPool's worker slice).
type Sequence struct {
	_     [CacheLineSize]byte
	value atomic.Int64
	_     [CacheLineSize]byte
}

func init() {
	var s Sequence
	if unsafe.Sizeof(s) < 2*CacheLineSize {
		panic("ringbus: Sequence padding is insufficient to prevent false sharing")
	}
}

// NewSequence returns a Sequence initialized to InitialSequenceValue.
func NewSequence() *Sequence {
	return NewSequenceWithValue(InitialSequenceValue)
}

// NewSequenceWithValue returns a Sequence initialized to v.
func NewSequenceWithValue(v int64) *Sequence {
	s := &Sequence{}
	s.value.Store(v)
	return s
}

// Get returns the latest value visible under acquire ordering; it pairs
// with Set to establish happens-before across goroutines.
func (s *Sequence) Get() int64 {
	return s.value.Load()
}

// GetRelaxed returns the current value with no ordering guarantees. Use
// only when the caller has already established ordering through some other
// release/acquire pair.
func (s *Sequence) GetRelaxed() int64 {
	return s.value.Load()
}

// Set stores v with release ordering.
func (s *Sequence) Set(v int64) {
	s.value.Store(v)
}

// SetRelaxed stores v without ordering. Permitted only when this goroutine
// is the exclusive writer and visibility will be established later by a
// release on some other variable (e.g. the sequencer's cursor).
func (s *Sequence) SetRelaxed(v int64) {
	s.value.Store(v)
}

// CompareAndSet atomically swaps value from expected to desired, returning
// whether the swap happened.
func (s *Sequence) CompareAndSet(expected, desired int64) bool {
	return s.value.CAS(expected, desired)
}

// IncrementAndGet atomically adds 1 and returns the new value.
func (s *Sequence) IncrementAndGet() int64 {
	return s.value.Add(1)
}

// AddAndGet atomically adds delta and returns the new value.
func (s *Sequence) AddAndGet(delta int64) int64 {
	return s.value.Add(delta)
}

// GetAndAdd atomically adds delta and returns the value prior to the add.
func (s *Sequence) GetAndAdd(delta int64) int64 {
	return s.value.Add(delta) - delta
}

// String implements fmt.Stringer for debugging and log output.
func (s *Sequence) String() string {
	return strconv.FormatInt(s.Get(), 10)
}
