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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchPublisherFixedSizeMode(t *testing.T) {
	ring, err := New(16, func() testEvent { return testEvent{} })
	require.NoError(t, err)

	pub := NewBatchPublisher(ring, 4)
	for i := 0; i < 4; i++ {
		event, err := pub.Claim()
		require.NoError(t, err)
		event.value = int64(i)
	}
	require.True(t, pub.IsFull())
	pub.PublishBatch()

	assert.EqualValues(t, 3, ring.Cursor())
	for i := int64(0); i < 4; i++ {
		assert.EqualValues(t, i, ring.Get(i).value)
	}
}

func TestBatchPublisherDynamicMode(t *testing.T) {
	ring, err := New(16, func() testEvent { return testEvent{} })
	require.NoError(t, err)

	pub := NewBatchPublisher(ring, 1)
	require.NoError(t, pub.BeginBatch(6))
	for i := int64(0); i < 6; i++ {
		pub.GetEvent(i).value = i
		assert.Equal(t, i, pub.GetSequence(i))
	}
	pub.EndBatch()

	assert.EqualValues(t, 5, ring.Cursor())
}

func TestBatchPublisherEndBatchNPartialPublish(t *testing.T) {
	ring, err := New(16, func() testEvent { return testEvent{} })
	require.NoError(t, err)

	pub := NewBatchPublisher(ring, 1)
	require.NoError(t, pub.BeginBatch(8))
	pub.EndBatchN(3)

	assert.EqualValues(t, 2, ring.Cursor())
}

func TestBatchPublisherTryBeginBatchFailsWhenFull(t *testing.T) {
	ring, err := New(4, func() testEvent { return testEvent{} })
	require.NoError(t, err)
	// A consumer that has consumed nothing gates the producer, so four
	// claims fill the ring.
	ring.AddGatingSequences(NewSequence())

	high, err := ring.NextN(4)
	require.NoError(t, err)
	ring.PublishRange(0, high)

	pub := NewBatchPublisher(ring, 1)
	ok, err := pub.TryBeginBatch(1)
	require.NoError(t, err)
	assert.False(t, ok)
}
