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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

type recordingWorkHandler struct {
	mu      sync.Mutex
	handled map[int64]bool
}

func newRecordingWorkHandler() *recordingWorkHandler {
	return &recordingWorkHandler{handled: make(map[int64]bool)}
}

func (h *recordingWorkHandler) OnEvent(event *testEvent, sequence int64) error {
	h.mu.Lock()
	h.handled[sequence] = true
	h.mu.Unlock()
	return nil
}

func (h *recordingWorkHandler) OnStart()    {}
func (h *recordingWorkHandler) OnShutdown() {}

// Scenario 5: work pool exclusivity. Every published sequence lands in
// exactly one worker's handled set, and the sets partition {0..total-1}.
func TestWorkerPoolExclusivity(t *testing.T) {
	const producers = 4
	const perProducer = 2500
	const workers = 4
	const workBatchSize = 8
	const total = producers * perProducer

	ring, err := New(4096, func() testEvent { return testEvent{} }, WithProducerMode(MultiProducer))
	require.NoError(t, err)

	handlers := make([]*recordingWorkHandler, workers)
	workHandlers := make([]WorkHandler[testEvent], workers)
	for i := range handlers {
		handlers[i] = newRecordingWorkHandler()
		workHandlers[i] = handlers[i]
	}

	pool := NewWorkerPool[testEvent](ring, workHandlers, workBatchSize, nil)
	ring.AddGatingSequences(pool.Sequences()...)
	require.NoError(t, pool.Start(func(f func()) { go f() }))

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				seq, err := ring.Next()
				if err != nil {
					return
				}
				ring.Publish(seq)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		count := 0
		for _, h := range handlers {
			h.mu.Lock()
			count += len(h.handled)
			h.mu.Unlock()
		}
		return count == total
	}, 10*time.Second, 10*time.Millisecond)

	require.NoError(t, pool.Halt())

	union := make(map[int64]bool, total)
	for _, h := range handlers {
		for seq := range h.handled {
			assert.False(t, union[seq], "sequence %d handled by more than one worker", seq)
			union[seq] = true
		}
	}
	assert.Len(t, union, total)
	for seq := int64(0); seq < total; seq++ {
		assert.True(t, union[seq], "sequence %d was never handled", seq)
	}
}

func TestWorkerPoolRejectsDoubleStartAndDoubleHalt(t *testing.T) {
	ring, err := New(16, func() testEvent { return testEvent{} })
	require.NoError(t, err)

	handler := newRecordingWorkHandler()
	pool := NewWorkerPool[testEvent](ring, []WorkHandler[testEvent]{handler}, 1, nil)
	ring.AddGatingSequences(pool.Sequences()...)

	require.NoError(t, pool.Start(func(f func()) { go f() }))
	assert.ErrorIs(t, pool.Start(func(f func()) { go f() }), ringbuserrors.ErrShutdown)

	require.NoError(t, pool.Halt())
	assert.ErrorIs(t, pool.Halt(), ringbuserrors.ErrShutdown)

	assert.ErrorIs(t, pool.Start(func(f func()) { go f() }), ringbuserrors.ErrShutdown)
}
