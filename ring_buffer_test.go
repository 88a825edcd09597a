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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

type testEvent struct {
	value int64
	fizz  int64
	buzz  int64
}

func TestNewRejectsInvalidCapacity(t *testing.T) {
	cases := []int64{0, -1, 3, 1023}
	for _, size := range cases {
		_, err := New(size, func() testEvent { return testEvent{} })
		assert.True(t, errors.Is(err, ringbuserrors.ErrInvalidCapacity), "size=%d", size)
	}
}

func TestNextNRejectsInvalidArgument(t *testing.T) {
	ring, err := New(8, func() testEvent { return testEvent{} })
	require.NoError(t, err)

	_, err = ring.NextN(0)
	assert.True(t, errors.Is(err, ringbuserrors.ErrInvalidArgument))

	_, err = ring.NextN(-1)
	assert.True(t, errors.Is(err, ringbuserrors.ErrInvalidArgument))

	_, err = ring.NextN(9)
	assert.True(t, errors.Is(err, ringbuserrors.ErrInvalidArgument))
}

func TestTryNextFailsWhenFull(t *testing.T) {
	ring, err := New(4, func() testEvent { return testEvent{} })
	require.NoError(t, err)
	// A consumer that has consumed nothing gates the producer, so four
	// claims fill the ring.
	ring.AddGatingSequences(NewSequence())

	high, err := ring.NextN(4)
	require.NoError(t, err)
	ring.PublishRange(0, high)

	_, err = ring.TryNext()
	assert.True(t, errors.Is(err, ringbuserrors.ErrInsufficientCapacity))
}

// Scenario 1: single producer, single consumer, sum check.
func TestSingleProducerSingleConsumerSumCheck(t *testing.T) {
	const n = 10000

	ring, err := New(1024, func() testEvent { return testEvent{} }, WithWaitStrategy(NewBusySpinWaitStrategy()))
	require.NoError(t, err)

	var sum int64
	var processed int64
	done := make(chan struct{})
	handler := EventHandlerFuncs[testEvent]{
		Event: func(event *testEvent, sequence int64, endOfBatch bool) error {
			sum += event.value
			processed++
			if sequence == n-1 {
				close(done)
			}
			return nil
		},
	}

	barrier := ring.NewBarrier()
	processor := NewBatchEventProcessor[testEvent](ring, barrier, handler, nil)
	ring.AddGatingSequences(processor.Sequence())

	go func() { _ = processor.Run() }()

	for i := int64(0); i < n; i++ {
		seq, err := ring.Next()
		require.NoError(t, err)
		ring.Get(seq).value = i
		ring.Publish(seq)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not finish draining")
	}
	processor.Halt()

	assert.EqualValues(t, 49_995_000, sum)
	assert.EqualValues(t, n, processed)
	assert.EqualValues(t, n-1, processor.Sequence().Get())
}

// Scenario 2: broadcast fan-out, three consumers sharing one barrier on the cursor.
func TestBroadcastFanOut(t *testing.T) {
	const n = 1000

	ring, err := New(1024, func() testEvent { return testEvent{} })
	require.NoError(t, err)

	var wg sync.WaitGroup
	sums := make([]int64, 3)
	counts := make([]int64, 3)
	dones := make([]chan struct{}, 3)
	processors := make([]*BatchEventProcessor[testEvent], 3)

	for i := 0; i < 3; i++ {
		i := i
		dones[i] = make(chan struct{})
		handler := EventHandlerFuncs[testEvent]{
			Event: func(event *testEvent, sequence int64, endOfBatch bool) error {
				sums[i] += event.value
				counts[i]++
				if sequence == n-1 {
					close(dones[i])
				}
				return nil
			},
		}
		barrier := ring.NewBarrier()
		processors[i] = NewBatchEventProcessor[testEvent](ring, barrier, handler, nil)
		ring.AddGatingSequences(processors[i].Sequence())
	}

	wg.Add(3)
	for i := 0; i < 3; i++ {
		p := processors[i]
		go func() {
			defer wg.Done()
			_ = p.Run()
		}()
	}

	for i := int64(0); i < n; i++ {
		seq, err := ring.Next()
		require.NoError(t, err)
		ring.Get(seq).value = i
		ring.Publish(seq)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-dones[i]:
		case <-time.After(5 * time.Second):
			t.Fatalf("consumer %d did not finish draining", i)
		}
	}
	for _, p := range processors {
		p.Halt()
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		assert.EqualValues(t, 499_500, sums[i], "consumer %d", i)
		assert.EqualValues(t, n, counts[i], "consumer %d", i)
	}
}

// Scenario 3: diamond dependency. Producer -> {A, B} -> C.
func TestDiamondDependency(t *testing.T) {
	const n = 100

	ring, err := New(128, func() testEvent { return testEvent{} })
	require.NoError(t, err)

	barrierAB := ring.NewBarrier()
	handlerA := EventHandlerFuncs[testEvent]{
		Event: func(event *testEvent, sequence int64, endOfBatch bool) error {
			event.fizz = event.value * 2
			return nil
		},
	}
	handlerB := EventHandlerFuncs[testEvent]{
		Event: func(event *testEvent, sequence int64, endOfBatch bool) error {
			event.buzz = event.value + 10
			return nil
		},
	}
	procA := NewBatchEventProcessor[testEvent](ring, barrierAB, handlerA, nil)
	procB := NewBatchEventProcessor[testEvent](ring, ring.NewBarrier(), handlerB, nil)
	ring.AddGatingSequences(procA.Sequence(), procB.Sequence())

	done := make(chan struct{})
	var mismatch bool
	barrierC := ring.NewBarrier(procA.Sequence(), procB.Sequence())
	handlerC := EventHandlerFuncs[testEvent]{
		Event: func(event *testEvent, sequence int64, endOfBatch bool) error {
			if event.fizz != event.value*2 || event.buzz != event.value+10 {
				mismatch = true
			}
			if sequence == n-1 {
				close(done)
			}
			return nil
		},
	}
	procC := NewBatchEventProcessor[testEvent](ring, barrierC, handlerC, nil)
	ring.AddGatingSequences(procC.Sequence())

	go func() { _ = procA.Run() }()
	go func() { _ = procB.Run() }()
	go func() { _ = procC.Run() }()

	for i := int64(0); i < n; i++ {
		seq, err := ring.Next()
		require.NoError(t, err)
		ring.Get(seq).value = i
		ring.Publish(seq)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("C did not finish draining")
	}
	procA.Halt()
	procB.Halt()
	procC.Halt()

	assert.False(t, mismatch, "C observed fizz/buzz before A and B completed")
}

// Scenario 4: multi-producer contiguity.
func TestMultiProducerContiguity(t *testing.T) {
	const producers = 3
	const perProducer = 10000
	const total = producers * perProducer

	ring, err := New(4096, func() testEvent { return testEvent{} }, WithProducerMode(MultiProducer))
	require.NoError(t, err)

	var processedCount int64
	seen := make(map[int64]bool)
	var mu sync.Mutex
	done := make(chan struct{})

	handler := EventHandlerFuncs[testEvent]{
		Event: func(event *testEvent, sequence int64, endOfBatch bool) error {
			mu.Lock()
			seen[sequence] = true
			processedCount++
			count := processedCount
			mu.Unlock()
			if count == total {
				close(done)
			}
			return nil
		},
	}
	barrier := ring.NewBarrier()
	processor := NewBatchEventProcessor[testEvent](ring, barrier, handler, nil)
	ring.AddGatingSequences(processor.Sequence())

	go func() { _ = processor.Run() }()

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
				ring.Get(seq).value = seq
				ring.Publish(seq)
			}
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not finish draining")
	}
	processor.Halt()

	assert.Len(t, seen, total)
	assert.EqualValues(t, total-1, processor.Sequence().Get())
}

// Scenario 6: halt under load with a blocking wait strategy.
func TestHaltUnderLoad(t *testing.T) {
	ring, err := New(1024, func() testEvent { return testEvent{} }, WithWaitStrategy(NewBlockingWaitStrategy()))
	require.NoError(t, err)

	handler := EventHandlerFuncs[testEvent]{
		Event: func(event *testEvent, sequence int64, endOfBatch bool) error {
			return nil
		},
	}
	barrier := ring.NewBarrier()
	processor := NewBatchEventProcessor[testEvent](ring, barrier, handler, nil)
	ring.AddGatingSequences(processor.Sequence())

	stopProducer := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopProducer:
				return
			default:
				seq, err := ring.Next()
				if err != nil {
					return
				}
				ring.Publish(seq)
			}
		}
	}()

	runDone := make(chan struct{})
	go func() {
		_ = processor.Run()
		close(runDone)
	}()

	time.Sleep(100 * time.Millisecond)
	processor.Halt()

	select {
	case <-runDone:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("processor did not exit within 50ms of halt")
	}
	close(stopProducer)

	assert.False(t, processor.IsRunning())
}

func TestHaltIsIdempotent(t *testing.T) {
	ring, err := New(8, func() testEvent { return testEvent{} })
	require.NoError(t, err)

	handler := EventHandlerFuncs[testEvent]{
		Event: func(event *testEvent, sequence int64, endOfBatch bool) error { return nil },
	}
	processor := NewBatchEventProcessor[testEvent](ring, ring.NewBarrier(), handler, nil)

	runDone := make(chan struct{})
	go func() {
		_ = processor.Run()
		close(runDone)
	}()
	time.Sleep(10 * time.Millisecond)

	processor.Halt()
	processor.Halt()

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("processor did not exit")
	}
	assert.False(t, processor.IsRunning())
}
