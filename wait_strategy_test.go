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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

func testWaitStrategies() map[string]WaitStrategy {
	return map[string]WaitStrategy{
		"BusySpin": NewBusySpinWaitStrategy(),
		"Yielding": NewYieldingWaitStrategy(),
		"Sleeping": NewSleepingWaitStrategy(),
		"Blocking": NewBlockingWaitStrategy(),
	}
}

func TestWaitStrategyReturnsImmediatelyWhenAlreadyAvailable(t *testing.T) {
	for name, ws := range testWaitStrategies() {
		t.Run(name, func(t *testing.T) {
			cursor := NewSequenceWithValue(10)
			var alerted atomic.Bool
			available, err := ws.WaitFor(5, cursor, nil, &alerted)
			require.NoError(t, err)
			assert.EqualValues(t, 10, available)
		})
	}
}

func TestWaitStrategyUnblocksOnPublish(t *testing.T) {
	for name, ws := range testWaitStrategies() {
		t.Run(name, func(t *testing.T) {
			cursor := NewSequence()
			var alerted atomic.Bool
			done := make(chan int64, 1)

			go func() {
				available, err := ws.WaitFor(0, cursor, nil, &alerted)
				if err != nil {
					done <- -1
					return
				}
				done <- available
			}()

			time.Sleep(5 * time.Millisecond)
			cursor.Set(0)
			ws.SignalAllWhenBlocking()

			select {
			case v := <-done:
				assert.EqualValues(t, 0, v)
			case <-time.After(time.Second):
				t.Fatal("WaitFor did not unblock after publish")
			}
		})
	}
}

func TestWaitStrategyRaisesAlerted(t *testing.T) {
	for name, ws := range testWaitStrategies() {
		t.Run(name, func(t *testing.T) {
			cursor := NewSequence()
			var alerted atomic.Bool
			done := make(chan error, 1)

			go func() {
				_, err := ws.WaitFor(100, cursor, nil, &alerted)
				done <- err
			}()

			time.Sleep(5 * time.Millisecond)
			alerted.Store(true)
			ws.SignalAllWhenBlocking()

			select {
			case err := <-done:
				assert.True(t, errors.Is(err, ringbuserrors.ErrAlerted))
			case <-time.After(time.Second):
				t.Fatal("WaitFor did not observe the alert flag")
			}
		})
	}
}

func TestEffectiveAvailableUsesMinimumDependent(t *testing.T) {
	cursor := NewSequenceWithValue(100)
	fast := NewSequenceWithValue(90)
	slow := NewSequenceWithValue(50)

	assert.EqualValues(t, 50, effectiveAvailable(cursor, []*Sequence{fast, slow}))
	assert.EqualValues(t, 100, effectiveAvailable(cursor, nil))
}
