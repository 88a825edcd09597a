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
	"sync"
	"time"

	"go.uber.org/atomic"

	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

// WaitStrategy decides how a consumer's goroutine blocks, spins, or sleeps
// until a target sequence becomes visible on a SequenceBarrier.
// Implementations must raise ringbuserrors.ErrAlerted as soon as they
// observe the alert flag set; they must not swallow it.
type WaitStrategy interface {
	// WaitFor blocks until the effective available sequence (cursor,
	// or the minimum of cursor and every dependent when dependents is
	// non-empty) reaches target, or returns ErrAlerted if alerted is set
	// first.
	WaitFor(target int64, cursor *Sequence, dependents []*Sequence, alerted *atomic.Bool) (int64, error)
	// SignalAllWhenBlocking wakes any goroutine parked inside WaitFor.
	// Strategies that never park may implement this as a no-op.
	SignalAllWhenBlocking()
}

func effectiveAvailable(cursor *Sequence, dependents []*Sequence) int64 {
	if len(dependents) == 0 {
		return cursor.Get()
	}
	return minimumSequence(dependents, cursor.Get())
}

func minimumSequence(sequences []*Sequence, initial int64) int64 {
	min := initial
	for _, s := range sequences {
		if v := s.Get(); v < min {
			min = v
		}
	}
	return min
}

// BusySpinWaitStrategy spins on a CPU-pause loop, checking the alert flag
// every 256 iterations. It offers the lowest latency at the cost of pegging
// a CPU core for the lifetime of the consumer.
type BusySpinWaitStrategy struct{}

// NewBusySpinWaitStrategy returns a BusySpinWaitStrategy.
func NewBusySpinWaitStrategy() *BusySpinWaitStrategy { return &BusySpinWaitStrategy{} }

// WaitFor implements WaitStrategy.
func (*BusySpinWaitStrategy) WaitFor(target int64, cursor *Sequence, dependents []*Sequence, alerted *atomic.Bool) (int64, error) {
	var counter uint32
	for {
		counter++
		if counter&0xFF == 0 && alerted.Load() {
			return -1, ringbuserrors.ErrAlerted
		}
		if available := effectiveAvailable(cursor, dependents); available >= target {
			return available, nil
		}
		procYield(1)
	}
}

// SignalAllWhenBlocking implements WaitStrategy as a no-op; nothing parks
// inside BusySpinWaitStrategy.WaitFor.
func (*BusySpinWaitStrategy) SignalAllWhenBlocking() {}

// yieldSpinTries is the number of pause iterations YieldingWaitStrategy
// spends per round before calling runtime.Gosched.
const yieldSpinTries = 100

// YieldingWaitStrategy spins for a bounded number of iterations and then
// yields the goroutine, trading a little latency for much lower CPU use
// than BusySpinWaitStrategy under contention.
type YieldingWaitStrategy struct{}

// NewYieldingWaitStrategy returns a YieldingWaitStrategy.
func NewYieldingWaitStrategy() *YieldingWaitStrategy { return &YieldingWaitStrategy{} }

// WaitFor implements WaitStrategy.
func (*YieldingWaitStrategy) WaitFor(target int64, cursor *Sequence, dependents []*Sequence, alerted *atomic.Bool) (int64, error) {
	counter := yieldSpinTries
	for {
		if available := effectiveAvailable(cursor, dependents); available >= target {
			return available, nil
		}
		if counter == 0 {
			if alerted.Load() {
				return -1, ringbuserrors.ErrAlerted
			}
			runtime.Gosched()
			counter = yieldSpinTries
		} else {
			counter--
			procYield(1)
		}
	}
}

// SignalAllWhenBlocking implements WaitStrategy as a no-op.
func (*YieldingWaitStrategy) SignalAllWhenBlocking() {}

const (
	sleepingSpinTries  = 200
	sleepingYieldTries = 100
	sleepingNap        = 100 * time.Nanosecond
)

// SleepingWaitStrategy backs off progressively: spin, then yield, then a
// short sleep. It suits throughput-sensitive consumers that still want to
// give CPU back under sustained idle periods.
type SleepingWaitStrategy struct{}

// NewSleepingWaitStrategy returns a SleepingWaitStrategy.
func NewSleepingWaitStrategy() *SleepingWaitStrategy { return &SleepingWaitStrategy{} }

// WaitFor implements WaitStrategy.
func (*SleepingWaitStrategy) WaitFor(target int64, cursor *Sequence, dependents []*Sequence, alerted *atomic.Bool) (int64, error) {
	counter := sleepingSpinTries + sleepingYieldTries
	for {
		if alerted.Load() {
			return -1, ringbuserrors.ErrAlerted
		}
		if available := effectiveAvailable(cursor, dependents); available >= target {
			return available, nil
		}
		switch {
		case counter > sleepingYieldTries:
			counter--
			procYield(1)
		case counter > 0:
			counter--
			runtime.Gosched()
		default:
			time.Sleep(sleepingNap)
		}
	}
}

// SignalAllWhenBlocking implements WaitStrategy as a no-op.
func (*SleepingWaitStrategy) SignalAllWhenBlocking() {}

const blockingPollInterval = 50 * time.Microsecond

// BlockingWaitStrategy parks the consumer on a condition variable and
// relies on producers/alerters to notify it, trading latency for the
// lowest possible CPU use when throughput is low.
type BlockingWaitStrategy struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// NewBlockingWaitStrategy returns a BlockingWaitStrategy.
func NewBlockingWaitStrategy() *BlockingWaitStrategy {
	w := &BlockingWaitStrategy{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// WaitFor implements WaitStrategy.
func (w *BlockingWaitStrategy) WaitFor(target int64, cursor *Sequence, dependents []*Sequence, alerted *atomic.Bool) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if alerted.Load() {
			return -1, ringbuserrors.ErrAlerted
		}
		if available := effectiveAvailable(cursor, dependents); available >= target {
			return available, nil
		}
		waitWithTimeout(w.cond, &w.mu, blockingPollInterval)
	}
}

// SignalAllWhenBlocking wakes every goroutine parked in WaitFor.
func (w *BlockingWaitStrategy) SignalAllWhenBlocking() {
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

// waitWithTimeout parks on cond for up to timeout, re-acquiring mu before
// returning, the same way the blocking strategy bounds a condition wait
// without a native timed-wait primitive: a timer fires its own Broadcast
// if no producer or alerter does so first.
func waitWithTimeout(cond *sync.Cond, mu *sync.Mutex, timeout time.Duration) {
	timer := time.AfterFunc(timeout, func() {
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}

// procYield issues n CPU-pause-equivalent yields. Go has no portable pause
// intrinsic exposed to user code, so runtime.Gosched is the idiomatic
// stand-in used for spin backoff.
func procYield(n int) {
	for i := 0; i < n; i++ {
		runtime.Gosched()
	}
}
