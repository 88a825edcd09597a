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

// EventHandler is implemented by hosts that want to drain a RingBuffer
// through a BatchEventProcessor. OnEvent is called once per slot in
// [next..available], in order, with endOfBatch true on the last call of the
// current drain — the handler's signal to flush any batched side effect.
type EventHandler[E any] interface {
	OnEvent(event *E, sequence int64, endOfBatch bool) error

	// OnStart is called once when the owning processor transitions to
	// Running, before the first OnEvent call.
	OnStart()

	// OnShutdown is called once when the owning processor exits its loop,
	// whether by halt or by a fatal handler exception.
	OnShutdown()
}

// WorkHandler is implemented by hosts that want to drain a RingBuffer
// through a WorkerPool. Unlike EventHandler, each published sequence
// reaches exactly one worker, and there is no batch to flush, so OnEvent
// carries no endOfBatch flag.
type WorkHandler[E any] interface {
	OnEvent(event *E, sequence int64) error

	OnStart()
	OnShutdown()
}

// EventHandlerFuncs adapts three plain functions into an EventHandler,
// leaving OnStart/OnShutdown as no-ops when left nil.
type EventHandlerFuncs[E any] struct {
	Event    func(event *E, sequence int64, endOfBatch bool) error
	Start    func()
	Shutdown func()
}

func (f EventHandlerFuncs[E]) OnEvent(event *E, sequence int64, endOfBatch bool) error {
	return f.Event(event, sequence, endOfBatch)
}

func (f EventHandlerFuncs[E]) OnStart() {
	if f.Start != nil {
		f.Start()
	}
}

func (f EventHandlerFuncs[E]) OnShutdown() {
	if f.Shutdown != nil {
		f.Shutdown()
	}
}
