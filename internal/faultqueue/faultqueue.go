// Copyright (c) 2021 Andy Pan
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

// Package faultqueue delivers a lock-free MPSC queue of FaultRecord values,
// based on the algorithm presented by Maged M. Michael and Michael L. Scott
// in 1996: https://dl.acm.org/doi/10.1145/248052.248106
//
// Built-in exception handlers push a FaultRecord here instead of only
// logging-and-forgetting, so a host can drain the queue asynchronously for
// reporting or metrics without taking a lock on the handler's hot path.
package faultqueue

import "sync"

// Stage identifies which exception-handler hook produced a FaultRecord.
type Stage int

const (
	// StageEvent marks a fault raised while processing an event.
	StageEvent Stage = iota
	// StageStart marks a fault raised from a handler's onStart hook.
	StageStart
	// StageShutdown marks a fault raised from a handler's onShutdown hook.
	StageShutdown
)

// FaultRecord captures one handler exception routed through an
// ExceptionHandler.
type FaultRecord struct {
	Stage    Stage
	Sequence int64
	Err      error
}

var recordPool = sync.Pool{New: func() interface{} { return new(FaultRecord) }}

// GetRecord gets a cached FaultRecord from the pool.
func GetRecord() *FaultRecord {
	return recordPool.Get().(*FaultRecord)
}

// PutRecord clears r's Err and returns it to the pool; Stage and Sequence
// keep their old values.
func PutRecord(r *FaultRecord) {
	r.Err = nil
	recordPool.Put(r)
}

// Queue is a queue of FaultRecord values.
type Queue interface {
	Enqueue(*FaultRecord)
	Dequeue() *FaultRecord
	IsEmpty() bool
}
