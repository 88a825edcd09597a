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
	"github.com/ringbus/ringbus/internal/faultqueue"
	"github.com/ringbus/ringbus/logging"
	ringbuserrors "github.com/ringbus/ringbus/pkg/errors"
)

// ExceptionHandler is the pluggable policy a BatchEventProcessor or
// WorkProcessor consults whenever a handler raises an error.
// HandleEventException returns the error the processor loop should
// rethrow and halt on (Fatal policy), or nil to let the loop continue past
// the failing sequence (Ignore policy).
type ExceptionHandler[E any] interface {
	HandleEventException(err error, sequence int64, event *E) error
	HandleOnStartException(err error)
	HandleOnShutdownException(err error)
}

// FatalExceptionHandler logs the failure and returns it wrapped in a
// *ringbuserrors.HandlerFailure, so the owning processor's loop rethrows
// and halts. It is the default policy for BatchEventProcessor.
type FatalExceptionHandler[E any] struct {
	Logger logging.Logger
	Faults faultqueue.Queue
}

// NewFatalExceptionHandler returns a FatalExceptionHandler that logs through
// logging.GetDefaultLogger() and records faults in a fresh lock-free queue.
func NewFatalExceptionHandler[E any]() *FatalExceptionHandler[E] {
	return &FatalExceptionHandler[E]{
		Logger: logging.GetDefaultLogger(),
		Faults: faultqueue.NewLockFreeQueue(),
	}
}

func (h *FatalExceptionHandler[E]) HandleEventException(err error, sequence int64, event *E) error {
	h.Logger.Errorf("ringbus: exception processing sequence %d: %v", sequence, err)
	h.record(faultqueue.StageEvent, sequence, err)
	return &ringbuserrors.HandlerFailure{Sequence: sequence, Err: err}
}

func (h *FatalExceptionHandler[E]) HandleOnStartException(err error) {
	h.Logger.Errorf("ringbus: exception during onStart: %v", err)
	h.record(faultqueue.StageStart, -1, err)
}

func (h *FatalExceptionHandler[E]) HandleOnShutdownException(err error) {
	h.Logger.Errorf("ringbus: exception during onShutdown: %v", err)
	h.record(faultqueue.StageShutdown, -1, err)
}

func (h *FatalExceptionHandler[E]) record(stage faultqueue.Stage, sequence int64, err error) {
	if h.Faults == nil {
		return
	}
	record := faultqueue.GetRecord()
	record.Stage, record.Sequence, record.Err = stage, sequence, err
	h.Faults.Enqueue(record)
}

// IgnoreExceptionHandler logs the failure and lets the owning processor
// continue past it. It is the default policy for WorkProcessor, where a
// single poisoned message must not stall the whole work pool.
type IgnoreExceptionHandler[E any] struct {
	Logger logging.Logger
	Faults faultqueue.Queue
}

// NewIgnoreExceptionHandler returns an IgnoreExceptionHandler that logs
// through logging.GetDefaultLogger() and records faults in a fresh
// lock-free queue.
func NewIgnoreExceptionHandler[E any]() *IgnoreExceptionHandler[E] {
	return &IgnoreExceptionHandler[E]{
		Logger: logging.GetDefaultLogger(),
		Faults: faultqueue.NewLockFreeQueue(),
	}
}

func (h *IgnoreExceptionHandler[E]) HandleEventException(err error, sequence int64, event *E) error {
	h.Logger.Warnf("ringbus: ignoring exception processing sequence %d: %v", sequence, err)
	h.record(faultqueue.StageEvent, sequence, err)
	return nil
}

func (h *IgnoreExceptionHandler[E]) HandleOnStartException(err error) {
	h.Logger.Warnf("ringbus: ignoring exception during onStart: %v", err)
	h.record(faultqueue.StageStart, -1, err)
}

func (h *IgnoreExceptionHandler[E]) HandleOnShutdownException(err error) {
	h.Logger.Warnf("ringbus: ignoring exception during onShutdown: %v", err)
	h.record(faultqueue.StageShutdown, -1, err)
}

func (h *IgnoreExceptionHandler[E]) record(stage faultqueue.Stage, sequence int64, err error) {
	if h.Faults == nil {
		return
	}
	record := faultqueue.GetRecord()
	record.Stage, record.Sequence, record.Err = stage, sequence, err
	h.Faults.Enqueue(record)
}
