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

	"go.uber.org/atomic"
)

// gatingSequences is the producer's view of every consumer's progress. It
// is read on every single claim on the hot path and mutated only when a
// processor starts or retires, so membership changes swap in a fresh
// immutable slice behind an atomic pointer (copy-on-write) rather than
// taking a lock that producers would otherwise have to acquire per-claim.
type gatingSequences struct {
	mu  sync.Mutex
	ptr atomic.Pointer[[]*Sequence]
}

func (g *gatingSequences) snapshot() []*Sequence {
	if p := g.ptr.Load(); p != nil {
		return *p
	}
	return nil
}

func (g *gatingSequences) add(sequences ...*Sequence) {
	if len(sequences) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	current := g.snapshot()
	next := make([]*Sequence, 0, len(current)+len(sequences))
	next = append(next, current...)
	next = append(next, sequences...)
	g.ptr.Store(&next)
}

func (g *gatingSequences) remove(sequence *Sequence) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	current := g.snapshot()
	idx := -1
	for i, s := range current {
		if s == sequence {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	next := make([]*Sequence, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)
	g.ptr.Store(&next)
	return true
}

func (g *gatingSequences) minimum(initial int64) int64 {
	min := initial
	for _, s := range g.snapshot() {
		if v := s.Get(); v < min {
			min = v
		}
	}
	return min
}
