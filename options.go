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

import "github.com/ringbus/ringbus/logging"

// Config carries the exhaustive set of configuration options a RingBuffer
// accepts. Hosts build one through Option functions rather than populating
// the struct directly, mirroring the functional-options style used
// throughout the rest of the teacher's codebase.
type Config struct {
	ProducerMode  ProducerMode
	WaitStrategy  WaitStrategy
	WorkBatchSize int64
	Logger        logging.Logger
}

func newConfig(opts ...Option) *Config {
	cfg := &Config{
		ProducerMode:  SingleProducer,
		WaitStrategy:  NewBlockingWaitStrategy(),
		WorkBatchSize: 1,
		Logger:        logging.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a RingBuffer or worker pool at construction time.
type Option func(*Config)

// WithProducerMode selects the single- or multi-producer sequencer.
func WithProducerMode(mode ProducerMode) Option {
	return func(c *Config) { c.ProducerMode = mode }
}

// WithWaitStrategy selects the consumer wait strategy. A single instance
// may be shared by multiple barriers under one ring buffer.
func WithWaitStrategy(ws WaitStrategy) Option {
	return func(c *Config) { c.WaitStrategy = ws }
}

// WithWorkBatchSize records n as Config.WorkBatchSize. RingBuffer
// construction ignores it, and NewWorkerPool takes its claim size as its
// own workBatchSize argument; nothing in this package reads this value.
func WithWorkBatchSize(n int64) Option {
	return func(c *Config) { c.WorkBatchSize = n }
}

// WithLogger records l as Config.Logger. The built-in exception handlers
// log through logging.GetDefaultLogger() (or their own Logger field) and
// do not read this value.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
