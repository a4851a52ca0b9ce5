// File: tinyserver/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Config and functional options, grounded on server/types.go's
// Config/DefaultConfig and server/options.go's ServerOption pattern.
package tinyserver

import (
	"sync/atomic"
)

// Config holds server-wide tunables. The Server reads WorkQueueCapacity,
// AcceptBacklog, MaxConcurrentConns and OnError; Workers, IOBufferSize
// and MaxDequeueBatch are recorded but not read by the Server (spec.md
// §4.5: ring capacity must be at least
// max_concurrent_in_flight_connections + MAX_DEQUEUE).
type Config struct {
	WorkQueueCapacity  int
	AcceptBacklog      int
	Workers            int
	IOBufferSize       int
	MaxDequeueBatch    int
	MaxConcurrentConns int
	OnError            func(error)
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		WorkQueueCapacity:  4096,
		AcceptBacklog:      1024,
		Workers:            4,
		IOBufferSize:       64 * 1024,
		MaxDequeueBatch:    64,
		MaxConcurrentConns: 4096 - 64,
		OnError:            func(error) {},
	}
}

// ServerOption customizes Server construction.
type ServerOption func(*Server)

// WithWorkQueueCapacity overrides the MPMC work ring's capacity.
func WithWorkQueueCapacity(capacity int) ServerOption {
	return func(s *Server) { s.cfg.WorkQueueCapacity = capacity }
}

// WithAcceptBacklog overrides listen()'s backlog argument.
func WithAcceptBacklog(backlog int) ServerOption {
	return func(s *Server) { s.cfg.AcceptBacklog = backlog }
}

// WithWorkers records the intended number of worker goroutines in
// Config.Workers. The Server starts no workers itself; callers run their
// own WaitOnIoQueue loops.
func WithWorkers(n int) ServerOption {
	return func(s *Server) { s.cfg.Workers = n }
}

// WithIOBufferSize records a per-operation buffer size in
// Config.IOBufferSize. The Server does not allocate buffers; callers pass
// their own to RecvData/SendData.
func WithIOBufferSize(n int) ServerOption {
	return func(s *Server) { s.cfg.IOBufferSize = n }
}

// WithOnError installs a hook called, after the stderr log line, for
// errors the Server itself logs: terminate failures during
// DrainDeferredCloses. The backends' reactor loops write their errors to
// stderr only and do not call it (adapted from control/hotreload.go's
// callback-hook idiom).
func WithOnError(fn func(error)) ServerOption {
	return func(s *Server) { s.cfg.OnError = fn }
}

// maxConcurrentConns is the runtime-tunable connection admission ceiling
// (spec.md §5's max_concurrent_in_flight_connections), adapted from
// control/config.go's ConfigStore hot-reload pattern into a single
// atomically-swapped knob rather than a general key/value store — this
// is the only value in scope that an operator plausibly adjusts while
// the server is running.
type maxConcurrentConns struct {
	v atomic.Int64
}

func (m *maxConcurrentConns) Store(n int) { m.v.Store(int64(n)) }
func (m *maxConcurrentConns) Load() int   { return int(m.v.Load()) }

// SetMaxConcurrentConns updates the admission ceiling at runtime.
func (s *Server) SetMaxConcurrentConns(n int) {
	s.maxConns.Store(n)
}
