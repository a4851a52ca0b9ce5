// File: tinyserver/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package tinyserver is the cross-platform async TCP/UDP server core
// (spec.md §1): a uniform operation lifecycle over IOCP on Windows and
// epoll on Linux, reached through one Server type. Grounded on
// server/server.go's facade shape (init/listen/accept/close) but
// stripped of its WebSocket-specific framing — this is the raw
// connection-lifecycle layer spec.md describes, with the HTTP parser
// living one level up in package httpparse.
package tinyserver

import (
	"fmt"
	"os"
	"sync/atomic"
)

// ioBackend is the capability set spec.md §9's REDESIGN FLAGS section
// names explicitly: {accept_conn, create_conn, disconnect, recv, send,
// send_file, wait, post}, chosen once at init_server and stored behind
// one interface value per spec.md's "no virtual dispatch cost in hot
// paths if each worker thread captures the concrete variant by value"
// — in Go, an interface value captured once by NewServer plays that
// role; there is no function-pointer table to assign through.
type ioBackend interface {
	addListeningSocket(protocol Protocol, port int) (*Listener, error)
	listenForConnections() (*Listener, error)
	acceptConn(l *Listener, io *TsIo) error
	createConn(protocol Protocol, io *TsIo) error
	recvData(io *TsIo, buf []byte) error
	sendData(io *TsIo, buf []byte) error
	sendFile(io *TsIo, file *os.File, size int) error
	disconnectSocket(io *TsIo) error
	terminateConn(io *TsIo) error
	close() error

	// finishDequeue runs backend-specific completion work on io right
	// before it is handed back from WaitOnIoQueue. On Linux this is
	// where the actual recv/send/sendfile syscall happens — spec.md
	// §4.2's explicit design choice to run it "here, on the worker"
	// rather than in the reactor thread, trading a second syscall per
	// event for model uniformity with IOCP. On Windows this is a no-op:
	// GetQueuedCompletionStatus already filled BytesTransferred.
	finishDequeue(io *TsIo)
}

// Server is the process-wide singleton spec.md §3 calls "Server info":
// listeners, the accept poller, the work queue, and the concrete
// backend chosen at construction.
type Server struct {
	cfg      *Config
	backend  ioBackend
	queue    *workQueue
	deferred *deferredCloseQueue
	maxConns maxConcurrentConns
	inFlight atomic.Int64
	closed   atomic.Bool
}

// NewServer constructs a Server with the platform's concrete backend
// (init_server in spec.md's naming), applying opts over DefaultConfig.
func NewServer(opts ...ServerOption) (*Server, error) {
	cfg := DefaultConfig()
	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = cfg

	s.queue = newWorkQueue(cfg.WorkQueueCapacity)
	s.maxConns.Store(cfg.MaxConcurrentConns)

	// deferred must exist before the backend, since the backend's
	// disconnectSocket pushes onto it directly; its finalize closure is
	// filled in once the backend it closes through is known.
	s.deferred = newDeferredCloseQueue(nil)

	backend, err := newPlatformBackend(s.queue, cfg, s.deferred)
	if err != nil {
		return nil, fmt.Errorf("tinyserver: backend init: %w", err)
	}
	s.backend = backend
	s.deferred.finalize = func(io *TsIo) {
		if err := s.backend.terminateConn(io); err != nil {
			s.logError(err)
		}
	}
	return s, nil
}

func (s *Server) logError(err error) {
	fmt.Fprintf(os.Stderr, "tinyserver: %v\n", err)
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

// AddListeningSocket opens a typed socket for protocol on port, binds
// it, starts listening, and registers it with the accept-side poller
// (spec.md §4.3's add_listening_socket).
func (s *Server) AddListeningSocket(protocol Protocol, port int) (*Listener, error) {
	return s.backend.addListeningSocket(protocol, port)
}

// ListenForConnections blocks until some listener has an incoming
// accept pending, and returns it (spec.md §4.3's stateful iterator).
// Not safe for concurrent callers, per spec.md §5's ordering
// guarantees — serialize externally if more than one goroutine calls
// this.
func (s *Server) ListenForConnections() (*Listener, error) {
	return s.backend.listenForConnections()
}

// AcceptConn accepts a pending connection on l into io and enqueues io as
// a completed (Connected,Accept) operation (spec.md §4.4). No read is
// issued; the caller submits RecvData after dequeuing it.
func (s *Server) AcceptConn(l *Listener, io *TsIo) error {
	if s.inFlight.Load() >= int64(s.maxConns.Load()) {
		return ErrQueueFull
	}
	if err := s.backend.acceptConn(l, io); err != nil {
		return err
	}
	s.inFlight.Add(1)
	return nil
}

// CreateConn creates a socket of the given protocol, registers it with
// the backend and marks io (Connected,Create). It takes no remote
// address and does not connect the socket to any peer.
func (s *Server) CreateConn(protocol Protocol, io *TsIo) error {
	return s.backend.createConn(protocol, io)
}

// RecvData submits a receive operation on io (nonblocking submit; the
// transfer completes asynchronously).
func (s *Server) RecvData(io *TsIo, buf []byte) error {
	return s.backend.recvData(io, buf)
}

// SendData submits a send operation on io.
func (s *Server) SendData(io *TsIo, buf []byte) error {
	return s.backend.sendData(io, buf)
}

// SendFile submits a file-send operation on io.
func (s *Server) SendFile(io *TsIo, file *os.File, size int) error {
	return s.backend.sendFile(io, file, size)
}

// DisconnectSocket disconnects io's socket; it may survive for reuse
// or be closed outright depending on backend capability (spec.md
// §4.4).
func (s *Server) DisconnectSocket(io *TsIo) error {
	err := s.backend.disconnectSocket(io)
	s.inFlight.Add(-1)
	return err
}

// TerminateConn closes io's socket unconditionally — the only path
// spec.md guarantees closes the descriptor.
func (s *Server) TerminateConn(io *TsIo) error {
	return s.backend.terminateConn(io)
}

// WaitOnIoQueue blocks until a completed ts_io is available and
// returns it (spec.md §4.5's wait_on_io_queue). Safe for concurrent
// callers.
func (s *Server) WaitOnIoQueue() *TsIo {
	io := s.queue.waitOnIoQueue()
	if io != nil {
		s.backend.finishDequeue(io)
	}
	return io
}

// SendToIoQueue enqueues io directly without any syscall-level I/O
// having occurred (spec.md §4.1/§4.2's send_to_io_queue).
func (s *Server) SendToIoQueue(io *TsIo) error {
	return s.queue.sendToIoQueue(io)
}

// DrainDeferredCloses runs terminate_conn on every socket whose
// disconnect could not immediately reclaim its descriptor. Intended to
// be called periodically by a background goroutine, not the hot path.
func (s *Server) DrainDeferredCloses() {
	s.deferred.drain()
}

// Close shuts the server down cooperatively: the backend's reactor
// thread is signaled to stop and its resources released (spec.md §5's
// "close_server... frees arenas and the ring" — in Go, the ring and
// registry are GC-managed, so only the backend's OS-level resources
// need explicit release).
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrServerClosed
	}
	return s.backend.close()
}
