// File: tinyserver/io_linux.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion backend — Linux epoll + synthetic completions (spec
// component C5, spec.md §4.2). Grounded on reactor/epoll_reactor.go's
// epollReactor (Register/Unregister/Poll/Close shape) combined with
// internal/transport/transport_linux.go's nonblocking-socket idioms,
// reworked onto golang.org/x/sys/unix per SPEC_FULL.md's domain-stack
// wiring and onto the ts_io/work-queue model spec.md requires instead
// of hioload-ws's WebSocket transport abstraction.
package tinyserver

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// linuxIoData is the backend-private scratch a TsIo's internalData
// holds on Linux (spec.md §3: "Linux holds a small work-type tag").
type linuxIoData struct {
	eventMask uint32
	synthetic bool // true for accept completions enqueued without an epoll event
}

type linuxBackend struct {
	registry *listenerRegistry
	queue    *workQueue
	cfg      *Config

	acceptEpfd int
	ioEpfd     int

	acceptMu     sync.Mutex
	acceptEvents []unix.EpollEvent
	acceptCursor int
	acceptCount  int

	connMu       sync.Mutex
	connByFd     map[int]*TsIo
	listenerByFd map[int]*Listener

	sendFileHandles sync.Map // map[*TsIo]*os.File

	deferred *deferredCloseQueue

	closed chan struct{}
}

func newPlatformBackend(q *workQueue, cfg *Config, deferred *deferredCloseQueue) (ioBackend, error) {
	acceptEpfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1(accept): %w", err)
	}
	ioEpfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(acceptEpfd)
		return nil, fmt.Errorf("epoll_create1(io): %w", err)
	}

	b := &linuxBackend{
		registry:     newListenerRegistry(),
		queue:        q,
		cfg:          cfg,
		acceptEpfd:   acceptEpfd,
		ioEpfd:       ioEpfd,
		acceptEvents: make([]unix.EpollEvent, 128),
		connByFd:     make(map[int]*TsIo),
		listenerByFd: make(map[int]*Listener),
		deferred:     deferred,
		closed:       make(chan struct{}),
	}
	go b.ioEventThread()
	return b, nil
}

func (b *linuxBackend) addListeningSocket(protocol Protocol, port int) (*Listener, error) {
	fd, err := newListeningSocket(protocol, b.cfg.AcceptBacklog)
	if err != nil {
		return nil, err
	}
	if err := bindAndListen(fd, protocol, port, b.cfg.AcceptBacklog); err != nil {
		unix.Close(fd)
		return nil, err
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(b.acceptEpfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("epoll_ctl add(accept): %w", err)
	}

	l := &Listener{socket: uintptr(fd), Protocol: protocol, Port: port, sockaddrSize: 16}
	b.registry.add(l)

	b.connMu.Lock()
	b.listenerByFd[fd] = l
	b.connMu.Unlock()

	return l, nil
}

// listenForConnections is the stateful iterator spec.md §4.3
// describes: a cursor walks the last epoll_wait's event array,
// returning the first listener with a pending accept; when drained it
// blocks again.
func (b *linuxBackend) listenForConnections() (*Listener, error) {
	b.acceptMu.Lock()
	defer b.acceptMu.Unlock()

	for {
		for b.acceptCursor < b.acceptCount {
			ev := b.acceptEvents[b.acceptCursor]
			b.acceptCursor++
			if ev.Events&unix.EPOLLIN == 0 {
				continue
			}
			b.connMu.Lock()
			l, ok := b.listenerByFd[int(ev.Fd)]
			b.connMu.Unlock()
			if ok {
				return l, nil
			}
		}

		n, err := unix.EpollWait(b.acceptEpfd, b.acceptEvents, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, fmt.Errorf("epoll_wait(accept): %w", err)
		}
		b.acceptCursor = 0
		b.acceptCount = n
	}
}

// acceptConn calls accept4(SOCK_NONBLOCK|SOCK_CLOEXEC), registers the
// new socket with the I/O epoll instance, and enqueues the accepted
// ts_io directly — Accept completes synchronously under the readiness
// model (spec.md §4.2).
func (b *linuxBackend) acceptConn(l *Listener, io *TsIo) error {
	fd, sa, err := unix.Accept4(int(l.socket), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN {
			return ErrListenerDrained
		}
		io.Status = StatusError
		return fmt.Errorf("accept4: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLONESHOT, Fd: int32(fd)}
	if err := unix.EpollCtl(b.ioEpfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		unix.Close(fd)
		return fmt.Errorf("epoll_ctl add(io): %w", err)
	}

	io.socket = uintptr(fd)
	io.Status = StatusConnected
	io.Operation = OpAccept
	io.BytesTransferred = 0
	io.internalData = &linuxIoData{synthetic: true}
	io.remoteAddr = sockAddrFromUnix(sa)

	b.connMu.Lock()
	b.connByFd[fd] = io
	b.connMu.Unlock()

	return b.queue.sendToIoQueue(io)
}

func sockAddrFromUnix(sa unix.Sockaddr) SockAddr {
	var out SockAddr
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		out.Bytes[0] = 2 // AF_INET
		out.Bytes[2] = byte(a.Port >> 8)
		out.Bytes[3] = byte(a.Port)
		copy(out.Bytes[4:8], a.Addr[:])
		out.Size = 16
	case *unix.SockaddrInet6:
		out.Bytes[0] = 10 // AF_INET6
		out.Bytes[2] = byte(a.Port >> 8)
		out.Bytes[3] = byte(a.Port)
		copy(out.Bytes[8:24], a.Addr[:])
		out.Size = 28
	}
	return out
}

// createConn creates a nonblocking socket of the given protocol and
// registers it with the I/O epoll instance for writability, marking io
// (Connected,Create). It takes no remote address and does not connect
// the socket to any peer.
func (b *linuxBackend) createConn(protocol Protocol, io *TsIo) error {
	fd, err := newClientSocket(protocol)
	if err != nil {
		io.Status = StatusError
		return err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLOUT | unix.EPOLLONESHOT, Fd: int32(fd)}
	if err := unix.EpollCtl(b.ioEpfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		unix.Close(fd)
		return fmt.Errorf("epoll_ctl add(io): %w", err)
	}
	io.socket = uintptr(fd)
	io.Status = StatusConnected
	io.Operation = OpCreate
	io.internalData = &linuxIoData{}

	b.connMu.Lock()
	b.connByFd[fd] = io
	b.connMu.Unlock()
	return nil
}

// recvData re-arms epoll for readability and records the operation;
// the actual recv(2) happens in finishDequeue, on the worker, per
// spec.md §4.2's explicit design note.
func (b *linuxBackend) recvData(io *TsIo, buf []byte) error {
	if io.Operation != OpNone && io.Operation != OpAccept && io.Operation != OpRecvData {
		return ErrOpInFlight
	}
	io.Operation = OpRecvData
	io.IOBuffer = buf
	io.IOSize = len(buf)
	return b.rearm(io, unix.EPOLLIN)
}

// sendData re-arms epoll for writability; the send(2) happens in
// finishDequeue.
func (b *linuxBackend) sendData(io *TsIo, buf []byte) error {
	io.Operation = OpSendData
	io.IOBuffer = buf
	io.IOSize = len(buf)
	return b.rearm(io, unix.EPOLLOUT)
}

// sendFile stashes the file handle in sendFileHandles (keyed by io) and
// re-arms for writability; sendfile(2) happens in finishDequeue.
func (b *linuxBackend) sendFile(io *TsIo, file *os.File, size int) error {
	io.Operation = OpSendFile
	io.IOSize = size
	data, _ := io.internalData.(*linuxIoData)
	if data == nil {
		data = &linuxIoData{}
	}
	io.internalData = data
	b.sendFileHandles.Store(io, file)
	return b.rearm(io, unix.EPOLLOUT)
}

func (b *linuxBackend) rearm(io *TsIo, events uint32) error {
	ev := unix.EpollEvent{Events: events | unix.EPOLLONESHOT, Fd: int32(io.socket)}
	if err := unix.EpollCtl(b.ioEpfd, unix.EPOLL_CTL_MOD, int(io.socket), &ev); err != nil {
		return fmt.Errorf("epoll_ctl mod: %w", err)
	}
	return nil
}

// disconnectSocket shuts down and deregisters the socket; on Linux the
// descriptor does not survive for reuse (spec.md §4.4). If the I/O
// event thread still has this fd mid-dispatch, EPOLL_CTL_DEL fails and
// the final close is deferred to DrainDeferredCloses rather than
// closing the fd out from under a pending completion.
func (b *linuxBackend) disconnectSocket(io *TsIo) error {
	if !io.Valid() {
		return nil
	}
	fd := int(io.socket)
	unix.Shutdown(fd, unix.SHUT_RDWR)
	if err := unix.EpollCtl(b.ioEpfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		io.Status = StatusDisconnected
		b.deferred.push(io)
		return nil
	}
	return b.closeSocket(io, StatusDisconnected)
}

// terminateConn is the only path guaranteed to close the descriptor.
func (b *linuxBackend) terminateConn(io *TsIo) error {
	return b.closeSocket(io, StatusNone)
}

func (b *linuxBackend) closeSocket(io *TsIo, finalStatus Status) error {
	if !io.Valid() {
		return nil
	}
	fd := int(io.socket)
	unix.Shutdown(fd, unix.SHUT_RDWR)
	unix.EpollCtl(b.ioEpfd, unix.EPOLL_CTL_DEL, fd, nil)
	err := unix.Close(fd)

	b.connMu.Lock()
	delete(b.connByFd, fd)
	b.connMu.Unlock()
	b.sendFileHandles.Delete(io)

	io.socket = invalidSocket
	io.Status = finalStatus
	io.Operation = OpTerminate
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (b *linuxBackend) close() error {
	close(b.closed)
	unix.Close(b.acceptEpfd)
	unix.Close(b.ioEpfd)
	return nil
}

// ioEventThread is the dedicated I/O event thread spec.md §4.2
// describes: it loops on epoll_wait over the connected-socket
// instance, and for each ready fd pushes the ts_io onto the work ring
// with the event mask recorded for finishDequeue to act on.
func (b *linuxBackend) ioEventThread() {
	events := make([]unix.EpollEvent, 128)
	for {
		select {
		case <-b.closed:
			return
		default:
		}
		n, err := unix.EpollWait(b.ioEpfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			fmt.Fprintf(os.Stderr, "tinyserver: epoll_wait(io): %v\n", err)
			continue
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			b.connMu.Lock()
			io, ok := b.connByFd[fd]
			b.connMu.Unlock()
			if !ok {
				continue
			}
			io.internalData = &linuxIoData{eventMask: events[i].Events}
			if err := b.queue.sendToIoQueue(io); err != nil {
				fmt.Fprintf(os.Stderr, "tinyserver: work queue full, dropping completion for fd %d\n", fd)
			}
		}
	}
}

// finishDequeue performs the actual recv/send/sendfile syscall on the
// worker goroutine, per spec.md §4.2's table, mapping the event mask
// recorded by ioEventThread onto bytes_transferred/status.
func (b *linuxBackend) finishDequeue(io *TsIo) {
	data, _ := io.internalData.(*linuxIoData)
	if data == nil || data.synthetic {
		return // accept completions already carry their final state
	}

	fd := int(io.socket)
	switch {
	case data.eventMask&unix.EPOLLERR != 0:
		io.Status = StatusError
		io.BytesTransferred = 0
	case data.eventMask&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0:
		io.Status = StatusAborted
		io.BytesTransferred = 0
	case data.eventMask&unix.EPOLLIN != 0 && (io.Operation == OpRecvData || io.Operation == OpAccept):
		n, _, err := unix.Recvfrom(fd, io.IOBuffer, unix.MSG_DONTWAIT)
		switch {
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			io.Status = StatusConnected
			io.BytesTransferred = 0
		case err != nil:
			io.Status = StatusError
		case n == 0:
			io.Status = StatusAborted
		default:
			io.BytesTransferred = n
		}
	case data.eventMask&unix.EPOLLOUT != 0 && (io.Operation == OpSendData || io.Operation == OpCreate):
		n, err := unix.Write(fd, io.IOBuffer)
		switch {
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			io.Status = StatusConnected
			io.BytesTransferred = 0
		case err != nil:
			io.Status = StatusError
		default:
			io.BytesTransferred = n
		}
	case data.eventMask&unix.EPOLLOUT != 0 && io.Operation == OpSendFile:
		if v, ok := b.sendFileHandles.Load(io); ok {
			file := v.(*os.File)
			n, err := unix.Sendfile(fd, int(file.Fd()), nil, io.IOSize)
			switch {
			case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
				io.Status = StatusConnected
				io.BytesTransferred = 0
			case err != nil:
				io.Status = StatusError
			default:
				io.BytesTransferred = n
			}
		}
	}
}
