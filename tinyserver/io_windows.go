// File: tinyserver/io_windows.go
//go:build windows

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion backend — Windows IOCP (spec component C4, spec.md §4.1).
// Grounded on internal/transport/transport_windows.go's IOCP/overlapped
// plumbing and reactor/iocp_reactor.go's GetQueuedCompletionStatus loop,
// reworked onto the ts_io/work-queue model instead of hioload-ws's
// per-connection WebSocket transport.
//
// Adaptation note (recorded in full in DESIGN.md): spec.md's Simple
// accept path describes one thread blocking in WSAAccept per call to
// accept_conn. Go discourages dedicating OS threads to blocking
// syscalls one-at-a-time the way the C source's thread-per-call model
// does; instead each listener gets one long-lived accept goroutine that
// loops on a blocking Accept and hands completed sockets off through a
// channel, which listenForConnections/acceptConn then drain. AcceptEx is
// not loaded or used; every listener gets such a goroutine.
package tinyserver

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsIoData is the backend-private scratch a TsIo's internalData
// holds on Windows (spec.md §3: "Windows holds an OVERLAPPED plus
// SendFile bookkeeping").
type windowsIoData struct {
	overlapped windows.Overlapped
	file       *os.File
	fileBase   []byte // Simple SendFile path: file read once into memory
	fileOffset int
}

type acceptedSocket struct {
	sock windows.Handle
	addr SockAddr
}

type windowsBackend struct {
	iocp     windows.Handle
	registry *listenerRegistry
	queue    *workQueue
	cfg      *Config

	extFns     *winsockExtFns
	extFnsOnce sync.Once

	mu            sync.Mutex
	pendingAccept map[*Listener]chan acceptedSocket
	acceptReady   chan *Listener

	pendingOps sync.Map // map[*windows.Overlapped]*TsIo

	deferred *deferredCloseQueue

	closed chan struct{}
}

func newPlatformBackend(q *workQueue, cfg *Config, deferred *deferredCloseQueue) (ioBackend, error) {
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateIoCompletionPort: %w", err)
	}
	b := &windowsBackend{
		iocp:          iocp,
		registry:      newListenerRegistry(),
		queue:         q,
		cfg:           cfg,
		pendingAccept: make(map[*Listener]chan acceptedSocket),
		acceptReady:   make(chan *Listener, 64),
		deferred:      deferred,
		closed:        make(chan struct{}),
	}
	go b.completionPump()
	return b, nil
}

// completionPump drains the IOCP (spec.md §4.1's wait_on_io_queue
// "drains IOCP directly" on Windows) and feeds the shared work queue,
// so Server.WaitOnIoQueue stays one uniform API across both backends.
func (b *windowsBackend) completionPump() {
	for {
		select {
		case <-b.closed:
			return
		default:
		}
		var bytes uint32
		var key uintptr
		var overlapped *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(b.iocp, &bytes, &key, &overlapped, windows.INFINITE)
		if overlapped == nil {
			if err != nil {
				select {
				case <-b.closed:
					return
				default:
					fmt.Fprintf(os.Stderr, "tinyserver: GetQueuedCompletionStatus: %v\n", err)
				}
			}
			continue
		}

		v, ok := b.pendingOps.LoadAndDelete(overlapped)
		if !ok {
			continue
		}
		io := v.(*TsIo)

		switch {
		case err != nil:
			io.Status = StatusError
		case bytes == 0 && io.Operation == OpRecvData:
			io.Status = StatusAborted
		default:
			io.BytesTransferred = int(bytes)
		}

		if io.Operation == OpSendFile {
			data := io.internalData.(*windowsIoData)
			data.fileOffset += int(bytes)
			if err == nil && data.fileOffset < len(data.fileBase) {
				if perr := b.postSendFileSlice(io); perr == nil {
					continue // more slices to send; not yet a completed ts_io
				}
			}
		}

		if qerr := b.queue.sendToIoQueue(io); qerr != nil {
			fmt.Fprintf(os.Stderr, "tinyserver: work queue full, dropping completion\n")
		}
	}
}

func (b *windowsBackend) addListeningSocket(protocol Protocol, port int) (*Listener, error) {
	sock, err := newWinsockSocket(protocol)
	if err != nil {
		return nil, err
	}
	if err := winsockBindAndListen(sock, protocol, port, b.cfg.AcceptBacklog); err != nil {
		windows.Closesocket(sock)
		return nil, err
	}

	b.extFnsOnce.Do(func() {
		fns, ferr := loadWinsockExtFns(sock)
		if ferr == nil {
			b.extFns = fns
		}
	})

	l := &Listener{socket: uintptr(sock), Protocol: protocol, Port: port, sockaddrSize: 16}
	b.registry.add(l)

	ch := make(chan acceptedSocket, 8)
	b.mu.Lock()
	b.pendingAccept[l] = ch
	b.mu.Unlock()

	go b.acceptLoop(l, ch)
	return l, nil
}

// acceptLoop blocks in Accept on l's socket (the Simple path spec.md
// §4.1 describes) and hands each accepted socket to acceptConn via ch,
// signaling listenForConnections through acceptReady.
func (b *windowsBackend) acceptLoop(l *Listener, ch chan acceptedSocket) {
	for {
		select {
		case <-b.closed:
			return
		default:
		}
		sock, sa, err := windows.Accept(windows.Handle(l.socket))
		if err != nil {
			select {
			case <-b.closed:
				return
			default:
				fmt.Fprintf(os.Stderr, "tinyserver: accept: %v\n", err)
				continue
			}
		}
		ch <- acceptedSocket{sock: sock, addr: sockAddrFromWindows(sa)}
		b.acceptReady <- l
	}
}

func sockAddrFromWindows(sa windows.Sockaddr) SockAddr {
	var out SockAddr
	switch a := sa.(type) {
	case *windows.SockaddrInet4:
		out.Bytes[0] = 2
		out.Bytes[2] = byte(a.Port >> 8)
		out.Bytes[3] = byte(a.Port)
		copy(out.Bytes[4:8], a.Addr[:])
		out.Size = 16
	case *windows.SockaddrInet6:
		out.Bytes[0] = 23
		out.Bytes[2] = byte(a.Port >> 8)
		out.Bytes[3] = byte(a.Port)
		copy(out.Bytes[8:24], a.Addr[:])
		out.Size = 28
	}
	return out
}

// listenForConnections blocks until some listener's accept goroutine
// has a completed socket ready, and returns that listener (spec.md
// §4.3's stateful iterator, adapted onto a channel feed per the note
// above).
func (b *windowsBackend) listenForConnections() (*Listener, error) {
	select {
	case l := <-b.acceptReady:
		return l, nil
	case <-b.closed:
		return nil, ErrServerClosed
	}
}

// acceptConn consumes the socket acceptLoop already accepted for l,
// binds it to IOCP, and enqueues the completion (spec.md §4.1's
// accept_conn_simple, IOCP association step).
func (b *windowsBackend) acceptConn(l *Listener, io *TsIo) error {
	b.mu.Lock()
	ch := b.pendingAccept[l]
	b.mu.Unlock()
	if ch == nil {
		return ErrInvalidSocket
	}

	var accepted acceptedSocket
	select {
	case accepted = <-ch:
	default:
		return ErrListenerDrained
	}

	if _, err := windows.CreateIoCompletionPort(accepted.sock, b.iocp, 0, 0); err != nil {
		windows.Closesocket(accepted.sock)
		return fmt.Errorf("CreateIoCompletionPort: %w", err)
	}

	io.socket = uintptr(accepted.sock)
	io.Status = StatusConnected
	io.Operation = OpAccept
	io.BytesTransferred = 0
	io.internalData = &windowsIoData{}
	io.remoteAddr = accepted.addr

	return b.queue.sendToIoQueue(io)
}

// createConn creates a socket of the given protocol and binds it to the
// IOCP, marking io (Connected,Create). It takes no remote address and does
// not connect the socket to any peer.
func (b *windowsBackend) createConn(protocol Protocol, io *TsIo) error {
	sock, err := newWinsockSocket(protocol)
	if err != nil {
		io.Status = StatusError
		return err
	}
	if _, err := windows.CreateIoCompletionPort(sock, b.iocp, 0, 0); err != nil {
		windows.Closesocket(sock)
		return fmt.Errorf("CreateIoCompletionPort: %w", err)
	}
	io.socket = uintptr(sock)
	io.Status = StatusConnected
	io.Operation = OpCreate
	io.internalData = &windowsIoData{}
	return nil
}

// recvData posts an overlapped WSARecv using the caller's buffer;
// completion is delivered by completionPump via GetQueuedCompletionStatus.
func (b *windowsBackend) recvData(io *TsIo, buf []byte) error {
	if io.Operation != OpNone && io.Operation != OpAccept && io.Operation != OpRecvData {
		return ErrOpInFlight
	}
	io.Operation = OpRecvData
	io.IOBuffer = buf
	io.IOSize = len(buf)

	data, _ := io.internalData.(*windowsIoData)
	if data == nil {
		data = &windowsIoData{}
		io.internalData = data
	}
	data.overlapped = windows.Overlapped{}
	b.pendingOps.Store(&data.overlapped, io)

	wsabuf := windows.WSABuf{Len: uint32(len(buf)), Buf: bufPtr(buf)}
	var received, flags uint32
	err := windows.WSARecv(windows.Handle(io.socket), &wsabuf, 1, &received, &flags, &data.overlapped, nil)
	if err != nil && err != windows.ERROR_IO_PENDING {
		io.Status = StatusError
		return fmt.Errorf("WSARecv: %w", err)
	}
	return nil
}

// sendData posts an overlapped WSASend.
func (b *windowsBackend) sendData(io *TsIo, buf []byte) error {
	io.Operation = OpSendData
	io.IOBuffer = buf
	io.IOSize = len(buf)

	data, _ := io.internalData.(*windowsIoData)
	if data == nil {
		data = &windowsIoData{}
		io.internalData = data
	}
	data.overlapped = windows.Overlapped{}
	b.pendingOps.Store(&data.overlapped, io)

	wsabuf := windows.WSABuf{Len: uint32(len(buf)), Buf: bufPtr(buf)}
	var sent uint32
	err := windows.WSASend(windows.Handle(io.socket), &wsabuf, 1, &sent, 0, &data.overlapped, nil)
	if err != nil && err != windows.ERROR_IO_PENDING {
		io.Status = StatusError
		return fmt.Errorf("WSASend: %w", err)
	}
	return nil
}

// sendFile reads file into memory once (the Simple path, spec.md §4.1:
// "reads the file into memory once... then progressively WSASends
// slices") and posts the first send; completionPump re-posts with the
// advanced pointer until all bytes are out.
func (b *windowsBackend) sendFile(io *TsIo, file *os.File, size int) error {
	buf := make([]byte, size)
	if _, err := file.ReadAt(buf, 0); err != nil {
		io.Status = StatusError
		return fmt.Errorf("ReadAt: %w", err)
	}
	io.Operation = OpSendFile
	io.IOSize = size
	io.internalData = &windowsIoData{file: file, fileBase: buf, fileOffset: 0}
	return b.postSendFileSlice(io)
}

func (b *windowsBackend) postSendFileSlice(io *TsIo) error {
	data := io.internalData.(*windowsIoData)
	remaining := data.fileBase[data.fileOffset:]
	data.overlapped = windows.Overlapped{}
	b.pendingOps.Store(&data.overlapped, io)

	wsabuf := windows.WSABuf{Len: uint32(len(remaining)), Buf: bufPtr(remaining)}
	var sent uint32
	err := windows.WSASend(windows.Handle(io.socket), &wsabuf, 1, &sent, 0, &data.overlapped, nil)
	if err != nil && err != windows.ERROR_IO_PENDING {
		io.Status = StatusError
		return fmt.Errorf("WSASend(file): %w", err)
	}
	return nil
}

func bufPtr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return (*byte)(unsafe.Pointer(&b[0]))
}

// disconnectSocket uses DisconnectEx with TF_REUSE_SOCKET when
// available, keeping the socket valid for reuse; otherwise closes it
// outright (spec.md §4.4). DisconnectEx's own completion is not routed
// through pendingOps/completionPump, so the handle is pushed onto the
// deferred queue as a safety net: DrainDeferredCloses will closesocket
// it once the overlapped disconnect has had time to settle, instead of
// leaving it open indefinitely if reuse never happens.
func (b *windowsBackend) disconnectSocket(io *TsIo) error {
	if !io.Valid() {
		return nil
	}
	sock := windows.Handle(io.socket)
	if b.extFns != nil && b.extFns.hasDisconnectEx {
		var ol windows.Overlapped
		if err := b.extFns.callDisconnectEx(sock, &ol, 0); err == nil {
			io.Status = StatusDisconnected
			io.Operation = OpDisconnect
			b.deferred.push(io)
			return nil
		}
	}
	return b.terminateConn(io)
}

// terminateConn is the only path guaranteed to close the handle.
func (b *windowsBackend) terminateConn(io *TsIo) error {
	if !io.Valid() {
		return nil
	}
	err := windows.Closesocket(windows.Handle(io.socket))
	io.socket = invalidSocket
	io.Status = StatusNone
	io.Operation = OpTerminate
	if err != nil {
		return fmt.Errorf("closesocket: %w", err)
	}
	return nil
}

func (b *windowsBackend) close() error {
	close(b.closed)
	return windows.CloseHandle(b.iocp)
}

// finishDequeue is a no-op on Windows: GetQueuedCompletionStatus (run
// by completionPump, which feeds the shared work queue) already filled
// BytesTransferred before the ts_io reached the ring.
func (b *windowsBackend) finishDequeue(io *TsIo) {}
