// File: tinyserver/io.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The ts_io operation state machine (spec component C6, spec.md §4.4).
// Platform-independent: io_linux.go and io_windows.go each mutate a
// TsIo's Status/BytesTransferred/internalData through their own
// completion backend, but the legal-transition shape and the struct
// itself are shared here.
package tinyserver

// Status is a ts_io's connection status (spec.md §3).
type Status int

const (
	StatusNone Status = iota
	StatusDisconnected
	StatusConnected
	StatusAborted
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "None"
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnected:
		return "Connected"
	case StatusAborted:
		return "Aborted"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Operation is the kind of async operation a ts_io currently carries
// (spec.md §3).
type Operation int

const (
	OpNone Operation = iota
	OpAccept
	OpCreate
	OpDisconnect
	OpTerminate
	OpRecvData
	OpSendData
	OpSendFile
	OpPost
)

func (o Operation) String() string {
	switch o {
	case OpNone:
		return "None"
	case OpAccept:
		return "Accept"
	case OpCreate:
		return "Create"
	case OpDisconnect:
		return "Disconnect"
	case OpTerminate:
		return "Terminate"
	case OpRecvData:
		return "RecvData"
	case OpSendData:
		return "SendData"
	case OpSendFile:
		return "SendFile"
	case OpPost:
		return "Post"
	default:
		return "Unknown"
	}
}

// invalidSocket is the platform-independent "no socket attached"
// sentinel (spec.md §3's socket INVALID sentinel).
const invalidSocket = ^uintptr(0)

// TsIo is the single shared unit between caller, backend, and worker
// (spec.md §3's "Connection-operation"). The caller allocates and owns
// it; its address is stable from submission until the completion is
// dequeued. At most one operation may be in flight at a time — enforced
// only by contract, exactly as spec.md documents.
type TsIo struct {
	socket    uintptr
	Status    Status
	Operation Operation

	// IOBuffer/IOSize describe the caller-owned byte region for the
	// operation in flight (for SendFile, IOSize is the file size and the
	// file handle is held by the backend). Unchanged by the backend between
	// submit and completion; BytesTransferred carries the result.
	IOBuffer []byte
	IOSize   int

	BytesTransferred int

	// Backend-private scratch. Linux keeps a small work-type tag here;
	// Windows keeps an OVERLAPPED plus SendFile bookkeeping. Touched by
	// the backend only between submit and dequeue — callers must not
	// read or write it during that window (spec.md §5's
	// shared-resource policy).
	internalData any

	// remoteAddr is filled by accept_conn on completion.
	remoteAddr SockAddr
}

// Reset clears a TsIo for reuse after its operation has been dequeued
// and fully handled.
func (io *TsIo) Reset() {
	io.socket = invalidSocket
	io.Status = StatusNone
	io.Operation = OpNone
	io.IOBuffer = nil
	io.IOSize = 0
	io.BytesTransferred = 0
	io.internalData = nil
}

// NewTsIo returns a TsIo with no socket attached, ready for accept_conn
// or create_conn.
func NewTsIo() *TsIo {
	return &TsIo{socket: invalidSocket}
}

// Valid reports whether this ts_io currently owns a live socket.
func (io *TsIo) Valid() bool {
	return io.socket != invalidSocket
}

// RemoteAddr returns the peer address recorded by the last accept_conn
// completion.
func (io *TsIo) RemoteAddr() SockAddr {
	return io.remoteAddr
}
