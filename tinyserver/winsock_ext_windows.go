// File: tinyserver/winsock_ext_windows.go
//go:build windows

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DisconnectEx is a Winsock extension function reached only through a
// per-socket WSAIoctl (SIO_GET_EXTENSION_FUNCTION_POINTER) lookup —
// golang.org/x/sys/windows does not wrap it, the same situation Go's
// own net package solves internally with the identical technique.
// Grounded on spec.md §4.1's "Detects at init which *Ex functions are
// available via WSAIoctl; binds the concrete op pointers" — of the
// four Ex functions that WSAIoctl can hand back this way, only
// DisconnectEx has a caller here: disconnectSocket uses it for the
// TF_REUSE_SOCKET path, and accept/connect/send-file all go through
// the Simple (blocking-goroutine and ReadAt-then-WSASend) paths this
// module adapts instead, per the DESIGN.md note on that choice.
package tinyserver

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

const sioGetExtensionFunctionPointer = windows.IOC_INOUT | windows.IOC_WS2 | 6

var wsaidDisconnectEx = windows.GUID{Data1: 0x7fda2e11, Data2: 0x8630, Data3: 0x436f, Data4: [8]byte{0xa0, 0x31, 0xf5, 0x36, 0xa6, 0xee, 0xc1, 0x57}}

type winsockExtFns struct {
	disconnectEx uintptr

	// hasDisconnectEx reports whether DisconnectEx was successfully
	// loaded on this OS; disconnectSocket falls back to terminateConn
	// when false.
	hasDisconnectEx bool
}

var (
	extFnsOnce sync.Once
	extFns     winsockExtFns
	extFnsErr  error
)

func loadWinsockExtFns(sock windows.Handle) (*winsockExtFns, error) {
	extFnsOnce.Do(func() {
		load := func(guid *windows.GUID) (uintptr, bool) {
			var fn uintptr
			var bytesReturned uint32
			err := windows.WSAIoctl(
				sock,
				sioGetExtensionFunctionPointer,
				(*byte)(unsafe.Pointer(guid)),
				uint32(unsafe.Sizeof(*guid)),
				(*byte)(unsafe.Pointer(&fn)),
				uint32(unsafe.Sizeof(fn)),
				&bytesReturned,
				nil,
				0,
			)
			return fn, err == nil
		}

		extFns.disconnectEx, extFns.hasDisconnectEx = load(&wsaidDisconnectEx)
	})
	return &extFns, extFnsErr
}

// callDisconnectEx invokes the loaded DisconnectEx pointer: BOOL
// DisconnectEx(SOCKET s, LPOVERLAPPED lpOverlapped, DWORD dwFlags, DWORD
// reserved). TF_REUSE_SOCKET keeps the socket valid for reuse.
func (f *winsockExtFns) callDisconnectEx(sock windows.Handle, overlapped *windows.Overlapped, flags uint32) error {
	const tfReuseSocket = 0x02
	r1, _, err := syscallN(f.disconnectEx,
		uintptr(sock), uintptr(unsafe.Pointer(overlapped)), uintptr(flags|tfReuseSocket), 0,
	)
	if r1 == 0 {
		return err
	}
	return nil
}
