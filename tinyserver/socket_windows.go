// File: tinyserver/socket_windows.go
//go:build windows

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket factory (spec component C2, Windows half). Grounded on
// internal/transport/transport_windows.go's newTransportInternal.
package tinyserver

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func newWinsockSocket(protocol Protocol) (windows.Handle, error) {
	family := windows.AF_INET
	if protocol.isV6() {
		family = windows.AF_INET6
	}
	sockType := windows.SOCK_STREAM
	if protocol.isUDP() {
		sockType = windows.SOCK_DGRAM
	}
	proto := windows.IPPROTO_TCP
	if protocol.isUDP() {
		proto = windows.IPPROTO_UDP
	}

	sock, err := windows.Socket(family, sockType, proto)
	if err != nil {
		return windows.InvalidHandle, fmt.Errorf("socket: %w", err)
	}
	if !protocol.isUDP() {
		_ = windows.SetsockoptInt(sock, windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
	}
	return sock, nil
}

func winsockBindAndListen(sock windows.Handle, protocol Protocol, port int, backlog int) error {
	var sa windows.Sockaddr
	if protocol.isV6() {
		sa = &windows.SockaddrInet6{Port: port}
	} else {
		sa = &windows.SockaddrInet4{Port: port}
	}
	if err := windows.Bind(sock, sa); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	if protocol.isUDP() {
		return nil
	}
	if err := windows.Listen(sock, backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
