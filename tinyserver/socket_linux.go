// File: tinyserver/socket_linux.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket factory (spec component C2, Linux half). Grounded on
// internal/transport/transport_linux.go's newTransportInternal, reworked
// to open typed listening sockets for any of spec.md's four protocols
// rather than a single hardcoded TCPv4 client socket.
package tinyserver

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func newListeningSocket(protocol Protocol, backlog int) (fd int, err error) {
	domain := unix.AF_INET
	if protocol.isV6() {
		domain = unix.AF_INET6
	}
	sockType := unix.SOCK_STREAM
	if protocol.isUDP() {
		sockType = unix.SOCK_DGRAM
	}

	fd, err = unix.Socket(domain, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	defer func() {
		if err != nil {
			unix.Close(fd)
		}
	}()

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		return -1, fmt.Errorf("setsockopt SO_REUSEPORT: %w", err)
	}
	if !protocol.isUDP() {
		if err = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return -1, fmt.Errorf("setsockopt TCP_NODELAY: %w", err)
		}
	}
	return fd, nil
}

func bindAndListen(fd int, protocol Protocol, port int, backlog int) error {
	var sa unix.Sockaddr
	if protocol.isV6() {
		sa = &unix.SockaddrInet6{Port: port}
	} else {
		sa = &unix.SockaddrInet4{Port: port}
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	if protocol.isUDP() {
		return nil
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func newClientSocket(protocol Protocol) (fd int, err error) {
	domain := unix.AF_INET
	if protocol.isV6() {
		domain = unix.AF_INET6
	}
	sockType := unix.SOCK_STREAM
	if protocol.isUDP() {
		sockType = unix.SOCK_DGRAM
	}
	fd, err = unix.Socket(domain, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	return fd, nil
}
