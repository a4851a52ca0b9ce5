// File: tinyserver/sockaddr.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sockaddr envelope and socket-protocol taxonomy (spec component C2 and
// spec.md §3's "Sockaddr envelope").
package tinyserver

// Protocol enumerates the listener protocols spec.md §3 names.
type Protocol int

const (
	TCPv4 Protocol = iota
	UDPv4
	TCPv6
	UDPv6
)

func (p Protocol) String() string {
	switch p {
	case TCPv4:
		return "TCPv4"
	case UDPv4:
		return "UDPv4"
	case TCPv6:
		return "TCPv6"
	case UDPv6:
		return "UDPv6"
	default:
		return "Unknown"
	}
}

func (p Protocol) isV6() bool {
	return p == TCPv6 || p == UDPv6
}

func (p Protocol) isUDP() bool {
	return p == UDPv4 || p == UDPv6
}

// SockAddr is the fixed 28-byte sockaddr envelope (spec.md §3): 28
// bytes covers both the v4 and v6 on-wire sockaddr forms, so every
// backend can treat it uniformly regardless of family.
type SockAddr struct {
	Bytes [28]byte
	Size  int
}
