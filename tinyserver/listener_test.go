// File: tinyserver/listener_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package tinyserver

import "testing"

func TestListenerRegistry_AddGrowsOnly(t *testing.T) {
	r := newListenerRegistry()
	if len(r.snapshot()) != 0 {
		t.Fatal("fresh registry should be empty")
	}

	a := &Listener{Protocol: TCPv4, Port: 8080}
	b := &Listener{Protocol: UDPv6, Port: 9090}
	r.add(a)
	r.add(b)

	got := r.snapshot()
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("snapshot = %v, want [a, b] in insertion order", got)
	}
}

func TestListenerRegistry_SnapshotIsACopy(t *testing.T) {
	r := newListenerRegistry()
	r.add(&Listener{Protocol: TCPv4, Port: 1})

	snap := r.snapshot()
	snap[0] = nil

	if r.snapshot()[0] == nil {
		t.Fatal("mutating a snapshot must not affect the registry's backing slice")
	}
}
