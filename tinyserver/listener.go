// File: tinyserver/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listener registry (spec component C3, spec.md §3/§4.3). Per the Open
// Question decision recorded in DESIGN.md, there is no C-style bump
// arena here: Go's GC already gives stable addressing, so the registry
// is a mutex-guarded, append-only []*Listener exactly mirroring
// spec.md §3's invariant "listeners grows only".
package tinyserver

import "sync"

// Listener is a registered listening socket (spec.md §3). It lives
// until server shutdown and is never removed from the registry once
// added.
type Listener struct {
	socket   uintptr
	Protocol Protocol
	Port     int

	sockaddrSize int

	// acceptState is not set by either backend: Linux keeps its
	// accept-side polling state on linuxBackend, Windows on windowsBackend.
	acceptState any
}

// listenerRegistry is the append-only, mutex-guarded sequence spec.md
// §3 calls "listeners: sequence<Listener>".
type listenerRegistry struct {
	mu        sync.Mutex
	listeners []*Listener
	cursor    int // unused; Linux walks with linuxBackend.acceptCursor
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{}
}

func (r *listenerRegistry) add(l *Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *listenerRegistry) snapshot() []*Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Listener, len(r.listeners))
	copy(out, r.listeners)
	return out
}
