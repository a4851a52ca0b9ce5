// File: cmd/echoserver/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Demo program wiring package tinyserver and package httpparse into a
// minimal HTTP/1.1 echo server (SPEC_FULL.md's supplemented "worked
// demo" feature). Grounded on examples/lowlevel/echo/main.go's flag
// parsing and signal handling, and examples/echo/main.go's plain
// accept-loop-plus-goroutine shape, reworked around tinyserver's
// ts_io/work-queue model instead of net.Listener.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robertofig/tinyserver-go/httpparse"
	"github.com/robertofig/tinyserver-go/tinyserver"
)

const (
	recvBufSize = 8192
	serverName  = "tinyserver-go/echo"
)

// conn tracks the per-connection state a ts_io's internalData cannot
// hold (it is backend-private): the accumulated receive buffer and the
// in-place request view being built up across incomplete parses.
type conn struct {
	buf      []byte
	received int
	req      httpparse.Request
	sendBuf  []byte
}

func main() {
	addr := flag.Int("port", 9001, "TCP listen port")
	workers := flag.Int("workers", 4, "number of WaitOnIoQueue worker goroutines")
	flag.Parse()

	srv, err := tinyserver.NewServer(
		tinyserver.WithWorkers(*workers),
		tinyserver.WithOnError(func(err error) {
			fmt.Fprintf(os.Stderr, "echoserver: %v\n", err)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "NewServer error: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	listener, err := srv.AddListeningSocket(tinyserver.TCPv4, *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "AddListeningSocket error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("echo server listening on :%d\n", *addr)

	conns := &connTable{byIo: make(map[*tinyserver.TsIo]*conn)}

	go acceptLoop(srv, listener, conns)

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerLoop(srv, conns)
		}()
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			srv.DrainDeferredCloses()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("shutting down echo server...")
}

// connTable maps a live ts_io to its echo-server-level state. A plain
// mutex-guarded map, not sync.Map: the key set is bounded by
// MaxConcurrentConns and churns constantly, which favors a regular map.
type connTable struct {
	mu   sync.Mutex
	byIo map[*tinyserver.TsIo]*conn
}

func (t *connTable) put(io *tinyserver.TsIo, c *conn) {
	t.mu.Lock()
	t.byIo[io] = c
	t.mu.Unlock()
}

func (t *connTable) get(io *tinyserver.TsIo) *conn {
	t.mu.Lock()
	c := t.byIo[io]
	t.mu.Unlock()
	return c
}

func (t *connTable) remove(io *tinyserver.TsIo) {
	t.mu.Lock()
	delete(t.byIo, io)
	t.mu.Unlock()
}

// acceptLoop is the single serialized caller of ListenForConnections
// (Server.ListenForConnections' contract: not safe for concurrent callers).
func acceptLoop(srv *tinyserver.Server, l *tinyserver.Listener, conns *connTable) {
	for {
		ready, err := srv.ListenForConnections()
		if err != nil {
			return
		}
		io := tinyserver.NewTsIo()
		c := &conn{buf: make([]byte, recvBufSize)}
		if err := srv.AcceptConn(ready, io); err != nil {
			continue
		}
		conns.put(io, c)
		_ = l // single listener in this demo; ready == l
	}
}

// workerLoop is one of the pool of goroutines draining the shared work
// queue, dispatching each completed ts_io by its Operation (spec.md
// §4.4's state machine).
func workerLoop(srv *tinyserver.Server, conns *connTable) {
	for {
		io := srv.WaitOnIoQueue()
		if io == nil {
			return
		}
		c := conns.get(io)
		if c == nil {
			continue
		}

		switch {
		case io.Status == tinyserver.StatusError || io.Status == tinyserver.StatusAborted:
			closeConn(srv, io, conns)

		case io.Operation == tinyserver.OpAccept:
			if err := srv.RecvData(io, c.buf[c.received:]); err != nil {
				closeConn(srv, io, conns)
			}

		case io.Operation == tinyserver.OpRecvData:
			handleRecv(srv, io, c, conns)

		case io.Operation == tinyserver.OpSendData, io.Operation == tinyserver.OpSendFile:
			closeConn(srv, io, conns)

		default:
			closeConn(srv, io, conns)
		}
	}
}

func handleRecv(srv *tinyserver.Server, io *tinyserver.TsIo, c *conn, conns *connTable) {
	if io.BytesTransferred == 0 {
		closeConn(srv, io, conns)
		return
	}
	c.received += io.BytesTransferred

	result := httpparse.ParseHeader(c.buf[:c.received], &c.req)
	switch result {
	case httpparse.HeaderIncomplete:
		if c.received >= len(c.buf) {
			respond(srv, io, c, 431, false)
			return
		}
		if err := srv.RecvData(io, c.buf[c.received:]); err != nil {
			closeConn(srv, io, conns)
		}

	case httpparse.OK:
		respond(srv, io, c, 200, true)

	case httpparse.HeaderMalicious:
		respond(srv, io, c, 400, false)

	case httpparse.TooManyHeaders:
		respond(srv, io, c, 431, false)

	default: // HeaderInvalid
		respond(srv, io, c, 400, false)
	}
}

// respond crafts and sends a response header. The payload echoed back
// is the request's own path (a trivial body, enough to exercise
// PayloadSize/PayloadType end to end); ok selects 200 vs. an error
// status built the same way via CraftResponseHeader.
func respond(srv *tinyserver.Server, io *tinyserver.TsIo, c *conn, status int, ok bool) {
	now := time.Now()
	var payload []byte
	if ok {
		payload = append([]byte(nil), c.req.Path()...)
	}

	c.sendBuf = httpparse.CraftResponseHeader(c.sendBuf[:0], httpparse.Response{
		Version:     "HTTP/1.1",
		StatusCode:  status,
		KeepAlive:   false,
		ServerName:  serverName,
		PayloadSize: len(payload),
		PayloadType: "text/plain",
	}, now)
	c.sendBuf = append(c.sendBuf, payload...)

	if err := srv.SendData(io, c.sendBuf); err != nil {
		srv.TerminateConn(io)
	}
}

func closeConn(srv *tinyserver.Server, io *tinyserver.TsIo, conns *connTable) {
	srv.DisconnectSocket(io)
	conns.remove(io)
}
