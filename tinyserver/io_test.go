// File: tinyserver/io_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package tinyserver

import "testing"

func TestNewTsIo_StartsInvalid(t *testing.T) {
	io := NewTsIo()
	if io.Valid() {
		t.Fatal("freshly constructed ts_io should not be Valid")
	}
	if io.Status != StatusNone || io.Operation != OpNone {
		t.Fatalf("unexpected initial state: %v/%v", io.Status, io.Operation)
	}
}

func TestTsIo_Reset(t *testing.T) {
	io := NewTsIo()
	io.socket = 7
	io.Status = StatusConnected
	io.Operation = OpRecvData
	io.IOBuffer = []byte("x")
	io.IOSize = 1
	io.BytesTransferred = 1
	io.internalData = struct{}{}

	io.Reset()

	if io.Valid() {
		t.Fatal("Reset should leave ts_io invalid")
	}
	if io.Status != StatusNone || io.Operation != OpNone {
		t.Fatalf("Reset left stale status/operation: %v/%v", io.Status, io.Operation)
	}
	if io.IOBuffer != nil || io.IOSize != 0 || io.BytesTransferred != 0 || io.internalData != nil {
		t.Fatal("Reset left stale buffer/transfer/internal state")
	}
}

func TestStatus_String(t *testing.T) {
	cases := map[Status]string{
		StatusNone:         "None",
		StatusDisconnected: "Disconnected",
		StatusConnected:    "Connected",
		StatusAborted:      "Aborted",
		StatusError:        "Error",
		Status(99):         "Unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestOperation_String(t *testing.T) {
	cases := map[Operation]string{
		OpNone:      "None",
		OpAccept:    "Accept",
		OpCreate:    "Create",
		OpDisconnect: "Disconnect",
		OpTerminate: "Terminate",
		OpRecvData:  "RecvData",
		OpSendData:  "SendData",
		OpSendFile:  "SendFile",
		OpPost:      "Post",
		Operation(99): "Unknown",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("Operation(%d).String() = %q, want %q", op, got, want)
		}
	}
}

func TestProtocol_StringAndClassification(t *testing.T) {
	cases := []struct {
		p          Protocol
		wantV6     bool
		wantUDP    bool
		wantString string
	}{
		{TCPv4, false, false, "TCPv4"},
		{UDPv4, false, true, "UDPv4"},
		{TCPv6, true, false, "TCPv6"},
		{UDPv6, true, true, "UDPv6"},
	}
	for _, c := range cases {
		if got := c.p.isV6(); got != c.wantV6 {
			t.Errorf("%v.isV6() = %v, want %v", c.p, got, c.wantV6)
		}
		if got := c.p.isUDP(); got != c.wantUDP {
			t.Errorf("%v.isUDP() = %v, want %v", c.p, got, c.wantUDP)
		}
		if got := c.p.String(); got != c.wantString {
			t.Errorf("%v.String() = %q, want %q", c.p, got, c.wantString)
		}
	}
}
