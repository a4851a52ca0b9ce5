// File: httpparse/response_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpparse

import (
	"strings"
	"testing"
	"time"
)

func TestFormatIMFFixdate(t *testing.T) {
	// 2026-07-31 is a Friday.
	tm := time.Date(2026, time.July, 31, 9, 5, 3, 0, time.UTC)
	got := FormatIMFFixdate(tm)
	want := "Fri, 31 Jul 2026 09:05:03 GMT"
	if got != want {
		t.Fatalf("FormatIMFFixdate() = %q, want %q", got, want)
	}
}

func TestCraftResponseHeader_WithPayload(t *testing.T) {
	now := time.Date(2026, time.July, 31, 9, 5, 3, 0, time.UTC)
	r := Response{
		Version:     "HTTP/1.1",
		StatusCode:  200,
		KeepAlive:   true,
		ServerName:  "tinyserver-go",
		PayloadSize: 13,
		PayloadType: "text/plain",
	}
	out := string(CraftResponseHeader(nil, r, now))

	for _, want := range []string{
		"HTTP/1.1 200 OK\r\n",
		"Date: Fri, 31 Jul 2026 09:05:03 GMT\r\n",
		"Server: tinyserver-go\r\n",
		"Access-Control-Allow-Origin: *\r\n",
		"Connection: keep-alive\r\n",
		"Content-Length: 13\r\n",
		"Content-Type: text/plain\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("response missing %q; got:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "\r\n\r\n") {
		t.Errorf("response should end with a blank line when no cookies set, got:\n%s", out)
	}
}

func TestCraftResponseHeader_NoPayloadOmitsContentType(t *testing.T) {
	now := time.Date(2026, time.July, 31, 9, 5, 3, 0, time.UTC)
	r := Response{Version: "HTTP/1.1", StatusCode: 404, KeepAlive: false, ServerName: "tinyserver-go"}
	out := string(CraftResponseHeader(nil, r, now))
	if strings.Contains(out, "Content-Type:") {
		t.Errorf("response with zero-length payload should omit Content-Type, got:\n%s", out)
	}
	if !strings.Contains(out, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("response missing status line, got:\n%s", out)
	}
	if !strings.Contains(out, "Connection: close\r\n") {
		t.Errorf("response missing Connection: close, got:\n%s", out)
	}
}

func TestErrorResponse(t *testing.T) {
	now := time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC)
	out := string(ErrorResponse(400, "tinyserver-go", now))
	if !strings.HasPrefix(out, "HTTP/1.1 400 Bad Request\r\n") {
		t.Fatalf("ErrorResponse(400) = %q, want prefix HTTP/1.1 400 Bad Request", out)
	}
}

func TestStatusText_Unknown(t *testing.T) {
	if got := StatusText(999); got != "Unknown Status" {
		t.Errorf("StatusText(999) = %q, want Unknown Status", got)
	}
}
