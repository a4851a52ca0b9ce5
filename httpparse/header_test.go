// File: httpparse/header_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpparse

import (
	"bytes"
	"testing"
)

func TestParseHeader_SimpleGet(t *testing.T) {
	buf := []byte("GET /index.html?q=1 HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n")
	var r Request
	if res := ParseHeader(buf, &r); res != OK {
		t.Fatalf("ParseHeader() = %v, want OK", res)
	}
	if r.Verb != "GET" {
		t.Errorf("Verb = %q, want GET", r.Verb)
	}
	if r.Version != "HTTP/1.1" {
		t.Errorf("Version = %q, want HTTP/1.1", r.Version)
	}
	if got := string(r.Path()); got != "/index.html" {
		t.Errorf("Path() = %q, want /index.html", got)
	}
	if got := string(r.Query()); got != "q=1" {
		t.Errorf("Query() = %q, want q=1", got)
	}
	if r.NumHeaders != 2 {
		t.Fatalf("NumHeaders = %d, want 2", r.NumHeaders)
	}

	if v, ok := r.HeaderByKey("host"); !ok || string(v) != "example.com" {
		t.Errorf("HeaderByKey(host) = (%q, %v), want (example.com, true)", v, ok)
	}
	if v, ok := r.HeaderByKey("HOST"); !ok || string(v) != "example.com" {
		t.Errorf("HeaderByKey(HOST) = (%q, %v), want case-insensitive match", v, ok)
	}
	if v, ok := r.HeaderByKey("Accept"); !ok || string(v) != "*/*" {
		t.Errorf("HeaderByKey(Accept) = (%q, %v), want (*/*, true)", v, ok)
	}
	if _, ok := r.HeaderByKey("X-Missing"); ok {
		t.Errorf("HeaderByKey(X-Missing) should not be found")
	}

	k, v, ok := r.HeaderByIdx(0)
	if !ok || string(k) != "Host" || string(v) != "example.com" {
		t.Errorf("HeaderByIdx(0) = (%q, %q, %v), want (Host, example.com, true)", k, v, ok)
	}
	k, v, ok = r.HeaderByIdx(1)
	if !ok || string(k) != "Accept" || string(v) != "*/*" {
		t.Errorf("HeaderByIdx(1) = (%q, %q, %v), want (Accept, */*, true)", k, v, ok)
	}
	if _, _, ok := r.HeaderByIdx(2); ok {
		t.Errorf("HeaderByIdx(2) should be out of range")
	}
}

// TestParseHeader_Incremental exercises scenario S3: a partial request
// line must yield HeaderIncomplete, and a second call with the same
// Request and the complete bytes must parse the whole request.
func TestParseHeader_Incremental(t *testing.T) {
	full := "GET /index.html?q=1 HTTP/1.1\r\nHost: x\r\n\r\n"
	first := []byte("GET /ind")

	var r Request
	if res := ParseHeader(first, &r); res != HeaderIncomplete {
		t.Fatalf("ParseHeader(first chunk) = %v, want HeaderIncomplete", res)
	}

	buf := append([]byte(nil), full...)
	if res := ParseHeader(buf, &r); res != OK {
		t.Fatalf("ParseHeader(full) = %v, want OK", res)
	}
	if r.Verb != "GET" || r.Version != "HTTP/1.1" {
		t.Fatalf("Verb/Version = %q/%q, want GET/HTTP/1.1", r.Verb, r.Version)
	}
	if got := string(r.Path()); got != "/index.html" {
		t.Errorf("Path() = %q, want /index.html", got)
	}
	if got := string(r.Query()); got != "q=1" {
		t.Errorf("Query() = %q, want q=1", got)
	}
	if r.NumHeaders != 1 {
		t.Fatalf("NumHeaders = %d, want 1", r.NumHeaders)
	}
	if v, ok := r.HeaderByKey("Host"); !ok || string(v) != "x" {
		t.Errorf("HeaderByKey(Host) = (%q, %v), want (x, true)", v, ok)
	}
}

// TestParseHeader_RecordLayout verifies spec.md property 5: the key-length
// byte precedes the key, and the little-endian value-length u16 occupies
// the colon+OWS slot, with valueLen counting the trailing CRLF.
func TestParseHeader_RecordLayout(t *testing.T) {
	buf := []byte("GET / HTTP/1.1\r\nX-A: 1\r\n\r\n")
	var r Request
	if res := ParseHeader(buf, &r); res != OK {
		t.Fatalf("ParseHeader() = %v, want OK", res)
	}

	recPos := r.FirstHeaderOffset
	keyLen := int(r.Base[recPos])
	if keyLen != len("X-A") {
		t.Fatalf("keyLen byte = %d, want %d", keyLen, len("X-A"))
	}
	keyStart := recPos + 1
	if got := string(r.Base[keyStart : keyStart+keyLen]); got != "X-A" {
		t.Fatalf("key = %q, want X-A", got)
	}
	colon := keyStart + keyLen
	valueLen := int(getLE16(r.Base[colon : colon+2]))
	valueStart := colon + 2
	value := r.Base[valueStart : valueStart+valueLen]
	if !bytes.Equal(value, []byte("1\r\n")) {
		t.Fatalf("stored value = %q, want %q (including CRLF)", value, "1\r\n")
	}
}

func TestParseHeader_TooManyHeaders(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("GET / HTTP/1.1\r\n")
	for i := 0; i < MaxHeaders+1; i++ {
		b.WriteString("X-H: v\r\n")
	}
	b.WriteString("\r\n")

	var r Request
	res := ParseHeader(b.Bytes(), &r)
	if res != TooManyHeaders {
		t.Fatalf("ParseHeader() = %v, want TooManyHeaders", res)
	}
}

func TestParseHeader_Malicious(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"path-traversal", "GET /../../etc/passwd HTTP/1.1\r\n\r\n"},
		{"query-xss", "GET /a?x=<script> HTTP/1.1\r\n\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var r Request
			if res := ParseHeader([]byte(tc.line), &r); res != HeaderMalicious {
				t.Fatalf("ParseHeader(%q) = %v, want HeaderMalicious", tc.line, res)
			}
		})
	}
}

func TestIsPathTraversal(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/a/b/c", false},
		{"/a/./b", false},
		{"/a/../b", false},
		{"/../a", true},
		{"/a/../../b", true},
		{"/a/b/../../..", true},
	}
	for _, tc := range cases {
		if got := isPathTraversal([]byte(tc.path)); got != tc.want {
			t.Errorf("isPathTraversal(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestParseHeader_HTTP09(t *testing.T) {
	buf := []byte("GET /old\r\n\r\n")
	var r Request
	if res := ParseHeader(buf, &r); res != OK {
		t.Fatalf("ParseHeader() = %v, want OK", res)
	}
	if r.Version != "HTTP/0.9" {
		t.Errorf("Version = %q, want HTTP/0.9", r.Version)
	}
	if got := string(r.Path()); got != "/old" {
		t.Errorf("Path() = %q, want /old", got)
	}
}

func TestParseHeader_BadVersion(t *testing.T) {
	buf := []byte("GET / HTTP/9.9\r\n\r\n")
	var r Request
	if res := ParseHeader(buf, &r); res != HeaderInvalid {
		t.Fatalf("ParseHeader() = %v, want HeaderInvalid", res)
	}
}
