// File: httpparse/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP response header formatter (spec component C10). Grounded on
// spec.md §4.8's craft_http_response_header, writing straight into a
// caller-supplied []byte via append the way the teacher's own
// string-building helpers (e.g. facade response writers) build wire
// frames: no fmt.Sprintf in the hot path, just append.
package httpparse

import (
	"strconv"
	"time"
)

// Response describes one outgoing HTTP/1.x response header, matching
// spec.md §3's "Response" data model. Cookies/PayloadSize mirror
// the source's caller-responsibility split: Cookies, if non-empty, must
// already end with its own blank line; Payload is never written by this
// formatter, only its length and (optional) content type are.
type Response struct {
	Version     string // e.g. "HTTP/1.1"
	StatusCode  int
	KeepAlive   bool
	ServerName  string
	PayloadSize int
	PayloadType string // empty means no Content-Type line
	Cookies     []byte // caller-formatted, including trailing blank line if non-empty
}

// CraftResponseHeader appends the formatted status line and standard
// headers for r onto dst and returns the extended slice, per spec.md
// §4.8's field order. now is passed in explicitly (time.Now() is the
// caller's responsibility) so formatting stays deterministic and
// testable.
func CraftResponseHeader(dst []byte, r Response, now time.Time) []byte {
	dst = append(dst, r.Version...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(r.StatusCode), 10)
	dst = append(dst, ' ')
	dst = append(dst, StatusText(r.StatusCode)...)
	dst = append(dst, "\r\n"...)

	dst = append(dst, "Date: "...)
	dst = append(dst, FormatIMFFixdate(now)...)
	dst = append(dst, "\r\n"...)

	dst = append(dst, "Server: "...)
	dst = append(dst, r.ServerName...)
	dst = append(dst, "\r\n"...)

	dst = append(dst, "Access-Control-Allow-Origin: *\r\n"...)

	dst = append(dst, "Connection: "...)
	if r.KeepAlive {
		dst = append(dst, "keep-alive"...)
	} else {
		dst = append(dst, "close"...)
	}
	dst = append(dst, "\r\n"...)

	dst = append(dst, "Content-Length: "...)
	dst = strconv.AppendInt(dst, int64(r.PayloadSize), 10)
	dst = append(dst, "\r\n"...)

	if r.PayloadSize > 0 && r.PayloadType != "" {
		dst = append(dst, "Content-Type: "...)
		dst = append(dst, r.PayloadType...)
		dst = append(dst, "\r\n"...)
	}

	if len(r.Cookies) > 0 {
		dst = append(dst, r.Cookies...)
	} else {
		dst = append(dst, "\r\n"...)
	}

	return dst
}

var weekdayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
var monthNames = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// FormatIMFFixdate renders t in IMF-fixdate form, "Wkd, DD Mon YYYY
// HH:MM:SS GMT". Per spec.md §9's explicit correction, colons separate
// H:M:S here (the C source omits them; that omission does not conform
// to RFC 7231 and is not reproduced).
func FormatIMFFixdate(t time.Time) string {
	t = t.UTC()
	buf := make([]byte, 0, 29)
	buf = append(buf, weekdayNames[t.Weekday()]...)
	buf = append(buf, ',', ' ')
	buf = appendZeroPadded(buf, t.Day(), 2)
	buf = append(buf, ' ')
	buf = append(buf, monthNames[t.Month()-1]...)
	buf = append(buf, ' ')
	buf = appendZeroPadded(buf, t.Year(), 4)
	buf = append(buf, ' ')
	buf = appendZeroPadded(buf, t.Hour(), 2)
	buf = append(buf, ':')
	buf = appendZeroPadded(buf, t.Minute(), 2)
	buf = append(buf, ':')
	buf = appendZeroPadded(buf, t.Second(), 2)
	buf = append(buf, " GMT"...)
	return string(buf)
}

func appendZeroPadded(dst []byte, v, width int) []byte {
	s := strconv.Itoa(v)
	for len(s) < width {
		s = "0" + s
	}
	return append(dst, s...)
}

// ErrorResponse builds a minimal status-only response (empty payload)
// for status, the idiomatic stand-in for the original demo's fixed
// Reply/Err404 constant strings (see original_source/extra/async.c):
// every byte still flows through CraftResponseHeader rather than being
// hardcoded.
func ErrorResponse(status int, serverName string, now time.Time) []byte {
	return CraftResponseHeader(nil, Response{
		Version:    "HTTP/1.1",
		StatusCode: status,
		KeepAlive:  false,
		ServerName: serverName,
	}, now)
}
