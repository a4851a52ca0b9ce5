// File: httpparse/statustext.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpparse

// statusPhrases is the fixed table of standard status phrases spec.md
// §4.8 calls for, covering the 1xx/2xx/3xx/4xx/5xx codes the source
// enumerates.
var statusPhrases = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	300: "Multiple Choices",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// StatusText returns the standard reason phrase for code, or "Unknown
// Status" if code isn't in the fixed table.
func StatusText(code int) string {
	if phrase, ok := statusPhrases[code]; ok {
		return phrase
	}
	return "Unknown Status"
}
