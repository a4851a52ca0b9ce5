// File: httpparse/multipart.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Multipart/form-data body parser (spec component C9). Grounded on the
// same in-place, no-copy discipline as header.go/headerblock.go, but the
// descriptor here stores *offsets* into already-present bytes rather
// than length-prefixing bytes that sit immediately adjacent (name,
// filename and data each live wherever their line put them; nothing is
// moved). Field descriptors are written over the first
// descriptorSize bytes of each field's own "Content-Disposition" start
// line, per spec.md §4.6's "written into the body buffer at the
// field's start line."
package httpparse

import "bytes"

// descriptorSize is the fixed byte width of one packed field descriptor:
// isFile(1) + nameOff(2) + nameLen(1) + filenameOff(2) + filenameLen(1)
// + dataOff(4) + dataLen(4) + nextFieldOff(4) = 19 bytes. All offsets
// are little-endian and relative to the descriptor's own anchor
// position.
const descriptorSize = 19

// Form is the result of parsing a multipart/form-data body: a linked
// chain of field descriptors anchored in the body buffer.
type Form struct {
	Body       []byte
	FieldCount int
	firstField int
	Complete   bool
}

// FormField is a decoded view of one multipart field. Name, Filename and
// Data alias Body directly; no copying.
type FormField struct {
	IsFile   bool
	Name     []byte
	Filename []byte
	Data     []byte
}

// ParseForm extracts the boundary from the Content-Type header value and
// parses body into a Form, searching for the token "--" + boundary.
// contentType is a string and is not modified; only body is written to.
func ParseForm(contentType string, body []byte) (*Form, bool) {
	boundary, ok := extractBoundary(contentType)
	if !ok {
		return nil, false
	}
	token := append([]byte("--"), boundary...)

	first := bytes.Index(body, token)
	if first < 0 {
		return nil, false
	}
	firstTokenEnd := first + len(token)

	form := &Form{Body: body, firstField: -1}

	if isClosingBoundary(body, firstTokenEnd) {
		form.Complete = true
		return form, true
	}
	cursor := skipCRLF(body, firstTokenEnd)

	for {
		if cursor >= len(body) {
			return nil, false
		}

		anchor := cursor
		isFile, nameOff, nameLen, filenameOff, filenameLen, afterHeaders, ok := parseFieldHeaders(body, anchor)
		if !ok {
			return nil, false
		}

		dataStart := afterHeaders
		boundaryIdx := bytes.Index(body[dataStart:], token)
		if boundaryIdx < 0 {
			return nil, false
		}
		dataEnd := trimTrailingCRLF(body, dataStart, dataStart+boundaryIdx)

		// tokenEnd is where the boundary token was actually found; the
		// closing "--" marker, if present, sits right here. Checking
		// any later position (e.g. after skipCRLF) finds nothing, since
		// a closing boundary has no trailing CRLF to skip.
		tokenEnd := dataStart + boundaryIdx + len(token)
		closing := isClosingBoundary(body, tokenEnd)
		nextAnchor := skipCRLF(body, tokenEnd)

		// The descriptor holds name/filename lengths in one byte and
		// their offsets in two; reject fields whose metadata won't fit.
		if nameLen > 0xFF || nameOff-anchor > 0xFFFF ||
			(isFile && (filenameLen > 0xFF || filenameOff-anchor > 0xFFFF)) {
			return nil, false
		}

		writeDescriptor(body, anchor, isFile,
			nameOff-anchor, nameLen,
			filenameOff-anchor, filenameLen,
			dataStart-anchor, dataEnd-dataStart,
			nextAnchor-anchor)

		if form.firstField < 0 {
			form.firstField = anchor
		}
		form.FieldCount++

		if closing {
			form.Complete = true
			return form, true
		}
		cursor = nextAnchor
	}
}

// isClosingBoundary reports whether the two bytes immediately after a
// matched boundary token are "--", marking the multipart epilogue
// rather than another field.
func isClosingBoundary(body []byte, tokenEnd int) bool {
	return tokenEnd+1 < len(body) && body[tokenEnd] == '-' && body[tokenEnd+1] == '-'
}

// extractBoundary finds "boundary=" in the Content-Type value and
// returns the boundary value, without surrounding quotes. It works on a
// private byte copy of contentType: the two '-' bytes it writes before
// the value land in that copy only, and the caller's string is unchanged.
func extractBoundary(contentType string) (string, bool) {
	const marker = "boundary="
	ctBytes := []byte(contentType)
	idx := bytes.Index(ctBytes, []byte(marker))
	if idx < 0 {
		return "", false
	}
	valueStart := idx + len(marker)
	rest := ctBytes[valueStart:]
	if len(rest) > 0 && rest[0] == '"' {
		rest = rest[1:]
		valueStart++
	}
	end := bytes.IndexAny(rest, "\"; \r\n")
	if end < 0 {
		end = len(rest)
	}
	boundary := string(rest[:end])
	if boundary == "" {
		return "", false
	}
	if valueStart >= 2 {
		ctBytes[valueStart-2] = '-'
		ctBytes[valueStart-1] = '-'
	}
	return boundary, true
}

// parseFieldHeaders reads the FirstLine/SecondLine/ThirdLine state
// machine (spec.md §4.7 steps 3-4): Content-Disposition (required, must
// carry name= and optionally filename=), any further field-scoped
// header lines (Content-Type/charset, skipped structurally), then the
// blank line ending the field's own header block. Returned offsets are
// absolute positions into body.
func parseFieldHeaders(body []byte, pos int) (isFile bool, nameOff, nameLen, filenameOff, filenameLen, after int, ok bool) {
	line, afterLine, ok := readLine(body, pos)
	if !ok {
		return false, 0, 0, 0, 0, 0, false
	}
	if !bytes.Contains(line, []byte("Content-Disposition")) {
		return false, 0, 0, 0, 0, 0, false
	}
	nOff, nLen, hasName := extractQuoted(body, pos, "name=")
	fOff, fLen, hasFile := extractQuoted(body, pos, "filename=")
	if !hasName {
		return false, 0, 0, 0, 0, 0, false
	}
	pos = afterLine

	for {
		line, afterLine, ok = readLine(body, pos)
		if !ok {
			return false, 0, 0, 0, 0, 0, false
		}
		if len(line) == 0 {
			return hasFile, nOff, nLen, fOff, fLen, afterLine, true
		}
		pos = afterLine
	}
}

func readLine(body []byte, pos int) (line []byte, after int, ok bool) {
	idx := bytes.Index(body[pos:], []byte("\r\n"))
	if idx < 0 {
		return nil, 0, false
	}
	return body[pos : pos+idx], pos + idx + 2, true
}

// extractQuoted finds marker within the line starting at lineStart and
// returns the absolute offset and length of the quoted value that
// follows it.
func extractQuoted(body []byte, lineStart int, marker string) (off, length int, ok bool) {
	lineEnd := bytes.Index(body[lineStart:], []byte("\r\n"))
	if lineEnd < 0 {
		return 0, 0, false
	}
	line := body[lineStart : lineStart+lineEnd]
	idx := bytes.Index(line, []byte(marker))
	if idx < 0 {
		return 0, 0, false
	}
	valueStart := lineStart + idx + len(marker)
	if valueStart >= len(body) || body[valueStart] != '"' {
		return 0, 0, false
	}
	valueStart++
	end := bytes.IndexByte(body[valueStart:], '"')
	if end < 0 {
		return 0, 0, false
	}
	return valueStart, end, true
}

func skipCRLF(body []byte, pos int) int {
	if pos+1 < len(body) && body[pos] == '\r' && body[pos+1] == '\n' {
		return pos + 2
	}
	return pos
}

func trimTrailingCRLF(body []byte, start, end int) int {
	if end-2 >= start && body[end-2] == '\r' && body[end-1] == '\n' {
		return end - 2
	}
	return end
}

// writeDescriptor packs the field metadata into body at anchor, per
// descriptorSize's layout. All offsets passed in are already relative
// to anchor.
func writeDescriptor(body []byte, anchor int, isFile bool, nameOff, nameLen, filenameOff, filenameLen, dataOff, dataLen, nextOff int) {
	d := body[anchor : anchor+descriptorSize]
	if isFile {
		d[0] = 1
	} else {
		d[0] = 0
	}
	putLE16(d[1:3], uint16(nameOff))
	d[3] = byte(nameLen)
	putLE16(d[4:6], uint16(filenameOff))
	d[6] = byte(filenameLen)
	putLE32(d[7:11], uint32(dataOff))
	putLE32(d[11:15], uint32(dataLen))
	putLE32(d[15:19], uint32(nextOff))
}

func putLE32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func getLE32(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
}

func decodeDescriptor(body []byte, anchor int) (field FormField, nextAnchor int) {
	d := body[anchor : anchor+descriptorSize]
	isFile := d[0] == 1
	nameOff := int(getLE16(d[1:3]))
	nameLen := int(d[3])
	filenameOff := int(getLE16(d[4:6]))
	filenameLen := int(d[6])
	dataOff := int(getLE32(d[7:11]))
	dataLen := int(getLE32(d[11:15]))
	nextOff := int(getLE32(d[15:19]))

	field.IsFile = isFile
	field.Name = body[anchor+nameOff : anchor+nameOff+nameLen]
	if isFile {
		field.Filename = body[anchor+filenameOff : anchor+filenameOff+filenameLen]
	}
	field.Data = body[anchor+dataOff : anchor+dataOff+dataLen]
	return field, anchor + nextOff
}

// FieldByIdx walks the field chain by idx (0-based).
func (f *Form) FieldByIdx(idx int) (FormField, bool) {
	if idx < 0 || idx >= f.FieldCount {
		return FormField{}, false
	}
	anchor := f.firstField
	var field FormField
	for i := 0; i <= idx; i++ {
		var next int
		field, next = decodeDescriptor(f.Body, anchor)
		anchor = next
	}
	return field, true
}

// FieldByName walks the field chain looking for an exact name match.
func (f *Form) FieldByName(name string) (FormField, bool) {
	anchor := f.firstField
	for i := 0; i < f.FieldCount; i++ {
		field, next := decodeDescriptor(f.Body, anchor)
		if string(field.Name) == name {
			return field, true
		}
		anchor = next
	}
	return FormField{}, false
}
