// File: httpparse/headerblock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The in-place header record chain: parseHeaderBlock writes a 1-byte
// key-length prefix into the byte that used to terminate the previous
// line, and a little-endian uint16 value-length prefix into the two
// bytes of "': '" (colon + one byte of OWS) that used to separate key
// from value. Getters walk the same arithmetic to recover records
// without ever re-scanning for ':' or CRLF.
package httpparse

import "bytes"

// parseHeaderBlock resumes header parsing at r.HeaderSize (the byte
// offset of the next header line, or the blank line that ends the
// block). r.FirstHeaderOffset must already be set.
func parseHeaderBlock(buf []byte, r *Request) ParseResult {
	cursor := r.HeaderSize

	for {
		if cursor+2 > len(buf) {
			r.HeaderSize = cursor
			return HeaderIncomplete
		}
		if buf[cursor] == '\r' && buf[cursor+1] == '\n' {
			r.HeaderSize = cursor + 2
			return OK
		}

		colon := indexByteFrom(buf, cursor, ':')
		if colon < 0 {
			r.HeaderSize = cursor
			return HeaderIncomplete
		}
		keyLen := colon - cursor
		if keyLen <= 0 || keyLen > MaxKeyLen {
			return HeaderInvalid
		}

		// Require at least one byte of OWS after the colon: the colon
		// itself plus that byte form the 2-byte slot the value-length
		// prefix is written into.
		if colon+2 > len(buf) {
			r.HeaderSize = cursor
			return HeaderIncomplete
		}
		valueStart := colon + 1
		if buf[valueStart] != ' ' && buf[valueStart] != '\t' {
			return HeaderInvalid
		}
		// The 2-byte value-length slot below is written over the colon
		// and this single OWS byte, so the in-place layout only holds
		// for exactly one byte of OWS; a second one would shift the
		// real value start past where decodeRecordAt looks for it.
		if valueStart+1 < len(buf) && (buf[valueStart+1] == ' ' || buf[valueStart+1] == '\t') {
			return HeaderInvalid
		}
		valueStart++
		if valueStart >= len(buf) {
			r.HeaderSize = cursor
			return HeaderIncomplete
		}

		lineEndCRLF := bytes.Index(buf[valueStart:], []byte("\r\n"))
		if lineEndCRLF < 0 {
			r.HeaderSize = cursor
			return HeaderIncomplete
		}
		nextCursor := valueStart + lineEndCRLF + 2
		valueLen := nextCursor - valueStart // includes trailing CRLF, per spec
		if valueLen > MaxValueLen {
			return HeaderInvalid
		}

		// Commit the record: keyLen byte at (cursor-1), valueLen u16 at
		// the colon's 2-byte slot.
		buf[cursor-1] = byte(keyLen)
		putLE16(buf[colon:colon+2], uint16(valueLen))

		r.NumHeaders++
		if r.NumHeaders > MaxHeaders {
			return TooManyHeaders
		}

		cursor = nextCursor
		r.HeaderSize = cursor
	}
}

func indexByteFrom(buf []byte, from int, b byte) int {
	idx := bytes.IndexByte(buf[from:], b)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// headerRecord describes one in-place header record, decoded from its
// anchor position (the byte holding the key-length prefix).
type headerRecord struct {
	key        []byte
	value      []byte // includes trailing CRLF; use stripCRLF to trim
	nextRecPos int
}

func decodeRecordAt(buf []byte, recPos int) headerRecord {
	keyLen := int(buf[recPos])
	keyStart := recPos + 1
	colon := keyStart + keyLen
	valueLen := int(getLE16(buf[colon : colon+2]))
	valueStart := colon + 2

	return headerRecord{
		key:        buf[keyStart:colon],
		value:      buf[valueStart : valueStart+valueLen],
		nextRecPos: valueStart + valueLen - 1,
	}
}

// stripCRLF drops the line terminator a stored value ends with. For every
// record but the last, the terminator's '\n' has been overwritten by the
// next record's key-length byte, so only the '\r' is checked.
func stripCRLF(value []byte) []byte {
	n := len(value)
	if n >= 2 && value[n-2] == '\r' {
		return value[:n-2]
	}
	return value
}

// HeaderByIdx returns the key/value of the idx'th header record (0-based),
// with the trailing CRLF stripped from value. ok is false if idx is out
// of range.
func (r *Request) HeaderByIdx(idx int) (key, value []byte, ok bool) {
	if idx < 0 || idx >= r.NumHeaders {
		return nil, nil, false
	}
	pos := r.FirstHeaderOffset
	for i := 0; i <= idx; i++ {
		rec := decodeRecordAt(r.Base, pos)
		if i == idx {
			return rec.key, stripCRLF(rec.value), true
		}
		pos = rec.nextRecPos
	}
	return nil, nil, false
}

// HeaderByKey performs a case-insensitive lookup of the first header
// matching key, per spec.md §9's explicit correction (the source's
// case-sensitive EqualStrings is treated as a bug, not a contract).
func (r *Request) HeaderByKey(key string) (value []byte, ok bool) {
	pos := r.FirstHeaderOffset
	for i := 0; i < r.NumHeaders; i++ {
		rec := decodeRecordAt(r.Base, pos)
		if asciiEqualFold(rec.key, key) {
			return stripCRLF(rec.value), true
		}
		pos = rec.nextRecPos
	}
	return nil, false
}

func asciiEqualFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		if toLower(b[i]) != toLower(s[i]) {
			return false
		}
	}
	return true
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
