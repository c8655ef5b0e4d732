package proxyproto

import (
	"bufio"
	"bytes"
	"encoding/binary"
)

// ReadHeader is a bufio.Reader convenience on top of ParseHeader. It does
// not implement any buffering or partial-read accumulation of its own: it
// Peeks a bounded prefix, hands it to the pure parsers, and Discards
// exactly the bytes they consumed.
//
// A nil PpInfo with a nil error means no PROXY header was present; r is
// left untouched in that case.
func ReadHeader(r *bufio.Reader) (*PpInfo, int, error) {
	prefix, _ := r.Peek(minV2Len)
	if len(prefix) < minV1Len {
		return nil, 0, nil
	}

	if len(prefix) >= minV2Len && matchesV2Sig(prefix) {
		length := int(binary.BigEndian.Uint16(prefix[14:16]))
		full, err := r.Peek(pp2FixedHeaderLen + length)
		if err != nil {
			return nil, 0, newErr(ErrPP2Length)
		}
		pi, n, err := ParseV2(full)
		if err != nil {
			return nil, 0, err
		}
		if _, err := r.Discard(n); err != nil {
			return nil, 0, err
		}
		return pi, n, nil
	}

	if matchesV1Prefix(prefix) {
		full := peekV1Line(r)
		pi, n, err := ParseV1(full)
		if err != nil {
			return nil, 0, err
		}
		if _, err := r.Discard(n); err != nil {
			return nil, 0, err
		}
		return pi, n, nil
	}

	return nil, 0, nil
}

// peekV1Line grows the peek window one byte at a time until the CRLF
// terminator appears, the v1 length bound is hit, or the stream ends.
// Growing incrementally keeps ReadHeader from stalling on a header
// shorter than the 108-byte v1 maximum.
func peekV1Line(r *bufio.Reader) []byte {
	var window []byte
	for size := minV1Len; size <= pp1MaxLength; size++ {
		w, err := r.Peek(size)
		window = w
		if bytes.Contains(window, []byte("\r\n")) || err != nil {
			break
		}
	}
	return window
}
