package httpwire

import (
	"bytes"
	"errors"
	"strings"
)

// Protocol errors surfaced while parsing the request line or headers.
// These close the connection without a response.
var (
	// ErrMalformedRequestLine indicates the request line could not be
	// split into exactly method, URI, and protocol version.
	ErrMalformedRequestLine = errors.New("httpwire: malformed request line")

	// ErrMalformedHeader indicates a header line had no ":" separator.
	ErrMalformedHeader = errors.New("httpwire: malformed header line")

	// ErrHeadersTooLarge indicates the request line or the header block
	// exceeded the caller's header-size limit before it was terminated.
	ErrHeadersTooLarge = errors.New("httpwire: header block too large")
)

var crlf = []byte("\r\n")

// ParseRequestLine scans buf for a CRLF-terminated request line
// ("METHOD URI VERSION") at offset 0.
//
// As with wsframe.DecodeHeader, an incomplete line (no CRLF yet) is
// reported by consumed == 0 with a nil error — the caller should
// accumulate more bytes and retry, not treat it as a failure.
func ParseRequestLine(buf []byte) (method, uri, proto string, consumed int, err error) {
	idx := bytes.Index(buf, crlf)
	if idx < 0 {
		return "", "", "", 0, nil
	}

	line := string(buf[:idx])
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", 0, ErrMalformedRequestLine
	}

	return parts[0], parts[1], parts[2], idx + len(crlf), nil
}

// ParseHeaders scans buf for a sequence of CRLF-terminated header
// lines terminated by a blank line, starting at offset 0 (i.e. buf
// should begin immediately after the request line).
//
// Returns consumed == 0 with a nil error if the blank line hasn't
// arrived yet.
func ParseHeaders(buf []byte) (hdr Header, consumed int, err error) {
	pos := 0
	for {
		idx := bytes.Index(buf[pos:], crlf)
		if idx < 0 {
			return nil, 0, nil
		}

		if idx == 0 {
			// Blank line: end of header block.
			return hdr, pos + len(crlf), nil
		}

		line := buf[pos : pos+idx]
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, 0, ErrMalformedHeader
		}

		name := strings.TrimSpace(string(line[:colon]))
		value := strings.TrimSpace(string(line[colon+1:]))
		hdr = append(hdr, HeaderField{Name: name, Value: value})

		pos += idx + len(crlf)
	}
}
