// Package protocol implements the wire framing used by SSH agent clients
// and agents: a 4-byte big-endian length prefix followed by a body whose
// first byte is a message type tag. It knows how to decode and re-encode
// the identity listing and signing messages that the mediator needs to
// inspect, and treats everything else as an opaque blob to be forwarded
// byte-for-byte.
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/gravitational/trace"
)

// Message type tags, as defined by the SSH agent protocol (draft-miller-ssh-agent).
const (
	MsgFailure           byte = 5
	MsgRequestIdentities byte = 11
	MsgIdentitiesAnswer  byte = 12
	MsgSignRequest       byte = 13
	MsgSignResponse      byte = 14
)

// DefaultMaxFrameSize is the ceiling enforced by ReadFrame when no other
// limit has been configured. A legitimate identities-answer or sign
// payload never approaches this size; it exists purely to stop a peer
// from forcing an unbounded allocation via a forged length prefix.
const DefaultMaxFrameSize = 1 << 20 // 1 MiB

// FailureFrame is the canonical length-1 failure response body.
var FailureFrame = []byte{MsgFailure}

// Frame is one length-prefixed agent protocol message. Body includes the
// type tag as its first byte, matching the wire layout exactly.
type Frame struct {
	Body []byte
}

// Type returns the message type tag, or 0 if the frame is empty (a
// zero-length frame read from the wire, or a zero-value Frame).
func (f Frame) Type() byte {
	if len(f.Body) == 0 {
		return 0
	}
	return f.Body[0]
}

// ReadFrame reads one length-prefixed frame from r. A read that returns
// io.EOF before any bytes of the length prefix are consumed is reported
// as io.EOF unchanged, signaling an orderly end of stream rather than a
// protocol error. A length prefix cut short is reported as a connection
// problem; a length over maxSize or a body cut short is reported as a
// malformed frame (trace.BadParameter).
func ReadFrame(r io.Reader, maxSize uint32) (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, trace.ConnectionProblem(err, "reading frame length")
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > maxSize {
		return Frame{}, trace.BadParameter("frame length %d exceeds ceiling %d", length, maxSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, trace.BadParameter("short read of %d-byte frame body: %v", length, err)
	}

	return Frame{Body: body}, nil
}

// WriteFrame writes f to w with its length prefix set to len(f.Body).
func WriteFrame(w io.Writer, f Frame) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f.Body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return trace.ConnectionProblem(err, "writing frame length")
	}
	if _, err := w.Write(f.Body); err != nil {
		return trace.ConnectionProblem(err, "writing frame body")
	}
	return nil
}

// WriteFailure writes the canonical single-byte failure frame to w.
func WriteFailure(w io.Writer) error {
	return WriteFrame(w, Frame{Body: FailureFrame})
}

// readString reads a 4-byte length-prefixed string starting at offset off
// in buf, returning the string bytes and the offset immediately after it.
func readString(buf []byte, off int) ([]byte, int, error) {
	if off+4 > len(buf) {
		return nil, 0, trace.BadParameter("truncated string length at offset %d", off)
	}
	l := binary.BigEndian.Uint32(buf[off : off+4])
	start := off + 4
	end := start + int(l)
	if end < start || end > len(buf) {
		return nil, 0, trace.BadParameter("string of length %d runs past body (offset %d, body len %d)", l, off, len(buf))
	}
	return buf[start:end], end, nil
}

// appendString appends a 4-byte length prefix and s to buf.
func appendString(buf []byte, s []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, s...)
	return buf
}
