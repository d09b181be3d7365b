// Package mediator implements the per-connection request loop that sits
// between one downstream SSH agent client and the upstream agent: it
// reads framed requests, applies an endpoint's policy, and forwards,
// rewrites, or refuses each one before writing a framed response.
package mediator

import (
	"bytes"
	"io"
	"net"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"

	"github.com/zmb3/agentbroker/lib/policy"
	"github.com/zmb3/agentbroker/lib/protocol"
	"github.com/zmb3/agentbroker/lib/upstream"
)

// Mediator services one downstream connection. It owns no state that is
// shared with any other connection: Upstream is stateless and Policy is
// immutable, so nothing here needs locking.
type Mediator struct {
	Upstream upstream.Client
	Policy   policy.Policy
	Log      logrus.FieldLogger

	// MaxFrameSize bounds the length prefix accepted from downstream.
	// Zero selects protocol.DefaultMaxFrameSize.
	MaxFrameSize uint32
}

// Serve runs the read-classify-respond loop against conn until the peer
// closes the connection, a malformed frame forces an early close, or an
// I/O error occurs. It never returns an error for ordinary EOF: callers
// that want to log abnormal termination should inspect the returned
// error for nil-ness only.
func (m Mediator) Serve(conn net.Conn) error {
	defer conn.Close()

	for {
		req, err := protocol.ReadFrame(conn, m.maxFrameSize())
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if trace.IsBadParameter(err) {
				m.logger().Warnf("malformed frame from downstream peer, closing: %v", err)
				_ = protocol.WriteFailure(conn)
				return nil
			}
			return trace.Wrap(err)
		}

		resp, closeConn := m.handle(req)
		if err := protocol.WriteFrame(conn, resp); err != nil {
			return trace.Wrap(err, "writing response to downstream peer")
		}
		if closeConn {
			return nil
		}
	}
}

// handle classifies one request and produces the frame to write back
// downstream. The second return value is true only when the connection
// must be closed afterward (currently: never, malformed frames are
// handled in Serve before a request reaches handle).
func (m Mediator) handle(req protocol.Frame) (protocol.Frame, bool) {
	switch req.Type() {
	case protocol.MsgRequestIdentities:
		return m.handleList(), false
	case protocol.MsgSignRequest:
		return m.handleSign(req), false
	default:
		return m.forward(req), false
	}
}

// handleList forwards the list request upstream and rewrites the answer
// to omit every identity this endpoint's policy forbids, preserving
// upstream's ordering and leaving admitted entries byte-for-byte intact.
func (m Mediator) handleList() protocol.Frame {
	identities, err := m.Upstream.ListIdentities()
	if err != nil {
		m.logger().Warnf("upstream list-identities failed: %v", err)
		return protocol.Frame{Body: protocol.FailureFrame}
	}

	admitted := make([]protocol.Identity, 0, len(identities))
	for _, id := range identities {
		if m.Policy.Admit(id.Fingerprint) {
			admitted = append(admitted, id)
		}
	}

	return protocol.EncodeIdentitiesAnswer(admitted)
}

// handleSign decides whether a sign request may reach upstream. It
// resolves the referenced blob to a fingerprint by consulting upstream's
// current identity list; if the blob can't be resolved this way (parse
// failure, or upstream no longer holds it), the request is forwarded
// verbatim and left for upstream to accept or reject on its own terms —
// the policy never treats "can't tell" as "admit".
func (m Mediator) handleSign(req protocol.Frame) protocol.Frame {
	blob, err := protocol.SignRequestBlob(req.Body)
	if err != nil {
		return m.forward(req)
	}

	identities, err := m.Upstream.ListIdentities()
	if err != nil {
		m.logger().Warnf("upstream list-identities failed during sign-request: %v", err)
		return protocol.Frame{Body: protocol.FailureFrame}
	}

	for _, id := range identities {
		if bytes.Equal(id.Blob, blob) {
			if !m.Policy.Admit(id.Fingerprint) {
				return protocol.Frame{Body: protocol.FailureFrame}
			}
			break
		}
	}

	return m.forward(req)
}

// forward sends req to upstream unmodified and relays whatever comes
// back, also unmodified. It is used both for sign requests that pass
// policy and for every message type the mediator doesn't otherwise
// interpret.
func (m Mediator) forward(req protocol.Frame) protocol.Frame {
	resp, err := m.Upstream.Exchange(req)
	if err != nil {
		m.logger().Warnf("upstream exchange failed: %v", err)
		return protocol.Frame{Body: protocol.FailureFrame}
	}
	return resp
}

func (m Mediator) maxFrameSize() uint32 {
	if m.MaxFrameSize == 0 {
		return protocol.DefaultMaxFrameSize
	}
	return m.MaxFrameSize
}

func (m Mediator) logger() logrus.FieldLogger {
	if m.Log == nil {
		return logrus.StandardLogger()
	}
	return m.Log
}
