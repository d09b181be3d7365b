// Package upstream talks to the real SSH agent this system delegates to.
// It is intentionally stateless: every exchange opens a fresh connection,
// sends one request frame, and reads one response frame. A Client value
// is cheap to copy and safe to share across goroutines.
package upstream

import (
	"io"
	"net"
	"os"

	"github.com/gravitational/trace"

	"github.com/zmb3/agentbroker"
	"github.com/zmb3/agentbroker/lib/protocol"
)

// Client dials the upstream agent's local endpoint for each exchange.
type Client struct {
	// Path is the filesystem path of the upstream agent's local socket.
	Path string
	// MaxFrameSize bounds responses read from upstream, mirroring the
	// ceiling the mediator enforces on downstream frames.
	MaxFrameSize uint32
}

// New resolves the upstream path: explicit takes precedence, otherwise
// the SSH_AUTH_SOCK environment variable. Absence of both is reported as
// a configuration error rather than silently producing an unusable
// client.
func New(explicitPath string) (Client, error) {
	path := explicitPath
	if path == "" {
		path = os.Getenv(agentbroker.SSHAuthSock)
	}
	if path == "" {
		return Client{}, trace.BadParameter("no upstream agent path configured and %s is unset", agentbroker.SSHAuthSock)
	}
	return Client{Path: path, MaxFrameSize: protocol.DefaultMaxFrameSize}, nil
}

// Exchange sends one framed request to upstream and returns one framed
// response. It opens and closes a dedicated connection for the call.
func (c Client) Exchange(req protocol.Frame) (protocol.Frame, error) {
	conn, err := net.Dial("unix", c.Path)
	if err != nil {
		return protocol.Frame{}, trace.ConnectionProblem(err, "connecting to upstream agent at %s", c.Path)
	}
	defer conn.Close()

	if err := protocol.WriteFrame(conn, req); err != nil {
		return protocol.Frame{}, trace.Wrap(err, "sending request to upstream agent")
	}

	resp, err := protocol.ReadFrame(conn, c.maxFrameSize())
	if err != nil {
		if err == io.EOF {
			return protocol.Frame{}, trace.ConnectionProblem(err, "upstream agent closed connection without responding")
		}
		return protocol.Frame{}, trace.Wrap(err, "reading response from upstream agent")
	}

	return resp, nil
}

// ListIdentities issues a request-identities message and returns the
// parsed identity list from upstream's answer, in the order upstream
// returned it.
func (c Client) ListIdentities() ([]protocol.Identity, error) {
	resp, err := c.Exchange(protocol.Frame{Body: []byte{protocol.MsgRequestIdentities}})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	if resp.Type() == protocol.MsgFailure {
		return nil, trace.BadParameter("upstream agent returned failure for request-identities")
	}
	if resp.Type() != protocol.MsgIdentitiesAnswer {
		return nil, trace.BadParameter("upstream agent returned unexpected message type %d for request-identities", resp.Type())
	}

	identities, err := protocol.DecodeIdentitiesAnswer(resp.Body)
	if err != nil {
		return nil, trace.Wrap(err, "decoding upstream identities-answer")
	}
	return identities, nil
}

func (c Client) maxFrameSize() uint32 {
	if c.MaxFrameSize == 0 {
		return protocol.DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}
