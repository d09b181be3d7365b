package upstream

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zmb3/agentbroker/lib/protocol"
)

// fakeAgent binds a unix socket and answers every request-identities
// with a fixed identity list, echoing any other frame back unchanged so
// passthrough behavior can be exercised too.
func fakeAgent(t *testing.T, identities []protocol.Identity) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.sock")
	ls, err := net.Listen("unix", path)
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ls.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				req, err := protocol.ReadFrame(conn, protocol.DefaultMaxFrameSize)
				if err != nil {
					return
				}
				if req.Type() == protocol.MsgRequestIdentities {
					protocol.WriteFrame(conn, protocol.EncodeIdentitiesAnswer(identities))
					return
				}
				protocol.WriteFrame(conn, req)
			}()
		}
	}()

	t.Cleanup(func() { ls.Close() })
	return path
}

func TestNewPrefersExplicitPath(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "/from/env")
	c, err := New("/explicit/path")
	require.NoError(t, err)
	require.Equal(t, "/explicit/path", c.Path)
}

func TestNewFallsBackToEnv(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "/from/env")
	c, err := New("")
	require.NoError(t, err)
	require.Equal(t, "/from/env", c.Path)
}

func TestNewFailsWithNeitherPathNorEnv(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	_, err := New("")
	require.Error(t, err)
}

func TestListIdentities(t *testing.T) {
	want := []protocol.Identity{protocol.NewIdentity([]byte("blob-a"), "work")}
	path := fakeAgent(t, want)

	c, err := New(path)
	require.NoError(t, err)

	got, err := c.ListIdentities()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestExchangePassthrough(t *testing.T) {
	path := fakeAgent(t, nil)
	c, err := New(path)
	require.NoError(t, err)

	req := protocol.Frame{Body: []byte{99, 1, 2, 3}}
	resp, err := c.Exchange(req)
	require.NoError(t, err)
	require.Equal(t, req, resp)
}

func TestExchangeUnreachable(t *testing.T) {
	c, err := New(filepath.Join(os.TempDir(), "does-not-exist.sock"))
	require.NoError(t, err)

	_, err = c.Exchange(protocol.Frame{Body: []byte{protocol.MsgRequestIdentities}})
	require.Error(t, err)
}
