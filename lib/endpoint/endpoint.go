// Package endpoint binds one downstream-facing agent socket, accepts
// connections under a concurrency cap, and hands each one to a mediator
// worker. It owns the lifecycle of the socket file on disk: created by
// New, removed by Stop, including on signal-driven shutdown.
package endpoint

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/zmb3/agentbroker"
	"github.com/zmb3/agentbroker/lib/mediator"
	"github.com/zmb3/agentbroker/lib/policy"
	"github.com/zmb3/agentbroker/lib/protocol"
	"github.com/zmb3/agentbroker/lib/upstream"
)

// Config describes one endpoint: where its socket lives, which upstream
// client it delegates to, and the policy that filters it.
type Config struct {
	// Path is the filesystem path the endpoint's socket is bound to.
	Path string
	// Upstream is the stateless client used to reach the real agent.
	Upstream upstream.Client
	// Policy is this endpoint's admit decision. Immutable for the life
	// of the endpoint.
	Policy policy.Policy
	// ConcurrencyLimit bounds connections serviced at once. Zero
	// selects agentbroker.DefaultConcurrencyLimit.
	ConcurrencyLimit int64
	// MaxFrameSize bounds downstream frame lengths. Zero selects
	// protocol.DefaultMaxFrameSize.
	MaxFrameSize uint32
	// Log receives warnings about rejected connections and mediator
	// failures. Defaults to the standard logger.
	Log logrus.FieldLogger
}

// CheckAndSetDefaults validates cfg and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Path == "" {
		return trace.BadParameter("endpoint path is required")
	}
	if c.ConcurrencyLimit == 0 {
		c.ConcurrencyLimit = agentbroker.DefaultConcurrencyLimit
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}
	return nil
}

// Endpoint is one bound, running downstream agent surface.
type Endpoint struct {
	cfg  Config
	ls   net.Listener
	gate *semaphore.Weighted

	wg sync.WaitGroup
}

// New binds cfg.Path, removing anything already there, and returns an
// Endpoint ready to Serve. The parent directory is created on demand.
func New(cfg Config) (*Endpoint, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	ls, err := bind(cfg.Path)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &Endpoint{
		cfg:  cfg,
		ls:   ls,
		gate: semaphore.NewWeighted(cfg.ConcurrencyLimit),
	}, nil
}

// bind removes a stale socket file at path (a leftover from a prior run
// is an accepted rendezvous convention, not an error), ensures the
// parent directory exists, and binds a unix listener there.
func bind(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, trace.ConvertSystemError(err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, trace.Wrap(err, "creating endpoint directory")
	}

	ls, err := net.Listen("unix", path)
	if err != nil {
		return nil, trace.Wrap(err, "binding endpoint socket at %s", path)
	}
	return ls, nil
}

// Serve runs the accept loop until ctx is canceled or the listener is
// closed. Each accepted connection is handed to a mediator worker under
// the endpoint's concurrency gate; a connection accepted with no permit
// available is closed immediately without being serviced.
func (e *Endpoint) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		e.ls.Close()
	}()

	for {
		conn, err := e.ls.Accept()
		if err != nil {
			e.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return trace.Wrap(err, "accepting connection on %s", e.cfg.Path)
		}

		if !e.gate.TryAcquire(1) {
			e.cfg.Log.Warnf("endpoint %s at capacity (%d), rejecting connection", e.cfg.Path, e.cfg.ConcurrencyLimit)
			conn.Close()
			continue
		}

		e.wg.Add(1)
		go e.serviceConn(conn)
	}
}

func (e *Endpoint) serviceConn(conn net.Conn) {
	defer e.wg.Done()
	defer e.gate.Release(1)

	m := mediator.Mediator{
		Upstream:     e.cfg.Upstream,
		Policy:       e.cfg.Policy,
		Log:          e.cfg.Log,
		MaxFrameSize: e.cfg.MaxFrameSize,
	}
	if err := m.Serve(conn); err != nil {
		e.cfg.Log.Warnf("endpoint %s: connection ended with error: %v", e.cfg.Path, err)
	}
}

// Stop unbinds the listener and removes the socket file from disk. It is
// safe to call even if Serve has already returned on its own.
func (e *Endpoint) Stop() error {
	e.ls.Close()
	if err := os.Remove(e.cfg.Path); err != nil && !os.IsNotExist(err) {
		return trace.Wrap(err, "removing endpoint socket %s", e.cfg.Path)
	}
	return nil
}
