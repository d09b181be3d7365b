// Package router composes configured endpoints around one upstream
// client and runs them until a termination signal arrives.
package router

import (
	"os"

	"github.com/gravitational/trace"

	"github.com/zmb3/agentbroker/lib/endpoint"
	"github.com/zmb3/agentbroker/lib/policy"
	"github.com/zmb3/agentbroker/lib/upstream"
)

// EndpointSpec is the configuration-layer description of one endpoint:
// its socket path and the fingerprint sets that define its policy. This
// is the shape a CLI or config file loader is expected to produce.
type EndpointSpec struct {
	// Path is the filesystem path the endpoint's socket is bound to.
	Path string
	// Allow lists fingerprints admitted through this endpoint. Empty
	// means "admit everything not denied".
	Allow []string
	// Deny lists fingerprints forbidden through this endpoint,
	// regardless of Allow.
	Deny []string
}

// Config describes a full router: the upstream agent to delegate to and
// the set of endpoints to expose it through.
type Config struct {
	// UpstreamPath is the upstream agent's socket path. Empty means
	// "use the SSH_AUTH_SOCK environment variable".
	UpstreamPath string
	// Endpoints lists the downstream surfaces to bind.
	Endpoints []EndpointSpec
	// ShutdownSignals is the set of OS signals that trigger orderly
	// shutdown. Defaults to SIGINT and SIGTERM.
	ShutdownSignals []os.Signal
}

// CheckAndSetDefaults validates cfg and fills in defaults. It fails fast
// for the configuration errors the core is responsible for catching: no
// endpoints configured, or an endpoint with no path.
func (c *Config) CheckAndSetDefaults() error {
	if len(c.Endpoints) == 0 {
		return trace.BadParameter("at least one endpoint must be configured")
	}
	for i, e := range c.Endpoints {
		if e.Path == "" {
			return trace.BadParameter("endpoint %d: path is required", i)
		}
	}
	if len(c.ShutdownSignals) == 0 {
		c.ShutdownSignals = defaultShutdownSignals()
	}
	return nil
}

// buildEndpoints resolves cfg into ready-to-serve endpoints that all
// share a single upstream client.
func (c Config) buildEndpoints() ([]*endpoint.Endpoint, error) {
	client, err := upstream.New(c.UpstreamPath)
	if err != nil {
		return nil, trace.Wrap(err, "resolving upstream agent")
	}

	endpoints := make([]*endpoint.Endpoint, 0, len(c.Endpoints))
	for _, spec := range c.Endpoints {
		ep, err := endpoint.New(endpoint.Config{
			Path:     spec.Path,
			Upstream: client,
			Policy:   policy.New(spec.Allow, spec.Deny),
		})
		if err != nil {
			for _, built := range endpoints {
				built.Stop()
			}
			return nil, trace.Wrap(err, "binding endpoint %s", spec.Path)
		}
		endpoints = append(endpoints, ep)
	}

	return endpoints, nil
}
