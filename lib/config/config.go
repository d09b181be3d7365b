// Package config loads the router's persisted configuration from a YAML
// file: the upstream agent path and the list of endpoint specs (socket
// path plus allow/deny fingerprint sets). Loading and editing this file
// is an external concern relative to the mediator core; this package
// exists only to turn it into the typed router.Config the core accepts.
package config

import (
	"os"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v3"

	"github.com/zmb3/agentbroker/lib/router"
)

// File is the on-disk shape of the configuration file.
type File struct {
	// Upstream is the upstream agent socket path. Empty defers to
	// SSH_AUTH_SOCK.
	Upstream string `yaml:"upstream,omitempty"`
	// Endpoints lists the downstream surfaces to expose.
	Endpoints []EndpointFile `yaml:"endpoints"`
}

// EndpointFile is the on-disk shape of one endpoint spec.
type EndpointFile struct {
	Path  string   `yaml:"path"`
	Allow []string `yaml:"allow,omitempty"`
	Deny  []string `yaml:"deny,omitempty"`
}

// Load reads and parses the YAML file at path into a router.Config.
func Load(path string) (router.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return router.Config{}, trace.ConvertSystemError(err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return router.Config{}, trace.Wrap(err, "parsing config file %s", path)
	}

	cfg := router.Config{UpstreamPath: f.Upstream}
	for _, e := range f.Endpoints {
		cfg.Endpoints = append(cfg.Endpoints, router.EndpointSpec{
			Path:  e.Path,
			Allow: e.Allow,
			Deny:  e.Deny,
		})
	}

	return cfg, nil
}
