// Command agentbrokerd is the thin front end that turns a config file and
// a handful of flags into a running router.Config and blocks until the
// process is told to stop. Argument parsing, config loading, and signal
// delivery are all it does: the actual mediation lives in lib/.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gravitational/kingpin"
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"

	"github.com/zmb3/agentbroker/lib/config"
	"github.com/zmb3/agentbroker/lib/router"
	"github.com/zmb3/agentbroker/lib/upstream"
	"github.com/zmb3/agentbroker/lib/utils"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "agentbrokerd: %v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath   string
	upstreamPath string
	debug        bool
}

func run(args []string) error {
	var flags cliFlags

	app := kingpin.New("agentbrokerd", "Filters and multiplexes one upstream SSH agent into several filtered endpoints.")
	app.Flag("upstream", "Upstream agent socket path, overriding SSH_AUTH_SOCK.").
		StringVar(&flags.upstreamPath)
	app.Flag("debug", "Enable verbose logging to stderr.").
		Short('d').BoolVar(&flags.debug)

	serveCmd := app.Command("serve", "Bind every configured endpoint and mediate until terminated.").Default()
	serveCmd.Flag("config", "Path to the endpoint configuration file.").
		Short('c').Required().StringVar(&flags.configPath)

	listKeysCmd := app.Command("list-keys", "List the fingerprints upstream currently holds, unfiltered.")

	selected, err := app.Parse(args)
	if err != nil {
		return trace.Wrap(err)
	}

	level := logrus.InfoLevel
	if flags.debug {
		level = logrus.DebugLevel
	}
	utils.InitLogger(utils.LoggingForDaemon, level)

	switch selected {
	case listKeysCmd.FullCommand():
		return runListKeys(flags)
	default:
		return runServe(flags)
	}
}

func runServe(flags cliFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return trace.Wrap(err, "loading configuration from %s", flags.configPath)
	}
	if flags.upstreamPath != "" {
		cfg.UpstreamPath = flags.upstreamPath
	}

	logrus.Infof("starting agentbrokerd with %d endpoint(s)", len(cfg.Endpoints))
	return router.Serve(context.Background(), cfg)
}

// runListKeys is a thin, read-only wrapper over the upstream client: it
// exists so an operator can see what upstream holds without having to
// go through any particular endpoint's filter.
func runListKeys(flags cliFlags) error {
	client, err := upstream.New(flags.upstreamPath)
	if err != nil {
		return trace.Wrap(err)
	}

	identities, err := client.ListIdentities()
	if err != nil {
		return trace.Wrap(err, "listing upstream identities")
	}

	for _, id := range identities {
		fmt.Printf("%s\t%s\t%s\n", id.Fingerprint, id.KeyType, id.Comment)
	}
	return nil
}
