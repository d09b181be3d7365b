package router

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func defaultShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

// Serve builds every endpoint in cfg, starts their accept loops, and
// blocks until ctx is canceled or one of cfg.ShutdownSignals arrives.
// Either trigger begins orderly shutdown: accept loops stop, in-flight
// mediators are given a chance to drain, and every endpoint socket is
// removed from disk before Serve returns.
func Serve(ctx context.Context, cfg Config) error {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}

	endpoints, err := cfg.buildEndpoints()
	if err != nil {
		return trace.Wrap(err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		c := make(chan os.Signal, len(cfg.ShutdownSignals))
		signal.Notify(c, cfg.ShutdownSignals...)
		defer signal.Stop(c)

		select {
		case <-runCtx.Done():
		case sig := <-c:
			logrus.Infof("captured %s, stopping router", sig)
			cancel()
		}
	}()

	group, _ := errgroup.WithContext(context.Background())
	for _, ep := range endpoints {
		ep := ep
		group.Go(func() error {
			return ep.Serve(runCtx)
		})
	}

	<-runCtx.Done()
	for _, ep := range endpoints {
		if err := ep.Stop(); err != nil {
			logrus.Warnf("stopping endpoint: %v", err)
		}
	}

	if err := group.Wait(); err != nil {
		return trace.Wrap(err, "endpoint serve loop failed")
	}
	return nil
}
