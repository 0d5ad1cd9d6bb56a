package run

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

type Runnable interface {
	// Run starts running the component and blocks until the context is
	// canceled or a fatal error is encountered.
	Run(context.Context) error
}

// A Group runs a set of components together and stops them all when a
// terminating signal arrives or any one of them fails.
type Group struct {
	runnables []Runnable
}

func (g *Group) Add(r Runnable) {
	g.runnables = append(g.runnables, r)
}

func (g *Group) RunAndWait(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	eg, ctx := errgroup.WithContext(ctx)

	for i := range g.runnables {
		r := g.runnables[i]
		eg.Go(func() error { return r.Run(ctx) })
	}

	// Ensure components stop if we receive a terminating operating system signal.
	eg.Go(func() error {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(interrupt)
		select {
		case <-interrupt:
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	// Wait for all components to run to completion.
	if err := eg.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// Restartable wraps a Runnable and restarts it whenever it exits with a
// non-cancellation error.
type Restartable struct {
	Runnable
}

func (r Restartable) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.Runnable.Run(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
		}
	}
}
