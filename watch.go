package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskboard/taskboard-go/internal/api"
	"github.com/taskboard/taskboard-go/internal/gql"
	"github.com/taskboard/taskboard-go/internal/session"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream task changes as they happen",
		Long: "Subscribes to task created/updated/deleted events over the streaming " +
			"transport and prints them until interrupted. The session is renewed in " +
			"the background; because streaming credentials are fixed at connect " +
			"time, the watch reconnects after a renewal-related stream error.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context())
		},
	}
}

func runWatch(ctx context.Context) error {
	a := buildApp()

	if !a.manager.IsAuthenticated() {
		return fmt.Errorf("not signed in (run 'taskboard login')")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Keep the session fresh for the lifetime of the watch. If renewal
	// fails terminally the manager flips to unauthenticated and the hook
	// below ends the watch.
	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()

	go a.refresh.Run(refreshCtx)

	authLost := make(chan struct{})

	a.manager.SetOnChange(func(state session.State) {
		if state == session.StateUnauthenticated {
			close(authLost)
		}
	})

	statusf("Watching for task changes (Ctrl-C to stop).\n")

	for {
		err := watchOnce(ctx, a, authLost)

		switch {
		case err == nil || errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, errAuthLost):
			return fmt.Errorf("session expired, sign in again")
		case errors.Is(err, errReconnect):
			// A stream died, likely because its connect-time token aged
			// out. Reconnect picks up the current token.
			statusf("Stream interrupted, reconnecting...\n")
		default:
			return err
		}
	}
}

var (
	errReconnect = errors.New("stream needs reconnect")
	errAuthLost  = errors.New("authentication lost")
)

// watchOnce runs one subscription lifetime: connect, print events, and
// classify why the stream ended.
func watchOnce(ctx context.Context, a *app, authLost <-chan struct{}) error {
	events, errc, stopWatch, err := a.api.WatchTasks(ctx)
	if err != nil {
		if errors.Is(err, gql.ErrTransport) {
			return fmt.Errorf("connecting to stream: %w", err)
		}

		return err
	}
	defer stopWatch()

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case <-authLost:
			return errAuthLost
		case ev := <-events:
			printTaskEvent(ev)
		case streamErr := <-errc:
			if errors.Is(streamErr, gql.ErrUnauthenticated) || errors.Is(streamErr, gql.ErrTransport) {
				return errReconnect
			}

			return streamErr
		}
	}
}

func printTaskEvent(ev api.TaskEvent) {
	switch ev.Type {
	case "deleted":
		fmt.Printf("deleted\t%s\n", ev.DeletedID)
	default:
		if ev.Task == nil {
			return
		}

		fmt.Printf("%s\t%s\t%s\t%s\n", ev.Type, ev.Task.ID, ev.Task.Status, ev.Task.Title)
	}
}
