package main

import (
	"context"
	"log/slog"

	"github.com/taskboard/taskboard-go/internal/api"
	"github.com/taskboard/taskboard-go/internal/gql"
	"github.com/taskboard/taskboard-go/internal/session"
)

// app is the composition root: the session store, state machine, refresher,
// transport client, and typed API wired together for one command run. The
// client is an explicit constructed object owned here — there is no ambient
// process-wide client.
type app struct {
	store   *session.Store
	manager *session.Manager
	refresh *session.Refresher
	client  *gql.Client
	api     *api.Client
	logger  *slog.Logger
}

// buildApp wires the pipeline against the resolved config. The dependency
// order is store → manager → client → api → refresher; the refresher's
// renew function rides the client's recovery-free exchange path, and the
// client's interceptor calls back into the refresher.
func buildApp() *app {
	logger := buildLogger()

	store := session.NewStore(session.NewFileKV(resolvedCfg.Auth.SessionPath))
	manager := session.NewManager(store, logger)

	a := &app{
		store:   store,
		manager: manager,
		logger:  logger,
	}

	a.client = gql.NewClient(gql.Config{
		HTTPEndpoint: resolvedCfg.API.HTTPEndpoint,
		WSEndpoint:   resolvedCfg.API.WSEndpoint,
		HTTPClient:   defaultHTTPClient(),
		Store:        store,
		Renewer:      &lazyRenewer{app: a},
		Controller:   manager,
		Logger:       logger,
	})

	a.api = api.New(a.client)
	a.refresh = session.NewRefresher(store, manager, a.api.RenewFunc(), resolvedCfg.RefreshInterval(), logger)

	return a
}

// lazyRenewer breaks the construction cycle between the transport client
// (which needs a renewer) and the refresher (whose renew function needs the
// client). By the time any operation can fail, buildApp has finished and
// app.refresh is set.
type lazyRenewer struct {
	app *app
}

func (l *lazyRenewer) RenewNow(ctx context.Context) (*session.Session, error) {
	return l.app.refresh.RenewNow(ctx)
}
