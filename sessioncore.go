// Package sessioncore wires the default production stack of the session and
// authorization core: file-backed session storage, the REST auth gateway,
// the permission resolver and the session state machine, bound to the
// process-wide credential-expiry notifier.
package sessioncore

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/evzone-io/go-session-core/expiry"
	"github.com/evzone-io/go-session-core/gateway/httpgw"
	"github.com/evzone-io/go-session-core/internal/config"
	"github.com/evzone-io/go-session-core/permissions"
	"github.com/evzone-io/go-session-core/session"
	"github.com/evzone-io/go-session-core/session/filestore"
)

// Core bundles the wired components. Feature screens talk to Manager and
// Resolver; Gateway and Store are exposed for the network layer and tests.
type Core struct {
	Manager  *session.Manager
	Resolver *permissions.Resolver
	Gateway  *httpgw.Client
	Store    *filestore.Store
}

// New builds the default wiring from environment configuration, restores any
// persisted session and registers the credential-expired handler.
func New(logger zerolog.Logger) (*Core, error) {
	cfg := config.New()

	resolverOpts := []permissions.Option{}
	if path := cfg.GetPermissionTablePath(); path != "" {
		table, err := permissions.LoadTable(path)
		if err != nil {
			return nil, errors.Wrap(err, "[sessioncore.New] permission table")
		}
		resolverOpts = append(resolverOpts, permissions.WithTable(table))
	}
	resolver := permissions.NewResolver(resolverOpts...)

	store := filestore.New(cfg.GetStoragePath(),
		filestore.WithNamespace(cfg.GetStorageNamespace()),
		filestore.WithLogger(logger),
	)

	gw := httpgw.New(cfg.GetAuthBaseURL(),
		httpgw.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.GetRequestTimeoutSeconds()) * time.Second,
		}),
		httpgw.WithLogger(logger),
	)

	manager, err := session.NewManager(session.Deps{
		Store:    store,
		Gateway:  gw,
		Resolver: resolver,
	}, session.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[sessioncore.New]")
	}

	manager.Restore()
	manager.BindExpiry(expiry.Default())

	return &Core{
		Manager:  manager,
		Resolver: resolver,
		Gateway:  gw,
		Store:    store,
	}, nil
}
