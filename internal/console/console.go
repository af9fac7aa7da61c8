// ABOUTME: Wires one console application: storage, session, guard, transport and GraphQL client
// ABOUTME: Several Consoles may share a storage and hub to model multiple views of one origin

package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/2389/console-session/internal/config"
	"github.com/2389/console-session/internal/graphql"
	"github.com/2389/console-session/internal/guard"
	"github.com/2389/console-session/internal/metrics"
	"github.com/2389/console-session/internal/session"
	"github.com/2389/console-session/internal/storage"
	"github.com/2389/console-session/internal/transport"
)

// Namespace is the SQLite namespace shared by both applications. Their keys
// never overlap.
const Namespace = "console"

// Options supplies optional collaborators to Open.
type Options struct {
	Logger *slog.Logger

	// Storage, when set, is used instead of building one from the config and
	// is not closed by the Console.
	Storage storage.Storage

	// Hub connects views of the same storage. A private hub is created when nil.
	Hub *storage.Hub

	// Now is the clock used by the transport expiry check.
	Now func() time.Time

	// Base is the RoundTripper beneath the bearer transport.
	Base http.RoundTripper
}

// Console is one running application.
type Console struct {
	Profile   session.Profile
	Session   *session.Manager
	Guard     *guard.Guard
	Transport *transport.BearerTransport
	GraphQL   *graphql.Client // nil without a configured endpoint

	view     *storage.Observed
	owned    storage.Storage
	ownedHub *storage.Hub
	stopSync context.CancelFunc
	syncDone <-chan struct{}
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// OpenStorage builds the storage described by cfg.
func OpenStorage(cfg config.StorageConfig) (storage.Storage, error) {
	var base storage.Storage
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := storage.NewSQLiteStorage(cfg.Path, Namespace)
		if err != nil {
			return nil, err
		}
		base = s
	case config.DriverMemory, "":
		base = storage.NewMemoryStorage()
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	if cfg.SealKey == "" {
		return base, nil
	}
	key, err := storage.ParseSealKey(cfg.SealKey)
	if err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("storage.seal_key: %w", err)
	}
	sealed, err := storage.NewSealed(base, key)
	if err != nil {
		_ = base.Close()
		return nil, err
	}
	return sealed, nil
}

// Open starts one application. The session is hydrated before Open returns
// and follows changes other views make to the same storage until Close. When
// the configured storage cannot be opened the application runs on memory
// alone and starts signed out.
func Open(ctx context.Context, cfg *config.Config, profile session.Profile, opts Options) (*Console, error) {
	if cfg == nil {
		return nil, errors.New("console: nil config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Console{
		Profile: profile,
		logger:  logger.With("component", "console", "app", profile.Name),
	}

	shared := opts.Storage
	if shared == nil {
		s, err := OpenStorage(cfg.Storage)
		if err != nil {
			metrics.RecordStorageFailure(profile.Name, "open")
			c.logger.Warn("durable storage unavailable, session will not survive a restart",
				"driver", cfg.Storage.Driver, "error", err)
			s = storage.NewMemoryStorage()
		}
		shared = s
		c.owned = s
	}

	hub := opts.Hub
	if hub == nil {
		hub = storage.NewHub(logger)
		c.ownedHub = hub
	}
	c.view = storage.NewObserved(shared, hub)

	c.Session = session.NewManager(ctx, profile, c.view, session.WithLogger(logger))
	c.Guard = guard.New(profile, c.Session, logger)

	trOpts := []transport.Option{
		transport.WithLogger(logger),
		transport.WithFallback(c.Session.AccessToken),
		transport.WithOnUnauthorized(func(ctx context.Context) {
			c.logger.Warn("server rejected the session credential, signing out")
			c.Session.Logout(context.WithoutCancel(ctx))
		}),
	}
	if opts.Base != nil {
		trOpts = append(trOpts, transport.WithBase(opts.Base))
	}
	if cfg.Transport.ExpiryCheck {
		now := opts.Now
		if now == nil {
			now = time.Now
		}
		trOpts = append(trOpts, transport.WithExpiryCheck(now))
	}
	c.Transport = transport.NewBearerTransport(c.view, profile.AccessTokenKey, trOpts...)

	if cfg.GraphQL.Endpoint != "" {
		c.GraphQL = graphql.New(cfg.GraphQL.Endpoint,
			graphql.WithHTTPClient(&http.Client{Transport: c.Transport, Timeout: cfg.GraphQL.Timeout}),
			graphql.WithRetry(cfg.GraphQL.MaxRetries, cfg.GraphQL.RetryBase),
			graphql.WithLogger(logger),
		)
	}

	syncCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.stopSync = cancel
	c.syncDone = c.Session.Sync(syncCtx, c.view)

	c.logger.Debug("console opened", "authenticated", c.Session.IsAuthenticated())
	return c, nil
}

// Follow tracks changes that other processes make to the same storage file by
// polling it every interval. It stops when ctx is done; the returned channel
// closes once it has.
func (c *Console) Follow(ctx context.Context, interval time.Duration) <-chan struct{} {
	poller := storage.NewPoller(c.view, c.Profile.Keys(), interval, c.logger)
	return c.Session.Sync(ctx, poller)
}

// HTTPClient returns an http.Client that sends the persisted credential.
func (c *Console) HTTPClient() *http.Client {
	return &http.Client{Transport: c.Transport}
}

// Close stops following other views and releases what Open created. It is
// safe to call more than once.
func (c *Console) Close() error {
	c.closeOnce.Do(func() {
		c.stopSync()
		<-c.syncDone

		var errs []error
		if err := c.view.Close(); err != nil {
			errs = append(errs, err)
		}
		if c.owned != nil {
			if err := c.owned.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.ownedHub != nil {
			c.ownedHub.Close()
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
