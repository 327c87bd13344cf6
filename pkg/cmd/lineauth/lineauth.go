// Package lineauth contains the lineauth server runner.
package lineauth

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pomerium/lineauth/authenticate"
	"github.com/pomerium/lineauth/config"
	"github.com/pomerium/lineauth/internal/log"
	"github.com/pomerium/lineauth/internal/sessions"
	"github.com/pomerium/lineauth/internal/sessions/cookie"
	"github.com/pomerium/lineauth/internal/sessions/memory"
	"github.com/pomerium/lineauth/internal/sessions/redis"
	"github.com/pomerium/lineauth/internal/telemetry/trace"
	"github.com/pomerium/lineauth/internal/version"
	"github.com/pomerium/lineauth/pkg/identity"
)

const shutdownTimeout = 10 * time.Second

// Run runs the lineauth server until ctx is canceled.
func Run(ctx context.Context, o *config.Options) error {
	level, err := log.ParseLevel(o.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.Info(ctx).
		Str("version", version.FullVersion()).
		Str("address", o.Address).
		Msg("cmd/lineauth: starting")

	tracerProvider, shutdownTracing, err := trace.NewTracerProvider(ctx, trace.TracingOptions{
		Service:      version.ProjectName,
		OTLPEndpoint: o.OTLPEndpoint,
		Insecure:     o.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Error().Err(err).Msg("cmd/lineauth: failed to flush traces")
		}
	}()

	backend, err := NewSessionBackend(ctx, o)
	if err != nil {
		return err
	}
	defer backend.Close()

	secret, err := o.GetCookieSecret()
	if err != nil {
		return err
	}
	store, err := cookie.NewStore(secret, backend, cookie.Options{
		Name:     o.CookieName,
		Secure:   o.CookieSecure,
		HTTPOnly: true,
		Expire:   o.SessionTTL,
	})
	if err != nil {
		return err
	}

	oauthOptions, err := o.GetOauthOptions()
	if err != nil {
		return err
	}
	provider, err := identity.NewAuthenticator(ctx, tracerProvider, oauthOptions)
	if err != nil {
		return err
	}

	a, err := authenticate.New(o, provider, store)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", o.Address)
	if err != nil {
		return fmt.Errorf("cmd/lineauth: listen on %s: %w", o.Address, err)
	}
	return Serve(ctx, ln, o, a.Handler())
}

// NewSessionBackend creates the session backend selected by the options.
func NewSessionBackend(ctx context.Context, o *config.Options) (sessions.Backend, error) {
	switch o.SessionBackend {
	case config.SessionBackendRedis:
		return redis.New(ctx, o.RedisURL, o.SessionTTL)
	case config.SessionBackendMemory, "":
		return memory.New(o.LRUSize, o.SessionTTL), nil
	}
	return nil, fmt.Errorf("cmd/lineauth: unknown session backend %q", o.SessionBackend)
}

// Serve serves handler on ln until ctx is canceled, then shuts the server down
// gracefully.
func Serve(ctx context.Context, ln net.Listener, o *config.Options, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       o.ReadTimeout,
		ReadHeaderTimeout: o.ReadTimeout,
		WriteTimeout:      o.WriteTimeout,
		IdleTimeout:       o.IdleTimeout,
		ErrorLog:          stdlog.New(&log.StdLogWrapper{Logger: log.Logger()}, "", 0),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info(ctx).Str("address", ln.Addr().String()).Msg("cmd/lineauth: serving")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
