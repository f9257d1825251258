// Package app wires the request layer from a configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stdutil/dashhttp"
	"github.com/stdutil/dashhttp/internal/config"
	"github.com/stdutil/dashhttp/notify"
	"github.com/stdutil/dashhttp/script"
	"github.com/stdutil/dashhttp/session"
)

// App holds the shared parts of the request layer
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Transport dashhttp.Transport
	Client    *dashhttp.Client
	Resolver  *script.Resolver
	Guard     dashhttp.OriginGuard

	store   session.Store
	closers []func() error
}

// BuiltRequest describes an assembled call without sending it
type BuiltRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Params  map[string]any    `json:"params,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Option configures an App
type Option func(a *App)

// WithTransport replaces the net/http transport
func WithTransport(t dashhttp.Transport) Option {
	return func(a *App) {
		a.Transport = t
	}
}

// WithRedisClient uses client for the redis session backend instead of
// dialing session.redis_addr
func WithRedisClient(client redis.UniversalClient) Option {
	return func(a *App) {
		a.store = session.NewRedisStore(client, a.Config.Session.Key)
	}
}

// New wires an App from cfg. A nil logger discards logs.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config: cfg,
		Logger: logger,
		Guard: dashhttp.NewOriginGuard(
			dashhttp.GuardMode(cfg.Origin.GuardMode),
			cfg.Origin.DevPath,
			cfg.Origin.ProdPath),
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o(a)
	}
	if a.Transport == nil {
		a.Transport = dashhttp.NewNetTransport(nil, logger)
	}
	client, err := dashhttp.NewClient(a.Transport, logger,
		dashhttp.TimeOut(cfg.HTTP.TimeOut),
		dashhttp.Compressed(cfg.HTTP.Compressed))
	if err != nil {
		return nil, err
	}
	a.Client = client
	a.Resolver = script.New(
		script.WithLogger(logger),
		script.WithEnv(cfg.Script.Env),
		script.WithCacheSize(cfg.Script.CacheSize))

	if a.store == nil {
		switch cfg.Session.Backend {
		case config.SessionFile:
			a.store = session.NewFileStore(cfg.Session.Dir, cfg.Session.Key)
		case config.SessionRedis:
			rc := redis.NewClient(&redis.Options{
				Addr:     cfg.Session.RedisAddr,
				Password: cfg.Session.RedisPassword,
				DB:       cfg.Session.RedisDB,
			})
			a.closers = append(a.closers, rc.Close)
			a.store = session.NewRedisStore(rc, cfg.Session.Key)
		}
	}
	logger.Info("request layer ready",
		zap.String("session", cfg.Session.Backend),
		zap.String("guard", string(a.Guard.Mode)),
		zap.Strings("prefixes", a.Guard.Prefixes))
	return a, nil
}

// Store returns the configured session store. For the jwt backend the store
// wraps token, an empty token is no session. The file and redis stores hold
// a session of their own and are meant for local use such as the CLI.
func (a *App) Store(token string) session.Store {
	if a.Config.Session.Backend == config.SessionJWT {
		return &session.JWTStore{
			Token:         token,
			Secret:        a.Config.Session.JWTSecret,
			ValidateTimes: a.Config.Session.ValidateTimes,
			TokenName:     a.Config.Session.TokenName,
		}
	}
	return a.store
}

// CallerStore returns the session store for a remote caller presenting
// token. Only the jwt backend builds sessions from the caller; with any other
// backend a remote caller gets no session.
func (a *App) CallerStore(token string) session.Store {
	if a.Config.Session.Backend != config.SessionJWT {
		return nil
	}
	return a.Store(token)
}

// Assembler creates an assembler reporting to n and reading the session from
// store. The assembler shares the transport and the compiled program cache.
func (a *App) Assembler(n notify.Notifier, store session.Store) *dashhttp.Assembler {
	n = notify.Multi(notify.NewLogger(a.Logger), n)
	return dashhttp.NewAssembler(a.Transport,
		dashhttp.WithLogger(a.Logger),
		dashhttp.WithNotifier(n),
		dashhttp.WithResolver(a.Resolver.Notifying(n)),
		dashhttp.WithSessionStore(store),
		dashhttp.WithOriginGuard(a.Guard),
		dashhttp.WithRequestOptions(
			dashhttp.TimeOut(a.Config.HTTP.TimeOut),
			dashhttp.Compressed(a.Config.HTTP.Compressed)))
}

// Ping checks that the session backend is reachable
func (a *App) Ping(ctx context.Context) error {
	if a.Config.Session.Backend != config.SessionRedis || a.store == nil {
		return nil
	}
	if _, err := a.store.Load(ctx); err != nil {
		return fmt.Errorf("session backend: %w", err)
	}
	return nil
}

// Close releases the connections opened by New
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Redacted replaces credential header values in described requests
const Redacted = "[redacted]"

// Describe converts an assembled request for display. The values of the
// session headers (tenant-id, Authorization and the token header) are
// replaced with Redacted.
func (a *App) Describe(req *dashhttp.Request) BuiltRequest {
	tokenName := a.Config.Session.TokenName
	if tokenName == "" {
		tokenName = session.DefaultTokenName
	}
	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		switch {
		case strings.EqualFold(k, "tenant-id"),
			strings.EqualFold(k, "Authorization"),
			strings.EqualFold(k, tokenName):
			headers[k] = Redacted
		default:
			headers[k] = v
		}
	}
	return BuiltRequest{
		Method:  req.Method,
		URL:     req.URL,
		Params:  req.Params.Pair,
		Headers: headers,
		Body:    string(req.Body),
	}
}
