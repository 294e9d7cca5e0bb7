package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/r6-tools/auth"

// refresh a little before the access token expires
const expiryLeeway = 10 * time.Second

var _ Client = &SessionClient{}

// SessionClient keeps a local copy of the hosted session in a storage
// binding and publishes changes to listeners.
type SessionClient struct {
	cfg      ClientConfig
	backend  Backend
	store    sessionStore
	verifier TokenVerifier
	events   *listenerRegistry
	logger   Logger
	tracer   trace.Tracer
	now      func() time.Time

	// serializes reads that may refresh or clear the stored session
	mu sync.Mutex
}

// ClientOption configures a SessionClient
type ClientOption func(*SessionClient)

// WithClientLogger sets the client logger
func WithClientLogger(l Logger) ClientOption {
	return func(c *SessionClient) {
		c.logger = normalizeLogger(l)
	}
}

// WithTokenVerifier sets how a server client checks cookie tokens.
// Defaults to a BackendVerifier.
func WithTokenVerifier(v TokenVerifier) ClientOption {
	return func(c *SessionClient) {
		c.verifier = v
	}
}

// WithTracerProvider sets the tracer provider, defaults to the global one
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *SessionClient) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) ClientOption {
	return func(c *SessionClient) {
		if now != nil {
			c.now = now
		}
	}
}

// NewServerClient returns a client bound to request cookies.
func NewServerClient(cfg ClientConfig, backend Backend, cookies CookieStorage, cookieOpts CookieOptions, opts ...ClientOption) (*SessionClient, error) {
	c, err := newSessionClient(cfg, backend, opts...)
	if err != nil {
		return nil, err
	}

	c.store = &cookieSessionStore{
		cookies: cookies,
		name:    cfg.GetStorageKey(),
		opts:    cookieOpts,
	}

	if c.verifier == nil {
		c.verifier = BackendVerifier{Backend: backend}
	}

	return c, nil
}

// NewBrowserClient returns a client bound to persistent storage. Stored
// tokens are trusted as written, expiry still triggers a refresh.
func NewBrowserClient(cfg ClientConfig, backend Backend, kv KeyValueStorage, opts ...ClientOption) (*SessionClient, error) {
	c, err := newSessionClient(cfg, backend, opts...)
	if err != nil {
		return nil, err
	}

	c.store = &kvSessionStore{
		kv:  kv,
		key: cfg.GetStorageKey(),
	}

	return c, nil
}

func newSessionClient(cfg ClientConfig, backend Backend, opts ...ClientOption) (*SessionClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if backend == nil {
		return nil, ErrBackendRequired
	}

	c := &SessionClient{
		cfg:     cfg,
		backend: backend,
		logger:  defLogger{},
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.events = newListenerRegistry(c.logger)

	return c, nil
}

func (c *SessionClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := c.tracer.Start(ctx, "auth.SignInWithPassword")
	defer span.End()

	session, err := withTimeout(ctx, c.cfg.GetRequestTimeout(), func(ctx context.Context) (*Session, error) {
		return c.backend.SignInWithPassword(ctx, email, password)
	})
	if err != nil {
		c.logger.Debug("sign in rejected", "email", email, "error", err)
		return nil, c.fail(span, toAuthError(err))
	}

	if err := c.store.save(ctx, session); err != nil {
		return nil, c.fail(span, err)
	}

	span.SetAttributes(attribute.String("auth.user_id", session.GetUserID()))
	c.events.emit(EventSignedIn, session)

	return session, nil
}

func (c *SessionClient) SignUp(ctx context.Context, email, password, redirectTo string) error {
	ctx, span := c.tracer.Start(ctx, "auth.SignUp")
	defer span.End()

	session, err := withTimeout(ctx, c.cfg.GetRequestTimeout(), func(ctx context.Context) (*Session, error) {
		return c.backend.SignUp(ctx, email, password, redirectTo)
	})
	if err != nil {
		c.logger.Debug("sign up rejected", "email", email, "error", err)
		return c.fail(span, toAuthError(err))
	}

	// services that auto confirm accounts answer with a session
	if session != nil && session.AccessToken != "" {
		if err := c.store.save(ctx, session); err != nil {
			return c.fail(span, err)
		}
		c.events.emit(EventSignedIn, session)
	}

	return nil
}

func (c *SessionClient) SignOut(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "auth.SignOut")
	defer span.End()

	c.mu.Lock()
	session, err := c.store.load(ctx)
	if err != nil {
		c.logger.Warn("sign out found an unreadable session", "error", err)
	}
	if clearErr := c.store.clear(ctx); clearErr != nil {
		c.mu.Unlock()
		return c.fail(span, clearErr)
	}
	c.mu.Unlock()

	c.events.emit(EventSignedOut, nil)

	if session == nil {
		return nil
	}

	_, err = withTimeout(ctx, c.cfg.GetRequestTimeout(), func(ctx context.Context) (*Session, error) {
		return nil, c.backend.SignOut(ctx, session.AccessToken)
	})

	// a rejected token means the session is already gone remotely
	if err != nil && !IsRejected(err) {
		return c.fail(span, toAuthError(err))
	}

	return nil
}

func (c *SessionClient) OnAuthStateChange(fn AuthStateListener) Unsubscribe {
	if fn == nil {
		return func() {}
	}
	return c.events.add(fn)
}

func (c *SessionClient) GetSession(ctx context.Context) (*Session, error) {
	ctx, span := c.tracer.Start(ctx, "auth.GetSession")
	defer span.End()

	session, event, err := c.getSession(ctx)
	if event != "" {
		c.events.emit(event, session)
	}
	if err != nil {
		return nil, c.fail(span, err)
	}

	span.SetAttributes(attribute.Bool("auth.session", session != nil))
	return session, nil
}

func (c *SessionClient) getSession(ctx context.Context) (*Session, AuthChangeEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.store.load(ctx)
	if err != nil {
		if errors.Is(err, ErrUnableToDecodeSession) {
			c.logger.Warn("discarding unreadable session", "error", err)
			return nil, "", c.store.clear(ctx)
		}
		return nil, "", err
	}

	if session == nil {
		return nil, "", nil
	}

	if session.Expired(c.now(), expiryLeeway) {
		return c.refresh(ctx, session)
	}

	if c.verifier == nil {
		return session, "", nil
	}

	sub, err := withTimeout(ctx, c.cfg.GetRequestTimeout(), func(ctx context.Context) (string, error) {
		return c.verifier.VerifyAccessToken(ctx, session.AccessToken)
	})
	if err != nil {
		if IsRejected(err) {
			c.logger.Info("stored session token rejected, signing out", "user_id", session.GetUserID(), "error", err)
			return c.discard(ctx)
		}
		return nil, "", toAuthError(err)
	}

	if sub != session.GetUserID() {
		err := fmt.Errorf("%w: %q", ErrSubjectMismatch, sub)
		c.logger.Warn("stored session discarded, signing out", "user_id", session.GetUserID(), "error", err)
		return c.discard(ctx)
	}

	return session, "", nil
}

// discard drops the stored session so later reads skip the round trip
func (c *SessionClient) discard(ctx context.Context) (*Session, AuthChangeEvent, error) {
	if err := c.store.clear(ctx); err != nil {
		return nil, "", err
	}
	return nil, EventSignedOut, nil
}

func (c *SessionClient) refresh(ctx context.Context, stale *Session) (*Session, AuthChangeEvent, error) {
	if stale.RefreshToken == "" {
		return c.discard(ctx)
	}

	session, err := withTimeout(ctx, c.cfg.GetRequestTimeout(), func(ctx context.Context) (*Session, error) {
		return c.backend.RefreshSession(ctx, stale.RefreshToken)
	})
	if err != nil {
		if IsRejected(err) {
			c.logger.Info("refresh token rejected, signing out", "user_id", stale.GetUserID())
			return c.discard(ctx)
		}
		return nil, "", toAuthError(err)
	}

	if err := c.store.save(ctx, session); err != nil {
		return nil, "", err
	}

	return session, EventTokenRefreshed, nil
}

func (c *SessionClient) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// withTimeout runs fn once under the request timeout. There is no retry,
// the UI offers a manual one.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
