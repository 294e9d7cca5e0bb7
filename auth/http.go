package auth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ClientFactory builds the session client for one request
type ClientFactory func(ctx router.Context) (Client, error)

// ServerClientFactory returns a factory of cookie bound clients
func ServerClientFactory(cfg ClientConfig, backend Backend, cookieOpts CookieOptions, opts ...ClientOption) ClientFactory {
	return func(ctx router.Context) (Client, error) {
		cookies := RouterCookies(ctx, cfg.GetStorageKey(), cookieOpts)
		return NewServerClient(cfg, backend, cookies, cookieOpts, opts...)
	}
}

// DefaultRejectedRouteKey names the cookie that remembers the page a guest
// was sent away from
const DefaultRejectedRouteKey = "r6_rejected_route"

// RouteAuthenticator mounts a Provider per request and guards routes
type RouteAuthenticator struct {
	newClient        ClientFactory
	providerOpts     []ProviderOption
	logger           Logger
	rejectedRouteKey string
	secureCookies    bool
	signInPath       string
	LoadingView      string
	ErrorHandler     func(c router.Context, err error) error
}

// RouteAuthenticatorOption configures a RouteAuthenticator
type RouteAuthenticatorOption func(*RouteAuthenticator)

// WithRouteLogger sets the logger of the authenticator and its providers
func WithRouteLogger(l Logger) RouteAuthenticatorOption {
	return func(a *RouteAuthenticator) {
		a.logger = normalizeLogger(l)
		a.providerOpts = append(a.providerOpts, WithProviderLogger(l))
	}
}

// WithRouteActivitySink forwards provider activity to sink
func WithRouteActivitySink(sink ActivitySink) RouteAuthenticatorOption {
	return func(a *RouteAuthenticator) {
		a.providerOpts = append(a.providerOpts, WithActivitySink(sink))
	}
}

// WithSecureCookies toggles the Secure attribute of helper cookies
func WithSecureCookies(secure bool) RouteAuthenticatorOption {
	return func(a *RouteAuthenticator) {
		a.secureCookies = secure
	}
}

// WithRouteErrorHandler replaces the default error handler
func WithRouteErrorHandler(h func(router.Context, error) error) RouteAuthenticatorOption {
	return func(a *RouteAuthenticator) {
		if h != nil {
			a.ErrorHandler = h
		}
	}
}

// NewRouteAuthenticator returns an authenticator building clients with factory
func NewRouteAuthenticator(factory ClientFactory, opts ...RouteAuthenticatorOption) *RouteAuthenticator {
	a := &RouteAuthenticator{
		newClient:        factory,
		logger:           defLogger{},
		rejectedRouteKey: DefaultRejectedRouteKey,
		secureCookies:    true,
		signInPath:       SignInPath,
		LoadingView:      "auth/loading",
	}

	a.ErrorHandler = a.defaultErrHandler

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Middleware mounts a Provider for the request and unmounts it when the
// handler chain returns, panics included. A failed initial session fetch
// leaves the request unauthenticated and is kept in AuthErrorLocalsKey.
func (a *RouteAuthenticator) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			client, err := a.newClient(ctx)
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}

			provider := NewProvider(client, a.providerOpts...)
			unsubscribe := provider.Subscribe(func(state AuthState) {
				ctx.Locals(CurrentUserLocalsKey, state.User)
			})
			defer unsubscribe()
			defer provider.Unmount()

			ctx.Locals(ProviderLocalsKey, provider)
			ctx.SetContext(WithProvider(ctx.Context(), provider))

			if err := provider.Mount(ctx.Context()); err != nil {
				a.logger.Warn("auth provider mount failed", "error", err, "path", ctx.OriginalURL())
				ctx.Locals(AuthErrorLocalsKey, err)
			}

			return next(ctx)
		}
	}
}

// ProtectedRoute applies the Guard to the request provider
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			provider, ok := ProviderFromRouter(ctx)
			if !ok {
				return a.ErrorHandler(ctx, errors.New("auth middleware not installed", errors.CategoryInternal).
					WithCode(errors.CodeInternal))
			}

			if raw := ctx.Locals(AuthErrorLocalsKey); raw != nil {
				if err, ok := raw.(error); ok && !IsRejected(err) {
					return a.ErrorHandler(ctx, err)
				}
			}

			var redirectTo string
			guard := NewGuard(NavigatorFunc(func(path string) {
				redirectTo = path
			}), WithGuardTarget(a.signInPath))

			switch guard.Evaluate(provider.State()) {
			case GuardAllow:
				return next(ctx)
			case GuardPending:
				return ctx.Render(a.LoadingView, MergeTemplateData(ctx, router.ViewContext{}))
			default:
				a.SetRedirect(ctx)
				status := http.StatusSeeOther
				if ctx.Method() == string(router.GET) {
					status = http.StatusFound
				}
				return ctx.Redirect(redirectTo, status)
			}
		}
	}
}

// GetRedirect returns the page a guest was sent away from, or def
func (a *RouteAuthenticator) GetRedirect(ctx router.Context, def string) string {
	r := a.PeekRedirect(ctx, def)
	a.ClearRedirect(ctx)
	return r
}

// PeekRedirect is GetRedirect without forgetting the page, so a failed sign
// in attempt can still return there on the next one.
func (a *RouteAuthenticator) PeekRedirect(ctx router.Context, def string) string {
	if r := ctx.Cookies(a.rejectedRouteKey); r != "" {
		return r
	}
	return def
}

// ClearRedirect forgets the remembered page
func (a *RouteAuthenticator) ClearRedirect(ctx router.Context) {
	if ctx.Cookies(a.rejectedRouteKey) != "" {
		a.cookieDel(ctx, a.rejectedRouteKey)
	}
}

// SetRedirect remembers the current URL for after sign in
func (a *RouteAuthenticator) SetRedirect(ctx router.Context) {
	a.logger.Info("Setting redirect cookie", "key", a.rejectedRouteKey, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     a.rejectedRouteKey,
		Value:    ctx.OriginalURL(),
		Path:     "/",
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   a.secureCookies,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.secureCookies,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryOperation, "There was a problem connecting to the authentication service.").
			WithCode(errors.CodeInternal)
	}

	a.Logger().Error(
		"auth middleware error",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return c.Status(http.StatusServiceUnavailable).Render("errors/retry", router.ViewContext{
		"error": richErr,
		"retry": c.OriginalURL(),
	})
}

// Logger returns the authenticator logger
func (a *RouteAuthenticator) Logger() Logger {
	return a.logger
}
