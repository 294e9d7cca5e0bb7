package auth

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the sign in, sign up and sign out routes
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.SignIn, controller.SignInShow).
		SetName("sign-in.get")
	app.Post(controller.Routes.SignIn, controller.SignInPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.SignUp, controller.SignUpShow).
		SetName("sign-up.get")
	app.Post(controller.Routes.SignUp, controller.SignUpPost).
		SetName("sign-up.post")

	app.Post(controller.Routes.SignOut, controller.SignOut).
		SetName("sign-out.post")

	app.Get(controller.Routes.Callback, controller.Callback).
		SetName("auth-callback.get")

	return controller
}

type AuthControllerRoutes struct {
	SignIn   string
	SignUp   string
	SignOut  string
	Callback string
	Home     string
}

type AuthControllerViews struct {
	SignIn string
	SignUp string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	Auther       *RouteAuthenticator
	PublicURL    string
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// WithAuthenticator sets the route authenticator
func WithAuthenticator(a *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

// WithPublicURL sets the origin used to build the email confirmation URL
func WithPublicURL(u string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.PublicURL = strings.TrimRight(u, "/")
		return c
	}
}

// WithControllerLogger sets the controller logger
func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

// WithDebug dumps submitted forms to the debug log
func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			SignIn:   SignInPath,
			SignUp:   SignUpPath,
			SignOut:  SignOutPath,
			Callback: CallbackPath,
			Home:     HomePath,
		},
		Views: &AuthControllerViews{
			SignIn: "auth/signin",
			SignUp: "auth/signup",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

// CallbackURL is the email confirmation target sent on sign up
func (a *AuthController) CallbackURL() string {
	return a.PublicURL + a.Routes.Callback
}

func (a *AuthController) SignInShow(ctx router.Context) error {
	return ctx.Render(a.Views.SignIn, MergeTemplateData(ctx, router.ViewContext{
		"form": FormState{},
	}))
}

func (a *AuthController) SignInPost(ctx router.Context) error {
	provider, ok := ProviderFromRouter(ctx)
	if !ok {
		return a.ErrorHandler(ctx, errors.New("auth provider missing from request", errors.CategoryInternal))
	}

	payload := new(SignInInput)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("sign in parse payload", "error", err)
		return ctx.Status(http.StatusBadRequest).Render(a.Views.SignIn, MergeTemplateData(ctx, router.ViewContext{
			"form": FormState{Error: "Failed to parse form"},
		}))
	}

	if a.Debug {
		a.Logger.Debug("sign in submitted", "payload", print.MaybePrettyJSON(map[string]string{"email": payload.Email}))
	}

	nav := &redirectRecorder{}
	form := NewSignInForm(provider, nav, a.Auther.PeekRedirect(ctx, a.Routes.Home))

	state, err := form.Submit(ctx.Context(), *payload)
	if err != nil {
		a.Logger.Info("sign in failed", "email", state.Email, "error", err)
		return ctx.Render(a.Views.SignIn, MergeTemplateData(ctx, router.ViewContext{
			"form": state,
		}))
	}

	a.Auther.ClearRedirect(ctx)

	return ctx.Redirect(nav.path, http.StatusSeeOther)
}

func (a *AuthController) SignUpShow(ctx router.Context) error {
	return ctx.Render(a.Views.SignUp, MergeTemplateData(ctx, router.ViewContext{
		"form": FormState{},
	}))
}

func (a *AuthController) SignUpPost(ctx router.Context) error {
	provider, ok := ProviderFromRouter(ctx)
	if !ok {
		return a.ErrorHandler(ctx, errors.New("auth provider missing from request", errors.CategoryInternal))
	}

	payload := new(SignUpInput)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("sign up parse payload", "error", err)
		return ctx.Status(http.StatusBadRequest).Render(a.Views.SignUp, MergeTemplateData(ctx, router.ViewContext{
			"form": FormState{Error: "Failed to parse form"},
		}))
	}

	nav := &redirectRecorder{}
	form := NewSignUpForm(provider, provider.client, nav, a.CallbackURL())

	state, err := form.Submit(ctx.Context(), *payload)
	if err != nil {
		a.Logger.Info("sign up failed", "email", state.Email, "error", err)
		return ctx.Render(a.Views.SignUp, MergeTemplateData(ctx, router.ViewContext{
			"form": state,
		}))
	}

	return ctx.Redirect(nav.path, http.StatusSeeOther)
}

// SignOut signs out and sends the browser back where it came from. Protected
// pages then redirect through the guard.
func (a *AuthController) SignOut(ctx router.Context) error {
	provider, ok := ProviderFromRouter(ctx)
	if !ok {
		return a.ErrorHandler(ctx, errors.New("auth provider missing from request", errors.CategoryInternal))
	}

	menu := NewUserMenu(provider.State())
	if err := menu.SignOut(ctx.Context(), provider); err != nil {
		a.Logger.Warn("sign out error", "error", err)
	}

	return ctx.Redirect(backTarget(ctx.Referer(), a.Routes.Home), http.StatusSeeOther)
}

// Callback is where email confirmation links land. Members go home,
// guests go to the sign in page.
func (a *AuthController) Callback(ctx router.Context) error {
	target := a.Routes.SignIn
	if provider, ok := ProviderFromRouter(ctx); ok && provider.State().User != nil {
		target = a.Routes.Home
	}
	return ctx.Redirect(target, http.StatusSeeOther)
}

// backTarget keeps only same-origin paths from the referer
func backTarget(referer, def string) string {
	if referer == "" {
		return def
	}
	if i := strings.Index(referer, "://"); i >= 0 {
		rest := referer[i+3:]
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			return def
		}
		referer = rest[slash:]
	}
	if !strings.HasPrefix(referer, "/") || strings.HasPrefix(referer, "//") {
		return def
	}
	return referer
}

type redirectRecorder struct {
	path string
}

func (r *redirectRecorder) Navigate(path string) {
	r.path = path
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Status(http.StatusInternalServerError).Render("errors/retry", router.ViewContext{
		"message": err.Error(),
	})
}
