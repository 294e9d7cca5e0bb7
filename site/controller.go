package site

import (
	"time"

	"github.com/goliatone/go-router"

	"github.com/goliatone/r6-tools/auth"
)

// Views names the templates rendered by the site
type Views struct {
	Home     string
	Callouts string
	Profile  string
	Settings string
}

// Controller serves the marketing page and the protected shell pages
type Controller struct {
	Logger auth.Logger
	Views  *Views
	now    func() time.Time
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithLogger sets the controller logger
func WithLogger(l auth.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithClock overrides time.Now, used for the footer year
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController returns a site controller
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: nopLogger{},
		Views: &Views{
			Home:     "index",
			Callouts: "callouts",
			Profile:  "profile",
			Settings: "settings",
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register mounts the site routes. protected guards the shell pages.
func Register[T any](app router.Router[T], protected router.MiddlewareFunc, opts ...ControllerOption) *Controller {
	c := NewController(opts...)

	app.Get(auth.HomePath, c.Home).
		SetName("site.home")
	app.Get("/callouts", c.Callouts, protected).
		SetName("site.callouts")
	app.Get("/profile", c.Profile, protected).
		SetName("site.profile")
	app.Get("/settings", c.Settings, protected).
		SetName("site.settings")

	return c
}

func (c *Controller) Home(ctx router.Context) error {
	return c.render(ctx, c.Views.Home, router.ViewContext{
		"landing": NewLanding(c.now()),
	})
}

func (c *Controller) Callouts(ctx router.Context) error {
	selector := NewListSelector()

	if id := ctx.Query("option", ""); id != "" && !selector.Select(id) {
		c.Logger.Debug("ignoring unknown callout option", "option", id)
	}

	selected, _ := selector.Selected()

	return c.render(ctx, c.Views.Callouts, router.ViewContext{
		"selector": selector,
		"selected": selected,
	})
}

func (c *Controller) Profile(ctx router.Context) error {
	return c.render(ctx, c.Views.Profile, router.ViewContext{})
}

func (c *Controller) Settings(ctx router.Context) error {
	return c.render(ctx, c.Views.Settings, router.ViewContext{})
}

// render adds the header and the auth helpers to data
func (c *Controller) render(ctx router.Context, name string, data router.ViewContext) error {
	data["header"] = NewHeader(auth.StateFromRouter(ctx))
	data["brand"] = Brand
	return ctx.Render(name, auth.MergeTemplateData(ctx, data))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
