package cmd

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/goliatone/r6-tools/activitymap"
	"github.com/goliatone/r6-tools/auth"
	"github.com/goliatone/r6-tools/config"
	"github.com/goliatone/r6-tools/metrics"
	"github.com/goliatone/r6-tools/middleware/csrf"
	"github.com/goliatone/r6-tools/middleware/jwtware"
	"github.com/goliatone/r6-tools/provider/gotrue"
	"github.com/goliatone/r6-tools/site"
	"github.com/goliatone/r6-tools/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the R6 Tools web server.

The site listens on R6_HTTP_ADDR and exposes Prometheus metrics on
R6_METRICS_ADDR. The server stops on SIGINT or SIGTERM.

Examples:
  SERVICE_URL=https://abcd.supabase.co SERVICE_PUBLIC_KEY=... r6tools serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lgr := newLogger(debug || cfg.Debug)
	logger := lgr.GetLogger("serve")

	logger.Debug("config loaded",
		"service_url", cfg.ServiceURL,
		"http_addr", cfg.HTTPAddr,
		"metrics_addr", cfg.MetricsAddr,
		"public_url", cfg.PublicURL,
		"cookie_secure", cfg.CookieSecure,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := gotrue.New(cfg.BackendConfig())
	if err != nil {
		return err
	}

	clientOpts := []auth.ClientOption{
		auth.WithClientLogger(lgr.GetLogger("session")),
	}

	verifier, closeVerifier, err := newVerifier(cfg, lgr)
	if err != nil {
		return err
	}
	defer closeVerifier()
	if verifier != nil {
		clientOpts = append(clientOpts, auth.WithTokenVerifier(verifier))
	}

	if cfg.TraceStdout {
		tp, err := newStdoutTracer()
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown", "error", err)
			}
		}()
		clientOpts = append(clientOpts, auth.WithTracerProvider(tp))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	auther := auth.NewRouteAuthenticator(
		auth.ServerClientFactory(cfg.ClientConfig(), backend, cfg.CookieOptions(), clientOpts...),
		auth.WithRouteLogger(lgr.GetLogger("auth")),
		auth.WithRouteActivitySink(auth.MultiActivitySink{
			m,
			activitymap.LogSink(lgr.GetLogger("activity")),
		}),
		auth.WithSecureCookies(cfg.CookieSecure),
		auth.WithRouteErrorHandler(site.RetryHandler(lgr.GetLogger("retry"))),
	)

	var bearer auth.TokenVerifier = auth.BackendVerifier{Backend: backend}
	if verifier != nil {
		bearer = verifier
	}

	srv := newHTTPServer(cfg, lgr, m, auther, bearer)

	metricsSrv := &stdhttp.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 2)

	go func() {
		logger.Info("serving site", "addr", cfg.HTTPAddr)
		if err := srv.Serve(cfg.HTTPAddr); err != nil {
			errc <- fmt.Errorf("site server: %w", err)
		}
	}()

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				errc <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errc:
		logger.Error("server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("site shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", "error", err)
	}

	return runErr
}

func newHTTPServer(cfg *config.Config, lgr *glog.BaseLogger, m *metrics.Metrics, auther *auth.RouteAuthenticator, bearer auth.TokenVerifier) router.Server[*fiber.App] {
	engine := web.NewViewEngine(auth.TemplateHelpers())

	router.LoggerEnabled = cfg.Debug

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
			ErrorHandler:      site.FiberErrorHandler(lgr.GetLogger("fiber")),
		}))
	})

	r := srv.Router()

	r.Static("/public", ".", router.Static{
		FS:   web.Public(),
		Root: ".",
	})

	r.Use(site.Recover(lgr.GetLogger("recover")))
	r.Use(m.Middleware())
	r.Use(csrf.New(csrf.Config{
		SecureKey:    csrfKey(cfg.CSRFKey),
		SecureCookie: cfg.CookieSecure,
	}))
	r.Use(auther.Middleware())

	auth.RegisterAuthRoutes(r,
		auth.WithAuthenticator(auther),
		auth.WithControllerLogger(lgr.GetLogger("auth")),
		auth.WithPublicURL(cfg.PublicURL),
		auth.WithDebug(cfg.Debug),
	)

	site.Register(r, auther.ProtectedRoute(),
		site.WithLogger(lgr.GetLogger("site")),
	)

	site.RegisterAPI(r, jwtware.New(jwtware.Config{
		Verifier: bearer,
	}))

	if cfg.Debug {
		r.PrintRoutes()
	}

	return srv
}

// newVerifier picks how cookie tokens are checked: the JWKS endpoint, then
// the shared secret, then a round trip to the service.
func newVerifier(cfg *config.Config, lgr *glog.BaseLogger) (auth.TokenVerifier, func(), error) {
	switch {
	case cfg.JWKSURL != "":
		v, err := auth.NewJWKSVerifier(cfg.JWKSURL, lgr.GetLogger("jwks"))
		if err != nil {
			return nil, func() {}, err
		}
		return v, v.Close, nil
	case cfg.JWTSecret != "":
		return auth.NewSecretVerifier([]byte(cfg.JWTSecret)), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func newStdoutTracer() (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("stdout trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter)), nil
}

func metricsMux(reg *prometheus.Registry) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.HandleFunc("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	})
	return mux
}

// csrfKey derives the 32 byte signing key. An empty value leaves the
// middleware to generate a random key per process.
func csrfKey(value string) []byte {
	if value == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(value))
	return sum[:]
}
