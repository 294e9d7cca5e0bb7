// Package cmd provides the r6tools command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "r6tools",
	Short: "R6 Tools - Rainbow Six Siege strategy platform",
	Long: `R6 Tools serves the marketing site and the member area, and
manages a local session against the hosted auth service.

Configuration:
  Settings are read from the environment.

  SERVICE_URL          auth service project URL (required)
  SERVICE_PUBLIC_KEY   anonymous API key (required)
  SERVICE_JWKS_URL     verify cookie tokens against this key set
  SERVICE_JWT_SECRET   verify cookie tokens with this HMAC secret
  R6_HTTP_ADDR         site listen address (default :8080)
  R6_METRICS_ADDR      metrics listen address (default :9090)
  R6_SESSION_DB        session database used by the session commands

Commands:
  serve       Start the web server
  session     Sign in, inspect or end the local session
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable trace logging")
}

func newLogger(verbose bool) *glog.BaseLogger {
	if verbose {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("r6tools"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("r6tools"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}
