package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"

	"github.com/goliatone/r6-tools/auth"
	"github.com/goliatone/r6-tools/config"
	"github.com/goliatone/r6-tools/provider/gotrue"
	"github.com/goliatone/r6-tools/repository"
)

var (
	loginEmail    string
	loginPassword string
	whoamiJSON    bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Sign in, inspect or end the local session",
	Long: `Manage a session stored in a local database.

The session is kept in R6_SESSION_DB, or in the user config directory
when unset, and refreshed when it expires.

Examples:
  r6tools session login --email ash@rainbow.six
  r6tools session whoami --json
  r6tools session logout`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Long: `Sign in with email and password.

The password is read from standard input when --password is not set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			p, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}
			password = p
		}

		return withSessionClient(cmd.Context(), func(ctx context.Context, client *auth.SessionClient) error {
			session, err := client.SignInWithPassword(ctx, loginEmail, password)
			if err != nil {
				return fmt.Errorf("sign in: %s", auth.ErrorMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.User.Identifier())
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the signed in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessionClient(cmd.Context(), func(ctx context.Context, client *auth.SessionClient) error {
			session, err := client.GetSession(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if session == nil {
				fmt.Fprintln(out, "Not signed in")
				return nil
			}

			if whoamiJSON {
				fmt.Fprintln(out, print.MaybePrettyJSON(session.User))
				return nil
			}

			fmt.Fprintf(out, "%s (%s)\n", session.User.Identifier(), session.User.ID)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessionClient(cmd.Context(), func(ctx context.Context, client *auth.SessionClient) error {
			if err := client.SignOut(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (read from stdin when empty)")
	_ = loginCmd.MarkFlagRequired("email")

	whoamiCmd.Flags().BoolVar(&whoamiJSON, "json", false, "print the user as JSON")

	sessionCmd.AddCommand(loginCmd, whoamiCmd, logoutCmd)
	rootCmd.AddCommand(sessionCmd)
}

// withSessionClient opens the session database and runs fn with a client
// persisting to it
func withSessionClient(ctx context.Context, fn func(context.Context, *auth.SessionClient) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lgr := newLogger(debug || cfg.Debug)

	dsn := cfg.SessionDB
	if dsn == "" {
		if dsn, err = repository.DefaultDSN(); err != nil {
			return err
		}
	}

	db, err := repository.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	backend, err := gotrue.New(cfg.BackendConfig())
	if err != nil {
		return err
	}

	client, err := auth.NewBrowserClient(cfg.ClientConfig(), backend, repository.NewClientStorage(db),
		auth.WithClientLogger(lgr.GetLogger("session")))
	if err != nil {
		return err
	}

	return fn(ctx, client)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
