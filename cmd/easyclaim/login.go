package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/auth"
	"github.com/fentz26/easyclaim/internal/logger"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Validate a session cookie and save it for later runs",
	Long: `Validate the cookie given with --cookie (or read from stdin) and save it
to ~/.easyclaim/credentials.json. Later commands use the saved cookie when
none is configured.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved session cookie",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := m.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	if cfg.Cookie == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Paste the cookie and press enter: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(err, "read cookie")
		}
		cfg.Cookie = strings.TrimSpace(line)
	}
	if cfg.Cookie == "" {
		return errors.New("cookie is required")
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	user, err := newClient(cfg).FetchUserInfo(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "validate user")
	}

	m, err := auth.NewManager()
	if err != nil {
		return err
	}
	if err := m.Save(auth.Credentials{Cookie: cfg.Cookie, Username: user.Username, Server: cfg.Server}); err != nil {
		return err
	}
	logger.Named("auth").Debugw("Saved credentials", logger.FieldPath, m.Path())
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.Username)
	return nil
}

// applySavedCookie fills an empty cookie from saved credentials. A missing or
// unreadable file leaves the config unchanged.
func applySavedCookie() {
	if cfg.Cookie != "" {
		return
	}
	m, err := auth.NewManager()
	if err != nil {
		logger.Named("auth").Debugw("Saved credentials unavailable", logger.FieldError, err.Error())
		return
	}
	creds, err := m.Credentials()
	if err != nil {
		return
	}
	if !creds.MatchesServer(cfg.Server) {
		logger.Named("auth").Debugw("Saved cookie belongs to another server, not using it",
			logger.FieldServer, creds.Server)
		return
	}
	cfg.Cookie = creds.Cookie
}
