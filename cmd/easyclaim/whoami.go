package main

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Check the session cookie and show the account behind it",
	RunE:  runWhoami,
}

func runWhoami(cmd *cobra.Command, args []string) error {
	if cfg.Cookie == "" {
		return errors.WithHint(errors.New("cookie is required"), "pass --cookie, set EASYCLAIM_COOKIE or run easyclaim login")
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	user, err := newClient(cfg).FetchUserInfo(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "validate user")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User:   %s\n", user.Username)
	if len(user.RoleNames) > 0 {
		fmt.Fprintf(out, "Roles:  %s\n", strings.Join(user.RoleNames, ", "))
	}
	if user.Avatar != "" {
		fmt.Fprintf(out, "Avatar: %s\n", user.Avatar)
	}
	return nil
}
