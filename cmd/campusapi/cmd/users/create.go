package users

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"

	"github.com/spf13/cobra"

	"github.com/pensezy/edutrack/cmd/campusapi/cmd/cmdutil"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/config"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/logger"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/repository"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/services/identity"
	"github.com/pensezy/edutrack/pkg/sdk"
)

var (
	emailFlag    string
	phoneFlag    string
	nameFlag     string
	roleFlag     string
	passwordFlag string
	stdinFlag    bool
	demoFlag     bool
	schoolFlag   string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a login account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" && phoneFlag == "" {
			return fmt.Errorf("--email or --phone is required")
		}
		if nameFlag == "" {
			return fmt.Errorf("--name flag is required")
		}
		role, err := sdk.ParseRole(roleFlag)
		if err != nil {
			return err
		}
		if emailFlag != "" {
			if _, err := mail.ParseAddress(emailFlag); err != nil {
				return fmt.Errorf("invalid email format: %w", err)
			}
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		bundle, err := cmdutil.NewIdentityBundle(cfg, logger.New(cfg.Debug))
		if err != nil {
			return err
		}
		defer bundle.Close()

		account, user, err := bundle.Service.CreateAccount(context.Background(), identity.NewAccount{
			Email:    emailFlag,
			Phone:    phoneFlag,
			FullName: nameFlag,
			Role:     role,
			Password: password,
			Demo:     demoFlag,
			SchoolID: schoolFlag,
		})
		switch {
		case errors.Is(err, repository.ErrConflict):
			return fmt.Errorf("an account for %s already exists", firstNonEmpty(emailFlag, phoneFlag))
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("school %q does not exist", schoolFlag)
		case err != nil:
			return fmt.Errorf("failed to create account: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Account created successfully!")
		fmt.Fprintln(out, "----------------------------------------")
		fmt.Fprintf(out, "Account ID: %d\n", account.ID)
		fmt.Fprintf(out, "Login: %s\n", account.Identifier)
		fmt.Fprintf(out, "Name: %s\n", account.FullName)
		fmt.Fprintf(out, "Role: %s\n", account.Role)
		if account.IsDemo {
			fmt.Fprintln(out, "Demo: yes")
		}
		if user != nil {
			fmt.Fprintf(out, "User ID: %s\n", user.ID)
			if user.CurrentSchoolID != nil {
				fmt.Fprintf(out, "School: %s\n", *user.CurrentSchoolID)
			}
		}
		fmt.Fprintln(out, "----------------------------------------")
		return nil
	},
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
