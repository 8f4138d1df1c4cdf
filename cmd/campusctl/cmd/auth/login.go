package auth

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pensezy/edutrack/cmd/campusctl/internal/config"
	"github.com/pensezy/edutrack/pkg/sdk"
)

var (
	passwordFlag string
	stdinFlag    bool
)

var loginCmd = &cobra.Command{
	Use:   "login <email-or-phone>",
	Short: "Sign in to EduTrack",
	Long: `Signs in with an email address or phone number.

Demo accounts (parent@demo.com, teacher@demo.com, ...) sign in locally without
contacting the server. Every other account is verified by campusapi and
reconciled with its canonical user record. Signing in with another role keeps
the previous role's session available to 'session show'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
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

		ctl, err := cfg.ClientProvider.Controller(cmd.Context())
		if err != nil {
			return err
		}

		res, err := ctl.SignIn(cmd.Context(), args[0], password)
		if errors.Is(err, sdk.ErrInvalidCredentials) {
			return fmt.Errorf("invalid email/phone or password")
		}
		if err != nil {
			return err
		}

		id := res.Identity
		pterm.Success.Printf("Signed in as %s (%s)\n", id.Name, id.Role)
		pterm.Info.Printf("User ID: %s\n", id.ID)
		if id.SchoolName != "" {
			pterm.Info.Printf("School: %s\n", id.SchoolName)
		}
		for _, w := range res.Warnings {
			pterm.Warning.Printf("%s: %v\n", strings.ReplaceAll(string(w.Step), "_", " "), w.Err)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&passwordFlag, "password", "p", "", "Account password (use --stdin to avoid shell history)")
	loginCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read the password from stdin")
}
