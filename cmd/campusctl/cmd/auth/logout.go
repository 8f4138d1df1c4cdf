package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pensezy/edutrack/cmd/campusctl/internal/config"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of every role",
	Long:  `Clears every stored role session and revokes the server session when one is held.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		ctl, err := cfg.ClientProvider.Controller(cmd.Context())
		if err != nil {
			return err
		}
		if err := ctl.SignOut(cmd.Context()); err != nil {
			return err
		}
		pterm.Success.Println("Logged out successfully")
		return nil
	},
}
