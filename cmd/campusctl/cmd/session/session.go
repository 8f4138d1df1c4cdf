package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pensezy/edutrack/cmd/campusctl/internal/config"
	"github.com/pensezy/edutrack/pkg/sdk"
)

var (
	roleFlag   string
	jsonOutput bool
)

// SessionCmd is the parent command for session inspection
var SessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect stored sessions",
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the session a role-scoped page would use",
	Long: `Shows the identity stored for --role. The role's own session is used
first, then the current session when it belongs to the same role.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		role, err := sdk.ParseRole(roleFlag)
		if err != nil {
			return err
		}
		store, err := cfg.ClientProvider.SessionStore(cmd.Context())
		if err != nil {
			return err
		}

		identity, err := sdk.ReadSession(cmd.Context(), store, role)
		var mismatch *sdk.RoleMismatchError
		switch {
		case errors.As(err, &mismatch):
			return fmt.Errorf("the current session belongs to a %s, not a %s; sign in as a %s first", mismatch.Actual, mismatch.Expected, mismatch.Expected)
		case errors.Is(err, sdk.ErrNoSession):
			return fmt.Errorf("no %s session; run 'campusctl auth login'", role)
		case err != nil:
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(identity)
		}

		pterm.DefaultSection.Printf("%s session\n", role)
		rows := pterm.TableData{
			{"ID", identity.ID},
			{"Name", identity.Name},
			{"Email", identity.Email},
			{"Phone", identity.Phone},
			{"School", identity.SchoolName},
			{"Demo", fmt.Sprintf("%t", identity.Demo)},
		}
		_ = pterm.DefaultTable.WithData(rows).Render()
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&roleFlag, "role", "", "Role whose session to show (required)")
	_ = showCmd.MarkFlagRequired("role")
	showCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the identity as JSON")

	SessionCmd.AddCommand(showCmd)
}
