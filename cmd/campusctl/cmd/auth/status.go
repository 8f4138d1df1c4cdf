package auth

import (
	"errors"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pensezy/edutrack/cmd/campusctl/internal/config"
	"github.com/pensezy/edutrack/pkg/sdk"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		ctx := cmd.Context()

		ctl, err := cfg.ClientProvider.Controller(ctx)
		if err != nil {
			return err
		}
		st := ctl.Hydrate(ctx)

		pterm.DefaultSection.Println("Authentication Status")
		if st.Identity == nil {
			pterm.Info.Println("Not signed in")
		} else {
			pterm.Info.Printf("Current: %s (%s, %s)\n", st.Identity.Name, st.Identity.Role, st.Identity.ID)
		}

		files, err := cfg.ClientProvider.Files()
		if err != nil {
			return err
		}
		creds, err := files.LoadCredentials()
		switch {
		case errors.Is(err, sdk.ErrNoCredentials):
			pterm.Info.Println("No server session")
		case err != nil:
			pterm.Warning.Printf("Unreadable server credentials: %v\n", err)
		case creds.IsExpired():
			pterm.Warning.Printf("Server session expired at %s\n", creds.ExpiresAt.Format(time.RFC1123))
		default:
			pterm.Info.Printf("Server session valid until %s\n", creds.ExpiresAt.Format(time.RFC1123))
		}

		store, err := cfg.ClientProvider.SessionStore(ctx)
		if err != nil {
			return err
		}
		table := pterm.TableData{{"ROLE", "NAME", "USER ID", "SIGNED IN"}}
		for _, role := range sdk.Roles {
			rec, err := store.Load(ctx, role.Namespace())
			if errors.Is(err, sdk.ErrNoSession) {
				continue
			}
			if err != nil {
				pterm.Warning.Printf("%s session unreadable: %v\n", role, err)
				continue
			}
			table = append(table, []string{
				string(role),
				rec.Identity.Name,
				rec.Identity.ID,
				rec.LoggedInAt.Local().Format(time.DateTime),
			})
		}
		if len(table) > 1 {
			pterm.DefaultSection.Println("Role Sessions")
			_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
		}
		return nil
	},
}
