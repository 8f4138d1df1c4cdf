package mode

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pensezy/edutrack/cmd/campusctl/internal/config"
	"github.com/pensezy/edutrack/pkg/sdk"
)

var refresh bool

// ModeCmd prints the detected data mode
var ModeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Show whether the server session sees demonstration or live data",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		detector, err := cfg.ClientProvider.Detector()
		if err != nil {
			return err
		}

		var entry sdk.ModeEntry
		if refresh {
			entry = detector.Refresh(cmd.Context())
		} else {
			entry = detector.Detect(cmd.Context())
		}

		switch entry.Mode {
		case sdk.ModeLive:
			pterm.Success.Println("Live data")
		default:
			pterm.Info.Println("Demonstration data")
		}
		if entry.Identity != nil {
			pterm.Info.Printf("Principal: %s (%s)\n", entry.Identity.Name, entry.Identity.Role)
			if entry.Identity.SchoolName != "" {
				pterm.Info.Printf("School: %s\n", entry.Identity.SchoolName)
			}
		}
		if entry.Degraded {
			pterm.Warning.Printf("Server unreachable, showing last known mode: %v\n", entry.Err)
		}
		return nil
	},
}

func init() {
	ModeCmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the cached result and detect again")
}
