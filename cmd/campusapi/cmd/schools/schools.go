package schools

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pensezy/edutrack/cmd/campusapi/cmd/cmdutil"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/config"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/logger"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/repository"
)

// SchoolsCmd is the parent command for school management operations
var SchoolsCmd = &cobra.Command{
	Use:   "schools",
	Short: "Manage schools",
}

var (
	idFlag   string
	nameFlag string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a school",
	Long:  `Creates a school that accounts can be bound to with 'users create --school'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if nameFlag == "" {
			return fmt.Errorf("--name flag is required")
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

		school, err := bundle.Service.CreateSchool(context.Background(), idFlag, nameFlag)
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("school %q already exists", idFlag)
		}
		if err != nil {
			return fmt.Errorf("failed to create school: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "School created: %s (%s)\n", school.Name, school.ID)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&idFlag, "id", "", "School ID (a UUIDv7 is generated when empty)")
	createCmd.Flags().StringVar(&nameFlag, "name", "", "School name (required)")

	SchoolsCmd.AddCommand(createCmd)
}
