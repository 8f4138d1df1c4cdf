package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pensezy/edutrack/cmd/campusapi/cmd/schools"
	"github.com/pensezy/edutrack/cmd/campusapi/cmd/users"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/config"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/logger"
	"github.com/rs/zerolog"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "campusapi",
	Short: "EduTrack campus API server",
	Long: `campusapi serves account login, session tokens and the canonical
user and school records used by EduTrack clients.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log = logger.New(cfg.Debug)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("db-url", "", "Database connection URL (env: CAMPUS_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: CAMPUS_SERVER_ADDR)")
	flags.String("server-url", "", "Public server base URL (env: CAMPUS_SERVER_URL)")
	flags.Bool("debug", false, "Enable debug logging (env: CAMPUS_DEBUG)")

	bindFlag("database_url", "db-url")
	bindFlag("server_addr", "server-addr")
	bindFlag("server_url", "server-url")
	bindFlag("debug", "debug")

	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(schools.SchoolsCmd)
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
