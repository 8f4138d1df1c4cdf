package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pensezy/edutrack/cmd/campusctl/cmd/auth"
	"github.com/pensezy/edutrack/cmd/campusctl/cmd/mode"
	"github.com/pensezy/edutrack/cmd/campusctl/cmd/session"
	"github.com/pensezy/edutrack/cmd/campusctl/internal/client"
	"github.com/pensezy/edutrack/cmd/campusctl/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "campusctl",
	Short: "EduTrack CLI - sign in and inspect sessions",
	Long: `campusctl is the command-line client for EduTrack. It signs school
accounts in against campusapi, keeps one session per role side by side and
reports whether the current session sees demonstration or live data.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level := zerolog.WarnLevel
		if settings.Debug {
			level = zerolog.DebugLevel
		}
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

		cfg := &config.GlobalConfig{
			Settings: settings,
			ClientProvider: client.NewProvider(client.Options{
				ServerURL:      settings.ServerURL,
				Home:           settings.Home,
				SessionBackend: settings.SessionBackend,
				RedisURL:       settings.RedisURL,
				DemoRule:       settings.DemoRule,
				Logger:         logger,
			}),
		}
		cmd.SetContext(config.InjectConfig(cmd.Context(), cfg))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cfg, ok := config.FromContext(cmd.Context()); ok {
			return cfg.ClientProvider.Close()
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("server", "", "campusapi server URL (env: EDUTRACK_SERVER_URL)")
	flags.String("home", "", "Directory for credentials, sessions and config.yaml (default ~/.edutrack, env: EDUTRACK_HOME)")
	flags.String("session-backend", "", "Session store: file or redis (env: EDUTRACK_SESSION_BACKEND)")
	flags.String("redis-url", "", "Redis URL for the redis session backend (env: EDUTRACK_REDIS_URL)")
	flags.String("demo-rule", "", `Expression marking demo principals, e.g. 'email matches "@demo\\."' (env: EDUTRACK_DEMO_RULE)`)
	flags.Bool("debug", false, "Log SDK activity to stderr")

	for key, flag := range map[string]string{
		"server_url":      "server",
		"home":            "home",
		"session_backend": "session-backend",
		"redis_url":       "redis-url",
		"demo_rule":       "demo-rule",
		"debug":           "debug",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(session.SessionCmd)
	rootCmd.AddCommand(mode.ModeCmd)
}
