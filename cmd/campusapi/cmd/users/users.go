package users

import "github.com/spf13/cobra"

// UsersCmd is the parent command for account management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage login accounts",
	Long:  `Commands for provisioning login accounts directly from the server.`,
}

func init() {
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address, used as the login identifier")
	createCmd.Flags().StringVar(&phoneFlag, "phone", "", "Phone number, the login identifier when no email is given")
	createCmd.Flags().StringVar(&nameFlag, "name", "", "Full name of the user (required)")
	createCmd.Flags().StringVar(&roleFlag, "role", "", "Role: parent, teacher, student, principal, secretary or admin (required)")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the account (use --stdin to avoid shell history)")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")
	createCmd.Flags().BoolVar(&demoFlag, "demo", false, "Mark the account as a demo account")
	createCmd.Flags().StringVar(&schoolFlag, "school", "", "ID of the school the user belongs to")

	UsersCmd.AddCommand(createCmd)
}
