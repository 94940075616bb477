package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	loginUser     string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the configured server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		user := loginUser
		if user == "" {
			if hints := a.session.Hints(ctx); hints != nil && hints.LastUsername != "" {
				user = hints.LastUsername
				fmt.Printf("Using last username %s\n", user)
			}
		}
		if user == "" {
			return fmt.Errorf("no username given, pass --user")
		}

		password := loginPassword
		if password == "" {
			fmt.Print("Password: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		if err := a.session.Login(ctx, user, password); err != nil {
			return err
		}
		fmt.Printf("Logged in to %s as %s\n", a.cfg.ServerBaseURL, user)

		// Prime the sidebar so the first listing command is instant.
		a.service.WarmSidebar(ctx)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.session.Logout(cmd.Context())
		fmt.Println("Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "Username (defaults to the last used one)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
