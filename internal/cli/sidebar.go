package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/agentchat/internal/cache"
)

var sidebarRefresh bool

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents available for new conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		agents, err := a.service.Agents(cmd.Context())
		if err != nil {
			return err
		}
		if done, err := structured(agents); done {
			return err
		}
		renderAgents(agents)
		return nil
	},
}

var sidebarCmd = &cobra.Command{
	Use:   "sidebar",
	Short: "Show projects and recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if sidebarRefresh {
			a.service.RefreshAll(ctx)
		}

		sidebar, err := a.service.Sidebar(ctx)
		if err != nil {
			return err
		}
		if done, err := structured(sidebar); done {
			return err
		}
		recent := sidebar.RecentConversations
		if len(recent) > cache.RecentDisplayCap {
			recent = recent[:cache.RecentDisplayCap]
		}
		renderProjects(sidebar.Projects)
		fmt.Println()
		renderConversations("Recent conversations", recent)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Drop every cached listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.service.RefreshAll(cmd.Context())
		fmt.Println("Cache cleared")
		return nil
	},
}

func init() {
	sidebarCmd.Flags().BoolVar(&sidebarRefresh, "refresh", false, "Drop cached listings before fetching")
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(sidebarCmd)
	rootCmd.AddCommand(refreshCmd)
}
