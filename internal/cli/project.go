package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/agentchat/internal/chat"
)

var (
	projectDescription string
	assignFromProject  string
	assignFromUnknown  bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sidebar, err := a.service.Sidebar(cmd.Context())
		if err != nil {
			return err
		}
		if done, err := structured(sidebar.Projects); done {
			return err
		}
		renderProjects(sidebar.Projects)
		return nil
	},
}

var projectNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		name, err := a.service.CreateProject(cmd.Context(), args[0], projectDescription)
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s\n", name)
		return nil
	},
}

var projectConversationsCmd = &cobra.Command{
	Use:   "conversations <project>",
	Short: "List one project's conversations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		conversations, err := a.service.ProjectConversations(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if done, err := structured(conversations); done {
			return err
		}
		renderConversations("Conversations in "+args[0], conversations)
		return nil
	},
}

var projectAssignCmd = &cobra.Command{
	Use:   "assign <chat-id> <project>",
	Short: "Move a conversation into a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.service.Assign(cmd.Context(), chat.AssignRequest{
			ChatID:        args[0],
			TargetProject: args[1],
			PriorProject:  assignFromProject,
			PriorUnknown:  assignFromUnknown,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Moved %s into %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	projectNewCmd.Flags().StringVarP(&projectDescription, "description", "d", "", "Project description")
	projectAssignCmd.Flags().StringVar(&assignFromProject, "from", "", "Project currently listing the conversation")
	projectAssignCmd.Flags().BoolVar(&assignFromUnknown, "from-unknown", false, "Prior project membership is unknown")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectNewCmd)
	projectCmd.AddCommand(projectConversationsCmd)
	projectCmd.AddCommand(projectAssignCmd)
	rootCmd.AddCommand(projectCmd)
}
