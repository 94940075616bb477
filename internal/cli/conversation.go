package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ashureev/agentchat/internal/chat"
	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/stream"
)

var (
	listedInProject string
	convertFormat   string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open, view, and continue conversations",
}

var chatNewCmd = &cobra.Command{
	Use:   "new <agent>",
	Short: "Open a new conversation with the named agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		chatID, err := a.service.CreateChat(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Created conversation %s\n", chatID)
		return nil
	},
}

var chatShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Print a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		detail, err := a.service.Conversation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if detail == nil {
			return fmt.Errorf("conversation %s not found", args[0])
		}
		if done, err := structured(detail); done {
			return err
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("%s (agent: %s)", args[0], detail.Agent)))
		fmt.Println()
		renderTranscript(detail.Messages)
		return nil
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <chat-id> <message>",
	Short: "Send a message and stream the reply",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		chatID, message := args[0], args[1]

		detail, err := a.service.Conversation(ctx, chatID)
		if err != nil {
			return err
		}
		var seed []domain.Message
		if detail != nil {
			seed = detail.Messages
		}
		transcript := chat.NewTranscript(seed)

		done := make(chan error, 1)
		dispose, err := a.service.SendTurn(ctx, transcript, stream.TurnRequest{
			ChatID:  chatID,
			Message: message,
		}, chat.TurnEvents{
			OnDelta: func(delta string) {
				fmt.Print(delta)
			},
			OnEnd: func(_ *stream.Frame) {
				fmt.Println()
				done <- nil
			},
			OnError: func(err error) {
				fmt.Println()
				done <- err
			},
		})
		if err != nil {
			return err
		}

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		defer signal.Stop(interrupt)

		select {
		case err := <-done:
			return err
		case <-interrupt:
			dispose()
			<-done
			fmt.Println("Interrupted")
			return nil
		}
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <chat-id> <new-title>",
	Short: "Retitle a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.service.Rename(cmd.Context(), args[0], args[1], listedInProject); err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %q\n", args[0], args[1])
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive <chat-id>",
	Short: "Archive a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.service.Archive(cmd.Context(), args[0], listedInProject); err != nil {
			return err
		}
		fmt.Printf("Archived %s\n", args[0])
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <url>...",
	Short: "Convert documents at URLs into chat-pasteable text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		raw, err := a.rpc.ConvertURLs(cmd.Context(), args, convertFormat)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(raw, '\n'))
		return err
	},
}

func init() {
	renameCmd.Flags().StringVar(&listedInProject, "project", "", "Project currently listing the conversation")
	archiveCmd.Flags().StringVar(&listedInProject, "project", "", "Project currently listing the conversation")
	convertCmd.Flags().StringVar(&convertFormat, "format", "markdown", "Export format: markdown, text, or json")

	chatCmd.AddCommand(chatNewCmd)
	chatCmd.AddCommand(chatShowCmd)
	chatCmd.AddCommand(chatSendCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(convertCmd)
}
