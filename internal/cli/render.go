package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/ashureev/agentchat/internal/domain"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	roleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))
)

// structured reports whether the selected output format bypasses the styled
// table rendering, and emits v in that format when it does.
func structured(v any) (bool, error) {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		return true, yaml.NewEncoder(os.Stdout).Encode(v)
	default:
		return false, nil
	}
}

func renderAgents(agents []domain.Agent) {
	if len(agents) == 0 {
		fmt.Println(headerStyle.Render("No agents available"))
		return
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%d agent(s)", len(agents))))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, titleStyle.Render("Name")+"\t"+titleStyle.Render("Label")+"\t"+titleStyle.Render("Model")+"\t")
	for _, a := range agents {
		label := a.AgentName
		if label == "" {
			label = a.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", idStyle.Render(a.Name), label, dateStyle.Render(a.AIModel))
	}
	_ = w.Flush()
}

func renderProjects(projects []domain.Project) {
	if len(projects) == 0 {
		fmt.Println(headerStyle.Render("No projects"))
		return
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%d project(s)", len(projects))))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, titleStyle.Render("Name")+"\t"+titleStyle.Render("Title")+"\t")
	for _, p := range projects {
		title := p.Title
		if title == "" {
			title = p.Name
		}
		fmt.Fprintf(w, "%s\t%s\t\n", idStyle.Render(p.Name), title)
	}
	_ = w.Flush()
}

func renderConversations(header string, conversations []domain.Conversation) {
	if len(conversations) == 0 {
		fmt.Println(headerStyle.Render(header + ": none"))
		return
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%s (%d)", header, len(conversations))))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Modified")+"\t")
	for _, c := range conversations {
		title := domain.DisplayTitle(c)
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", idStyle.Render(c.Name), title, dateStyle.Render(c.Modified))
	}
	_ = w.Flush()
}

func renderTranscript(messages []domain.Message) {
	for _, m := range messages {
		fmt.Println(roleStyle.Render(strings.ToUpper(m.Role)))
		fmt.Println(m.Content)
		fmt.Println()
	}
}
