package domain

// Agent describes an assistant available for new conversations.
type Agent struct {
	Name      string `json:"name"`
	AgentName string `json:"agent_name,omitempty"`
	AIModel   string `json:"ai_model,omitempty"`
}

// Project groups conversations under a user-chosen title.
type Project struct {
	Name        string `json:"name"`
	Title       string `json:"project_title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Conversation describes one chat thread as listed in the sidebar or a project.
// A conversation belongs to at most one project at a time; an empty Project
// field means it sits in the unfiled ("recent") list.
type Conversation struct {
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	Agent    string `json:"agent,omitempty"`
	Owner    string `json:"owner,omitempty"`
	Project  string `json:"project,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// Message roles as used in transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one ordered transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationDetail is the full server-held state of one conversation.
type ConversationDetail struct {
	Agent    string    `json:"agent"`
	Status   string    `json:"status"`
	Messages []Message `json:"messages"`
}

// Sidebar is the combined summary fetched in a single call: the project list
// plus conversations split by project membership.
type Sidebar struct {
	Projects             []Project      `json:"projects"`
	ProjectConversations []Conversation `json:"conversations_with_projects"`
	RecentConversations  []Conversation `json:"conversations_without_projects"`
}

// DisplayTitle resolves the user-visible title of a conversation:
// explicit title, then agent name, then owner, then the raw identifier.
func DisplayTitle(c Conversation) string {
	if c.Title != "" {
		return c.Title
	}
	if c.Agent != "" {
		return c.Agent
	}
	if c.Owner != "" {
		return c.Owner
	}
	return c.Name
}

// PatchTitle rewrites the title of the named conversation in place and
// reports whether it was found. Used to keep an in-memory listing current
// ahead of the durable cache invalidation that follows a rename.
func PatchTitle(list []Conversation, name, title string) bool {
	for i := range list {
		if list[i].Name == name {
			list[i].Title = title
			return true
		}
	}
	return false
}

// RemoveConversation deletes the named conversation from a listing, preserving
// order. Returns the filtered list and whether anything was removed.
func RemoveConversation(list []Conversation, name string) ([]Conversation, bool) {
	for i := range list {
		if list[i].Name == name {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}
