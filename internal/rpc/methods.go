package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/errs"
)

// ListAgents returns the agents available for new conversations.
func (c *Client) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	raw, err := c.Call(ctx, c.method("get_available_agents"), http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	payload := unwrap(raw)
	if payload == nil {
		return nil, nil
	}
	var agents []domain.Agent
	if err := json.Unmarshal(payload, &agents); err != nil {
		return nil, fmt.Errorf("%w: agent list: %v", errs.ErrProtocol, err)
	}
	return agents, nil
}

// CreateChat opens a new conversation with the named agent and returns its
// identifier.
func (c *Client) CreateChat(ctx context.Context, agentName string) (string, error) {
	raw, err := c.Call(ctx, c.method("create_new_chat"), http.MethodPost,
		map[string]string{"agent_name": agentName})
	if err != nil {
		return "", err
	}
	id := chatIDFromResponse(raw)
	if id == "" {
		return "", fmt.Errorf("%w: create chat returned no identifier", errs.ErrProtocol)
	}
	return id, nil
}

// GetConversation fetches the full transcript of one conversation.
func (c *Client) GetConversation(ctx context.Context, chatID string) (*domain.ConversationDetail, error) {
	raw, err := c.Call(ctx, c.method("get_chat_conversation"), http.MethodPost,
		map[string]string{"chat_history_name": chatID})
	if err != nil {
		return nil, err
	}
	payload := unwrap(raw)
	if payload == nil {
		return nil, nil
	}
	var detail domain.ConversationDetail
	if err := json.Unmarshal(payload, &detail); err != nil {
		return nil, fmt.Errorf("%w: conversation %s: %v", errs.ErrProtocol, chatID, err)
	}
	return &detail, nil
}

// GetSidebar fetches the combined project list and conversation summary in a
// single call.
func (c *Client) GetSidebar(ctx context.Context) (*domain.Sidebar, error) {
	raw, err := c.Call(ctx, c.method("get_chat_history_with_projects"), http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	payload := unwrap(raw)
	if payload == nil {
		return nil, fmt.Errorf("%w: empty sidebar response", errs.ErrProtocol)
	}
	var sidebar domain.Sidebar
	if err := json.Unmarshal(payload, &sidebar); err != nil {
		return nil, fmt.Errorf("%w: sidebar: %v", errs.ErrProtocol, err)
	}
	return &sidebar, nil
}

// GetProjectConversations fetches the conversation list of one project.
func (c *Client) GetProjectConversations(ctx context.Context, projectName string) ([]domain.Conversation, error) {
	raw, err := c.Call(ctx, c.method("get_project_conversations"), http.MethodPost,
		map[string]string{"project_name": projectName})
	if err != nil {
		return nil, err
	}
	payload := unwrap(raw)
	if payload == nil {
		return nil, nil
	}
	var conversations []domain.Conversation
	if err := json.Unmarshal(payload, &conversations); err != nil {
		return nil, fmt.Errorf("%w: project %s conversations: %v", errs.ErrProtocol, projectName, err)
	}
	return conversations, nil
}

// CreateProject creates a project and returns its server-assigned name.
func (c *Client) CreateProject(ctx context.Context, title, description string) (string, error) {
	raw, err := c.Call(ctx, c.method("create_project"), http.MethodPost,
		map[string]string{"project_title": title, "description": description})
	if err != nil {
		return "", err
	}
	name := projectNameFromResponse(raw)
	if name == "" {
		return "", fmt.Errorf("%w: create project returned no name", errs.ErrProtocol)
	}
	return name, nil
}

// RenameConversation changes a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, chatID, newName string) error {
	_, err := c.Call(ctx, c.method("rename_conversation"), http.MethodPost,
		map[string]string{"chat_history_name": chatID, "new_name": newName})
	return err
}

// AssignToProject moves a conversation into the named project.
func (c *Client) AssignToProject(ctx context.Context, chatID, projectName string) error {
	_, err := c.Call(ctx, c.method("assign_to_project"), http.MethodPost,
		map[string]string{"chat_history_name": chatID, "project_name": projectName})
	return err
}

// ArchiveConversation archives a conversation; the server excludes archived
// conversations from subsequent fetches.
func (c *Client) ArchiveConversation(ctx context.Context, chatID string) error {
	_, err := c.Call(ctx, c.method("archive_conversation"), http.MethodPost,
		map[string]string{"chat_history_name": chatID})
	return err
}

// ConvertURLs asks the server to convert documents at the given URLs into a
// chat-pasteable export format ("markdown", "text", or "json").
func (c *Client) ConvertURLs(ctx context.Context, urls []string, format string) (json.RawMessage, error) {
	if format == "" {
		format = "markdown"
	}
	raw, err := c.Call(ctx, c.method("convert_urls_for_chat"), http.MethodPost, map[string]any{
		"urls":          urls,
		"export_format": format,
		"options":       map[string]any{},
	})
	if err != nil {
		return nil, err
	}
	return unwrap(raw), nil
}

// chatIDFromResponse resolves a created chat's identifier, trying the
// enveloped message, then name, then chat_name.
func chatIDFromResponse(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var parsed struct {
		Message  json.RawMessage `json:"message"`
		Name     string          `json:"name"`
		ChatName string          `json:"chat_name"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	if id := stringFromRaw(parsed.Message); id != "" {
		return id
	}
	if parsed.Name != "" {
		return parsed.Name
	}
	return parsed.ChatName
}

// projectNameFromResponse resolves a created project's name, trying
// message.name, then message.project_name, then a scalar message.
func projectNameFromResponse(raw json.RawMessage) string {
	payload := unwrap(raw)
	if payload == nil {
		return ""
	}
	var parsed struct {
		Name        string `json:"name"`
		ProjectName string `json:"project_name"`
	}
	if err := json.Unmarshal(payload, &parsed); err == nil {
		if parsed.Name != "" {
			return parsed.Name
		}
		if parsed.ProjectName != "" {
			return parsed.ProjectName
		}
	}
	return stringFromRaw(payload)
}

// stringFromRaw decodes a raw JSON scalar string, returning "" for anything
// else.
func stringFromRaw(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
