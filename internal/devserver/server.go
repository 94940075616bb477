// Package devserver implements a local stand-in for the remote chat endpoint.
// It speaks the same wire contract as the real server: form login issuing a
// sid cookie, method-style JSON calls wrapped in {"message": ...} envelopes,
// and a server-push streaming channel. State is in-memory and per-process.
package devserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/middleware"
)

// Config parameterizes the development server.
type Config struct {
	Username       string
	Password       string
	CSRFHeader     string
	MethodPrefix   string
	AllowedOrigins []string
	StreamDelay    time.Duration
	Logger         *slog.Logger
}

// conversation is the server-side record backing one chat thread.
type conversation struct {
	summary  domain.Conversation
	agent    string
	messages []domain.Message
	archived bool
}

// Server holds all mutable endpoint state behind one mutex. Request volume is
// a single developer, so there is no point in finer-grained locking.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu            sync.Mutex
	sessions      map[string]string // sid -> username
	csrf          map[string]string // sid -> anti-forgery token
	agents        []domain.Agent
	projects      []domain.Project
	conversations map[string]*conversation
	chatSeq       int
	projectSeq    int
}

// New creates a development server seeded with a few agents.
func New(cfg Config) *Server {
	if cfg.Username == "" {
		cfg.Username = "developer@example.com"
	}
	if cfg.Password == "" {
		cfg.Password = "developer"
	}
	if cfg.CSRFHeader == "" {
		cfg.CSRFHeader = "X-Frappe-CSRF-Token"
	}
	if cfg.MethodPrefix == "" {
		cfg.MethodPrefix = "agent_hub.api"
	}
	if cfg.StreamDelay <= 0 {
		cfg.StreamDelay = 25 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]string),
		csrf:     make(map[string]string),
		agents: []domain.Agent{
			{Name: "general-assistant", AgentName: "General Assistant", AIModel: "gpt-4o"},
			{Name: "code-helper", AgentName: "Code Helper", AIModel: "claude-sonnet"},
			{Name: "doc-writer", AgentName: "Doc Writer", AIModel: "gpt-4o-mini"},
		},
		conversations: make(map[string]*conversation),
	}
}

// Handler builds the HTTP routing tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(s.cfg.AllowedOrigins, s.cfg.CSRFHeader))

	r.Post("/api/method/login", s.handleLogin)
	r.Get("/api/method/frappe.auth.get_logged_user", s.handleWhoAmI)
	r.HandleFunc("/api/method/{method}", s.handleMethod)

	return r
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed login form")
		return
	}
	usr := r.PostFormValue("usr")
	pwd := r.PostFormValue("pwd")
	if usr != s.cfg.Username || pwd != s.cfg.Password {
		writeError(w, http.StatusUnauthorized, "invalid login credentials")
		return
	}

	sid := uuid.NewString()
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[sid] = usr
	s.csrf[sid] = token
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     "sid",
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(s.cfg.CSRFHeader, token)
	writeMessage(w, "Logged In")
	s.logger.Info("login", "user", usr)
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	sid, user, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	s.mu.Lock()
	token := s.csrf[sid]
	s.mu.Unlock()
	w.Header().Set(s.cfg.CSRFHeader, token)
	writeMessage(w, user)
}

// handleMethod dispatches app-prefixed method calls.
func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	name, ok := strings.CutPrefix(method, s.cfg.MethodPrefix+".")
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown method %s", method))
		return
	}

	_, user, authed := s.authenticate(r)
	if !authed {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	switch name {
	case "get_available_agents":
		s.handleAgents(w)
	case "create_new_chat":
		s.handleCreateChat(w, r, user)
	case "get_chat_conversation":
		s.handleConversation(w, r)
	case "get_chat_history_with_projects":
		s.handleSidebar(w)
	case "get_project_conversations":
		s.handleProjectConversations(w, r)
	case "create_project":
		s.handleCreateProject(w, r)
	case "rename_conversation":
		s.handleRename(w, r)
	case "assign_to_project":
		s.handleAssign(w, r)
	case "archive_conversation":
		s.handleArchive(w, r)
	case "convert_urls_for_chat":
		s.handleConvertURLs(w, r)
	case "send_message_streaming":
		s.handleStream(w, r)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown method %s", method))
	}
}

func (s *Server) handleAgents(w http.ResponseWriter) {
	s.mu.Lock()
	agents := make([]domain.Agent, len(s.agents))
	copy(agents, s.agents)
	s.mu.Unlock()
	writeMessage(w, agents)
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request, user string) {
	var req struct {
		AgentName string `json:"agent_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AgentName == "" {
		writeError(w, http.StatusBadRequest, "agent_name is required")
		return
	}

	s.mu.Lock()
	s.chatSeq++
	id := fmt.Sprintf("CHAT-%04d", s.chatSeq)
	s.conversations[id] = &conversation{
		summary: domain.Conversation{
			Name:     id,
			Agent:    req.AgentName,
			Owner:    user,
			Modified: time.Now().UTC().Format(time.RFC3339),
		},
		agent: req.AgentName,
	}
	s.mu.Unlock()

	writeMessage(w, id)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chat_history_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	conv, ok := s.conversations[req.ChatID]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, fmt.Sprintf("conversation %s not found", req.ChatID))
		return
	}
	detail := domain.ConversationDetail{
		Agent:    conv.agent,
		Status:   "Open",
		Messages: append([]domain.Message(nil), conv.messages...),
	}
	s.mu.Unlock()

	writeMessage(w, detail)
}

func (s *Server) handleSidebar(w http.ResponseWriter) {
	s.mu.Lock()
	sidebar := domain.Sidebar{
		Projects:             append([]domain.Project(nil), s.projects...),
		ProjectConversations: []domain.Conversation{},
		RecentConversations:  []domain.Conversation{},
	}
	for _, conv := range s.conversations {
		if conv.archived {
			continue
		}
		if conv.summary.Project != "" {
			sidebar.ProjectConversations = append(sidebar.ProjectConversations, conv.summary)
		} else {
			sidebar.RecentConversations = append(sidebar.RecentConversations, conv.summary)
		}
	}
	s.mu.Unlock()

	writeMessage(w, sidebar)
}

func (s *Server) handleProjectConversations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectName string `json:"project_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	list := []domain.Conversation{}
	for _, conv := range s.conversations {
		if !conv.archived && conv.summary.Project == req.ProjectName {
			list = append(list, conv.summary)
		}
	}
	s.mu.Unlock()

	writeMessage(w, list)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"project_title"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "project_title is required")
		return
	}

	s.mu.Lock()
	s.projectSeq++
	name := fmt.Sprintf("PROJ-%04d", s.projectSeq)
	s.projects = append(s.projects, domain.Project{
		Name:        name,
		Title:       req.Title,
		Description: req.Description,
	})
	s.mu.Unlock()

	writeMessage(w, map[string]string{"name": name, "project_name": name})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID  string `json:"chat_history_name"`
		NewName string `json:"new_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	conv, ok := s.conversations[req.ChatID]
	if ok {
		conv.summary.Title = req.NewName
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("conversation %s not found", req.ChatID))
		return
	}
	writeMessage(w, "ok")
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID      string `json:"chat_history_name"`
		ProjectName string `json:"project_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	conv, ok := s.conversations[req.ChatID]
	if ok {
		conv.summary.Project = req.ProjectName
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("conversation %s not found", req.ChatID))
		return
	}
	writeMessage(w, "ok")
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chat_history_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	conv, ok := s.conversations[req.ChatID]
	if ok {
		conv.archived = true
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("conversation %s not found", req.ChatID))
		return
	}
	writeMessage(w, "ok")
}

func (s *Server) handleConvertURLs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs   []string `json:"urls"`
		Format string   `json:"export_format"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Format == "" {
		req.Format = "markdown"
	}

	converted := make([]map[string]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		converted = append(converted, map[string]string{
			"url":     u,
			"format":  req.Format,
			"content": fmt.Sprintf("# Converted\n\nSource: %s\n", u),
		})
	}
	writeMessage(w, map[string]any{"documents": converted})
}

// authenticate resolves the session from the sid cookie and, for mutating
// requests, checks the anti-forgery token.
func (s *Server) authenticate(r *http.Request) (sid, user string, ok bool) {
	c, err := r.Cookie("sid")
	if err != nil || c.Value == "" {
		return "", "", false
	}

	s.mu.Lock()
	user, ok = s.sessions[c.Value]
	token := s.csrf[c.Value]
	s.mu.Unlock()
	if !ok {
		return "", "", false
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		if r.Header.Get(s.cfg.CSRFHeader) != token {
			return "", "", false
		}
	}
	return c.Value, user, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeMessage(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"message": v})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"exc_type": http.StatusText(status), "message": message})
}
