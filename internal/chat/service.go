package chat

import (
	"context"
	"log/slog"

	"github.com/ashureev/agentchat/internal/cache"
	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/rpc"
	"github.com/ashureev/agentchat/internal/stream"
)

// Service ties reads, writes, and invalidations together. Reads are
// stale-while-revalidate-if-empty: a fresh cached value short-circuits the
// network entirely; a cold partition triggers exactly one fetch that
// repopulates every partition the response can satisfy.
//
// Mutations call the server first. A failed mutation leaves all cache state
// untouched; a successful one invalidates every partition it could have
// changed.
type Service struct {
	rpc    *rpc.Client
	stream *stream.Client
	cache  *cache.Coordinator
	logger *slog.Logger
}

// NewService creates the orchestration service. Constructed once at startup
// and passed by reference to every consumer.
func NewService(rpcClient *rpc.Client, streamClient *stream.Client, coordinator *cache.Coordinator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		rpc:    rpcClient,
		stream: streamClient,
		cache:  coordinator,
		logger: logger,
	}
}

// Agents returns the agent list, from cache when fresh.
func (s *Service) Agents(ctx context.Context) ([]domain.Agent, error) {
	if agents, ok := s.cache.LoadAgents(ctx, 0); ok {
		return agents, nil
	}
	agents, err := s.rpc.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SaveAgents(ctx, agents)
	return agents, nil
}

// Sidebar returns projects plus unfiled conversations. When both partitions
// are fresh no network call is made; otherwise a single fetch repopulates
// both from one response.
func (s *Service) Sidebar(ctx context.Context) (*domain.Sidebar, error) {
	projects, projectsOK := s.cache.LoadProjects(ctx, 0)
	recent, recentOK := s.cache.LoadRecent(ctx, 0)
	if projectsOK && recentOK {
		return &domain.Sidebar{Projects: projects, RecentConversations: recent}, nil
	}

	sidebar, err := s.rpc.GetSidebar(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SaveProjects(ctx, sidebar.Projects)
	s.cache.SaveRecent(ctx, sidebar.RecentConversations)
	return sidebar, nil
}

// WarmSidebar prefetches the sidebar. Passive: failures are logged and
// swallowed, leaving any existing cache in place.
func (s *Service) WarmSidebar(ctx context.Context) {
	if _, err := s.Sidebar(ctx); err != nil {
		s.logger.Debug("sidebar warm-up failed", "error", err)
	}
}

// ProjectConversations returns one project's conversation list, from cache
// when fresh.
func (s *Service) ProjectConversations(ctx context.Context, project string) ([]domain.Conversation, error) {
	if conversations, ok := s.cache.LoadProjectConversations(ctx, project, 0); ok {
		return conversations, nil
	}
	conversations, err := s.rpc.GetProjectConversations(ctx, project)
	if err != nil {
		return nil, err
	}
	s.cache.SaveProjectConversations(ctx, project, conversations)
	return conversations, nil
}

// Conversation fetches one full transcript. Transcripts are not cached.
func (s *Service) Conversation(ctx context.Context, chatID string) (*domain.ConversationDetail, error) {
	return s.rpc.GetConversation(ctx, chatID)
}

// CreateChat opens a new conversation. The unfiled list now has a new member,
// so that partition is invalidated.
func (s *Service) CreateChat(ctx context.Context, agentName string) (string, error) {
	chatID, err := s.rpc.CreateChat(ctx, agentName)
	if err != nil {
		return "", err
	}
	s.cache.ClearRecent(ctx)
	return chatID, nil
}

// CreateProject creates a project and invalidates the project partition.
// The unfiled list is untouched.
func (s *Service) CreateProject(ctx context.Context, title, description string) (string, error) {
	name, err := s.rpc.CreateProject(ctx, title, description)
	if err != nil {
		return "", err
	}
	s.cache.ClearProjects(ctx)
	return name, nil
}

// Rename retitles a conversation and invalidates whichever partition lists
// it: the named project's, or the unfiled list when project is empty. The
// caller patches its in-memory copy (domain.PatchTitle) before this durable
// invalidation so the visible list never flashes stale data.
func (s *Service) Rename(ctx context.Context, chatID, newName, project string) error {
	if err := s.rpc.RenameConversation(ctx, chatID, newName); err != nil {
		return err
	}
	if project == "" {
		s.cache.ClearRecent(ctx)
	} else {
		s.cache.ClearProjectConversations(ctx, project)
	}
	return nil
}

// AssignRequest names the partitions an assignment touches. PriorProject is
// the project currently listing the conversation, empty when it sits in the
// unfiled list. Set PriorUnknown when prior membership cannot be determined;
// every project partition is then invalidated.
type AssignRequest struct {
	ChatID        string
	TargetProject string
	PriorProject  string
	PriorUnknown  bool
}

// Assign moves a conversation into a project, invalidating the unfiled list
// (removal source), the destination partition (insertion target), and the
// prior project's partition when there is one.
func (s *Service) Assign(ctx context.Context, req AssignRequest) error {
	if err := s.rpc.AssignToProject(ctx, req.ChatID, req.TargetProject); err != nil {
		return err
	}
	s.cache.ClearRecent(ctx)
	switch {
	case req.PriorUnknown:
		s.cache.ClearAllProjectConversations(ctx)
	case req.PriorProject != "":
		s.cache.ClearProjectConversations(ctx, req.TargetProject)
		s.cache.ClearProjectConversations(ctx, req.PriorProject)
	default:
		s.cache.ClearProjectConversations(ctx, req.TargetProject)
	}
	return nil
}

// Archive removes a conversation from circulation and invalidates whichever
// partition lists it. The server excludes archived conversations from all
// subsequent fetches.
func (s *Service) Archive(ctx context.Context, chatID, project string) error {
	if err := s.rpc.ArchiveConversation(ctx, chatID); err != nil {
		return err
	}
	if project == "" {
		s.cache.ClearRecent(ctx)
	} else {
		s.cache.ClearProjectConversations(ctx, project)
	}
	return nil
}

// RefreshAll is the manual "refresh cache" action: every partition is cleared
// unconditionally.
func (s *Service) RefreshAll(ctx context.Context) {
	s.cache.ClearAll(ctx)
}

// TurnEvents are the caller-facing callbacks of one streaming turn. The
// transcript is already updated when each fires.
type TurnEvents struct {
	OnDelta func(delta string)
	OnFrame func(frame *stream.Frame)
	OnEnd   func(frame *stream.Frame)
	OnError func(err error)
}

// SendTurn starts one streaming exchange. The user message and an assistant
// placeholder are appended to the transcript immediately; these optimistic
// entries survive even if the turn later fails, which is accepted and
// documented behavior. The returned disposer cancels the turn.
func (s *Service) SendTurn(ctx context.Context, transcript *Transcript, req stream.TurnRequest, events TurnEvents) (func(), error) {
	transcript.BeginTurn(req.Message)

	return s.stream.Send(ctx, req, stream.Handlers{
		OnFrame: func(frame *stream.Frame) {
			delta := ""
			if frame.Running() {
				delta = frame.DeltaContent
			}
			if delta != "" {
				transcript.AppendDelta(delta)
			}
			if events.OnFrame != nil {
				events.OnFrame(frame)
			}
			if delta != "" && events.OnDelta != nil {
				events.OnDelta(delta)
			}
		},
		OnError: func(err error) {
			if events.OnError != nil {
				events.OnError(err)
			}
		},
		OnEnd: func(frame *stream.Frame) {
			if events.OnEnd != nil {
				events.OnEnd(frame)
			}
		},
	})
}
