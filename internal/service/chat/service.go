package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/searchchat/internal/model/chat"
	"github.com/zhouzirui/searchchat/internal/service/resolver"
	"github.com/zhouzirui/searchchat/internal/service/search"
	"github.com/zhouzirui/searchchat/pkg/log"
	"github.com/zhouzirui/searchchat/pkg/render"
)

var (
	ErrQuestionRequired = errors.New("question is required")
	ErrSessionNotFound  = errors.New("session not found")
)

// UnavailableAnswer is shown instead of an answer when an upstream call fails.
const UnavailableAnswer = "The assistant is temporarily unavailable. Please try again."

// Resolver is the answer-resolution capability the service drives.
type Resolver interface {
	Resolve(ctx context.Context, question string, transcript chat.Transcript) (resolver.Result, error)
}

// Reply is what the presentation layer receives for one question.
type Reply struct {
	SessionID  string          `json:"sessionId"`
	Question   string          `json:"question"`
	Answer     string          `json:"answer"`
	HTML       string          `json:"html"`
	UsedSearch bool            `json:"usedSearch"`
	Sources    []search.Result `json:"sources,omitempty"`
	Failed     bool            `json:"failed,omitempty"`
}

type sessionState struct {
	session    chat.Session
	transcript chat.Transcript
	// serializes resolutions for this session
	turn sync.Mutex
}

// Service owns sessions and their transcripts. Nothing is persisted.
type Service struct {
	resolver Resolver

	mu       sync.RWMutex
	sessions map[string]*sessionState
}

// NewService bootstraps the in-memory chat service.
func NewService(r Resolver) *Service {
	return &Service{
		resolver: r,
		sessions: make(map[string]*sessionState),
	}
}

// CreateSession provisions an anonymous session with an empty transcript.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionState{
		session:    session,
		transcript: make(chat.Transcript, 0, 16),
	}
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	state, err := s.state(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return state.session, nil
}

// LoadTranscript returns a copy of the session transcript.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) (chat.Transcript, error) {
	state, err := s.state(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return state.transcript.Clone(), nil
}

// DeleteSession ends a session and drops its transcript.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Ask resolves question within the session. Upstream failures do not surface as
// errors: they produce a Failed reply and leave the transcript untouched so the
// same question can be retried.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (Reply, error) {
	if strings.TrimSpace(question) == "" {
		return Reply{}, ErrQuestionRequired
	}

	state, err := s.state(sessionID)
	if err != nil {
		return Reply{}, err
	}

	state.turn.Lock()
	defer state.turn.Unlock()

	s.mu.RLock()
	transcript := state.transcript
	s.mu.RUnlock()

	logger := log.Component(ctx, "chat")

	result, err := s.resolver.Resolve(ctx, question, transcript)
	if err != nil {
		if errors.Is(err, resolver.ErrEmptyQuestion) {
			return Reply{}, ErrQuestionRequired
		}
		logger.Warn().Err(err).Str("session", sessionID).Msg("resolution failed, transcript unchanged")
		return Reply{
			SessionID: sessionID,
			Question:  question,
			Answer:    UnavailableAnswer,
			HTML:      render.MarkdownToHTML(UnavailableAnswer),
			Failed:    true,
		}, nil
	}

	s.mu.Lock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.mu.Unlock()
		return Reply{}, ErrSessionNotFound
	}
	state.transcript = result.Transcript
	s.mu.Unlock()

	logger.Info().
		Str("session", sessionID).
		Bool("search", result.UsedSearch).
		Int("turns", result.Transcript.Len()).
		Msg("question resolved")

	return Reply{
		SessionID:  sessionID,
		Question:   question,
		Answer:     result.Answer,
		HTML:       render.MarkdownToHTML(result.Answer),
		UsedSearch: result.UsedSearch,
		Sources:    result.Sources,
	}, nil
}

func (s *Service) state(sessionID string) (*sessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state, nil
}
