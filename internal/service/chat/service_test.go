package chat_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/searchchat/internal/model/chat"
	"github.com/zhouzirui/searchchat/internal/service/ai"
	chat "github.com/zhouzirui/searchchat/internal/service/chat"
	"github.com/zhouzirui/searchchat/internal/service/resolver"
	"github.com/zhouzirui/searchchat/internal/service/search"
)

type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	fail    bool
}

func (m *scriptedLLM) Complete(_ context.Context, _ ai.Request) (ai.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errors.New("upstream down")
	}
	if len(m.replies) == 0 {
		return ai.TextResponse{Content: "default"}, nil
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	return ai.TextResponse{Content: next}, nil
}

type staticSearch struct{}

func (staticSearch) Search(context.Context, string, int) ([]search.Result, error) {
	return []search.Result{search.TextResult("t", "https://example.com", "evidence")}, nil
}

func newService(llm ai.LanguageModel) *chat.Service {
	return chat.NewService(resolver.New(llm, staticSearch{}, resolver.Options{}))
}

func TestServiceGetSession(t *testing.T) {
	svc := newService(&scriptedLLM{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if transcript.Len() != 0 {
		t.Fatalf("expected empty transcript, got %d turns", transcript.Len())
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(&scriptedLLM{})
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Ask(ctx, "missing", "hi"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceAskAppendsExchange(t *testing.T) {
	svc := newService(&scriptedLLM{replies: []string{"4"}})
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	reply, err := svc.Ask(ctx, session.ID, "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", reply.Answer)
	assert.Contains(t, reply.HTML, "4")
	assert.False(t, reply.Failed)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Transcript{model.UserTurn("What is 2+2?"), model.AssistantTurn("4")}, transcript)
}

func TestServiceAskKeepsQuestionVerbatim(t *testing.T) {
	svc := newService(&scriptedLLM{replies: []string{"4"}})
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	reply, err := svc.Ask(ctx, session.ID, "  What is 2+2?\n")
	require.NoError(t, err)
	assert.Equal(t, "  What is 2+2?\n", reply.Question)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, 2, transcript.Len())
	assert.Equal(t, model.UserTurn("  What is 2+2?\n"), transcript[0])
}

func TestServiceAskSearchFallback(t *testing.T) {
	svc := newService(&scriptedLLM{replies: []string{"I don't know.", "Synthesized."}})
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	reply, err := svc.Ask(ctx, session.ID, "What happened in the news today?")
	require.NoError(t, err)
	assert.True(t, reply.UsedSearch)
	assert.Equal(t, "Synthesized.", reply.Answer)
	require.Len(t, reply.Sources, 1)
	assert.Equal(t, "https://example.com", reply.Sources[0].URL)
}

func TestServiceAskFailureKeepsTranscriptForRetry(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"first"}}
	svc := newService(llm)
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	_, err := svc.Ask(ctx, session.ID, "one")
	require.NoError(t, err)

	llm.fail = true
	reply, err := svc.Ask(ctx, session.ID, "two")
	require.NoError(t, err)
	assert.True(t, reply.Failed)
	assert.Equal(t, chat.UnavailableAnswer, reply.Answer)

	transcript, _ := svc.LoadTranscript(ctx, session.ID)
	assert.Equal(t, 2, transcript.Len())

	llm.fail = false
	llm.replies = []string{"second"}
	reply, err = svc.Ask(ctx, session.ID, "two")
	require.NoError(t, err)
	assert.False(t, reply.Failed)

	transcript, _ = svc.LoadTranscript(ctx, session.ID)
	require.Equal(t, 4, transcript.Len())
	assert.Equal(t, model.AssistantTurn("second"), transcript[3])
}

func TestServiceAskEmptyQuestion(t *testing.T) {
	svc := newService(&scriptedLLM{})
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	_, err := svc.Ask(ctx, session.ID, "  ")
	assert.ErrorIs(t, err, chat.ErrQuestionRequired)
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	svc := newService(&scriptedLLM{})
	ctx := context.Background()
	a, _ := svc.CreateSession(ctx)
	b, _ := svc.CreateSession(ctx)

	_, err := svc.Ask(ctx, a.ID, "only in a")
	require.NoError(t, err)

	ta, _ := svc.LoadTranscript(ctx, a.ID)
	tb, _ := svc.LoadTranscript(ctx, b.ID)
	assert.Equal(t, 2, ta.Len())
	assert.Equal(t, 0, tb.Len())
}

func TestServiceDeleteSession(t *testing.T) {
	svc := newService(&scriptedLLM{})
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	require.NoError(t, svc.DeleteSession(ctx, session.ID))
	assert.ErrorIs(t, svc.DeleteSession(ctx, session.ID), chat.ErrSessionNotFound)
	_, err := svc.LoadTranscript(ctx, session.ID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

// slowLLM fails the test if two completions overlap.
type slowLLM struct {
	active atomic.Int32
	t      *testing.T
}

func (m *slowLLM) Complete(context.Context, ai.Request) (ai.Response, error) {
	if m.active.Add(1) > 1 {
		m.t.Error("concurrent resolutions on one session")
	}
	time.Sleep(5 * time.Millisecond)
	m.active.Add(-1)
	return ai.TextResponse{Content: "ok"}, nil
}

func TestServiceAskSerializesPerSession(t *testing.T) {
	svc := newService(&slowLLM{t: t})
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ask(ctx, session.ID, "q")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	transcript, _ := svc.LoadTranscript(ctx, session.ID)
	assert.Equal(t, 10, transcript.Len())
	for i := 0; i < transcript.Len(); i += 2 {
		assert.Equal(t, model.RoleUser, transcript[i].Role)
		assert.Equal(t, model.RoleAssistant, transcript[i+1].Role)
	}
}
