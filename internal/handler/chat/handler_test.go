package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/searchchat/internal/service/ai"
	chatservice "github.com/zhouzirui/searchchat/internal/service/chat"
	"github.com/zhouzirui/searchchat/internal/service/resolver"
	"github.com/zhouzirui/searchchat/internal/service/search"
)

type echoLLM struct{ err error }

func (m echoLLM) Complete(_ context.Context, req ai.Request) (ai.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return ai.TextResponse{Content: "echo: " + req.Message}, nil
}

type noSearch struct{}

func (noSearch) Search(context.Context, string, int) ([]search.Result, error) { return nil, nil }

func setupRouter(llm ai.LanguageModel) (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService(resolver.New(llm, noSearch{}, resolver.Options{}))
	handler := New(chatSvc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return body.ID
}

func ask(r http.Handler, sessionID, question string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(map[string]string{"question": question})
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestAskReturnsAnswer(t *testing.T) {
	r, _ := setupRouter(echoLLM{})
	id := createSession(t, r)

	resp := ask(r, id, "What is 2+2?")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var reply chatservice.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Answer != "echo: What is 2+2?" {
		t.Fatalf("unexpected answer %q", reply.Answer)
	}
	if reply.Failed {
		t.Fatal("reply should not be marked failed")
	}
}

func TestAskUnknownSession(t *testing.T) {
	r, _ := setupRouter(echoLLM{})

	if resp := ask(r, "missing", "hi"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	r, _ := setupRouter(echoLLM{})
	id := createSession(t, r)

	if resp := ask(r, id, "   "); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAskInvalidBody(t *testing.T) {
	r, _ := setupRouter(echoLLM{})
	id := createSession(t, r)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/messages", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAskUpstreamFailureIsDisplayable(t *testing.T) {
	r, chatSvc := setupRouter(echoLLM{err: errors.New("down")})
	id := createSession(t, r)

	resp := ask(r, id, "hi")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var reply chatservice.Reply
	_ = json.NewDecoder(resp.Body).Decode(&reply)
	if !reply.Failed || reply.Answer != chatservice.UnavailableAnswer {
		t.Fatalf("expected unavailable reply, got %+v", reply)
	}

	transcript, err := chatSvc.LoadTranscript(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if transcript.Len() != 0 {
		t.Fatalf("transcript should be unchanged, got %d turns", transcript.Len())
	}
}

func TestGetSessionIncludesTranscript(t *testing.T) {
	r, _ := setupRouter(echoLLM{})
	id := createSession(t, r)
	ask(r, id, "hello")

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body sessionView
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Transcript) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(body.Transcript))
	}
	if body.Transcript[1].HTML == "" {
		t.Fatal("assistant turn should carry rendered html")
	}
}

func TestDeleteSession(t *testing.T) {
	r, _ := setupRouter(echoLLM{})
	id := createSession(t, r)

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+id, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
