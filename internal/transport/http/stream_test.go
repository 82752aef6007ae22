package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwery/internal/apperr"
	"qwery/internal/config"
)

type sseFrame struct {
	Event string
	Data  string
}

func parseSSE(t *testing.T, body string) []sseFrame {
	t.Helper()
	var frames []sseFrame
	for _, block := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var frame sseFrame
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				frame.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				frame.Data = strings.TrimPrefix(line, "data: ")
			}
		}
		require.NotEmpty(t, frame.Event, "frame without event: %q", block)
		frames = append(frames, frame)
	}
	return frames
}

func eventNames(frames []sseFrame) []string {
	names := make([]string, 0, len(frames))
	for _, f := range frames {
		names = append(names, f.Event)
	}
	return names
}

// fakeModel answers like an OpenAI compatible endpoint: the first tool-enabled
// turn asks for listDatasources, every later turn answers in text.
func fakeModel(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
			Tools []any `json:"tools"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		answered := false
		for _, m := range body.Messages {
			if m.Role == "tool" {
				answered = true
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if len(body.Tools) > 0 && !answered {
			_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{"content":"","tool_calls":[
				{"id":"call_1","type":"function","function":{"name":"listDatasources","arguments":"{}"}}]}}]}`))
			return
		}
		reply, _ := json.Marshal(map[string]any{"choices": []any{map[string]any{
			"finish_reason": "stop",
			"message":       map[string]any{"content": answer},
		}}})
		_, _ = w.Write(reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *testServer) conversation(token, projectID string, datasources ...string) string {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/projects/"+projectID+"/conversations", token, map[string]any{
		"title":       "Revenue questions",
		"datasources": datasources,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeID(s.t, env)
}

func TestStreamMessageEmitsAgentEvents(t *testing.T) {
	model := fakeModel(t, "You have one warehouse.")
	s := newTestServer(t, func(cfg *config.Config) { cfg.LLM.BaseURL = model.URL })
	token := s.register("ada")
	projectID := s.project(token)
	dsID := s.datasource(token, projectID, s.warehouse("warehouse.db"))
	conversationID := s.conversation(token, projectID, dsID)

	rec, _ := s.do(http.MethodPost, "/api/conversations/"+conversationID+"/messages/stream", token, map[string]string{
		"content": "Which datasources do I have?",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := parseSSE(t, rec.Body.String())
	names := eventNames(frames)
	assert.Contains(t, names, "state")
	assert.Contains(t, names, "tool_call")
	assert.Contains(t, names, "tool_result")
	assert.NotContains(t, names, "error")
	require.GreaterOrEqual(t, len(frames), 2)
	assert.Equal(t, "answer", frames[len(frames)-3].Event, "events: %v", names)
	assert.Equal(t, "done", frames[len(frames)-1].Event)

	for _, f := range frames {
		switch f.Event {
		case "tool_call":
			assert.Contains(t, f.Data, `"tool":"listDatasources"`)
		case "tool_result":
			assert.Contains(t, f.Data, dsID)
		case "answer":
			assert.Contains(t, f.Data, "You have one warehouse.")
		}
	}

	var done struct {
		Steps    int `json:"steps"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[len(frames)-1].Data), &done))
	assert.Equal(t, 2, done.Steps)
	require.Len(t, done.Messages, 2)
	assert.Equal(t, "tool", done.Messages[0].Role)
	assert.Equal(t, "You have one warehouse.", done.Messages[1].Content)

	rec, env := s.do(http.MethodGet, "/api/conversations/"+conversationID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[2].Role)
}

func TestStreamErrorFrameCarriesDomainMessage(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream secret: sk-live-1234", http.StatusBadGateway)
	}))
	t.Cleanup(failing.Close)

	s := newTestServer(t, func(cfg *config.Config) { cfg.LLM.BaseURL = failing.URL })
	token := s.register("ada")
	projectID := s.project(token)
	conversationID := s.conversation(token, projectID)

	rec, _ := s.do(http.MethodPost, "/api/conversations/"+conversationID+"/messages/stream", token, map[string]string{"content": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-live-1234")

	frames := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	require.Equal(t, "error", last.Event)
	var payload envelope
	require.NoError(t, json.Unmarshal([]byte(last.Data), &payload))
	assert.Equal(t, apperr.CodeLLMUnavailable, payload.Code)
	assert.Equal(t, "language model request failed", payload.Message)

	other := s.register("eve")
	rec, _ = s.do(http.MethodPost, "/api/conversations/"+conversationID+"/messages/stream", other, map[string]string{"content": "hi"})
	frames = parseSSE(t, rec.Body.String())
	require.Len(t, frames, 1)
	require.Equal(t, "error", frames[0].Event)
	require.NoError(t, json.Unmarshal([]byte(frames[0].Data), &payload))
	assert.Equal(t, apperr.CodeConversationNotFound, payload.Code)
	assert.Contains(t, payload.Message, "conversation not found")
}
