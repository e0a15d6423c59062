package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func messagesServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	var req map[string]any
	srv := messagesServer(t, http.StatusOK, `{
		"id":"msg_1","type":"message","role":"assistant","model":"test-model",
		"content":[{"type":"text","text":"{\"topics\":"},{"type":"text","text":"[\"AI\"]}"}],
		"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}
	}`, &req)

	g, err := New(Config{APIKey: "test-key", Model: "test-model", MaxTokens: 256, BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "system rules", "user text")
	require.NoError(t, err)
	require.Equal(t, `{"topics":["AI"]}`, out)

	require.Equal(t, "test-model", req["model"])
	require.EqualValues(t, 256, req["max_tokens"])
	system := req["system"].([]any)
	require.Equal(t, "system rules", system[0].(map[string]any)["text"])
	messages := req["messages"].([]any)
	require.Equal(t, "user", messages[0].(map[string]any)["role"])
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.ErrorContains(t, err, "api key")

	srv := messagesServer(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, nil)
	g, err := New(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "s", "u")
	require.ErrorContains(t, err, "anthropic messages")

	empty := messagesServer(t, http.StatusOK, `{
		"id":"msg_2","type":"message","role":"assistant","model":"m","content":[],
		"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}
	}`, nil)
	g, err = New(Config{APIKey: "test-key", BaseURL: empty.URL})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "s", "u")
	require.ErrorContains(t, err, "no text")
}
