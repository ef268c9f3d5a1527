package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contentaugment/internal/adapter/outbound/gemini"
	"contentaugment/internal/domain/errors/domain"
	"contentaugment/internal/port/outbound"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *gemini.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := gemini.NewClient(&gemini.ClientConfig{
		APIKey:  "test-gemini-key",
		BaseURL: server.URL,
		Model:   "gemini-test",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := gemini.NewClient(nil)
	require.Error(t, err)

	_, err = gemini.NewClient(&gemini.ClientConfig{APIKey: "   "})
	require.EqualError(t, err, "API key cannot be empty or whitespace")

	_, err = gemini.NewClient(&gemini.ClientConfig{APIKey: "k", BaseURL: "ftp://nope"})
	require.EqualError(t, err, "invalid base URL")

	_, err = gemini.NewClient(&gemini.ClientConfig{APIKey: "k", Temperature: 3})
	require.Error(t, err)

	client, err := gemini.NewClient(&gemini.ClientConfig{APIKey: " k "})
	require.NoError(t, err)
	cfg := client.GetConfig()
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, gemini.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, gemini.DefaultModel, cfg.Model)
	assert.Equal(t, "gemini", client.Provider())
}

func TestClient_Transform_Success(t *testing.T) {
	var captured gemini.GenerateContentRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-gemini-key", r.Header.Get("X-Goog-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "# Title\n"}, {"text": "See [docs](/docs)."}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 8},
			"modelVersion": "gemini-test-001"
		}`))
	})

	result, err := client.Transform(context.Background(), outbound.TransformRequest{
		ItemID:      "a",
		Content:     "# Title\nSee docs.",
		Instruction: "Add links.",
	})
	require.NoError(t, err)
	assert.Equal(t, "# Title\nSee [docs](/docs).", result.Text)
	assert.Equal(t, "gemini-test-001", result.Model)
	assert.Equal(t, 12, result.InputTokens)
	assert.Equal(t, 8, result.OutputTokens)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "Add links.", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "# Title\nSee docs.", captured.Contents[0].Parts[0].Text)
}

func TestClient_Transform_Throttled(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		retryAf string
	}{
		{"http 429", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, "17"},
		{"resource exhausted on 503", http.StatusServiceUnavailable, `{"error":{"code":503,"message":"exhausted","status":"RESOURCE_EXHAUSTED"}}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				if tt.retryAf != "" {
					w.Header().Set("Retry-After", tt.retryAf)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Transform(context.Background(), outbound.TransformRequest{ItemID: "a", Content: "text"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrProviderThrottled)

			var augErr *outbound.AugmentationError
			require.True(t, errors.As(err, &augErr))
			assert.Equal(t, tt.status, augErr.StatusCode)
			if tt.retryAf != "" {
				assert.Equal(t, 17*time.Second, augErr.RetryAfter)
			}
		})
	}
}

func TestClient_Transform_HTTPErrorIsItemFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend exploded","status":"INTERNAL"}}`))
	})

	_, err := client.Transform(context.Background(), outbound.TransformRequest{ItemID: "a", Content: "text"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrProviderThrottled)
	assert.Equal(t, "HTTP 500: backend exploded", err.Error())
}

func TestClient_Transform_NoContent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no candidates", `{"candidates": []}`, "no content generated"},
		{"blocked prompt", `{"candidates": [], "promptFeedback": {"blockReason": "SAFETY"}}`, "no content generated: prompt blocked (SAFETY)"},
		{"safety finish", `{"candidates": [{"content": {"parts": [{"text": "x"}]}, "finishReason": "SAFETY"}]}`, "no content generated: finish reason SAFETY"},
		{"empty text", `{"candidates": [{"content": {"parts": [{"text": "  "}]}, "finishReason": "STOP"}]}`, "no content generated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Transform(context.Background(), outbound.TransformRequest{ItemID: "a", Content: "text"})
			require.Error(t, err)
			assert.EqualError(t, err, tt.want)

			var augErr *outbound.AugmentationError
			require.True(t, errors.As(err, &augErr))
			assert.Equal(t, outbound.ErrorTypeContent, augErr.Type)
		})
	}
}

func TestClient_Transform_EmptyContentNeverCallsAPI(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
	})

	_, err := client.Transform(context.Background(), outbound.TransformRequest{ItemID: "a", Content: " "})
	require.Error(t, err)
	assert.False(t, called)
}

func TestClient_Transform_CanceledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Transform(ctx, outbound.TransformRequest{ItemID: "a", Content: "text"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
