package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

func newTestServer(t *testing.T, status int, body string, check func(r *http.Request, req ChatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"data":[]}`))
		case "/v1/chat/completions":
			var req ChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if check != nil {
				check(r, req)
			}
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOpenAI_Chat(t *testing.T) {
	t.Setenv("SYNDISCO_TEST_KEY", "secret")
	srv := newTestServer(t, http.StatusOK,
		`{"model":"llama-3","choices":[{"message":{"content":"I disagree."},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`,
		func(r *http.Request, req ChatRequest) {
			if got := r.Header.Get("Authorization"); got != "Bearer secret" {
				t.Errorf("Authorization = %q", got)
			}
			if req.Model != "llama-3" {
				t.Errorf("model = %q", req.Model)
			}
			if req.MaxTokens != 300 {
				t.Errorf("max_tokens = %d", req.MaxTokens)
			}
			if len(req.Stop) != 1 || req.Stop[0] != "###" {
				t.Errorf("stop = %v", req.Stop)
			}
		})
	defer srv.Close()

	o := NewOpenAI(Config{Name: "local", URL: srv.URL, Model: "llama-3", APIKeyEnv: "SYNDISCO_TEST_KEY", MaxTokens: 300})
	resp, err := o.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		Stop:     []string{"###"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "I disagree." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 13 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, `{"error":"oom"}`, nil)
	defer srv.Close()

	o := NewOpenAI(Config{URL: srv.URL, Model: "m"})
	_, err := o.Chat(context.Background(), ChatRequest{})
	if !derrors.HasCode(err, derrors.ErrBackendAPIError) {
		t.Fatalf("expected %s, got %v", derrors.ErrBackendAPIError, err)
	}
	de, _ := derrors.AsDiscoError(err)
	if de.Context["status"] != "500" {
		t.Errorf("status context = %q", de.Context["status"])
	}
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"choices":[]}`, nil)
	defer srv.Close()

	o := NewOpenAI(Config{URL: srv.URL, Model: "m"})
	if _, err := o.Chat(context.Background(), ChatRequest{}); !derrors.HasCode(err, derrors.ErrBackendAPIError) {
		t.Errorf("expected api error, got %v", err)
	}
}

func TestOpenAI_IsAvailable(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "", nil)
	o := NewOpenAI(Config{URL: srv.URL, Model: "m", Timeout: time.Second})
	if !o.IsAvailable(context.Background()) {
		t.Error("expected available")
	}
	srv.Close()
	if o.IsAvailable(context.Background()) {
		t.Error("expected unavailable after close")
	}
}

func TestOpenAI_Defaults(t *testing.T) {
	o := NewOpenAI(Config{Model: "m"})
	if o.Name() != "openai" {
		t.Errorf("name = %q", o.Name())
	}
	if o.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q", o.baseURL)
	}
	if o.httpClient.Timeout != 120*time.Second {
		t.Errorf("timeout = %v", o.httpClient.Timeout)
	}
}
