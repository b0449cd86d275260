package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

// OpenAI talks to an OpenAI-compatible chat completions server, such as
// llama.cpp's server or vLLM.
type OpenAI struct {
	name        string
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewOpenAI creates a new OpenAI-compatible backend.
func NewOpenAI(cfg Config) *OpenAI {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	url := cfg.URL
	if url == "" {
		url = "http://localhost:8080"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	var apiKey string
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	return &OpenAI{
		name:        name,
		baseURL:     url,
		model:       cfg.Model,
		apiKey:      apiKey,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (o *OpenAI) Name() string { return o.name }
func (o *OpenAI) Type() Type   { return TypeOpenAI }

func (o *OpenAI) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	o.authorize(req)
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *OpenAI) Capabilities() Capabilities {
	return Capabilities{
		ContextLimit: 8192,
		MaxTokens:    2048,
	}
}

func (o *OpenAI) authorize(req *http.Request) {
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage TokenUsage `json:"usage"`
}

func (o *OpenAI) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	if req.Model == "" {
		req.Model = o.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = o.maxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = o.temperature
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	o.authorize(httpReq)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, derrors.BackendWrap(
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)),
			derrors.ErrBackendAPIError, "backend returned an error").
			WithContext("backend", o.name).
			WithContext("status", strconv.Itoa(resp.StatusCode))
	}

	var cr completionResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return nil, err
	}
	if len(cr.Choices) == 0 {
		return nil, derrors.Backend(derrors.ErrBackendAPIError, "response has no choices").
			WithContext("backend", o.name)
	}

	model := cr.Model
	if model == "" {
		model = req.Model
	}
	return &ChatResponse{
		Content:      cr.Choices[0].Message.Content,
		Model:        model,
		FinishReason: cr.Choices[0].FinishReason,
		LatencyMS:    float64(time.Since(start).Milliseconds()),
		Usage:        cr.Usage,
	}, nil
}
