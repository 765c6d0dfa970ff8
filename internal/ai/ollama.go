package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "orca-mini:3b"
	}
	return &OllamaProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		// the caller's context bounds each request
		Client: &http.Client{},
	}
}

type ollamaGenerateReq struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type ollamaGenerateResp struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (p *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := ollamaGenerateReq{
		Model:  p.Model,
		Prompt: prompt,
		Stream: false,
	}
	if maxTokens > 0 {
		req.Options = &ollamaOptions{NumPredict: maxTokens}
	}
	decoded, err := p.post(ctx, req)
	if err != nil {
		return "", err
	}
	return decoded.Response, nil
}

// Warmup asks Ollama to load the model into memory. An empty prompt makes
// the server load the weights without generating anything.
func (p *OllamaProvider) Warmup(ctx context.Context) error {
	_, err := p.post(ctx, ollamaGenerateReq{Model: p.Model, Stream: false, KeepAlive: "30m"})
	return err
}

func (p *OllamaProvider) post(ctx context.Context, body ollamaGenerateReq) (*ollamaGenerateResp, error) {
	if p.Client == nil {
		return nil, errors.New("ollama: http client is nil")
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/generate", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama: status %d", resp.StatusCode)
	}

	var decoded ollamaGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != "" {
		return nil, errors.New(decoded.Error)
	}
	return &decoded, nil
}
