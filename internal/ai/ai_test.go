package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Generate(t *testing.T) {
	var got ollamaGenerateReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaGenerateResp{Response: "hi there", Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "tiny")
	out, err := p.Generate(context.Background(), "hello", 200)
	require.NoError(t, err)

	assert.Equal(t, "hi there", out)
	assert.Equal(t, "tiny", got.Model)
	assert.Equal(t, "hello", got.Prompt)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	assert.Equal(t, 200, got.Options.NumPredict)
}

func TestOllamaProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"error field", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(ollamaGenerateResp{Error: "model not found"})
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("{")) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := NewOllamaProvider(srv.URL, "m").Generate(context.Background(), "x", 10)
			assert.Error(t, err)
		})
	}
}

func TestOllamaProvider_WarmupSendsEmptyPrompt(t *testing.T) {
	var got ollamaGenerateReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaGenerateResp{Done: true})
	}))
	defer srv.Close()

	require.NoError(t, NewOllamaProvider(srv.URL, "m").Warmup(context.Background()))
	assert.Empty(t, got.Prompt)
	assert.Nil(t, got.Options)
	assert.NotEmpty(t, got.KeepAlive)
}

func TestOpenRouterProvider_Generate(t *testing.T) {
	var got openRouterChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "localchat", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "key", "some/model", "", "localchat")
	out, err := p.Generate(context.Background(), "ping", 50)
	require.NoError(t, err)

	assert.Equal(t, "pong", out)
	assert.Equal(t, 50, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "ping", got.Messages[0].Content)
}

func TestOpenRouterProvider_RequiresKeyAndSurfacesErrors(t *testing.T) {
	_, err := NewOpenRouterProvider("", "", "m", "", "").Generate(context.Background(), "x", 1)
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	_, err = NewOpenRouterProvider(srv.URL, "k", "m", "", "").Generate(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Fake ", func(ctx context.Context, model string) (Provider, error) {
		return NewOllamaProvider("", model), nil
	})

	p, err := reg.Get(context.Background(), "FAKE", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", p.(*OllamaProvider).Model)

	_, err = reg.Get(context.Background(), "missing", "")
	assert.Error(t, err)
	assert.Equal(t, []string{"fake"}, reg.Names())
}

type warmingProvider struct {
	warmups atomic.Int32
	warmErr error
	delay   time.Duration
}

func (p *warmingProvider) Warmup(ctx context.Context) error {
	p.warmups.Add(1)
	time.Sleep(p.delay)
	return p.warmErr
}

func (p *warmingProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return "echo:" + prompt, nil
}

func TestBackend_WarmsUpOnceUnderConcurrency(t *testing.T) {
	prov := &warmingProvider{delay: 20 * time.Millisecond}
	b := NewBackend(prov, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := b.Generate(context.Background(), "x", 5)
			assert.NoError(t, err)
			assert.Equal(t, "echo:x", out)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), prov.warmups.Load())
}

func TestBackend_FailedWarmupIsSticky(t *testing.T) {
	prov := &warmingProvider{warmErr: errors.New("no gpu")}
	b := NewBackend(prov, time.Second)

	_, err := b.Generate(context.Background(), "x", 5)
	require.Error(t, err)
	_, err = b.Generate(context.Background(), "x", 5)
	require.Error(t, err)

	assert.Equal(t, int32(1), prov.warmups.Load())
}

func TestBackend_InitSurvivesCallerCancel(t *testing.T) {
	prov := &warmingProvider{}
	b := NewBackend(prov, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, b.Init(ctx))
}
