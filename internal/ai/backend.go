package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultInitTimeout = 5 * time.Minute

// Backend is the process-wide generation service. It is built once at
// startup and shared by every session; the provider warm-up runs at most
// once, on the first Init or Generate call.
type Backend struct {
	provider    Provider
	initTimeout time.Duration

	initOnce sync.Once
	initErr  error
}

func NewBackend(p Provider, initTimeout time.Duration) *Backend {
	if initTimeout <= 0 {
		initTimeout = defaultInitTimeout
	}
	return &Backend{provider: p, initTimeout: initTimeout}
}

// Init warms the provider up. A failed warm-up is not retried; later calls
// return the same error.
func (b *Backend) Init(ctx context.Context) error {
	b.initOnce.Do(func() {
		w, ok := b.provider.(Warmer)
		if !ok {
			return
		}
		// detached so one impatient request can't poison the shared init
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.initTimeout)
		defer cancel()
		if err := w.Warmup(ictx); err != nil {
			b.initErr = fmt.Errorf("warm up backend: %w", err)
		}
	})
	return b.initErr
}

func (b *Backend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := b.Init(ctx); err != nil {
		return "", err
	}
	return b.provider.Generate(ctx, prompt, maxTokens)
}
