package ai

import "context"

// Provider is a text-generation backend. Each call is independent: no
// conversation state is carried between calls.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Warmer is implemented by providers that need a slow one-time setup,
// such as loading model weights.
type Warmer interface {
	Warmup(ctx context.Context) error
}
