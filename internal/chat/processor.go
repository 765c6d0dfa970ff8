package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/localchat/internal/audit"
	"github.com/suPer8Hu/localchat/internal/common"
	"go.uber.org/zap"
)

// Generator is the text-generation backend shared by all sessions.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

type ProcessorConfig struct {
	MaxTokens       int
	Timeout         time.Duration
	FallbackMessage string
}

const (
	defaultMaxTokens = 200
	defaultTimeout   = 120 * time.Second
	defaultFallback  = "I apologize, but I'm having trouble generating a response at the moment. Please try again."
)

// Processor turns one user submission into one recorded turn. Backend
// failures never reach the caller; they are logged and answered with the
// fallback message.
type Processor struct {
	gen    Generator
	cfg    ProcessorConfig
	log    *zap.Logger
	events audit.Publisher
	now    func() time.Time
}

func NewProcessor(gen Generator, cfg ProcessorConfig, log *zap.Logger, events audit.Publisher) *Processor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = defaultFallback
	}
	if events == nil {
		events = audit.Nop{}
	}
	return &Processor{gen: gen, cfg: cfg, log: log, events: events, now: time.Now}
}

// Process generates a reply for userText and appends the turn to s.
// The returned error is only ever a precondition failure: the session is
// anonymous, the text is blank, or another turn is still running.
func (p *Processor) Process(ctx context.Context, s *Session, userText string) (Turn, error) {
	started, ok := s.currentLogin()
	if !ok {
		return Turn{}, common.ErrNotAuthenticated
	}
	if strings.TrimSpace(userText) == "" {
		return Turn{}, common.ErrEmptyMessage
	}
	if !s.tryBeginTurn() {
		return Turn{}, common.ErrTurnInFlight
	}
	defer s.endTurn()

	start := p.now()
	reply, err := p.generate(ctx, userText)
	fallback := err != nil
	if fallback {
		p.log.Warn("generation failed, using fallback",
			zap.String("session_id", s.ID()),
			zap.Duration("cost", time.Since(start)),
			zap.Error(err),
		)
		reply = p.cfg.FallbackMessage
	}

	turn, err := s.recordTurnFor(started, userText, reply, fallback)
	if err != nil {
		p.log.Info("turn discarded, session changed login while generating",
			zap.String("session_id", s.ID()),
		)
		return Turn{}, err
	}

	audit.Emit(ctx, p.events, p.log, audit.Event{
		Type:       audit.ChatTurn,
		Username:   started.identity,
		SessionID:  s.ID(),
		Fallback:   fallback,
		DurationMS: p.now().Sub(start).Milliseconds(),
		OccurredAt: turn.Timestamp,
	})
	return turn, nil
}

type genResult struct {
	text string
	err  error
}

func (p *Processor) generate(ctx context.Context, prompt string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	done := make(chan genResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- genResult{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		text, err := p.gen.Generate(gctx, prompt, p.cfg.MaxTokens)
		done <- genResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("%w: %w", common.ErrGenerationFailure, res.err)
		}
		if strings.TrimSpace(res.text) == "" {
			return "", fmt.Errorf("%w: empty reply", common.ErrGenerationFailure)
		}
		return res.text, nil
	case <-gctx.Done():
		return "", fmt.Errorf("%w: %w", common.ErrGenerationFailure, gctx.Err())
	}
}
