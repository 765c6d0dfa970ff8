package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/suPer8Hu/localchat/internal/audit"
)

type fakeVerifier struct {
	users map[string]string
	err   error
}

func (f fakeVerifier) Verify(_ context.Context, username, password string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	p, ok := f.users[username]
	return ok && p == password, nil
}

type genFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

func (f genFunc) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

func echoGen(_ context.Context, prompt string, _ int) (string, error) {
	return "echo: " + prompt, nil
}

var errBackend = errors.New("backend exploded")

func failingGen(context.Context, string, int) (string, error) {
	return "", errBackend
}

type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Publish(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeThrottle struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
	allowErr error
}

func newFakeThrottle(limit int) *fakeThrottle {
	return &fakeThrottle{max: limit, failures: map[string]int{}}
}

func (f *fakeThrottle) Allow(_ context.Context, username string) (bool, error) {
	if f.allowErr != nil {
		return false, f.allowErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[username] < f.max, nil
}

func (f *fakeThrottle) Failure(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[username]++
	return nil
}

func (f *fakeThrottle) Success(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, username)
	return nil
}

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
