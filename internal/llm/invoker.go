package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Invoker is the model-invocation capability. Implementations are selected
// by configuration; callers only ever see this interface.
type Invoker interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Close() error
	ModelInfo() map[string]interface{}
}

// RateLimiter implements token bucket rate limiting.
type RateLimiter struct {
	mu              sync.Mutex
	tokens          int
	maxTokens       int
	refillRate      time.Duration
	lastRefill      time.Time
	minuteResetTime time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		tokens:          requestsPerMinute,
		maxTokens:       requestsPerMinute,
		refillRate:      time.Minute / time.Duration(requestsPerMinute),
		lastRefill:      time.Now(),
		minuteResetTime: time.Now().Add(time.Minute),
	}
}

// Wait blocks until a token is available.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()

	now := time.Now()
	if now.After(rl.minuteResetTime) {
		rl.minuteResetTime = now.Add(time.Minute)
		rl.tokens = rl.maxTokens
		rl.lastRefill = now
	}

	elapsed := now.Sub(rl.lastRefill)
	tokensToAdd := int(elapsed / rl.refillRate)
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens <= 0 {
		waitTime := rl.refillRate
		rl.mu.Unlock()

		select {
		case <-time.After(waitTime):
			rl.mu.Lock()
			rl.tokens = 1
			rl.lastRefill = time.Now()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	rl.tokens--
	rl.mu.Unlock()
	return nil
}

// RateLimitedInvoker wraps an invoker with token-bucket rate limiting.
type RateLimitedInvoker struct {
	invoker Invoker
	limiter *RateLimiter
	logger  *zap.Logger
}

// NewRateLimitedInvoker wraps an invoker with rate limiting.
func NewRateLimitedInvoker(invoker Invoker, requestsPerMinute int, logger *zap.Logger) *RateLimitedInvoker {
	return &RateLimitedInvoker{
		invoker: invoker,
		limiter: NewRateLimiter(requestsPerMinute),
		logger:  logger,
	}
}

func (p *RateLimitedInvoker) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.invoker.Complete(ctx, system, prompt)
}

func (p *RateLimitedInvoker) Close() error {
	return p.invoker.Close()
}

func (p *RateLimitedInvoker) ModelInfo() map[string]interface{} {
	return p.invoker.ModelInfo()
}
