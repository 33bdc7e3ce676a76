// Package ratelimit wraps an llm.Client with an adaptive tokens-per-minute
// budget, backing off on provider rate-limit signals and probing back up
// during quiet periods.
package ratelimit

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/opsline-ai/incident-agent/llm"
)

// Limiter applies an AIMD-style adaptive token bucket on top of an
// llm.Client. It estimates the token cost of each request, blocks callers
// until capacity is available, and adjusts its effective tokens-per-minute
// budget in response to rate-limiting signals from the provider.
//
// The limiter is process-local. Construct one per process and wrap the
// suggestion engine's or context agent's llm.Client with it before passing
// that client to callers.
type Limiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM float64
	minTPM     float64
	maxTPM     float64

	recoveryRate float64
}

type limitedClient struct {
	next    llm.Client
	limiter *Limiter
}

// New constructs a Limiter configured with an initial tokens-per-minute
// budget and an upper bound. When initialTPM is zero or negative it defaults
// to 60000; when maxTPM is zero or below initialTPM it is clamped to
// initialTPM.
func New(initialTPM, maxTPM float64) *Limiter {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &Limiter{
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

// Wrap returns an llm.Client that enforces the adaptive limit before
// delegating to next.
func (l *Limiter) Wrap(next llm.Client) llm.Client {
	if next == nil {
		return nil
	}
	return &limitedClient{next: next, limiter: l}
}

// Respond enforces the limiter before delegating to the wrapped client.
func (c *limitedClient) Respond(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := c.limiter.wait(ctx, req); err != nil {
		return llm.Response{}, err
	}
	resp, err := c.next.Respond(ctx, req)
	c.limiter.observe(err)
	return resp, err
}

func (l *Limiter) wait(ctx context.Context, req llm.Request) error {
	return l.limiter.WaitN(ctx, estimateTokens(req))
}

func (l *Limiter) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if errors.Is(err, llm.ErrRateLimited) {
		l.backoff()
	}
}

func (l *Limiter) backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM * 0.5
	if newTPM < l.minTPM {
		newTPM = l.minTPM
	}
	l.setTPM(newTPM)
}

func (l *Limiter) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM + l.recoveryRate
	if newTPM > l.maxTPM {
		newTPM = l.maxTPM
	}
	l.setTPM(newTPM)
}

// setTPM updates the limiter's effective budget. Callers must hold l.mu.
func (l *Limiter) setTPM(tpm float64) {
	if tpm == l.currentTPM {
		return
	}
	l.currentTPM = tpm
	l.limiter.SetLimit(rate.Limit(tpm / 60.0))
	l.limiter.SetBurst(int(tpm))
}

// estimateTokens computes a cheap heuristic for the number of tokens in the
// request: it counts characters across all input items, converts them to
// tokens using a fixed ratio, and adds a small buffer for provider framing.
func estimateTokens(req llm.Request) int {
	charCount := 0
	for _, item := range req.Input {
		charCount += len(item.Content)
	}
	if charCount <= 0 {
		return 500
	}
	tokens := charCount/3 + 500
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
