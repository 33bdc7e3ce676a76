package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/llm"
)

type fakeClient struct {
	err   error
	calls int
}

func (f *fakeClient) Respond(context.Context, llm.Request) (llm.Response, error) {
	f.calls++
	return llm.Response{}, f.err
}

func testRequest() llm.Request {
	return llm.Request{Input: []llm.InputItem{{Role: llm.InputUser, Content: "hello"}}}
}

func TestLimiterBacksOffOnRateLimited(t *testing.T) {
	limiter := New(60000, 60000)
	initialTPM := limiter.currentTPM

	wrapped := limiter.Wrap(&fakeClient{err: llm.ErrRateLimited})
	_, err := wrapped.Respond(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrRateLimited))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Less(t, limiter.currentTPM, initialTPM)
}

func TestLimiterProbesOnSuccess(t *testing.T) {
	limiter := New(60000, 120000)
	limiter.mu.Lock()
	initialTPM := limiter.currentTPM
	limiter.recoveryRate = 1000
	limiter.mu.Unlock()

	wrapped := limiter.Wrap(&fakeClient{})
	_, err := wrapped.Respond(context.Background(), testRequest())
	require.NoError(t, err)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Greater(t, limiter.currentTPM, initialTPM)
}

func TestLimiterClampsToMaxTPM(t *testing.T) {
	limiter := New(60000, 65000)
	limiter.mu.Lock()
	limiter.currentTPM = 64500
	limiter.recoveryRate = 1000
	limiter.mu.Unlock()

	wrapped := limiter.Wrap(&fakeClient{})
	_, err := wrapped.Respond(context.Background(), testRequest())
	require.NoError(t, err)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.LessOrEqual(t, limiter.currentTPM, limiter.maxTPM)
}

func TestWrapNilClientReturnsNil(t *testing.T) {
	assert.Nil(t, New(60000, 60000).Wrap(nil))
}
