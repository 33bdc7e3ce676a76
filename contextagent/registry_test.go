package contextagent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/contextagent/memstore"
	"github.com/opsline-ai/incident-agent/llm"
)

func TestRegistryCreatesOneAgentPerIncident(t *testing.T) {
	created := 0
	reg := NewRegistry(func(incidentID string) *Agent {
		created++
		return New(memstore.New(), &scriptedClient{responses: []llm.Response{{Text: skipSummary}}}, &stubSink{}, emptySource{}, Options{Model: "gpt-5"})
	})

	_, err := reg.AddContext(context.Background(), AddContextInput{IncidentID: "inc-1", ToEventID: 1, RequestedAt: time.Now()})
	require.NoError(t, err)
	_, err = reg.AddContext(context.Background(), AddContextInput{IncidentID: "inc-1", ToEventID: 2, RequestedAt: time.Now()})
	require.NoError(t, err)
	_, err = reg.AddContext(context.Background(), AddContextInput{IncidentID: "inc-2", ToEventID: 1, RequestedAt: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, 2, created)
}

func TestRegistryAddPromptRoutesByIncidentID(t *testing.T) {
	reg := NewRegistry(func(incidentID string) *Agent {
		// Responses: summarization, the loop's investigate call, the answer.
		return New(memstore.New(), &scriptedClient{responses: []llm.Response{{Text: skipSummary}, {}, {Text: "an answer"}}}, &stubSink{}, emptySource{}, Options{Model: "gpt-5"})
	})

	_, err := reg.AddContext(context.Background(), AddContextInput{IncidentID: "inc-1", ToEventID: 1, RequestedAt: time.Now()})
	require.NoError(t, err)

	result, err := reg.AddPrompt(context.Background(), "inc-1", AddPromptInput{Question: "what happened?", RequestedAt: time.Now()})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "an answer", result.Answer)
}

func TestRegistryAddPromptUnknownIncidentReturnsNilUntilBound(t *testing.T) {
	reg := NewRegistry(func(incidentID string) *Agent {
		return New(memstore.New(), &scriptedClient{}, &stubSink{}, emptySource{}, Options{Model: "gpt-5"})
	})

	// AddPrompt on a freshly created (never-AddContext'd) Agent returns nil,
	// nil: the Agent only binds on first use, which AddPrompt alone does
	// not trigger.
	result, err := reg.AddPrompt(context.Background(), "inc-3", AddPromptInput{Question: "q", RequestedAt: time.Now()})
	require.NoError(t, err)
	assert.Nil(t, result)
}
