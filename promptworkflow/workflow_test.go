package promptworkflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/opsline-ai/incident-agent/incident"
)

type WorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env *testsuite.TestWorkflowEnvironment
	a   *Activities
}

func (s *WorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.a = &Activities{Model: "gpt-5"}
	s.env.RegisterActivity(s.a)
}

func (s *WorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func TestWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(WorkflowTestSuite))
}

func (s *WorkflowTestSuite) TestPlainReplyPath() {
	in := PromptInput{IncidentID: "inc-1", Question: "thanks team", Adapter: incident.AdapterDashboard, RequestedAt: time.Now()}

	s.env.OnActivity(s.a.ContextActivity, mock.Anything, "inc-1").
		Return(contextOutput{Incident: incident.Incident{ID: "inc-1"}}, nil)
	s.env.OnActivity(s.a.FetchActivity, mock.Anything, mock.Anything, "thanks team", mock.Anything).
		Return(fetchOutput{Text: "acknowledged"}, nil)
	s.env.OnActivity(s.a.RespondActivity, mock.Anything, "inc-1", "acknowledged").
		Return("acknowledged", nil)

	s.env.ExecuteWorkflow(Workflow, in)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result PromptResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	s.Equal(EffectReply, result.Effect)
	s.Equal("acknowledged", result.Message)
}

func (s *WorkflowTestSuite) TestApplyStatusPathWithSlackReactions() {
	in := PromptInput{IncidentID: "inc-1", Question: "mark as mitigating", Adapter: incident.AdapterSlack, Channel: "C1", MessageTS: "1.1", RequestedAt: time.Now()}

	s.env.OnActivity(s.a.ContextActivity, mock.Anything, "inc-1").
		Return(contextOutput{Incident: incident.Incident{ID: "inc-1"}}, nil)
	s.env.OnActivity(s.a.AddReactionActivity, mock.Anything, in).Return(nil)
	s.env.OnActivity(s.a.FetchActivity, mock.Anything, mock.Anything, "mark as mitigating", mock.Anything).
		Return(fetchOutput{Tool: toolUpdateStatus, Args: map[string]any{"status": "mitigating", "message": "rolling back"}}, nil)
	s.env.OnActivity(s.a.ApplyStatusActivity, mock.Anything, "inc-1", incident.StatusMitigating, "rolling back").
		Return("Status updated to mitigating: rolling back", nil)
	s.env.OnActivity(s.a.RemoveReactionActivity, mock.Anything, in).Return(nil)

	s.env.ExecuteWorkflow(Workflow, in)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result PromptResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	s.Equal(EffectStatus, result.Effect)
}

func (s *WorkflowTestSuite) TestSimilarPath() {
	in := PromptInput{IncidentID: "inc-1", Question: "has this happened before", Adapter: incident.AdapterDashboard, RequestedAt: time.Now()}

	s.env.OnActivity(s.a.ContextActivity, mock.Anything, "inc-1").
		Return(contextOutput{Incident: incident.Incident{ID: "inc-1"}}, nil)
	s.env.OnActivity(s.a.FetchActivity, mock.Anything, mock.Anything, "has this happened before", mock.Anything).
		Return(fetchOutput{Tool: toolPromptSimilarIncidents, Args: map[string]any{"question": "has this happened before"}}, nil)
	s.env.OnActivity(s.a.SimilarActivity, mock.Anything, "inc-1", "has this happened before", mock.Anything).
		Return("yes, see INC-42", nil)
	s.env.OnActivity(s.a.SimilarRespondActivity, mock.Anything, "inc-1", "yes, see INC-42").
		Return("yes, see INC-42", nil)

	s.env.ExecuteWorkflow(Workflow, in)

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result PromptResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	s.Equal(EffectSimilar, result.Effect)
	s.Equal("yes, see INC-42", result.Message)
}
