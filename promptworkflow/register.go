package promptworkflow

import "go.temporal.io/sdk/worker"

// Register registers the Prompt Workflow and its activities on w.
func Register(w worker.Worker, a *Activities) {
	w.RegisterWorkflow(Workflow)
	w.RegisterActivity(a)
}
