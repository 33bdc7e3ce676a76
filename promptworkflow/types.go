package promptworkflow

import (
	"time"

	"github.com/opsline-ai/incident-agent/event"
	"github.com/opsline-ai/incident-agent/incident"
)

// PromptInput is the workflow's single input: one human prompt routed
// against one incident.
type PromptInput struct {
	IncidentID  string
	Question    string
	Adapter     incident.Adapter
	Channel     string
	MessageTS   string
	RequestedAt time.Time
}

// Effect names the single observable outcome a prompt run produces.
type Effect string

const (
	EffectStatus    Effect = "status"
	EffectSeverity  Effect = "severity"
	EffectAffection Effect = "affection"
	EffectSimilar   Effect = "similar"
	EffectReply     Effect = "reply"
)

// PromptResult is the workflow's single output: exactly one effect and the
// message that realized it.
type PromptResult struct {
	Effect  Effect
	Message string
}

// contextOutput is the result of the context activity.
type contextOutput struct {
	Incident  incident.Incident
	Services  []event.Service
	Affection incident.AffectionInfo
	Events    []incident.AgentEvent
}

// fetchOutput is the result of the fetch activity: a single parsed tool
// call (or none, meaning plain text reply).
type fetchOutput struct {
	Tool string
	Args map[string]any
	Text string
}
