// Command evalagent replays the evaluation harness's seed scenarios against
// the suggestion engine and reports how well its proposals matched the
// scenarios' literal expectations.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"goa.design/clue/log"

	"github.com/opsline-ai/incident-agent/event"
	"github.com/opsline-ai/incident-agent/eval"
	"github.com/opsline-ai/incident-agent/llm"
	"github.com/opsline-ai/incident-agent/llm/anthropicapi"
	"github.com/opsline-ai/incident-agent/llm/openaiapi"
	"github.com/opsline-ai/incident-agent/llm/ratelimit"
)

func main() {
	configPath := scanConfigFlag(os.Args[1:])
	cfg, err := loadRunConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	flag.String("config", configPath, "optional path to a YAML run-configuration file providing defaults for the flags below")
	var (
		scenarioF   = flag.String("scenario", cfg.Scenario, "scenario id to replay (default: all seed scenarios)")
		runsF       = flag.Int("runs", orDefaultInt(cfg.Runs, 1), "number of runs per turn")
		modelF      = flag.String("model", orDefault(cfg.Model, "gpt-5"), "model identifier for the suggestion engine")
		judgeModelF = flag.String("judge-model", orDefault(cfg.JudgeModel, "gpt-5"), "model identifier for the LM-as-judge pass")
		promptFileF = flag.String("prompt-file", cfg.PromptFile, "optional path to write the last rendered prompt to, for debugging")
		outF        = flag.String("out", cfg.Out, "path to write the JSON artifact to (default: stdout)")
		skipJudgeF  = flag.Bool("skip-judge", cfg.SkipJudge, "skip the LM-as-judge grading pass")
		effortF     = flag.String("reasoning-effort", orDefault(cfg.ReasoningEffort, "medium"), "reasoning effort: low|medium|high")
		verboseF    = flag.Bool("verbose", cfg.Verbose, "enable debug logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *verboseF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Print(ctx, log.KV{K: "warn", V: fmt.Sprintf("loading .env: %v", err)})
	}

	effort, err := parseEffort(*effortF)
	if err != nil {
		log.Fatal(ctx, err)
	}

	client, err := buildClient(ctx, *modelF)
	if err != nil {
		log.Fatal(ctx, err)
	}

	scenarios := eval.Scenarios()
	if *scenarioF != "" {
		scenarios = filterScenario(scenarios, *scenarioF)
		if len(scenarios) == 0 {
			log.Fatal(ctx, fmt.Errorf("evalagent: unknown scenario %q", *scenarioF))
		}
	}

	log.Print(ctx, log.KV{K: "scenarios", V: len(scenarios)}, log.KV{K: "runs", V: *runsF}, log.KV{K: "model", V: *modelF})

	captures, err := eval.RunAll(ctx, client, scenarios, eval.RunnerOptions{
		Model:           *modelF,
		ReasoningEffort: effort,
		Runs:            *runsF,
	})
	if err != nil {
		log.Fatal(ctx, err)
	}

	if *promptFileF != "" {
		if err := writeLastPrompt(*promptFileF, captures); err != nil {
			log.Print(ctx, log.KV{K: "warn", V: fmt.Sprintf("writing prompt-file: %v", err)})
		}
	}

	var judgements map[string]eval.Judgement
	if !*skipJudgeF {
		judgeClient, err := buildClient(ctx, *judgeModelF)
		if err != nil {
			log.Fatal(ctx, err)
		}
		judgements, err = judgeAll(ctx, judgeClient, *judgeModelF, captures)
		if err != nil {
			log.Print(ctx, log.KV{K: "warn", V: fmt.Sprintf("judge pass: %v", err)})
		}
	}

	metrics := eval.ComputeMetrics(captures)
	artifact, err := eval.BuildArtifact(*modelF, *judgeModelF, time.Now().UTC(), captures, metrics, judgements)
	if err != nil {
		log.Fatal(ctx, err)
	}

	out := os.Stdout
	if *outF != "" {
		f, err := os.Create(*outF)
		if err != nil {
			log.Fatal(ctx, err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact); err != nil {
		log.Fatal(ctx, err)
	}

	os.Exit(exitCode(captures))
}

// exitCode scans the runs in order and reports 2 at the first run that
// errored, 1 at the first run that failed an expectation, and 0 when every
// run met every expectation.
func exitCode(captures []eval.ScenarioCapture) int {
	for _, sc := range captures {
		for _, tc := range sc.Turns {
			for _, run := range tc.Runs {
				if run.Err != nil {
					return 2
				}
				for _, hit := range run.ExpectationHit {
					if !hit {
						return 1
					}
				}
			}
		}
	}
	return 0
}

func parseEffort(s string) (llm.ReasoningEffort, error) {
	switch s {
	case "low":
		return llm.ReasoningLow, nil
	case "medium":
		return llm.ReasoningMedium, nil
	case "high":
		return llm.ReasoningHigh, nil
	default:
		return "", fmt.Errorf("evalagent: invalid --reasoning-effort %q", s)
	}
}

// buildClient selects the provider binding by model name prefix: "claude-"
// routes to the Anthropic adapter, everything else to the OpenAI adapter.
// (The AWS Bedrock binding, llm/bedrockapi, is not wired into this selector:
// unlike the API-key-only openaiapi/anthropicapi constructors, it requires
// an already-resolved aws.Config - credential chain resolution - which is
// deployment-environment-specific and out of scope for a replay harness.)
// The selected client is wrapped with an adaptive rate limiter so a long
// eval run backs off on provider throttling instead of hammering it.
func buildClient(_ context.Context, model string) (llm.Client, error) {
	client, err := buildRawClient(model)
	if err != nil {
		return nil, err
	}
	return ratelimit.New(60000, 60000).Wrap(client), nil
}

func buildRawClient(model string) (llm.Client, error) {
	if len(model) >= 7 && model[:7] == "claude-" {
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		return anthropicapi.NewFromAPIKey(apiKey, model, 4096)
	}
	apiKey := os.Getenv("OPENAI_API_KEY")
	return openaiapi.NewFromAPIKey(apiKey, model)
}

// writeLastPrompt renders the event transcript of the last turn replayed
// (the same messages suggestion.buildRequest assembles into the LM call) to
// path, for inspecting exactly what the suggestion engine saw.
func writeLastPrompt(path string, captures []eval.ScenarioCapture) error {
	if len(captures) == 0 {
		return nil
	}
	last := captures[len(captures)-1]
	if len(last.Turns) == 0 {
		return nil
	}
	turn := last.Turns[len(last.Turns)-1].Turn
	messages := event.BuildEventMessages(turn.Context.Events, turn.Context.ProcessedThroughID)
	var out []byte
	for _, m := range messages {
		out = append(out, []byte(fmt.Sprintf("[%s] %s\n", m.Role, m.Content))...)
	}
	return os.WriteFile(path, out, 0o644)
}

func filterScenario(scenarios []eval.Scenario, id string) []eval.Scenario {
	for _, s := range scenarios {
		if s.ID == id {
			return []eval.Scenario{s}
		}
	}
	return nil
}

func judgeAll(ctx context.Context, client llm.Client, model string, captures []eval.ScenarioCapture) (map[string]eval.Judgement, error) {
	out := make(map[string]eval.Judgement)
	for _, sc := range captures {
		for _, tc := range sc.Turns {
			for _, run := range tc.Runs {
				if run.Err != nil {
					continue
				}
				j, err := eval.JudgeTurn(ctx, client, tc.Turn, run, model)
				if err != nil {
					return out, fmt.Errorf("judge %s/%s/%d: %w", sc.Scenario.ID, tc.Turn.Name, run.RunIndex, err)
				}
				out[eval.JudgementKey(sc.Scenario.ID, tc.Turn.Name, run.RunIndex)] = j
			}
		}
	}
	return out, nil
}
