// Package agents implements the five reasoning stages of the diagnosis
// pipeline. Every agent's Run returns a usable typed result unconditionally:
// reasoning-call and extraction failures are absorbed into a deterministic
// fallback, and the Outcome records whether that happened.
package agents

import (
	"context"
	"fmt"

	"mediflow/internal/jsonutil"
	"mediflow/internal/llmclient"
	"mediflow/internal/prompting"
)

// Client is the reasoning client contract agents call through.
type Client = llmclient.Client

// Outcome reports how a stage result was produced. Degraded means the
// deterministic fallback was used; Reason says why.
type Outcome struct {
	Degraded  bool
	Reason    string
	Model     string
	LatencyMS int64
}

func liveOutcome(model string, latencyMS int64) Outcome {
	return Outcome{Model: model, LatencyMS: latencyMS}
}

func degradedOutcome(reason string) Outcome {
	return Outcome{Degraded: true, Reason: reason}
}

// generateInto builds the stage prompt, performs one reasoning call, locates
// the first JSON object in the reply, and decodes it into out. Any failure is
// returned for the caller to translate into its fallback path.
func generateInto(ctx context.Context, llm llmclient.Client, model string, spec prompting.Spec, input, out any) (int64, error) {
	if llm == nil {
		return 0, &llmclient.ConfigError{Reason: "reasoning client is nil"}
	}
	prompt, err := prompting.Build(prompting.ApplyDefaults(spec), input)
	if err != nil {
		return 0, err
	}
	resp, err := llm.Generate(ctx, []llmclient.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: "Respond with the JSON object described in [OUTPUT]."},
	}, model)
	if err != nil {
		return 0, err
	}
	if err := jsonutil.ExtractInto(resp.Text, out); err != nil {
		return resp.ElapsedMS, fmt.Errorf("extract stage result: %w", err)
	}
	return resp.ElapsedMS, nil
}
