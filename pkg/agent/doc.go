// Package agent runs the layout assistant conversation loop: it sends the
// prompt and an optional canvas snapshot to a chat provider, executes the
// tool calls the model asks for, and feeds the results back until the model
// answers in plain text.
//
// Invariants:
// - Tool calls route through the dispatcher only.
// - A tool failure never aborts the run; the model sees the error result.
// - The loop is bounded by MaxTurns.
//
// Usage:
//
//	runner := agent.NewRunner(agent.RunnerConfig{Provider: provider, Dispatcher: registry})
//	result, _ := runner.Run(ctx, agent.RunParams{Model: "qvq-plus", Prompt: "tidy the spread"})
//	_ = result
package agent
