package agent

import (
	"log/slog"
	"time"
)

// RuntimeOptions configures session loop and tool execution behavior.
type RuntimeOptions struct {
	// MaxToolRoundsPerInput bounds rounds run for a single submit() call.
	// 0 = unlimited.
	MaxToolRoundsPerInput int

	// MaxTurns bounds cumulative turns for the session's lifetime.
	// 0 = unlimited.
	MaxTurns int

	// ToolParallelism caps concurrent tool execution within one round.
	ToolParallelism int

	// ParallelToolCalls allows a round's tool calls to execute concurrently.
	// When false, tool calls execute serially in emission order.
	ParallelToolCalls bool

	// ToolTimeout applies a default timeout to each tool call.
	ToolTimeout time.Duration

	// ToolMaxAttempts controls retry attempts for tool execution.
	ToolMaxAttempts int

	// ToolRetryBackoff waits between retry attempts.
	ToolRetryBackoff time.Duration

	// DisableToolEvents disables ToolEvent emission while processing.
	DisableToolEvents bool

	// LoopDetectionWindow is the rolling signature window size (§4.13).
	// 0 disables loop detection.
	LoopDetectionWindow int

	// Logger receives runtime diagnostics.
	Logger *slog.Logger
}

// DefaultRuntimeOptions returns the baseline runtime options.
func DefaultRuntimeOptions() RuntimeOptions {
	return RuntimeOptions{
		MaxToolRoundsPerInput: 15,
		MaxTurns:              0,
		ToolParallelism:       4,
		ParallelToolCalls:     true,
		ToolTimeout:           30 * time.Second,
		ToolMaxAttempts:       1,
		ToolRetryBackoff:      0,
		DisableToolEvents:     false,
		LoopDetectionWindow:   10,
		Logger:                slog.Default(),
	}
}

func mergeRuntimeOptions(base RuntimeOptions, override RuntimeOptions) RuntimeOptions {
	merged := base
	if override.MaxToolRoundsPerInput > 0 {
		merged.MaxToolRoundsPerInput = override.MaxToolRoundsPerInput
	}
	if override.MaxTurns > 0 {
		merged.MaxTurns = override.MaxTurns
	}
	if override.ToolParallelism > 0 {
		merged.ToolParallelism = override.ToolParallelism
	}
	merged.ParallelToolCalls = override.ParallelToolCalls || base.ParallelToolCalls
	if override.ToolTimeout > 0 {
		merged.ToolTimeout = override.ToolTimeout
	}
	if override.ToolMaxAttempts > 0 {
		merged.ToolMaxAttempts = override.ToolMaxAttempts
	}
	if override.ToolRetryBackoff > 0 {
		merged.ToolRetryBackoff = override.ToolRetryBackoff
	}
	if override.DisableToolEvents {
		merged.DisableToolEvents = true
	}
	if override.LoopDetectionWindow > 0 {
		merged.LoopDetectionWindow = override.LoopDetectionWindow
	}
	if override.Logger != nil {
		merged.Logger = override.Logger
	}
	return merged
}
