package awakener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nevra/awakener/jsonrepair"
)

// ToolLoop drives one round's conversation with the LLM: stream a turn,
// execute the requested tool calls sequentially, feed results back, repeat
// until the model stops asking for tools or the budget runs out.
type ToolLoop struct {
	provider Provider
	bus      *Bus
	runlog   *RoundLogger
	metrics  Metrics
	log      *slog.Logger
	budget   int
}

// NewToolLoop creates a loop bound to one round's provider and budget.
// metrics may be nil.
func NewToolLoop(provider Provider, bus *Bus, runlog *RoundLogger, metrics Metrics, budget int, log *slog.Logger) *ToolLoop {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if budget <= 0 {
		budget = 10
	}
	return &ToolLoop{provider: provider, bus: bus, runlog: runlog, metrics: metrics, log: log, budget: budget}
}

// Run executes the loop over the given opening messages. The returned
// result always carries the summary accumulated so far, even when Err is
// set; a stream failure ends the round, not the process.
func (l *ToolLoop) Run(ctx context.Context, messages []ChatMessage, reg *ToolRegistry) RoundResult {
	defs := reg.AllDefinitions()

	// Cancellation is observed only at the explicit checks below: before
	// each turn and before each tool call. Work already in flight runs on a
	// detached context, bounded by its own timeout, so a stop request never
	// kills a subprocess or aborts an open stream mid-way.
	opCtx := context.WithoutCancel(ctx)

	var summary, actionLog strings.Builder
	toolsUsed := 0

	for {
		if ctx.Err() != nil {
			break
		}

		l.bus.PublishAsync(EventLoading, map[string]any{"message": "calling model"})

		resp, err := l.streamTurn(opCtx, ChatRequest{Messages: messages, Tools: defs})
		if err != nil {
			l.log.Error("llm stream failed", "error", err)
			return RoundResult{
				ToolsUsed: toolsUsed,
				Summary:   strings.TrimSpace(summary.String()),
				ActionLog: strings.TrimSpace(actionLog.String()),
				Err:       err,
			}
		}

		stamp := time.Now().Format("15:04:05")
		assistant := ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			Reasoning: resp.Reasoning,
			ToolCalls: resp.ToolCalls,
			Stamp:     stamp,
		}
		messages = append(messages, assistant)

		text := assistantText(resp)
		if text != "" {
			fmt.Fprintf(&summary, "[%s] %s\n\n", stamp, text)
			l.runlog.Thought(text)
			l.bus.Publish(EventThought, map[string]any{"text": text})
		}

		if len(resp.ToolCalls) == 0 {
			break
		}

		// Only turns that triggered tool calls belong to the action log;
		// the final summary turn stays out of it.
		if text != "" {
			fmt.Fprintf(&actionLog, "[%s] %s\n\n", stamp, text)
		}

		hardStop := false
		for _, call := range resp.ToolCalls {
			if ctx.Err() != nil {
				hardStop = true
				break
			}
			result := l.dispatch(opCtx, reg, call, &toolsUsed)
			messages = append(messages, ToolResultMessage(call.ID, result))
			l.bus.Publish(EventToolResult, map[string]any{
				"name":   call.Name,
				"result": result,
			})
			if toolsUsed >= l.budget+HardLimitSlack {
				l.log.Warn("hard tool limit reached", "used", toolsUsed)
				hardStop = true
				break
			}
		}
		if hardStop {
			break
		}
	}

	return RoundResult{
		ToolsUsed: toolsUsed,
		Summary:   strings.TrimSpace(summary.String()),
		ActionLog: strings.TrimSpace(actionLog.String()),
	}
}

// streamTurn runs one streamed LLM call, re-emitting text deltas to the bus
// as fire-and-forget thought chunks.
func (l *ToolLoop) streamTurn(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	ch := make(chan StreamChunk, 16)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for chunk := range ch {
			if chunk.Reasoning != "" {
				l.bus.PublishAsync(EventThoughtChunk, map[string]any{"reasoning": chunk.Reasoning})
			}
			if chunk.Text != "" {
				l.bus.PublishAsync(EventThoughtChunk, map[string]any{"text": chunk.Text})
			}
		}
	}()

	start := time.Now()
	resp, err := l.provider.ChatStream(ctx, req, ch)
	<-drained
	l.metrics.LLMRequest(resp.Usage, time.Since(start), err)
	l.bus.Publish(EventThoughtDone, nil)
	return resp, err
}

// dispatch executes one tool call, or synthesises its result when the
// budget is spent or the arguments are beyond repair. Every path counts
// against the budget and every path produces a tool message, so the
// call/result pairing invariant holds regardless of outcome.
func (l *ToolLoop) dispatch(ctx context.Context, reg *ToolRegistry, call ToolCall, toolsUsed *int) string {
	*toolsUsed++

	if *toolsUsed > l.budget {
		hint := BudgetHint(*toolsUsed, l.budget)
		l.runlog.Tool(call.Name, "(skipped: budget exhausted)")
		return hint
	}

	args := call.Args
	if !json.Valid(args) || !isJSONObject(args) {
		repaired := jsonrepair.Repair(string(args), call.Name)
		if repaired == nil {
			l.log.Warn("unrepairable tool arguments", "tool", call.Name)
			return BudgetHint(*toolsUsed, l.budget) + "\n\n" +
				fmt.Sprintf("(error: could not parse arguments for %s; re-issue the call with valid JSON)", call.Name)
		}
		args = repaired
	}

	l.bus.PublishAsync(EventLoading, map[string]any{"message": "executing " + call.Name})
	l.bus.Publish(EventToolCall, map[string]any{
		"name": call.Name,
		"args": string(args),
	})
	l.runlog.Tool(call.Name, string(args))

	result := reg.Execute(ctx, call.Name, args)
	l.metrics.ToolExecuted(call.Name)
	l.runlog.Result(result)

	return BudgetHint(*toolsUsed, l.budget) + "\n\n" + result
}

// assistantText joins a turn's reasoning and content for the summary.
func assistantText(resp ChatResponse) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(resp.Reasoning); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(resp.Content); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}
