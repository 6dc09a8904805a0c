package awakener

import (
	"testing"
	"time"
)

const auditorNoChanges = "no_changes: true\nactivity:\n  content: looked around\n  tags: [idle]\n"

func newTestScheduler(t *testing.T, provider Provider, auditorLLM Provider) (*Scheduler, *Memory) {
	t.Helper()
	memory := NewMemory(t.TempDir(), nil)
	bus := NewBus(nil)
	runlog := NewRoundLogger("", bus, nil)
	auditor := NewAuditor(auditorLLM, auditorLLM, memory, nil)
	builder := NewContextBuilder("persona", t.TempDir(), memory, nil)

	sched := NewScheduler(provider, auditor, memory, bus, runlog, builder, nil,
		SchedulerOptions{
			Interval:    time.Hour,
			ToolBudget:  5,
			NewRegistry: func(int) *ToolRegistry { return NewToolRegistry() },
		}, nil)
	return sched, memory
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSchedulerRunsOneRound(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{Content: "first wake-up, nothing to do", FinishReason: "stop"},
		{Content: auditorNoChanges, FinishReason: "stop"},
	}}

	sched, memory := newTestScheduler(t, provider, provider)
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	waitFor(t, func() bool { return sched.Status().State == StateWaiting })

	st := sched.Status()
	if st.TotalRounds != 1 {
		t.Errorf("TotalRounds = %d", st.TotalRounds)
	}
	if memory.LastRound() != 1 {
		t.Errorf("LastRound = %d", memory.LastRound())
	}
}

func TestSchedulerAlreadyRunning(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{Content: "hello", FinishReason: "stop"},
		{Content: auditorNoChanges, FinishReason: "stop"},
	}}
	sched, _ := newTestScheduler(t, provider, provider)
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	if err := sched.Start(); err != ErrAlreadyRunning {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
}

func TestSchedulerStopIdempotent(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{Content: "hi", FinishReason: "stop"},
		{Content: auditorNoChanges, FinishReason: "stop"},
	}}
	sched, _ := newTestScheduler(t, provider, provider)
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return sched.Status().State == StateWaiting })
	sched.Stop()
	sched.Stop()

	waitFor(t, func() bool { return sched.Status().State == StateIdle })
}

func TestSchedulerResumesRoundCounter(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{Content: "back again", FinishReason: "stop"},
		{Content: auditorNoChanges, FinishReason: "stop"},
	}}
	sched, memory := newTestScheduler(t, provider, provider)

	// A prior run left the timeline at round 42; startup itself writes
	// nothing and the next round must be 43.
	if err := memory.AppendTimeline(TimelineEntry{Round: 42, Timestamp: NowUTC()}); err != nil {
		t.Fatal(err)
	}

	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	if got := sched.Status().CurrentRound; got != 43 {
		t.Errorf("CurrentRound = %d, want 43", got)
	}
	defer sched.Stop()

	waitFor(t, func() bool { return sched.Status().State == StateWaiting })
	if memory.LastRound() != 43 {
		t.Errorf("LastRound = %d, want 43", memory.LastRound())
	}
}

func TestSchedulerFatalOnSnapshotFailure(t *testing.T) {
	// Main model answers the round, but the auditor output never parses:
	// both attempts fail, so the loop must stop in the error state.
	main := &scriptedProvider{responses: []ChatResponse{
		{Content: "round text", FinishReason: "stop"},
	}}
	badAuditor := &scriptedProvider{responses: []ChatResponse{
		{Content: ": not yaml :::", FinishReason: "stop"},
		{Content: ": not yaml :::", FinishReason: "stop"},
	}}

	sched, _ := newTestScheduler(t, main, badAuditor)
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return sched.Status().State == StateError })
}

func TestSchedulerRecordsRoundMetrics(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{Content: "quiet round", FinishReason: "stop"},
		{Content: auditorNoChanges, FinishReason: "stop"},
	}}
	metrics := &recordingMetrics{}

	memory := NewMemory(t.TempDir(), nil)
	bus := NewBus(nil)
	runlog := NewRoundLogger("", bus, nil)
	auditor := NewAuditor(provider, provider, memory, nil)
	builder := NewContextBuilder("persona", t.TempDir(), memory, nil)

	sched := NewScheduler(provider, auditor, memory, bus, runlog, builder, nil,
		SchedulerOptions{
			Interval:    time.Hour,
			ToolBudget:  5,
			NewRegistry: func(int) *ToolRegistry { return NewToolRegistry() },
			Metrics:     metrics,
		}, nil)

	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()
	waitFor(t, func() bool { return sched.Status().State == StateWaiting })

	if metrics.rounds != 1 {
		t.Errorf("rounds recorded = %d, want 1", metrics.rounds)
	}
	if metrics.llmCalls != 1 {
		t.Errorf("llm requests = %d, want 1 (the auditor call is not the loop's)", metrics.llmCalls)
	}
}

func TestSchedulerInspire(t *testing.T) {
	provider := &scriptedProvider{}
	sched, memory := newTestScheduler(t, provider, provider)

	if err := sched.Inspire("plant a tree"); err != nil {
		t.Fatal(err)
	}
	if got := memory.TakeInspiration(); got != "plant a tree" {
		t.Errorf("inspiration = %q", got)
	}
}
