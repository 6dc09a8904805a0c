package awakener

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// SchedulerOptions carries the per-round knobs and the tool registry
// factory. The registry is rebuilt every round so each round's tools are
// bound to freshly derived stealth state. Metrics may be nil.
type SchedulerOptions struct {
	Interval    time.Duration
	ToolBudget  int
	NewRegistry func(round int) *ToolRegistry
	Metrics     Metrics
}

// Scheduler drives the activation loop: wake the agent, run the tool loop,
// persist the round, update the snapshot, sleep, repeat. It exclusively
// owns RunState; the control plane reads state through Status and steers
// through Start, Stop, Restart, and Inspire.
type Scheduler struct {
	provider Provider
	auditor  *Auditor
	memory   *Memory
	bus      *Bus
	runlog   *RoundLogger
	builder  *ContextBuilder
	tracer   Tracer
	log      *slog.Logger
	opts     SchedulerOptions

	mu     sync.Mutex
	state  RunState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler wires a scheduler from its collaborators. tracer may be nil.
func NewScheduler(provider Provider, auditor *Auditor, memory *Memory, bus *Bus, runlog *RoundLogger, builder *ContextBuilder, tracer Tracer, opts SchedulerOptions, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if tracer == nil {
		tracer = NoopTracer{}
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.ToolBudget <= 0 {
		opts.ToolBudget = 10
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}
	return &Scheduler{
		provider: provider,
		auditor:  auditor,
		memory:   memory,
		bus:      bus,
		runlog:   runlog,
		builder:  builder,
		tracer:   tracer,
		log:      log,
		opts:     opts,
		state:    RunState{State: StateIdle},
	}
}

// Start launches the loop on a new worker and returns immediately. The
// round counter resumes from the highest round recorded in the timeline.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.State {
	case StateRunning, StateWaiting, StateStopping:
		return ErrAlreadyRunning
	}

	next := s.memory.LastRound() + 1
	s.state = RunState{State: StateRunning, CurrentRound: next, TotalRounds: s.state.TotalRounds}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, next, s.done)
	return nil
}

// Stop requests a cooperative shutdown and returns immediately. The worker
// finishes the current round first. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch s.state.State {
	case StateRunning, StateWaiting:
	default:
		s.mu.Unlock()
		return
	}
	s.state.State = StateStopping
	if s.cancel != nil {
		s.cancel()
	}
	st := s.state
	s.mu.Unlock()

	s.publishStatus(st)
}

// Restart stops the loop, waits for the worker to exit (bounded), and
// starts again.
func (s *Scheduler) Restart() error {
	s.Stop()

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(120 * time.Second):
			s.log.Error("worker did not exit within restart deadline")
		}
	}
	return s.Start()
}

// Status returns a copy of the current run state.
func (s *Scheduler) Status() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Inspire stores a one-shot operator note delivered at the next round
// start.
func (s *Scheduler) Inspire(text string) error {
	return s.memory.WriteInspiration(text)
}

func (s *Scheduler) run(ctx context.Context, firstRound int, done chan struct{}) {
	defer close(done)

	round := firstRound
	for ctx.Err() == nil {
		fatal := s.runRound(ctx, round)
		if fatal {
			s.setState(StateError)
			return
		}
		round++

		s.setState(StateWaiting)
		s.runlog.Wait(s.opts.Interval)
		select {
		case <-time.After(s.opts.Interval):
		case <-ctx.Done():
		}
	}

	s.setState(StateIdle)
}

// runRound executes one activation round end to end. The returned flag is
// true only for a snapshot update failure, which stops the loop; every
// other failure is absorbed and the loop continues.
func (s *Scheduler) runRound(ctx context.Context, round int) (fatal bool) {
	ctx, span := s.tracer.Start(ctx, "round")
	span.SetAttribute("round", round)
	defer span.End()

	s.mu.Lock()
	s.state.State = StateRunning
	s.state.CurrentRound = round
	s.mu.Unlock()

	s.runlog.RoundStart(round)
	s.bus.Publish(EventRound, map[string]any{"event": "round-started", "round": round})

	start := time.Now()
	reg := s.opts.NewRegistry(round)
	defs := reg.AllDefinitions()

	snapshotMD := ""
	if snap, err := LoadSnapshot(filepath.Join(s.memory.DataDir(), "snapshot.yaml")); err == nil {
		snapshotMD = snap.Markdown()
	} else {
		s.log.Warn("snapshot unreadable for prompt", "error", err)
	}

	messages := s.builder.BuildMessages(round, s.opts.ToolBudget, defs, snapshotMD)

	loop := NewToolLoop(s.provider, s.bus, s.runlog, s.opts.Metrics, s.opts.ToolBudget, s.log)
	result := loop.Run(ctx, messages, reg)
	if result.Err != nil {
		span.RecordError(result.Err)
		s.log.Error("round ended early", "round", round, "error", result.Err)
	}
	duration := time.Since(start)
	s.opts.Metrics.RoundCompleted(round, result.ToolsUsed, duration)

	entry := TimelineEntry{
		Round:     round,
		Timestamp: NowUTC(),
		ToolsUsed: result.ToolsUsed,
		Duration:  duration.Seconds(),
		Summary:   result.Summary,
		ActionLog: result.ActionLog,
	}
	if err := s.memory.AppendTimeline(entry); err != nil {
		// Best-effort durable; the next counter still derives from the
		// last successful append.
		s.log.Error("timeline append failed", "round", round, "error", err)
	}

	// The pipeline still runs when a stop arrived mid-round: the worker
	// finishes the round, including the snapshot update, before exiting.
	auditCtx := context.WithoutCancel(ctx)
	if err := s.auditor.UpdateSnapshot(auditCtx, round, result.ActionLog, FinalOutput(result.Summary)); err != nil {
		span.RecordError(err)
		s.log.Error("snapshot update failed, stopping", "round", round, "error", err)
		return true
	}

	s.mu.Lock()
	s.state.TotalRounds++
	s.state.LastRoundTools = result.ToolsUsed
	s.state.LastRoundSummary = FinalOutput(result.Summary)
	s.mu.Unlock()

	s.runlog.RoundEnd(round, result.ToolsUsed, duration)
	s.bus.Publish(EventRound, map[string]any{
		"event":      "round-completed",
		"round":      round,
		"tools_used": result.ToolsUsed,
		"duration":   duration.Seconds(),
	})
	return false
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	// An explicit stop beat us to the transition; idle still wins over
	// stopping once the worker exits.
	if state == StateWaiting && s.state.State == StateStopping {
		s.mu.Unlock()
		return
	}
	s.state.State = state
	st := s.state
	s.mu.Unlock()
	s.publishStatus(st)
}

// publishStatus must be called without holding s.mu: an ordered publish can
// block for the full subscriber timeout.
func (s *Scheduler) publishStatus(st RunState) {
	s.bus.Publish(EventStatus, map[string]any{
		"state":         string(st.State),
		"current_round": st.CurrentRound,
		"total_rounds":  st.TotalRounds,
	})
}
