package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	awakener "github.com/nevra/awakener"
	"github.com/nevra/awakener/internal/config"
	"github.com/nevra/awakener/observer"
	"github.com/nevra/awakener/provider/resolve"
	"github.com/nevra/awakener/stealth"
	"github.com/nevra/awakener/tools/community"
	"github.com/nevra/awakener/tools/file"
	"github.com/nevra/awakener/tools/shell"
	"github.com/nevra/awakener/tools/skill"
)

func main() {
	// .env before config so AWAKENER_* overrides and API keys are visible.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := config.Load(os.Getenv("AWAKENER_CONFIG"))

	// Providers
	mainLLM, err := resolve.Provider(cfg.LLM.Model)
	if err != nil {
		logger.Error("cannot resolve model", "model", cfg.LLM.Model, "error", err)
		os.Exit(1)
	}
	auditorLLM := mainLLM
	if cfg.LLM.SnapshotModel != cfg.LLM.Model {
		auditorLLM, err = resolve.Provider(cfg.LLM.SnapshotModel)
		if err != nil {
			logger.Warn("cannot resolve snapshot model, using main model", "model", cfg.LLM.SnapshotModel, "error", err)
			auditorLLM = mainLLM
		}
	}

	// Observability
	var tracer awakener.Tracer = awakener.NoopTracer{}
	var metrics awakener.Metrics = awakener.NoopMetrics{}
	if cfg.Observer.Enabled {
		if cfg.Observer.Endpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Observer.Endpoint)
		}
		inst, shutdown, err := observer.Init(context.Background())
		if err != nil {
			logger.Warn("observer init failed, tracing disabled", "error", err)
		} else {
			tracer = observer.NewTracer()
			metrics = observer.NewMetrics(inst)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()
		}
	}

	// The project root to cloak is wherever the runtime lives.
	projectDir, err := os.Getwd()
	if err != nil {
		logger.Error("cannot determine project directory", "error", err)
		os.Exit(1)
	}
	hostEnv := stealth.DetectHostEnv(cfg.Web.Port)

	if err := awakener.EnsureHome(cfg.Agent.Home); err != nil {
		logger.Error("cannot bootstrap agent home", "path", cfg.Agent.Home, "error", err)
		os.Exit(1)
	}

	memory := awakener.NewMemory(cfg.Agent.DataDir, logger)
	bus := awakener.NewBus(logger)
	runlog := awakener.NewRoundLogger(cfg.Agent.DataDir, bus, logger)
	auditor := awakener.NewAuditor(auditorLLM, mainLLM, memory, logger)

	var skills *skill.Provider
	if cfg.Tools.Skills && cfg.Agent.SkillsDir != "" {
		skills = skill.NewProvider(cfg.Agent.SkillsDir)
	}

	persona := awakener.LoadPersona(cfg.Agent.PersonaDir, cfg.Agent.Persona)
	var lister awakener.SkillLister
	if skills != nil {
		lister = skills
	}
	builder := awakener.NewContextBuilder(persona, cfg.Agent.Home, memory, lister)

	// Each round gets fresh tools bound to freshly derived stealth state.
	newRegistry := func(round int) *awakener.ToolRegistry {
		cloak := stealth.New(projectDir, os.Getpid(), hostEnv)
		reg := awakener.NewToolRegistry()
		if cfg.Tools.Shell {
			reg.Add(shell.New(cfg.Agent.Home, cloak, cfg.Tools.TimeoutSec, cfg.Tools.MaxOutputChars))
		}
		if cfg.Tools.Files {
			reg.Add(file.New(cfg.Agent.Home, cloak, cfg.Tools.MaxOutputChars))
		}
		if skills != nil {
			reg.Add(skill.New(skills, cfg.Tools.TimeoutSec))
		}
		if cfg.Community.URL != "" {
			reg.Add(community.New(cfg.Community.URL, cfg.Community.Key))
		}
		return reg
	}

	sched := awakener.NewScheduler(mainLLM, auditor, memory, bus, runlog, builder, tracer,
		awakener.SchedulerOptions{
			Interval:    time.Duration(cfg.Agent.IntervalSec) * time.Second,
			ToolBudget:  cfg.Agent.ToolBudget,
			NewRegistry: newRegistry,
			Metrics:     metrics,
		}, logger)

	if err := sched.Start(); err != nil {
		logger.Error("cannot start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("awakener running",
		"model", cfg.LLM.Model,
		"home", cfg.Agent.Home,
		"interval", cfg.Agent.IntervalSec,
		"budget", cfg.Agent.ToolBudget)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down, finishing current round")
	sched.Stop()

	// Bounded wait for the worker to drain.
	deadline := time.After(120 * time.Second)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			logger.Warn("worker did not exit in time")
			return
		case <-ticker.C:
			st := sched.Status()
			if st.State == awakener.StateIdle || st.State == awakener.StateError {
				return
			}
		}
	}
}
