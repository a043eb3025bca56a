package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/contentgen/internal/app"
	"github.com/abhisek/contentgen/internal/config"
	"github.com/abhisek/contentgen/internal/export"
	"github.com/abhisek/contentgen/internal/generate"
	"github.com/abhisek/contentgen/internal/llm"
	"github.com/abhisek/contentgen/internal/logger"
	"github.com/abhisek/contentgen/internal/store"
	"github.com/abhisek/contentgen/internal/templates"
	"github.com/abhisek/contentgen/internal/tracer"
)

// runtime bundles everything a command needs to drive a controller.
type runtime struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *store.Store
	eventRepo store.EventRepo
	registry  *templates.Registry
	text      llm.Provider
	image     llm.ImageProvider

	stopTracing func(context.Context) error
	traceFile   *os.File
}

// setup loads configuration and builds the shared dependencies. terminal
// selects a logger that never writes to the screen.
func setup(cmd *cobra.Command, terminal bool) (*runtime, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rt := &runtime{cfg: cfg, eventRepo: store.NopEventRepo{}}

	if terminal {
		rt.log, err = logger.ForTerminal(cfg.Log.Level, cfg.Log.File)
	} else {
		rt.log, err = logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	}
	if err != nil {
		return nil, err
	}

	if err := rt.initTracing(terminal); err != nil {
		rt.close()
		return nil, err
	}

	if cfg.History.Enabled {
		dbPath, err := resolveDBPath(cmd, cfg.History.DB)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
		rt.store, err = store.Open(dbPath)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		rt.eventRepo = rt.store.EventRepo()
	}

	rt.registry = templates.Default()
	if cfg.Templates.File != "" {
		rt.registry, err = templates.Load(cfg.Templates.File)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("load templates: %w", err)
		}
	}

	llmCfg := cfg.LLMConfig()
	rt.text, err = llm.NewProvider(ctx, llmCfg, rt.eventRepo, rt.log)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.image, err = llm.NewImageProvider(ctx, llmCfg, rt.eventRepo, rt.log)
	if err != nil {
		rt.close()
		return nil, err
	}

	for _, w := range cfg.Warnings() {
		rt.log.Warn(w)
	}
	return rt, nil
}

// newController builds a controller configured from the generation settings.
func (rt *runtime) newController() *generate.Controller {
	g := rt.cfg.Generation
	return generate.New(rt.registry, rt.text, rt.image,
		generate.WithLogger(rt.log),
		generate.WithTimeout(g.Timeout),
		generate.WithMaxTokens(g.MaxTokens),
		generate.WithTemperature(g.Temperature),
		generate.WithSystemPrompt(g.SystemPrompt),
	)
}

// initTracing installs the span exporter. In the terminal UI spans can only
// go to a file, since stderr belongs to the screen.
func (rt *runtime) initTracing(terminal bool) error {
	tc := rt.cfg.Tracing
	if !tc.Enabled {
		return nil
	}

	var out io.Writer = os.Stderr
	switch {
	case tc.File != "":
		f, err := os.OpenFile(tc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		rt.traceFile = f
		out = f
	case terminal:
		rt.log.Warn("tracing.file is not set; spans are not exported in the terminal UI")
		return nil
	}

	stop, err := tracer.Init(tracer.Config{
		ServiceName: "contentgen",
		Enabled:     true,
		SampleRate:  tc.SampleRate,
		Output:      out,
	})
	if err != nil {
		return err
	}
	rt.stopTracing = stop
	return nil
}

func (rt *runtime) close() {
	if rt.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rt.stopTracing(ctx); err != nil && rt.log != nil {
			rt.log.Warn("flush traces", zap.Error(err))
		}
		cancel()
	}
	if rt.traceFile != nil {
		_ = rt.traceFile.Close()
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil && rt.log != nil {
			rt.log.Warn("close store", zap.Error(err))
		}
	}
	if rt.log != nil {
		_ = rt.log.Sync()
	}
}

// runApp builds dependencies and launches the TUI.
func runApp(cmd *cobra.Command) error {
	rt, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	err = app.Run(ctx, app.Deps{
		Controller: rt.newController(),
		Sink:       export.NewDirSink(rt.cfg.Export.Dir),
		EventRepo:  rt.eventRepo,
		Warning:    strings.Join(rt.cfg.Warnings(), "\n"),
		Status:     rt.text.ModelID(),
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
