package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fiona/folio/internal/config"
	"github.com/fiona/folio/internal/logger"
	"github.com/fiona/folio/internal/server"
	"github.com/fiona/folio/pkg/agent"
	"github.com/fiona/folio/pkg/housekeeping"
	"github.com/fiona/folio/pkg/live"
	"github.com/fiona/folio/pkg/project"
	"github.com/fiona/folio/pkg/snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the editor server",
	Long: `Run the editor HTTP server. Serves the layout API, media uploads,
agent runs, and the live reload WebSocket until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer lg.Close()
	zl := lg.GetZerolog()

	store, err := project.NewStore(cfg.Projects.Root, zl)
	if err != nil {
		return fmt.Errorf("failed to open project store: %w", err)
	}

	var provider agent.ChatProvider
	if cfg.Agent.APIKey != "" {
		provider, err = agent.NewProvider(agent.ProviderOptions{
			Provider: cfg.Agent.Provider,
			APIKey:   cfg.Agent.APIKey,
			BaseURL:  cfg.Agent.BaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create chat provider: %w", err)
		}
		zl.Info().Str("provider", provider.Name()).Str("model", cfg.Agent.Model).Msg("Agent backend configured")
	} else {
		zl.Warn().Msg("No agent API key configured, agent runs are disabled")
	}

	var renderer snapshot.Renderer
	if cfg.Snapshot.Enabled {
		rod := snapshot.NewRodRenderer(snapshot.Config{
			BaseURL: cfg.Snapshot.BaseURL,
			Width:   cfg.Snapshot.Width,
			Height:  cfg.Snapshot.Height,
			Timeout: time.Duration(cfg.Snapshot.TimeoutSeconds) * time.Second,
			Logger:  zl,
		})
		defer rod.Close()
		renderer = rod
	}

	broadcaster := live.NewBroadcaster(zl)
	defer broadcaster.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := project.NewWatcher(store, func(name string) {
		broadcaster.Broadcast("layout.reloaded", name, map[string]interface{}{
			"project": name,
		})
	}, zl)
	if err != nil {
		zl.Warn().Err(err).Msg("Project watcher unavailable, live reload on external edits disabled")
	} else {
		go watcher.Run(ctx)
	}

	if cfg.Housekeeping.Enabled {
		sweeper, err := housekeeping.NewService(housekeeping.Config{
			Root:     store.Root(),
			Schedule: cfg.Housekeeping.Schedule,
			MaxAge:   time.Duration(cfg.Housekeeping.MaxAgeHours) * time.Hour,
			Logger:   zl,
		})
		if err != nil {
			return fmt.Errorf("failed to create housekeeping service: %w", err)
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	srv, err := server.NewServer(server.Options{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, store, provider, cfg.Agent, renderer, broadcaster, zl)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info().Msg("Shutdown signal received")
	return srv.Stop()
}
