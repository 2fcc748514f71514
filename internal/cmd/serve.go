package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AP2611/Chakra-final/internal/agent"
	"github.com/AP2611/Chakra-final/internal/analytics"
	"github.com/AP2611/Chakra-final/internal/config"
	"github.com/AP2611/Chakra-final/internal/dispatch"
	"github.com/AP2611/Chakra-final/internal/logging"
	"github.com/AP2611/Chakra-final/internal/memory"
	"github.com/AP2611/Chakra-final/internal/ollama"
	"github.com/AP2611/Chakra-final/internal/orchestrator"
	"github.com/AP2611/Chakra-final/internal/retrieval"
	"github.com/AP2611/Chakra-final/internal/score"
	"github.com/AP2611/Chakra-final/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve starts the refinement API: the process endpoints, the SSE
streaming endpoints, and the analytics endpoints. The server shuts down
gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "listen address (overrides config)")
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verrs := cfg.Validate(); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Close()

	client := ollama.NewClient(cfg.Ollama.URL, cfg.Ollama.Model, cfg.Ollama.FastMode, cfg.OllamaTimeout())
	logger.Info("model backend configured",
		"url", cfg.Ollama.URL, "model", cfg.Ollama.Model, "fast_mode", cfg.Ollama.FastMode)

	store, err := memory.NewStore(cfg.Memory.Path, cfg.Memory.MinScore, logger)
	if err != nil {
		return fmt.Errorf("opening memory store: %w", err)
	}
	defer store.Close()

	retriever, err := retrieval.NewRetriever(cfg.Retrieval.DocumentsDir, cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap, logger)
	if err != nil {
		return fmt.Errorf("loading document index: %w", err)
	}

	var tracker *analytics.Tracker
	if cfg.Analytics.Enabled {
		tracker = analytics.NewTracker(cfg.Analytics.Addr, cfg.Analytics.Password,
			cfg.Analytics.DB, cfg.Analytics.KeepTasks, logger)
	}
	if tracker != nil {
		defer tracker.Close()
	}

	dispatcher := dispatch.NewDispatcher(logger)
	defer dispatcher.Close()

	orch := orchestrator.New(orchestrator.Config{
		MaxIterations:  cfg.Orchestrator.MaxIterations,
		MinImprovement: cfg.Orchestrator.MinImprovement,
		PersistFloor:   cfg.Orchestrator.PersistFloor,
		EventBuffer:    cfg.Orchestrator.EventBuffer,
		SendTimeout:    cfg.SendTimeout(),
		FastMode:       cfg.Ollama.FastMode,
		RetrievalTopK:  cfg.Retrieval.TopK,
	}, orchestrator.Deps{
		Generator:  agent.NewYantra(client),
		Critic:     agent.NewSutra(client),
		Improver:   agent.NewAgni(client),
		Scorer:     score.NewEvaluator(),
		Retriever:  retriever,
		Memory:     store,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	srv := server.New(cfg.Server, orch, tracker, dispatcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-errCh
}
