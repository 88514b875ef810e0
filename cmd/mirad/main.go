// Package main implements mirad, the Mira cognition core's daemon: a single
// long-lived process holding the memory fabric, code-intelligence index,
// turn orchestrator, background scheduler, and the hook/IPC socket other
// processes talk to. Grounded on codenerd's cmd/nerd entry point (cobra
// root command, zap-plus-file-logging bootstrap), generalized from a CLI
// agent's command tree to a single daemon command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ConaryLabs/mira/internal/budget"
	"github.com/ConaryLabs/mira/internal/codeintel"
	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/ipc"
	"github.com/ConaryLabs/mira/internal/llmadapter"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/memory"
	"github.com/ConaryLabs/mira/internal/operation"
	"github.com/ConaryLabs/mira/internal/orchestrator"
	"github.com/ConaryLabs/mira/internal/promptbuilder"
	"github.com/ConaryLabs/mira/internal/scheduler"
	"github.com/ConaryLabs/mira/internal/store"
	"github.com/ConaryLabs/mira/internal/sudo"
	"github.com/ConaryLabs/mira/internal/toolexec"
)

var (
	configOverride string
	verbose        bool
	logger         *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mirad",
	Short: "mirad runs the Mira cognition core daemon",
	Long: `mirad holds the memory fabric, code-intelligence index, turn
orchestrator, and background cognition workers behind one long-lived
process, reachable over the hook/IPC socket and the client message
channel.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configOverride, "config", "", "path to a YAML config override file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configOverride)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}
	if err := logging.Initialize(cfg.DataDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "mira.db")
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store at %s: %w", dbPath, err)
	}
	defer st.Close()
	logging.Boot("opened store at %s", dbPath)

	provider, embedder, err := buildLLMProvider(cfg)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	budgetGuard := budget.New(st, cfg.Budget)
	gatedProvider := llmadapter.NewGatedProvider(provider, budgetGuard, deepseekCostEstimate)

	summarizer := llmadapter.NewChatSummarizer(gatedProvider, cfg.LLM.StructuredModel)
	fabric := memory.New(st, embedder, summarizer, cfg.Memory)

	parsers := codeintel.NewParserFactory()
	parsers.Register(codeintel.NewGoParser())
	for _, p := range codeintel.NewTreeSitterParsers() {
		parsers.Register(p)
	}
	indexer := codeintel.NewIndexer(st, parsers)
	lookup := codeintel.NewLookup(st, embedder)

	auth := sudo.New(st, cfg.Sudo)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	executor := toolexec.New(auth, "", cwd, time.Duration(cfg.LLM.ToolTimeoutSecs)*time.Second)
	prompts := promptbuilder.New([]promptbuilder.ToolCapability{
		{Name: "shell", Description: "run a shell command in the project working directory, subject to sudo authorization"},
	})

	_ = orchestrator.New(st, fabric, gatedProvider, prompts, executor, cfg.Orchestrator, cfg.LLM)
	_ = operation.New(st)

	sched := scheduler.NewDefault(st, fabric, lookup, gatedProvider, cfg.Scheduler)
	_ = indexer

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	stopApprovalSweep := startApprovalSweep(ctx, auth, cfg.Sudo.SweepInterval)
	defer stopApprovalSweep()

	ln, err := ipc.Listen(cfg.IPC.SocketPath)
	if err != nil {
		logging.BootError("ipc socket unavailable, continuing without it: %v", err)
	} else {
		defer ln.Close()
		srv := ipc.NewServer(st)
		go func() {
			if err := srv.Serve(ln); err != nil {
				logging.IPCDebug("ipc server stopped: %v", err)
			}
		}()
		logging.Boot("listening on ipc socket %s", cfg.IPC.SocketPath)
	}

	logging.Boot("mirad ready")
	waitForShutdown()
	logging.Boot("mirad shutting down")
	return nil
}

func buildLLMProvider(cfg *config.Config) (llmadapter.Provider, memory.Embedder, error) {
	if !cfg.LLM.HasProvider() {
		replay := llmadapter.NewReplayProvider(llmadapter.MatchSequential, nil, cfg.LLM.EmbeddingDims)
		return replay, replay, nil
	}

	chatter := llmadapter.NewDeepSeekProvider(cfg.LLM.DeepSeekAPIKey, time.Duration(cfg.LLM.CallTimeoutSecs)*time.Second)

	if !cfg.LLM.HasEmbeddings() {
		return chatter, chatter, nil
	}

	embedder, err := llmadapter.NewGenAIEmbedder(context.Background(), cfg.LLM.GeminiAPIKey, cfg.LLM.EmbeddingModel, "RETRIEVAL_DOCUMENT", cfg.LLM.EmbeddingDims)
	if err != nil {
		return nil, nil, fmt.Errorf("build embedder: %w", err)
	}

	composite := llmadapter.NewCompositeProvider(chatter, embedder)
	return composite, composite, nil
}

// deepseekCostEstimate is a rough per-token estimate for DeepSeek's chat
// pricing, used only to decide whether a call would cross a budget cap -
// the actual charge recorded afterward comes from the provider's reported
// token counts, not this estimate.
func deepseekCostEstimate(inputTokens, outputTokens int) float64 {
	const inputPerMillion = 0.27
	const outputPerMillion = 1.10
	return float64(inputTokens)/1_000_000*inputPerMillion + float64(outputTokens)/1_000_000*outputPerMillion
}

func startApprovalSweep(ctx context.Context, auth *sudo.Authorizer, interval time.Duration) func() {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(done)
				return
			case <-ticker.C:
				if _, err := auth.SweepExpired(); err != nil {
					logging.SudoDebug("approval sweep failed: %v", err)
				}
			}
		}
	}()

	return func() {
		<-done
	}
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
