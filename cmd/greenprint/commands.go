package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"greenprint/internal/artifact"
	"greenprint/internal/config"
	"greenprint/internal/llm"
	"greenprint/internal/pipeline"
	"greenprint/internal/prompt"
	"greenprint/internal/regulatory"
	"greenprint/internal/render"
	"greenprint/internal/server"
	"greenprint/internal/session"
)

var (
	// serve/run flags
	templateDir string

	// run flags
	industryFocus       string
	regulatoryFramework string
	trainingLevel       string
)

// components is the wired application core shared by serve and run.
type components struct {
	store     *artifact.Store
	sessions  *session.Manager
	service   *pipeline.Service
	assembler *render.Assembler
	watcher   *prompt.Watcher
}

func (c *components) close() {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	if err := c.store.Close(); err != nil {
		logger.Warn("failed to close artifact store", zap.Error(err))
	}
}

func buildComponents(ctx context.Context) (*components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	store, err := artifact.NewStore(cfg.Pipeline.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}

	prompts, err := prompt.NewBuilder()
	if err != nil {
		store.Close()
		return nil, err
	}

	var watcher *prompt.Watcher
	if templateDir != "" {
		watcher, err = prompt.NewWatcher(prompts, templateDir)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to load template directory: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}

	stageTimeout, err := cfg.StageTimeout()
	if err != nil {
		store.Close()
		return nil, err
	}
	sessionTimeout, err := cfg.SessionTimeout()
	if err != nil {
		store.Close()
		return nil, err
	}
	ttl, err := cfg.SessionTTL()
	if err != nil {
		store.Close()
		return nil, err
	}

	executor := pipeline.NewExecutor(client, prompts)
	controller := pipeline.NewController(executor, store, cfg.Pipeline.MaxRetries, stageTimeout, sessionTimeout)
	assembler := render.NewAssembler(store)
	sessions := session.NewManager(ttl)
	service := pipeline.NewService(controller, assembler, sessions, store, cfg.Pipeline.OutputDirectory)

	return &components{
		store:     store,
		sessions:  sessions,
		service:   service,
		assembler: assembler,
		watcher:   watcher,
	}, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the training API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		comps, err := buildComponents(ctx)
		if err != nil {
			return err
		}
		defer comps.close()

		srv := server.New(cfg.Server.Addr, comps.sessions, comps.service, comps.store, logger)
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		return srv.Run(ctx)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one training session end to end",
	Long: `Runs the full pipeline for one session and writes the playbook to the
output directory. Blocks until the session completes or fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		comps, err := buildComponents(ctx)
		if err != nil {
			return err
		}
		defer comps.close()

		sess, err := session.New(industryFocus, regulatoryFramework, trainingLevel)
		if err != nil {
			return err
		}
		comps.sessions.Add(sess)

		logger.Info("session starting",
			zap.String("session_id", sess.ID),
			zap.String("industry", sess.IndustryFocus),
			zap.String("framework", sess.RegulatoryFramework))

		if err := comps.service.Run(ctx, sess); err != nil {
			return fmt.Errorf("session failed: %w", err)
		}

		state, err := comps.sessions.Get(sess.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Session %s completed\nPlaybook: %s\n", sess.ID, state.PlaybookPath)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [session-id]",
	Short: "Re-validate the stored artifacts for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		store, err := artifact.NewStore(cfg.Pipeline.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open artifact store: %w", err)
		}
		defer store.Close()

		failures := 0
		for _, stage := range artifact.Stages() {
			a, err := store.Get(sessionID, stage)
			if err != nil {
				fmt.Printf("%-16s missing\n", stage)
				failures++
				continue
			}
			result := artifact.Validate(stage, a.Fields)
			if result.OK {
				fmt.Printf("%-16s ok\n", stage)
			} else {
				fmt.Printf("%-16s invalid: %s\n", stage, result.Summary())
				failures++
			}
		}

		if failures > 0 {
			return fmt.Errorf("%d of %d stages failed validation", failures, len(artifact.Stages()))
		}
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render [session-id]",
	Short: "Assemble the playbook for a session from stored artifacts",
	Long: `Renders the playbook to stdout from the session's stored artifacts.
Framework and level describe the original request; sessions are not
persisted across restarts, so they are supplied as flags.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		store, err := artifact.NewStore(cfg.Pipeline.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open artifact store: %w", err)
		}
		defer store.Close()

		level, err := session.NormalizeLevel(trainingLevel)
		if err != nil {
			return err
		}
		sess := &session.Session{
			ID:                  sessionID,
			IndustryFocus:       industryFocus,
			RegulatoryFramework: session.NormalizeFramework(regulatoryFramework),
			TrainingLevel:       level,
		}

		assembler := render.NewAssembler(store)
		doc, err := assembler.Assemble(sess)
		if err != nil {
			return err
		}
		fmt.Println(doc)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s", configPath)
		}
		defaults := config.DefaultConfig()
		if err := defaults.Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", configPath)
		fmt.Printf("Recognized regulatory frameworks: %v\n", regulatory.Regions())
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&templateDir, "templates", "", "prompt template override directory (hot-reloaded)")

	runCmd.Flags().StringVar(&templateDir, "templates", "", "prompt template override directory (hot-reloaded)")
	runCmd.Flags().StringVar(&industryFocus, "industry", "", "industry focus for the scenario")
	runCmd.Flags().StringVar(&regulatoryFramework, "framework", "Global", "regulatory framework (EU, USA, UK, Global)")
	runCmd.Flags().StringVar(&trainingLevel, "level", "Intermediate", "training level (Beginner, Intermediate, Advanced)")
	_ = runCmd.MarkFlagRequired("industry")

	renderCmd.Flags().StringVar(&industryFocus, "industry", "", "industry focus of the original request")
	renderCmd.Flags().StringVar(&regulatoryFramework, "framework", "Global", "regulatory framework of the original request")
	renderCmd.Flags().StringVar(&trainingLevel, "level", "Intermediate", "training level of the original request")

	configCmd.AddCommand(configInitCmd)
}
