package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"segue/internal/config"
	"segue/internal/daemon"
	"segue/internal/logging"
	"segue/internal/planning"
	"segue/internal/progress"
	"segue/internal/queue"
	"segue/internal/rendering"
	"segue/internal/workflow"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configFlag string
	cmd := &cobra.Command{
		Use:           "segued",
		Short:         "Segue mix pipeline daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFlag)
		},
	}
	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	return cmd
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open session store", logging.Error(err))
		return err
	}

	reporter := progress.NewHub(0)
	planner := planning.NewPlanner(cfg, logger, reporter)
	renderer := rendering.NewRenderer(cfg, logger, reporter)
	manager := workflow.NewManager(cfg, store, logger, reporter, workflow.StageSet{
		Planner:  planner,
		Renderer: renderer,
	})

	d, err := daemon.New(cfg, store, logger, manager, reporter, planner)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("segue daemon shutting down")
	return nil
}
