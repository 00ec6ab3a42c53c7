package main

import (
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentdesk/cmd/agentdesk/ui"
	"agentdesk/internal/logging"
)

// runInteractive starts the terminal interface
func runInteractive(cmd *cobra.Command) error {
	orch, cleanup, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctxOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.For(logger, logging.CategoryUI)
	model := ui.New(ctx, orch, ui.Options{
		ExportDir: cfg.Export.Dir,
		Logger:    log,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	log.Info("Interactive session started", zap.String("base_url", cfg.API.BaseURL))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
