// Package main implements the one-shot dispatch commands for agentdesk.
// This file handles run and send.
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agentdesk/internal/agentapi"
	"agentdesk/internal/logging"
	"agentdesk/internal/session"
	"agentdesk/internal/transcript"
)

// Dispatch flags shared by run and send
var (
	companyA    string
	companyB    string
	instruction string
	parallel    bool
	exportDir   string
	doExport    bool
)

// =============================================================================
// RUN / SEND COMMANDS
// =============================================================================

// runCmd dispatches to one or more named agents
var runCmd = &cobra.Command{
	Use:   "run <agent>...",
	Short: "Run one or more agents against the two companies",
	Long: `Dispatch the companies and instruction to the named agents and print the
replies. Agents: research, product, marketing, run-pipeline (aliases such as
"pipeline" or the endpoint path are accepted).

Agents run one after another unless --parallel is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAgents,
}

// sendCmd sends an instruction through the full pipeline
var sendCmd = &cobra.Command{
	Use:   "send <instruction>...",
	Short: "Send an instruction to the full agent pipeline",
	RunE:  runSend,
}

func init() {
	for _, c := range []*cobra.Command{runCmd, sendCmd} {
		c.Flags().StringVarP(&companyA, "company1", "a", "", "First company")
		c.Flags().StringVarP(&companyB, "company2", "b", "", "Second company")
		c.Flags().BoolVar(&doExport, "export", false, "Save the transcript as a Markdown report")
		c.Flags().StringVar(&exportDir, "export-dir", "", "Report directory (default from config)")
		c.Flags().BoolVar(&rawOutput, "raw", false, "Print plain Markdown")
	}
	runCmd.Flags().StringVarP(&instruction, "instruction", "i", "", "Instruction text")
	runCmd.Flags().BoolVar(&parallel, "parallel", false, "Dispatch all agents concurrently")
}

func runAgents(cmd *cobra.Command, args []string) error {
	targets := make([]agentapi.Target, 0, len(args))
	for _, a := range args {
		t, err := agentapi.ParseTarget(a)
		if err != nil {
			return err
		}
		targets = append(targets, t)
	}

	orch, cleanup, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()
	seedInputs(orch, instruction)

	outcomes := dispatch(ctxOrBackground(cmd), orch, targets, parallel)
	return finish(cmd, orch, outcomes)
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errors.New("instruction is required")
	}

	orch, cleanup, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()
	seedInputs(orch, text)

	out := orch.SendMessage(ctxOrBackground(cmd))
	return finish(cmd, orch, []session.Outcome{out})
}

func seedInputs(orch *session.Orchestrator, text string) {
	orch.SetSubjectA(companyA)
	orch.SetSubjectB(companyB)
	orch.SetPendingInput(text)
}

// dispatch runs targets and returns their outcomes in argument order.
func dispatch(ctx context.Context, orch *session.Orchestrator, targets []agentapi.Target, concurrent bool) []session.Outcome {
	outcomes := make([]session.Outcome, len(targets))
	if !concurrent {
		for i, t := range targets {
			outcomes[i] = orch.RunAgent(ctx, t)
		}
		return outcomes
	}

	// RunAgent never returns an error; each goroutine owns one slot.
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			outcomes[i] = orch.RunAgent(gctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// finish prints the transcript, optionally exports it and reports failures.
func finish(cmd *cobra.Command, orch *session.Orchestrator, outcomes []session.Outcome) error {
	// Let report downloads settle before reading final state.
	orch.Wait()
	snap := orch.Snapshot()
	log := logging.For(logger, logging.CategoryBoot)

	if err := printTranscript(cmd.OutOrStdout(), snap.Transcript); err != nil {
		return err
	}

	for _, out := range outcomes {
		if out.Report != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", out.Report)
		}
	}

	if doExport {
		dir := exportDir
		if dir == "" {
			dir = cfg.Export.Dir
		}
		path, err := transcript.Save(dir, transcript.Report{
			GeneratedAt: time.Now(),
			SubjectA:    snap.SubjectA,
			SubjectB:    snap.SubjectB,
			Messages:    snap.Transcript,
		})
		if err != nil {
			return err
		}
		log.Info("Transcript exported", zap.String("path", path))
		fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", path)
	}

	var failed []string
	for _, out := range outcomes {
		if out.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", out.Target, out.Err))
		}
	}
	if len(failed) > 0 {
		return errors.New(strings.Join(failed, "; "))
	}
	return nil
}

func ctxOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
