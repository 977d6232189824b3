package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"segue/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and session counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd, status)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, status *api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := isTerminalWriter(out)

	fmt.Fprintln(out, renderSectionHeader("Daemon"))
	runningKind := statusError
	runningMsg := "stopped"
	if status.Running {
		runningKind = statusOK
		runningMsg = fmt.Sprintf("pid %d", status.PID)
	}
	fmt.Fprintln(out, renderStatusLine("Process", runningKind, runningMsg, colorize))
	reasoningKind := statusWarn
	reasoningMsg := "not configured, deterministic planner only"
	if status.ReasoningConfigured {
		reasoningKind = statusOK
		reasoningMsg = "configured"
	}
	fmt.Fprintln(out, renderStatusLine("Reasoning service", reasoningKind, reasoningMsg, colorize))
	if status.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Stages"))
	for _, stage := range status.StageHealth {
		kind := statusOK
		message := "ready"
		if !stage.Ready {
			kind = statusError
			message = stage.Detail
		}
		fmt.Fprintln(out, renderStatusLine(stage.Name, kind, message, colorize))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Dependencies"))
	for _, dep := range status.Dependencies {
		kind := statusOK
		message := dep.Command
		if !dep.Available {
			kind = statusError
			message = dep.Detail
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Sessions"))
	statuses := make([]string, 0, len(status.SessionCounts))
	for name := range status.SessionCounts {
		statuses = append(statuses, name)
	}
	sort.Strings(statuses)
	rows := make([][]string, 0, len(statuses))
	for _, name := range statuses {
		rows = append(rows, []string{displayName(name), fmt.Sprintf("%d", status.SessionCounts[name])})
	}
	fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}
