package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"segue/internal/api"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage mix sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newSessionsListCommand(ctx))
	cmd.AddCommand(newSessionsShowCommand(ctx))
	cmd.AddCommand(newSessionsCancelCommand(ctx))
	cmd.AddCommand(newSessionsDownloadCommand(ctx))
	return cmd
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, optionally filtered by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := ctx.client().ListSessions(cmd.Context(), statusFilters...)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}
			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				rows = append(rows, []string{
					fmt.Sprintf("%d", s.ID),
					s.UUID,
					displayName(s.Status),
					displayName(s.Strategy),
					fmt.Sprintf("%.0f%%", s.Progress.Percent*100),
					filepath.Base(s.TrackAPath) + " + " + filepath.Base(s.TrackBPath),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "UUID", "Status", "Strategy", "Progress", "Tracks"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newSessionsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|uuid>",
		Short: "Show one session in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.client().GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSession(cmd, session)
			return nil
		},
	}
}

func printSession(cmd *cobra.Command, s *api.Session) {
	out := cmd.OutOrStdout()
	colorize := isTerminalWriter(out)

	fmt.Fprintln(out, renderSectionHeader(fmt.Sprintf("Session %d (%s)", s.ID, s.UUID)))
	fmt.Fprintln(out, renderStatusLine("Status", kindForStatus(s.Status), displayName(s.Status), colorize))
	fmt.Fprintln(out, renderStatusLine("Track A", statusInfo, s.TrackAPath, colorize))
	fmt.Fprintln(out, renderStatusLine("Track B", statusInfo, s.TrackBPath, colorize))
	if s.Strategy != "" {
		source := s.DecisionSource
		fmt.Fprintln(out, renderStatusLine("Strategy", statusInfo, fmt.Sprintf("%s (%s)", displayName(s.Strategy), source), colorize))
	}
	if s.Progress.Stage != "" {
		fmt.Fprintln(out, renderStatusLine("Progress", statusInfo,
			fmt.Sprintf("%.0f%% %s", s.Progress.Percent*100, s.Progress.Message), colorize))
	}
	if s.ArtifactPath != "" {
		fmt.Fprintln(out, renderStatusLine("Artifact", statusOK,
			fmt.Sprintf("%s (%s, peak %.1f dB)", s.ArtifactPath, formatDurationMS(s.DurationMS), s.PeakDB), colorize))
	}
	if s.LosslessPath != "" {
		fmt.Fprintln(out, renderStatusLine("Lossless", statusInfo, s.LosslessPath, colorize))
	}
	if s.Suggestion != "" {
		fmt.Fprintln(out, renderStatusLine("Suggestion", statusWarn, s.Suggestion, colorize))
	}
	if s.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, s.ErrorMessage, colorize))
	}
	for _, warning := range s.Warnings {
		fmt.Fprintln(out, renderStatusLine("Warning", statusWarn, warning, colorize))
	}
}

func kindForStatus(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "failed":
		return statusError
	case "cancelled":
		return statusWarn
	default:
		return statusInfo
	}
}

func newSessionsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id|uuid>",
		Short: "Request cancellation of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			switch {
			case resp.Session.Status == "cancelled":
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s cancelled.\n", resp.Session.UUID)
			case resp.Cancelled:
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested; session %s will stop before rendering.\n", resp.Session.UUID)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s is %s and cannot be cancelled.\n",
					resp.Session.UUID, displayName(resp.Session.Status))
			}
			return nil
		},
	}
}

func newSessionsDownloadCommand(ctx *commandContext) *cobra.Command {
	var destFlag string
	cmd := &cobra.Command{
		Use:   "download <id|uuid>",
		Short: "Download the rendered mix for a completed session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := strings.TrimSpace(destFlag)
			if dest == "" {
				dest = fmt.Sprintf("segue_mix_%s.mp3", args[0])
			}
			f, err := os.Create(dest)
			if err != nil {
				return fmt.Errorf("create %s: %w", dest, err)
			}
			defer f.Close()
			n, err := ctx.client().Artifact(cmd.Context(), args[0], f)
			if err != nil {
				os.Remove(dest)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes).\n", dest, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&destFlag, "output", "o", "", "Destination file path")
	return cmd
}
