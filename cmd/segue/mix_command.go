package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"segue/internal/analysis"
	"segue/internal/api"
	"segue/internal/decision"
	"segue/internal/progress"
)

func newMixCommand(ctx *commandContext) *cobra.Command {
	var (
		analysisA string
		analysisB string
		strategy  string
		startMS   float64
		inPointMS float64
		mixInKey  bool
		follow    bool
	)

	cmd := &cobra.Command{
		Use:   "mix <track-a> <track-b>",
		Short: "Submit two analyzed tracks for mixing",
		Long: "Submits a mix session against a running daemon. Each track needs a matching\n" +
			"analysis JSON file, either passed explicitly or found next to the audio as\n" +
			"<track>.analysis.json.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackA, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			trackB, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}

			recA, err := loadRecord(analysisA, trackA)
			if err != nil {
				return err
			}
			recB, err := loadRecord(analysisB, trackB)
			if err != nil {
				return err
			}

			req := api.CreateSessionRequest{
				TrackAPath: trackA,
				TrackBPath: trackB,
				TrackA:     recA,
				TrackB:     recB,
			}
			if strategy != "" || startMS > 0 || inPointMS > 0 || mixInKey {
				req.Preferences = &decision.Preferences{
					Strategy:          strategy,
					TransitionStartMS: startMS,
					TrackBInPointMS:   inPointMS,
					MixInKey:          mixInKey,
				}
			}

			client := ctx.client()
			session, err := client.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %d queued (%s).\n", session.ID, session.UUID)

			if !follow {
				return nil
			}
			return followSession(cmd, ctx, session.UUID)
		},
	}

	cmd.Flags().StringVar(&analysisA, "analysis-a", "", "Analysis JSON for track A")
	cmd.Flags().StringVar(&analysisB, "analysis-b", "", "Analysis JSON for track B")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Preferred mix strategy")
	cmd.Flags().Float64Var(&startMS, "transition-start-ms", 0, "Approximate transition start in track A")
	cmd.Flags().Float64Var(&inPointMS, "in-point-ms", 0, "Approximate entry point in track B")
	cmd.Flags().BoolVar(&mixInKey, "mix-in-key", false, "Pitch-shift track B when keys clash")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream progress until the session finishes")
	return cmd
}

// loadRecord reads the analysis record for a track, defaulting to the
// sidecar <track>.analysis.json.
func loadRecord(explicit, trackPath string) (analysis.Record, error) {
	path := strings.TrimSpace(explicit)
	if path == "" {
		ext := filepath.Ext(trackPath)
		path = strings.TrimSuffix(trackPath, ext) + ".analysis.json"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return analysis.Record{}, fmt.Errorf("read analysis %s: %w", path, err)
	}
	var record analysis.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return analysis.Record{}, fmt.Errorf("parse analysis %s: %w", path, err)
	}
	return record, nil
}

func followSession(cmd *cobra.Command, ctx *commandContext, uuid string) error {
	client := ctx.client()
	var cursor uint64
	for {
		resp, err := client.Events(cmd.Context(), uuid, cursor, true)
		if err != nil {
			return err
		}
		cursor = resp.Next
		for _, event := range resp.Events {
			fmt.Fprintf(cmd.OutOrStdout(), "[%3.0f%%] %-10s %s\n", event.Progress*100, event.Stage, event.Message)
			if event.Stage == progress.StageComplete {
				return nil
			}
			if event.Stage == progress.StageError {
				return fmt.Errorf("session failed: %s", event.Message)
			}
		}
		if cmd.Context().Err() != nil {
			return cmd.Context().Err()
		}
	}
}
