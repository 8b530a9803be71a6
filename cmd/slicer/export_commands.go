package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"slicer/internal/batch"
	"slicer/internal/config"
	"slicer/internal/dialog"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Run export batches against the rendering worker",
	}

	exportCmd.AddCommand(newExportDocumentCommand(ctx))
	exportCmd.AddCommand(newExportLayersCommand(ctx))

	return exportCmd
}

func newExportDocumentCommand(ctx *commandContext) *cobra.Command {
	var destFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "document <document-id>",
		Short: "Export the document-level asset list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := resolveDestination(destFlag)
			if err != nil {
				return err
			}
			return ctx.withServices(func(s *services) error {
				coordinator := connectCoordinator(cmd, s, dest)
				outcome, err := coordinator.ExportDocumentAssets(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printOutcome(cmd, outcome, jsonFlag)
			})
		},
	}

	cmd.Flags().StringVarP(&destFlag, "dest", "d", "", "Destination folder (required)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	_ = cmd.MarkFlagRequired("dest")
	return cmd
}

func newExportLayersCommand(ctx *commandContext) *cobra.Command {
	var destFlag string
	var prefixFlags []string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "layers <document-id> [layer-id...]",
		Short: "Export per-layer asset lists",
		Long: "Export per-layer asset lists. With no layer IDs every export-enabled\n" +
			"layer of the document is exported.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := resolveDestination(destFlag)
			if err != nil {
				return err
			}
			prefixes, err := parsePrefixAssignments(prefixFlags)
			if err != nil {
				return err
			}
			return ctx.withServices(func(s *services) error {
				coordinator := connectCoordinator(cmd, s, dest)
				outcome, err := coordinator.ExportLayerAssets(cmd.Context(), args[0], args[1:], prefixes)
				if err != nil {
					return err
				}
				return printOutcome(cmd, outcome, jsonFlag)
			})
		},
	}

	cmd.Flags().StringVarP(&destFlag, "dest", "d", "", "Destination folder (required)")
	cmd.Flags().StringArrayVar(&prefixFlags, "prefix", nil, "Per-layer filename prefix as layer-id=prefix (repeatable)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	_ = cmd.MarkFlagRequired("dest")
	return cmd
}

// connectCoordinator performs the worker handshake and assembles the batch
// coordinator. The destination arrives as a flag, so the folder chooser is a
// scripted one. A failed handshake is not fatal here; the coordinator reports
// the unavailable worker as a skipped batch.
func connectCoordinator(cmd *cobra.Command, s *services, dest string) *batch.Coordinator {
	if err := s.conn.Connect(cmd.Context()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Worker handshake failed: %v\n", err)
	}
	chooser := dialog.NewScriptedChooser(dest)
	return batch.NewCoordinator(s.sync, s.docs, s.conn, chooser, s.prefs, s.logger)
}

func resolveDestination(dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return "", fmt.Errorf("destination folder is required")
	}
	return config.ExpandPath(dest)
}

func parsePrefixAssignments(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	prefixes := make(map[string]string, len(values))
	for _, value := range values {
		key, prefix, ok := strings.Cut(value, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid prefix assignment %q (expected layer-id=prefix)", value)
		}
		prefixes[key] = prefix
	}
	return prefixes, nil
}

func printOutcome(cmd *cobra.Command, outcome *batch.Outcome, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"batch_id": outcome.BatchID,
			"exported": outcome.Exported,
			"failed":   outcome.Failed,
			"skipped":  string(outcome.Skipped),
		})
	}

	out := cmd.OutOrStdout()
	switch outcome.Skipped {
	case batch.SkipWorkerUnavailable:
		fmt.Fprintln(out, "Export skipped: rendering worker unavailable")
	case batch.SkipFolderCancelled:
		fmt.Fprintln(out, "Export cancelled")
	case batch.SkipNoTargets:
		fmt.Fprintln(out, "Export skipped: no exportable targets or assets")
	default:
		fmt.Fprintf(out, "Exported %d asset(s)", outcome.Exported)
		if outcome.Failed > 0 {
			fmt.Fprintf(out, ", %d failed", outcome.Failed)
		}
		fmt.Fprintln(out)
	}
	return nil
}
