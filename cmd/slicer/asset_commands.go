package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"slicer/internal/exports"
)

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Export asset list maintenance",
	}

	assetsCmd.AddCommand(newAssetsListCommand(ctx))
	assetsCmd.AddCommand(newAssetsAddCommand(ctx))
	assetsCmd.AddCommand(newAssetsUpdateCommand(ctx))
	assetsCmd.AddCommand(newAssetsDeleteCommand(ctx))
	assetsCmd.AddCommand(newAssetsHealthCommand(ctx))

	return assetsCmd
}

func newAssetsListCommand(ctx *commandContext) *cobra.Command {
	var layerFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "list <document-id>",
		Short: "List configured export assets for a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				target := resolveTarget(args[0], layerFlag)
				if err := s.sync.Hydrate(cmd.Context(), target.DocumentID); err != nil {
					return err
				}
				assets := s.sync.Registry().Assets(target)

				if jsonFlag {
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"target": target.String(),
						"assets": assets,
					})
				}

				out := cmd.OutOrStdout()
				if len(assets) == 0 {
					fmt.Fprintf(out, "No assets configured for %s\n", target)
					return nil
				}
				fmt.Fprintln(out, renderAssetTable(assets, shouldColorize(out)))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&layerFlag, "layer", "l", "", "Layer ID (omit for the document-level list)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}

func newAssetsAddCommand(ctx *commandContext) *cobra.Command {
	var layerFlag string
	var scaleFlag float64
	var formatFlag string
	var suffixFlag string
	var indexFlag int

	cmd := &cobra.Command{
		Use:   "add <document-id>",
		Short: "Add an export asset to a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				target := resolveTarget(args[0], layerFlag)
				if err := s.sync.Hydrate(cmd.Context(), target.DocumentID); err != nil {
					return err
				}

				asset := exports.NewAsset(scaleFlag, strings.ToLower(strings.TrimSpace(formatFlag)))
				if cmd.Flags().Changed("suffix") {
					asset.Suffix = suffixFlag
				}
				if err := asset.Validate(); err != nil {
					return err
				}

				index := indexFlag
				if index < 0 {
					index = len(s.sync.Registry().Assets(target))
				}
				if err := s.sync.AddAssets(cmd.Context(), target, index, asset); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %s%s added to %s at %d\n",
					exports.FormatScale(asset.Scale)+"x", asset.Suffix, target, index)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&layerFlag, "layer", "l", "", "Layer ID (omit for the document-level list)")
	cmd.Flags().Float64Var(&scaleFlag, "scale", 1, "Export scale factor")
	cmd.Flags().StringVar(&formatFlag, "format", "png", "Output format")
	cmd.Flags().StringVar(&suffixFlag, "suffix", "", "Filename suffix override")
	cmd.Flags().IntVar(&indexFlag, "index", -1, "Insertion index (default appends)")
	return cmd
}

func newAssetsUpdateCommand(ctx *commandContext) *cobra.Command {
	var layerFlag string
	var scaleFlag float64
	var formatFlag string
	var suffixFlag string
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "update <document-id> <index>",
		Short: "Patch an export asset in place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil || index < 0 {
				return fmt.Errorf("invalid asset index %q", args[1])
			}

			var patch exports.Patch
			if cmd.Flags().Changed("scale") {
				patch.Scale = &scaleFlag
			}
			if cmd.Flags().Changed("format") {
				format := strings.ToLower(strings.TrimSpace(formatFlag))
				patch.Format = &format
			}
			if cmd.Flags().Changed("suffix") {
				patch.Suffix = &suffixFlag
			}
			if cmd.Flags().Changed("status") {
				status, ok := exports.ParseStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFlag)
				}
				patch.Status = &status
			}

			return ctx.withServices(func(s *services) error {
				target := resolveTarget(args[0], layerFlag)
				if err := s.sync.Hydrate(cmd.Context(), target.DocumentID); err != nil {
					return err
				}
				merged, err := s.sync.UpdateAsset(cmd.Context(), target, index, patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %d on %s now %sx%s [%s]\n",
					index, target, exports.FormatScale(merged.Scale), merged.Suffix, merged.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&layerFlag, "layer", "l", "", "Layer ID (omit for the document-level list)")
	cmd.Flags().Float64Var(&scaleFlag, "scale", 0, "New scale factor")
	cmd.Flags().StringVar(&formatFlag, "format", "", "New output format")
	cmd.Flags().StringVar(&suffixFlag, "suffix", "", "New filename suffix")
	cmd.Flags().StringVar(&statusFlag, "status", "", "New status (queued, requested, stable, error)")
	return cmd
}

func newAssetsDeleteCommand(ctx *commandContext) *cobra.Command {
	var layerFlag string

	cmd := &cobra.Command{
		Use:   "delete <document-id> <index>",
		Short: "Remove an export asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil || index < 0 {
				return fmt.Errorf("invalid asset index %q", args[1])
			}
			return ctx.withServices(func(s *services) error {
				target := resolveTarget(args[0], layerFlag)
				if err := s.sync.Hydrate(cmd.Context(), target.DocumentID); err != nil {
					return err
				}
				if err := s.sync.DeleteAsset(cmd.Context(), target, index); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %d removed from %s\n", index, target)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&layerFlag, "layer", "l", "", "Layer ID (omit for the document-level list)")
	return cmd
}

func newAssetsHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Summarize persisted export metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				summary, err := s.meta.Health(cmd.Context())
				if err != nil {
					return err
				}
				if jsonFlag {
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"targets": summary.Targets,
						"assets":  summary.Assets,
						"queued":  summary.Queued,
						"stable":  summary.Stable,
						"errored": summary.Errored,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Targets:  %d\n", summary.Targets)
				fmt.Fprintf(out, "Assets:   %d\n", summary.Assets)
				fmt.Fprintf(out, "Queued:   %d\n", summary.Queued)
				fmt.Fprintf(out, "Stable:   %d\n", summary.Stable)
				fmt.Fprintf(out, "Errored:  %d\n", summary.Errored)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}

func resolveTarget(documentID, layerID string) exports.Target {
	layerID = strings.TrimSpace(layerID)
	if layerID == "" {
		return exports.RootTarget(documentID)
	}
	return exports.LayerTarget(documentID, layerID)
}
