package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"slicer/internal/docstore"
)

func newDocsCommand(ctx *commandContext) *cobra.Command {
	docsCmd := &cobra.Command{
		Use:   "docs",
		Short: "Document and layer model maintenance",
	}

	docsCmd.AddCommand(newDocsAddCommand(ctx))
	docsCmd.AddCommand(newDocsAddLayerCommand(ctx))
	docsCmd.AddCommand(newDocsLayersCommand(ctx))

	return docsCmd
}

func newDocsAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <document-id> <name>",
		Short: "Register a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				if err := s.docs.AddDocument(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Document %s added\n", args[0])
				return nil
			})
		},
	}
}

func newDocsAddLayerCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var enabledFlag bool

	cmd := &cobra.Command{
		Use:   "add-layer <document-id> <layer-id> <name>",
		Short: "Append a layer to a document",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := docstore.ParseKind(kindFlag)
			if !ok {
				return fmt.Errorf("unknown layer kind %q", kindFlag)
			}
			return ctx.withServices(func(s *services) error {
				layer := &docstore.Layer{
					ID:            args[1],
					DocumentID:    args[0],
					Name:          args[2],
					Kind:          kind,
					ExportEnabled: enabledFlag,
				}
				if err := s.docs.AddLayer(cmd.Context(), layer); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Layer %s added to %s\n", args[1], args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", string(docstore.KindRaster), "Layer kind (raster, vector, group, adjustment, guide)")
	cmd.Flags().BoolVar(&enabledFlag, "export-enabled", false, "Flag the layer for export")
	return cmd
}

func newDocsLayersCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "layers <document-id>",
		Short: "List the layers of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				layers, err := s.docs.Layers(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonFlag {
					type jsonLayer struct {
						ID            string `json:"id"`
						Name          string `json:"name"`
						Kind          string `json:"kind"`
						ExportEnabled bool   `json:"export_enabled"`
					}
					out := make([]jsonLayer, 0, len(layers))
					for _, layer := range layers {
						out = append(out, jsonLayer{
							ID:            layer.ID,
							Name:          layer.Name,
							Kind:          string(layer.Kind),
							ExportEnabled: layer.ExportEnabled,
						})
					}
					return writeJSON(cmd.OutOrStdout(), map[string]any{"layers": out})
				}

				if len(layers) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No layers")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderLayerTable(layers))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}

func newLayersCommand(ctx *commandContext) *cobra.Command {
	layersCmd := &cobra.Command{
		Use:   "layers",
		Short: "Layer export flag maintenance",
	}

	layersCmd.AddCommand(newLayersEnableCommand(ctx, true))
	layersCmd.AddCommand(newLayersEnableCommand(ctx, false))

	return layersCmd
}

func newLayersEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use := "enable <document-id> <layer-id>..."
	short := "Flag layers for export"
	if !enable {
		use = "disable <document-id> <layer-id>..."
		short = "Remove layers from export"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				docID := args[0]
				verb := "enabled"
				if !enable {
					verb = "disabled"
				}
				for _, layerID := range args[1:] {
					layerID = strings.TrimSpace(layerID)
					if err := s.docs.SetLayerExportEnabled(cmd.Context(), docID, layerID, enable); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Layer %s export %s\n", layerID, verb)
				}
				return nil
			})
		},
	}
}
