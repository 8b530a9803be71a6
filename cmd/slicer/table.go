package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"slicer/internal/docstore"
	"slicer/internal/exports"
)

func newTableWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

// renderAssetTable lays out one target's asset list. The index and scale
// columns are right-aligned so lists with mixed scales line up, and the
// status cell is colorized when the output is a terminal.
func renderAssetTable(assets []exports.Asset, colorize bool) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"#", "SCALE", "SUFFIX", "FORMAT", "STATUS", "FILE"})
	for i, asset := range assets {
		tw.AppendRow(table.Row{
			strconv.Itoa(i),
			exports.FormatScale(asset.Scale),
			asset.Suffix,
			asset.Format,
			statusCell(asset.Status, colorize),
			asset.FilePath,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// statusCell maps the asset lifecycle to the shared status palette: stable
// green, error red, requested blue, queued plain.
func statusCell(status exports.Status, colorize bool) string {
	if !colorize {
		return string(status)
	}
	var color string
	switch status {
	case exports.StatusStable:
		color = ansiGreen
	case exports.StatusError:
		color = ansiRed
	case exports.StatusRequested:
		color = ansiBlue
	}
	if color == "" {
		return string(status)
	}
	return color + string(status) + ansiReset
}

func renderLayerTable(layers []*docstore.Layer) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"ID", "NAME", "KIND", "EXPORT", "EXPORTABLE"})
	for _, layer := range layers {
		tw.AppendRow(table.Row{
			layer.ID,
			layer.Name,
			string(layer.Kind),
			yesNo(layer.ExportEnabled),
			yesNo(layer.Exportable()),
		})
	}
	return tw.Render()
}
