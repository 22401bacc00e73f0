package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable renders headers, rows, and an optional footer (nil for none)
// in the rounded style shared by every podhaul table. rightCols names the
// 0-based indexes of columns holding numbers, which right-align.
func renderTable(headers []string, rows [][]string, footer []string, rightCols ...int) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	tw.AppendHeader(paddedRow(headers, columns))
	for _, row := range rows {
		tw.AppendRow(paddedRow(row, columns))
	}
	if len(footer) > 0 {
		tw.AppendFooter(paddedRow(footer, columns))
	}

	var configs []table.ColumnConfig
	for _, col := range rightCols {
		if col < 0 || col >= columns {
			continue
		}
		configs = append(configs, table.ColumnConfig{
			Number:      col + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
			AlignFooter: text.AlignRight,
		})
	}
	if len(configs) > 0 {
		tw.SetColumnConfigs(configs)
	}

	return tw.Render()
}

// paddedRow pads or truncates cells to the table width so ragged input rows
// cannot skew the layout.
func paddedRow(cells []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
