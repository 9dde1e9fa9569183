package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column is one listing column. Numeric columns are right aligned under a
// left-aligned title.
type column struct {
	title   string
	numeric bool
}

// listing collects rows for one table printed by a list command.
type listing struct {
	columns []column
	rows    [][]string
	caption string
}

func newListing(columns ...column) *listing {
	return &listing{columns: columns}
}

// add appends a row; missing trailing cells render empty.
func (l *listing) add(cells ...string) {
	l.rows = append(l.rows, cells)
}

func (l *listing) render() string {
	if len(l.columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(l.columns))
	configs := make([]table.ColumnConfig, len(l.columns))
	for i, col := range l.columns {
		header[i] = col.title
		align := text.AlignLeft
		if col.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, cells := range l.rows {
		row := make(table.Row, len(l.columns))
		for i := range row {
			row[i] = ""
			if i < len(cells) {
				row[i] = cells[i]
			}
		}
		tw.AppendRow(row)
	}
	if l.caption != "" {
		tw.SetCaption("%s", l.caption)
	}
	return tw.Render()
}
