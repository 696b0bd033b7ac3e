package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// column is one table column: its header and cell alignment.
type column struct {
	header string
	align  columnAlignment
}

func leftColumn(header string) column  { return column{header: header, align: alignLeft} }
func rightColumn(header string) column { return column{header: header, align: alignRight} }

// renderTable renders rows under cols with rounded borders. Short rows are
// padded with empty cells. A non-empty footer is rendered as a totals row.
func renderTable(cols []column, rows [][]string, footer []string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault

	tw.AppendHeader(padRow(cols, nil, func(i int) string { return cols[i].header }))
	for _, row := range rows {
		tw.AppendRow(padRow(cols, row, nil))
	}
	if len(footer) > 0 {
		tw.AppendFooter(padRow(cols, footer, nil))
	}

	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		align := text.AlignLeft
		if c.align == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			AlignFooter: align,
		}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// padRow builds a table row of exactly len(cols) cells from values, or from
// cell when it is set.
func padRow(cols []column, values []string, cell func(int) string) table.Row {
	r := make(table.Row, len(cols))
	for i := range cols {
		switch {
		case cell != nil:
			r[i] = cell(i)
		case i < len(values):
			r[i] = values[i]
		default:
			r[i] = ""
		}
	}
	return r
}

// printTable writes a titled section holding one table.
func printTable(title string, cols []column, rows [][]string, footer []string) {
	heading(title)
	fmt.Fprintln(stderr, renderTable(cols, rows, footer))
}
