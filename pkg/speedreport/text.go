package speedreport

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// WriteLatex writes t as a LaTeX tabular. Column names are not escaped.
func WriteLatex(w io.Writer, t Table, precision int) error {
	bw := bufio.NewWriter(w)
	ncenter := len(t.Columns) - 2
	if ncenter < 0 {
		ncenter = 0
	}
	fmt.Fprintf(bw, "\\begin{tabular}{ll%s}\n", strings.Repeat("c", ncenter))
	fmt.Fprintln(bw, `\hline`)
	fmt.Fprintln(bw, `\hline`)
	fmt.Fprintf(bw, "\\textbf{%s}\\\\\n", strings.Join(t.Columns, `} & \textbf{`))
	fmt.Fprintln(bw, `\hline`)
	for _, cells := range t.Cells(precision) {
		fmt.Fprintf(bw, "%s\\\\\n", strings.Join(cells, " & "))
	}
	fmt.Fprintln(bw, `\hline`)
	fmt.Fprintln(bw, `\hline`)
	fmt.Fprintln(bw, `\end{tabular}`)
	return bw.Flush()
}

// WritePlain writes t as a right aligned text table with a leading row index.
func WritePlain(w io.Writer, t Table, precision int) error {
	rows := t.Cells(precision)
	for i := range rows {
		rows[i] = append([]string{strconv.Itoa(i)}, rows[i]...)
	}
	cellStyle := lipgloss.NewStyle().Align(lipgloss.Right).PaddingLeft(1)
	tbl := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers(append([]string{""}, t.Columns...)...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 && row != table.HeaderRow {
				return cellStyle.PaddingLeft(0)
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, tbl.String())
	return err
}

// WriteSummary writes the intermediate aggregates of every row.
func WriteSummary(w io.Writer, t Table, precision int) error {
	headers := []string{ParametersColumn, "al_samples", "rs_samples", "al_time", "rs_time", "al_time_raw", "iterations", "matched", "dropped"}
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		s := r.Stats
		dropped := "-"
		if len(s.DroppedIterations) > 0 {
			dropped = strings.Trim(fmt.Sprint(s.DroppedIterations), "[]")
		}
		rows = append(rows, []string{
			strconv.Itoa(r.NParameters),
			FormatValue(s.ALSamples, precision),
			FormatValue(s.RSSamples, precision),
			FormatValue(s.ALTime, precision),
			FormatValue(s.RSTime, precision),
			FormatValue(s.ALTimeRaw, precision),
			strconv.Itoa(s.Iterations),
			strconv.Itoa(s.MatchedIterations),
			dropped,
		})
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			return s.Align(lipgloss.Right)
		})
	_, err := fmt.Fprintln(w, tbl.String())
	return err
}
