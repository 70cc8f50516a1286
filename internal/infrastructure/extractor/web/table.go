package web

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

const headerPadding = 2

// renderTable lays rows out as a plain column-aligned table with the first
// row as header and a dashed rule below it. Numeric columns align right.
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return ""
	}

	widths := make([]int, cols)
	numeric := make([]bool, cols)
	for c := 0; c < cols; c++ {
		widths[c] = runewidth.StringWidth(cell(rows[0], c)) + headerPadding
		numeric[c] = true
		seen := false
		for _, row := range rows[1:] {
			v := cell(row, c)
			widths[c] = max(widths[c], runewidth.StringWidth(v))
			if v == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				numeric[c] = false
			}
		}
		numeric[c] = numeric[c] && seen
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, formatRow(rows[0], widths, numeric))
	rule := make([]string, cols)
	for c, w := range widths {
		rule[c] = strings.Repeat("-", w)
	}
	lines = append(lines, strings.Join(rule, "  "))
	for _, row := range rows[1:] {
		lines = append(lines, formatRow(row, widths, numeric))
	}
	return strings.Join(lines, "\n")
}

func formatRow(row []string, widths []int, numeric []bool) string {
	parts := make([]string, len(widths))
	for c, w := range widths {
		if numeric[c] {
			parts[c] = runewidth.FillLeft(cell(row, c), w)
		} else {
			parts[c] = runewidth.FillRight(cell(row, c), w)
		}
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

func cell(row []string, c int) string {
	if c < len(row) {
		return row[c]
	}
	return ""
}
