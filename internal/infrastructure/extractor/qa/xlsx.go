package qa

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// ParseWorkbook reads Q/A records from every sheet of a workbook. Columns are
// question, answer and an optional source. A first row naming those columns
// is treated as a header.
func ParseWorkbook(data []byte) ([]domain.QARecord, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open workbook", err)
	}
	defer book.Close()

	var out []domain.QARecord
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		q, a, s := 0, 1, 2
		if len(rows) > 0 && isHeader(rows[0]) {
			q, a, s = headerColumns(rows[0])
			rows = rows[1:]
		}
		for _, row := range rows {
			question := strings.TrimSpace(cellAt(row, q))
			answer := strings.TrimSpace(cellAt(row, a))
			if question == "" || answer == "" {
				continue
			}
			answer = withSource(answer, strings.TrimSpace(cellAt(row, s)))
			out = append(out, domain.QARecord{
				Question: collapse(question) + " ",
				Answer:   collapse(answer),
			})
		}
	}
	return out, nil
}

func isHeader(row []string) bool {
	for _, cell := range row {
		if strings.EqualFold(strings.TrimSpace(cell), "question") {
			return true
		}
	}
	return false
}

func headerColumns(row []string) (int, int, int) {
	q, a, s := 0, 1, -1
	for i, cell := range row {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "question":
			q = i
		case "answer":
			a = i
		case "source", "url":
			s = i
		}
	}
	return q, a, s
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func collapse(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "    ", " ")
}
