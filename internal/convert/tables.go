package convert

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxTableRows = 1000

// csvToMarkdown renders CSV content as a markdown table.
func csvToMarkdown(data []byte) (string, []string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // tolerate ragged rows
	records, err := r.ReadAll()
	if err != nil {
		return "", nil, err
	}
	if len(records) == 0 {
		return "", nil, fmt.Errorf("empty csv")
	}
	var warns []string
	if len(records) > maxTableRows {
		warns = append(warns, fmt.Sprintf("csv truncated to %d rows", maxTableRows))
		records = records[:maxTableRows]
	}
	return rowsToMarkdown(records), warns, nil
}

// xlsxToMarkdown renders the first sheet of a workbook as a markdown table.
func xlsxToMarkdown(data []byte) (string, []string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", nil, err
	}
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}
	var warns []string
	if len(sheets) > 1 {
		warns = append(warns, fmt.Sprintf("only sheet %q converted, %d sheets skipped", sheets[0], len(sheets)-1))
	}
	if len(rows) > maxTableRows {
		warns = append(warns, fmt.Sprintf("sheet truncated to %d rows", maxTableRows))
		rows = rows[:maxTableRows]
	}
	return rowsToMarkdown(rows), warns, nil
}

// jsonToMarkdown pretty-prints JSON inside a fenced block.
func jsonToMarkdown(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return "```json\n" + string(pretty) + "\n```", nil
}

func rowsToMarkdown(rows [][]string) string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var b strings.Builder
	writeRow := func(row []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(row) {
				cell = strings.ReplaceAll(row[i], "|", `\|`)
			}
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(rows[0])
	b.WriteString("|")
	for i := 0; i < width; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n")
}
