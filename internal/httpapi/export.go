package httpapi

import (
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"doradori/backend/internal/domain"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportSheet     = "Master Table"
)

// writeMasterTableWorkbook streams rows into a single-sheet workbook whose
// header follows the column descriptor order.
func writeMasterTableWorkbook(w io.Writer, rows []domain.Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return err
	}

	headers := exportColumns(rows)
	header := make([]any, len(headers))
	for i, name := range headers {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(headers))
		for j, name := range headers {
			values[j] = row[name]
		}
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

// exportColumns lists descriptor columns first, then any extra columns the
// projection carries in name order.
func exportColumns(rows []domain.Row) []string {
	names := make([]string, 0, len(domain.Columns))
	known := make(map[string]struct{}, len(domain.Columns))
	for _, col := range domain.Columns {
		names = append(names, col.Name)
		known[col.Name] = struct{}{}
	}

	var extra []string
	for _, row := range rows {
		for name := range row {
			if _, ok := known[name]; ok {
				continue
			}
			known[name] = struct{}{}
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
