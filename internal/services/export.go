package services

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

const (
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"
)

type ExportInfo struct {
	Format      string
	ContentType string
	Filename    string
	Rows        int
}

// ParseExportFormat accepts "", "csv" and "xlsx" case-insensitively.
func ParseExportFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", ExportCSV:
		return ExportCSV, nil
	case ExportXLSX, "excel":
		return ExportXLSX, nil
	}
	return "", domainerrors.Validation("format", "unsupported export format %q (want csv or xlsx)", s)
}

// exportTable flattens records into canonical columns followed by every
// passthrough column seen, sorted by name.
func exportTable(records []*types.CropRecord) (header []string, rows [][]string, err error) {
	extraSet := map[string]struct{}{}
	extras := make([]map[string]string, len(records))
	for i, r := range records {
		if extras[i], err = r.Extras(); err != nil {
			return nil, nil, err
		}
		for k := range extras[i] {
			extraSet[k] = struct{}{}
		}
	}
	extraCols := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extraCols = append(extraCols, k)
	}
	sort.Strings(extraCols)

	header = append(append([]string{}, dataset.CanonicalColumns...), extraCols...)
	rows = make([][]string, len(records))
	for i, r := range records {
		row := make([]string, 0, len(header))
		for _, col := range dataset.CanonicalColumns {
			row = append(row, cellValue(r, col))
		}
		for _, col := range extraCols {
			row = append(row, extras[i][col])
		}
		rows[i] = row
	}
	return header, rows, nil
}

func cellValue(r *types.CropRecord, col string) string {
	if col == dataset.ColCrop {
		return r.Crop
	}
	if dataset.IsNumeric(col) {
		v, ok := r.Numeric(col)
		if !ok {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	v, _ := r.Category(col)
	return v
}

func (s *datasetService) Export(ctx context.Context, format string, w io.Writer) (*ExportInfo, error) {
	format, err := ParseExportFormat(format)
	if err != nil {
		return nil, err
	}
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	header, rows, err := exportTable(records)
	if err != nil {
		return nil, err
	}
	info := &ExportInfo{Format: format, Rows: len(rows)}

	switch format {
	case ExportXLSX:
		info.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		info.Filename = "dataset.xlsx"
		err = writeXLSX(w, header, rows)
	default:
		info.ContentType = "text/csv; charset=utf-8"
		info.Filename = "dataset.csv"
		err = writeCSV(w, header, rows)
	}
	if err != nil {
		return nil, err
	}
	s.log.Debug("dataset exported", "format", format, "rows", len(rows))
	return info, nil
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeXLSX(w io.Writer, header []string, rows [][]string) error {
	const sheet = "dataset"
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	toRow := func(vals []string) []interface{} {
		out := make([]interface{}, len(vals))
		for i, v := range vals {
			if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
				out[i] = n
			} else {
				out[i] = v
			}
		}
		return out
	}
	hdr := make([]interface{}, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := sw.SetRow("A1", hdr); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toRow(r)); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
