package csvimport

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"portal/domain"
)

// ParseXLSX reads projects from the first sheet of a workbook, with the same
// header and row rules as ParseCSV.
func ParseXLSX(r io.Reader, tpl domain.Templates) ([]domain.Project, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	p, err := newParser(rows[0], tpl)
	if err != nil {
		return nil, err
	}
	for i, row := range rows[1:] {
		if err := p.add(i+2, row, true); err != nil {
			return nil, err
		}
	}
	return p.projects, nil
}

// SampleXLSX renders SampleCSV as a workbook.
func SampleXLSX() ([]byte, error) {
	records, err := csv.NewReader(strings.NewReader(SampleCSV)).ReadAll()
	if err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
