// Package csvimport turns spreadsheet uploads into new projects.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"portal/domain"
)

// Columns lists the header names every import file must contain, in any order.
var Columns = []string{"name", "client", "clientType", "startDate", "dueDate", "status", "priority"}

var (
	ErrEmptyFile     = errors.New("import file is empty")
	ErrMissingColumn = errors.New("missing required column")
	ErrFieldCount    = errors.New("invalid field count")
)

// LineError reports a problem with one line of the file. Line is 1-based and
// counts the header.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ParseCSV reads projects from CSV. Quoted fields may contain commas; blank lines
// are skipped.
func ParseCSV(r io.Reader, tpl domain.Templates) ([]domain.Project, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, err
	}
	p, err := newParser(header, tpl)
	if err != nil {
		return nil, err
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if err := p.add(line, rec, false); err != nil {
			return nil, err
		}
	}
	return p.projects, nil
}

type parser struct {
	index    map[string]int
	width    int
	tpl      domain.Templates
	projects []domain.Project
}

func newParser(header []string, tpl domain.Templates) (*parser, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	for _, c := range Columns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return &parser{index: index, width: len(header), tpl: tpl}, nil
}

// add converts one record. Spreadsheet rows drop trailing empty cells, so pad
// allows short records.
func (p *parser) add(line int, rec []string, pad bool) error {
	if blank(rec) {
		return nil
	}
	if len(rec) > p.width || (len(rec) < p.width && !pad) {
		return &LineError{Line: line, Err: fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(rec), p.width)}
	}
	get := func(col string) string {
		if i := p.index[col]; i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	ct := domain.ParseClientType(get("clientType"))
	proj := domain.Project{
		ID:         uuid.NewString(),
		Name:       get("name"),
		Client:     get("client"),
		ClientType: ct,
		StartDate:  get("startDate"),
		DueDate:    get("dueDate"),
		Status:     domain.ParseProjectStatus(get("status")),
		Priority:   domain.ParsePriority(get("priority")),
		Tasks:      p.tpl.SeedTasks(ct, nil),
	}
	if err := proj.Validate(); err != nil {
		return &LineError{Line: line, Err: err}
	}
	p.projects = append(p.projects, proj.Normalize())
	return nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Parse picks the reader by file extension: .xlsx workbooks, CSV otherwise.
func Parse(filename string, r io.Reader, tpl domain.Templates) ([]domain.Project, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return ParseXLSX(r, tpl)
	}
	return ParseCSV(r, tpl)
}

// SampleCSV is offered for download as a starting point.
const SampleCSV = `name,client,clientType,startDate,dueDate,status,priority
"Downtown Traffic Study","City of Example","private","2023-12-01","2024-02-15","on-track","high"
"Highway Capacity Analysis","State DOT","public","2023-11-15","2024-01-30","at-risk","medium"
"Residential Development Review","Private Developer Inc.","private","2024-01-05","2024-03-20","on-track","low"
`

// SampleFileName is the download name of SampleCSV.
const SampleFileName = "project_import_template.csv"
