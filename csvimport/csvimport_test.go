package csvimport

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"portal/domain"
)

func TestParseCSVSample(t *testing.T) {
	projects, err := ParseCSV(strings.NewReader(SampleCSV), domain.DefaultTemplates())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(projects) != 3 {
		t.Fatalf("expected 3 projects, got %d", len(projects))
	}
	first := projects[0]
	if first.Name != "Downtown Traffic Study" || first.ClientType != domain.ClientPrivate || first.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected first project %#v", first)
	}
	if len(first.Tasks) != 14 || first.Tasks[0].Status != domain.StatusTodo || first.Tasks[13].Order != 14 {
		t.Fatalf("expected private template tasks, got %#v", first.Tasks)
	}
	second := projects[1]
	if second.ClientType != domain.ClientPublic || len(second.Tasks) != 1 || second.Tasks[0].Name != "Define project scope" {
		t.Fatalf("expected public template task, got %#v", second)
	}
	if second.Status != domain.ProjectAtRisk {
		t.Fatalf("unexpected status %s", second.Status)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("expected unique ids, got %q and %q", first.ID, second.ID)
	}
}

func TestParseCSVDefaultsAndColumnOrder(t *testing.T) {
	in := "priority,status,dueDate,startDate,clientType,client,name\n" +
		"urgent,paused,2024-02-01,2024-01-01,PRIVATE,\"Acme, Inc.\",Audit\n" +
		"\n" +
		",,2024-02-01,2024-01-01,,City,Survey\n"
	projects, err := ParseCSV(strings.NewReader(in), domain.DefaultTemplates())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected blank line skipped, got %d projects", len(projects))
	}
	if p := projects[0]; p.Client != "Acme, Inc." || p.Status != domain.ProjectOnTrack || p.Priority != domain.PriorityMedium || p.ClientType != domain.ClientPrivate {
		t.Fatalf("unexpected project %#v", p)
	}
	if p := projects[1]; p.ClientType != domain.ClientPublic {
		t.Fatalf("expected public default, got %s", p.ClientType)
	}
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
		line int
	}{
		{name: "empty", in: "", want: ErrEmptyFile},
		{name: "missing column", in: "name,client,clientType,startDate,dueDate,status\n", want: ErrMissingColumn},
		{name: "too few fields", in: "name,client,clientType,startDate,dueDate,status,priority\nA,B,private,2024-01-01,2024-02-01,on-track,low\nA,B\n", want: ErrFieldCount, line: 3},
		{name: "missing name", in: "name,client,clientType,startDate,dueDate,status,priority\n,B,private,2024-01-01,2024-02-01,on-track,low\n", want: domain.ErrMissingField, line: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.in), domain.DefaultTemplates())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if tt.line == 0 {
				return
			}
			var le *LineError
			if !errors.As(err, &le) || le.Line != tt.line {
				t.Fatalf("expected error on line %d, got %v", tt.line, err)
			}
		})
	}
}

func TestParseXLSXRoundTripsSample(t *testing.T) {
	data, err := SampleXLSX()
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	projects, err := Parse("projects.XLSX", bytes.NewReader(data), domain.DefaultTemplates())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(projects) != 3 || projects[2].Name != "Residential Development Review" || projects[2].Priority != domain.PriorityLow {
		t.Fatalf("unexpected projects %#v", projects)
	}
}

func TestParseXLSXShortRowsArePadded(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := []interface{}{"name", "client", "startDate", "dueDate", "clientType", "status", "priority"}
	row := []interface{}{"Bridge Study", "County", "2024-03-01", "2024-06-01"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("header: %v", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &row); err != nil {
		t.Fatalf("row: %v", err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	projects, err := ParseXLSX(&buf, domain.DefaultTemplates())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(projects) != 1 || projects[0].ClientType != domain.ClientPublic || projects[0].Status != domain.ProjectOnTrack {
		t.Fatalf("unexpected projects %#v", projects)
	}
}
