package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"portal/domain"
)

func TestProjectEntityRoundTrip(t *testing.T) {
	ts := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	p := domain.Project{
		ID:           "p1",
		Name:         "Downtown Traffic Study",
		Client:       "City",
		ClientType:   domain.ClientPrivate,
		StartDate:    "2024-01-01",
		DueDate:      "2024-03-01",
		Status:       domain.ProjectAtRisk,
		Priority:     domain.PriorityHigh,
		Tasks:        []domain.Task{{ID: "1", Name: "TOR Submitted", Order: 1, Status: domain.StatusReview, StatusTimestamp: &ts}},
		Notes:        []domain.Note{{ID: "n1", Content: "Kickoff", Timestamp: ts}},
		AssignedTeam: []string{"m1"},
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	data, err := encodeProject(p, 42)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, stamp, err := decodeProject(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stamp != 42 {
		t.Fatalf("unexpected tasks timestamp %d", stamp)
	}
	if got.Name != p.Name || got.Status != p.Status || got.Priority != p.Priority || !got.CreatedAt.Equal(ts) {
		t.Fatalf("unexpected project %#v", got)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Status != domain.StatusReview || !got.Tasks[0].StatusTimestamp.Equal(ts) {
		t.Fatalf("unexpected tasks %#v", got.Tasks)
	}
	if len(got.Notes) != 1 || len(got.AssignedTeam) != 1 {
		t.Fatalf("unexpected notes or team %#v", got)
	}
}

func TestDecodeLegacyProjectNormalizesTasks(t *testing.T) {
	data := []byte(`{"PartitionKey":"project","RowKey":"p1","Name":"Old","Tasks":"[{\"id\":\"1\",\"name\":\"Done\",\"completed\":true,\"order\":1}]"}`)
	p, stamp, err := decodeProject(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stamp != 0 || p.Status != domain.ProjectOnTrack || p.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected defaults %#v", p)
	}
	if p.Tasks[0].Status != domain.StatusCompleted {
		t.Fatalf("expected status derived from completed flag, got %s", p.Tasks[0].Status)
	}
}

func TestMemberEntityRoundTrip(t *testing.T) {
	m := domain.TeamMember{ID: "m1", Name: "Ada Lovelace", Role: "Engineer", Email: "ada@example.com"}
	data, err := encodeMember(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeMember(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != m {
		t.Fatalf("unexpected member %#v", got)
	}
}

func TestMapAzureError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: &azcore.ResponseError{StatusCode: 404}, want: domain.ErrNotFound},
		{name: "conflict", err: &azcore.ResponseError{StatusCode: 409}, want: domain.ErrConflict},
		{name: "precondition", err: fmt.Errorf("update: %w", &azcore.ResponseError{StatusCode: 412}), want: domain.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapAzureError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
	other := errors.New("boom")
	if mapAzureError(other) != other {
		t.Fatalf("unrelated errors must pass through")
	}
}
