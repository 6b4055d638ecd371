package storage

import (
	"encoding/json"
	"time"

	"portal/domain"
)

const (
	EdmInt64 = "Edm.Int64"

	projectsPartition = "project"
	membersPartition  = "member"
)

// Entity carries the table keys of a row.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

// projectMeta holds the project columns that SaveProject merges.
type projectMeta struct {
	Entity
	Name         string `json:"Name"`
	Client       string `json:"Client"`
	ClientType   string `json:"ClientType"`
	StartDate    string `json:"StartDate"`
	DueDate      string `json:"DueDate"`
	Status       string `json:"Status"`
	Priority     string `json:"Priority"`
	Notes        string `json:"Notes"`
	AssignedTeam string `json:"AssignedTeam"`
	CreatedAt    string `json:"CreatedAt"`
	UpdatedAt    string `json:"UpdatedAt"`
}

// tasksColumns holds the task collection, stored as a JSON document in one
// column, and the issue timestamp of the write that produced it.
type tasksColumns struct {
	Entity
	Tasks              string `json:"Tasks"`
	TasksTimestamp     int64  `json:"TasksTimestamp,string"`
	TasksTimestampType string `json:"TasksTimestamp@odata.type"`
}

type projectEntity struct {
	projectMeta
	Tasks              string `json:"Tasks"`
	TasksTimestamp     int64  `json:"TasksTimestamp,string"`
	TasksTimestampType string `json:"TasksTimestamp@odata.type"`
}

type memberEntity struct {
	Entity
	Name   string `json:"Name"`
	Role   string `json:"Role"`
	Email  string `json:"Email"`
	Avatar string `json:"Avatar"`
}

func encodeMeta(p domain.Project) (projectMeta, error) {
	notes := p.Notes
	if notes == nil {
		notes = []domain.Note{}
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return projectMeta{}, err
	}
	team := p.AssignedTeam
	if team == nil {
		team = []string{}
	}
	teamJSON, err := json.Marshal(team)
	if err != nil {
		return projectMeta{}, err
	}
	return projectMeta{
		Entity:       Entity{PartitionKey: projectsPartition, RowKey: p.ID},
		Name:         p.Name,
		Client:       p.Client,
		ClientType:   string(p.ClientType),
		StartDate:    p.StartDate,
		DueDate:      p.DueDate,
		Status:       string(p.Status),
		Priority:     string(p.Priority),
		Notes:        string(notesJSON),
		AssignedTeam: string(teamJSON),
		CreatedAt:    formatTime(p.CreatedAt),
		UpdatedAt:    formatTime(p.UpdatedAt),
	}, nil
}

func encodeTasks(projectID string, tasks []domain.Task, ts int64) (tasksColumns, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return tasksColumns{}, err
	}
	return tasksColumns{
		Entity:             Entity{PartitionKey: projectsPartition, RowKey: projectID},
		Tasks:              string(data),
		TasksTimestamp:     ts,
		TasksTimestampType: EdmInt64,
	}, nil
}

func encodeProject(p domain.Project, ts int64) ([]byte, error) {
	meta, err := encodeMeta(p)
	if err != nil {
		return nil, err
	}
	tasks, err := encodeTasks(p.ID, p.Tasks, ts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(projectEntity{
		projectMeta:        meta,
		Tasks:              tasks.Tasks,
		TasksTimestamp:     ts,
		TasksTimestampType: EdmInt64,
	})
}

func decodeProject(data []byte) (domain.Project, int64, error) {
	var ent projectEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Project{}, 0, err
	}
	p := domain.Project{
		ID:         ent.RowKey,
		Name:       ent.Name,
		Client:     ent.Client,
		ClientType: domain.ClientType(ent.ClientType),
		StartDate:  ent.StartDate,
		DueDate:    ent.DueDate,
		Status:     domain.ProjectStatus(ent.Status),
		Priority:   domain.Priority(ent.Priority),
		CreatedAt:  parseTime(ent.CreatedAt),
		UpdatedAt:  parseTime(ent.UpdatedAt),
	}
	if err := unmarshalColumn(ent.Tasks, &p.Tasks); err != nil {
		return domain.Project{}, 0, err
	}
	if err := unmarshalColumn(ent.Notes, &p.Notes); err != nil {
		return domain.Project{}, 0, err
	}
	if err := unmarshalColumn(ent.AssignedTeam, &p.AssignedTeam); err != nil {
		return domain.Project{}, 0, err
	}
	return p.Normalize(), ent.TasksTimestamp, nil
}

func encodeMember(m domain.TeamMember) ([]byte, error) {
	return json.Marshal(memberEntity{
		Entity: Entity{PartitionKey: membersPartition, RowKey: m.ID},
		Name:   m.Name,
		Role:   m.Role,
		Email:  m.Email,
		Avatar: m.Avatar,
	})
}

func decodeMember(data []byte) (domain.TeamMember, error) {
	var ent memberEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.TeamMember{}, err
	}
	return domain.TeamMember{ID: ent.RowKey, Name: ent.Name, Role: ent.Role, Email: ent.Email, Avatar: ent.Avatar}, nil
}

func unmarshalColumn(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
