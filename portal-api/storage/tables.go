package storage

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"portal/domain"
)

const maxApplyAttempts = 3

// Tables stores projects and team members in Azure Table Storage, one row per
// record.
type Tables struct {
	projects *aztables.Client
	members  *aztables.Client
}

// NewTables creates a Tables store from the given connection string.
func NewTables(connStr, projectsTable, membersTable string) (*Tables, error) {
	opts := aztables.ClientOptions{ClientOptions: tableRetryOptions()}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Tables{projects: svc.NewClient(projectsTable), members: svc.NewClient(membersTable)}, nil
}

func (s *Tables) ListProjects(ctx context.Context) ([]domain.Project, error) {
	filter := "PartitionKey eq '" + projectsPartition + "'"
	pager := s.projects.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	projects := []domain.Project{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			p, _, err := decodeProject(e)
			if err != nil {
				return nil, err
			}
			projects = append(projects, p)
		}
	}
	return projects, nil
}

func (s *Tables) GetProject(ctx context.Context, id string) (domain.Project, error) {
	resp, err := s.projects.GetEntity(ctx, projectsPartition, id, nil)
	if err != nil {
		return domain.Project{}, mapAzureError(err)
	}
	p, _, err := decodeProject(resp.Value)
	return p, err
}

func (s *Tables) CreateProject(ctx context.Context, p domain.Project) error {
	payload, err := encodeProject(p, 0)
	if err != nil {
		return err
	}
	_, err = s.projects.AddEntity(ctx, payload, nil)
	return mapAzureError(err)
}

func (s *Tables) SaveProject(ctx context.Context, p domain.Project) error {
	meta, err := encodeMeta(p)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.projects.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	return mapAzureError(err)
}

func (s *Tables) DeleteProject(ctx context.Context, id string) error {
	_, err := s.projects.DeleteEntity(ctx, projectsPartition, id, nil)
	return mapAzureError(err)
}

// ApplyTasks merges the task columns with an ETag guard so a concurrent writer
// cannot slip in between the timestamp check and the update.
func (s *Tables) ApplyTasks(ctx context.Context, w domain.TasksWrite) (bool, error) {
	return applyTasks(ctx, s.projects, w)
}

// taskRow is the part of a table client that applyTasks needs.
type taskRow interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
}

func applyTasks(ctx context.Context, rows taskRow, w domain.TasksWrite) (bool, error) {
	cols, err := encodeTasks(w.ProjectID, w.Tasks, w.Timestamp)
	if err != nil {
		return false, err
	}
	payload, err := json.Marshal(cols)
	if err != nil {
		return false, err
	}
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		resp, err := rows.GetEntity(ctx, projectsPartition, w.ProjectID, nil)
		if err != nil {
			return false, mapAzureError(err)
		}
		var stored tasksColumns
		if err := json.Unmarshal(resp.Value, &stored); err != nil {
			return false, err
		}
		if stored.TasksTimestamp >= w.Timestamp {
			return false, nil
		}
		et := resp.ETag
		_, err = rows.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
		if err == nil {
			return true, nil
		}
		if !isStatus(err, http.StatusPreconditionFailed) {
			return false, mapAzureError(err)
		}
	}
	return false, domain.ErrConflict
}

func (s *Tables) ListMembers(ctx context.Context) ([]domain.TeamMember, error) {
	filter := "PartitionKey eq '" + membersPartition + "'"
	pager := s.members.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	members := []domain.TeamMember{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			m, err := decodeMember(e)
			if err != nil {
				return nil, err
			}
			members = append(members, m)
		}
	}
	domain.SortMembers(members)
	return members, nil
}

func (s *Tables) SaveMember(ctx context.Context, m domain.TeamMember) error {
	payload, err := encodeMember(m)
	if err != nil {
		return err
	}
	_, err = s.members.UpsertEntity(ctx, payload, nil)
	return err
}

func (s *Tables) DeleteMember(ctx context.Context, id string) error {
	_, err := s.members.DeleteEntity(ctx, membersPartition, id, nil)
	return mapAzureError(err)
}
