package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	log "github.com/sirupsen/logrus"

	"portal/domain"
)

const (
	KindProject = "Project"
	KindMember  = "TeamMember"
)

// Datastore stores projects and team members in Google Cloud Datastore.
type Datastore struct {
	ds *datastore.Client
}

// NewDatastore connects to the given Google Cloud project. The client honours
// DATASTORE_EMULATOR_HOST.
func NewDatastore(ctx context.Context, projectID string) (*Datastore, error) {
	ds, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client: %w", err)
	}
	log.WithField("project", projectID).Info("datastore client ready")
	return &Datastore{ds: ds}, nil
}

// Close closes the underlying client.
func (d *Datastore) Close() error {
	return d.ds.Close()
}

type projectRecord struct {
	Name           string    `datastore:"name"`
	Client         string    `datastore:"client"`
	ClientType     string    `datastore:"client_type"`
	StartDate      string    `datastore:"start_date"`
	DueDate        string    `datastore:"due_date"`
	Status         string    `datastore:"status"`
	Priority       string    `datastore:"priority"`
	Tasks          string    `datastore:"tasks,noindex"`
	TasksTimestamp int64     `datastore:"tasks_ts,noindex"`
	Notes          string    `datastore:"notes,noindex"`
	AssignedTeam   []string  `datastore:"assigned_team"`
	CreatedAt      time.Time `datastore:"created_at"`
	UpdatedAt      time.Time `datastore:"updated_at"`
}

type memberRecord struct {
	Name   string `datastore:"name"`
	Role   string `datastore:"role"`
	Email  string `datastore:"email"`
	Avatar string `datastore:"avatar,noindex"`
}

func toProjectRecord(p domain.Project) (projectRecord, error) {
	tasks := p.Tasks
	if tasks == nil {
		tasks = []domain.Task{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return projectRecord{}, err
	}
	notes := p.Notes
	if notes == nil {
		notes = []domain.Note{}
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return projectRecord{}, err
	}
	return projectRecord{
		Name:         p.Name,
		Client:       p.Client,
		ClientType:   string(p.ClientType),
		StartDate:    p.StartDate,
		DueDate:      p.DueDate,
		Status:       string(p.Status),
		Priority:     string(p.Priority),
		Tasks:        string(tasksJSON),
		Notes:        string(notesJSON),
		AssignedTeam: p.AssignedTeam,
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}, nil
}

func (r projectRecord) project(id string) (domain.Project, error) {
	p := domain.Project{
		ID:           id,
		Name:         r.Name,
		Client:       r.Client,
		ClientType:   domain.ClientType(r.ClientType),
		StartDate:    r.StartDate,
		DueDate:      r.DueDate,
		Status:       domain.ProjectStatus(r.Status),
		Priority:     domain.Priority(r.Priority),
		AssignedTeam: r.AssignedTeam,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if err := unmarshalColumn(r.Tasks, &p.Tasks); err != nil {
		return domain.Project{}, err
	}
	if err := unmarshalColumn(r.Notes, &p.Notes); err != nil {
		return domain.Project{}, err
	}
	return p.Normalize(), nil
}

func mapDatastoreError(err error) error {
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return domain.ErrNotFound
	}
	return err
}

func (d *Datastore) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var records []projectRecord
	keys, err := d.ds.GetAll(ctx, datastore.NewQuery(KindProject), &records)
	if err != nil {
		return nil, err
	}
	projects := make([]domain.Project, 0, len(records))
	for i, key := range keys {
		p, err := records[i].project(key.Name)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (d *Datastore) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var rec projectRecord
	if err := d.ds.Get(ctx, datastore.NameKey(KindProject, id, nil), &rec); err != nil {
		return domain.Project{}, mapDatastoreError(err)
	}
	return rec.project(id)
}

func (d *Datastore) CreateProject(ctx context.Context, p domain.Project) error {
	rec, err := toProjectRecord(p)
	if err != nil {
		return err
	}
	key := datastore.NameKey(KindProject, p.ID, nil)
	_, err = d.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing projectRecord
		err := tx.Get(key, &existing)
		if err == nil {
			return domain.ErrConflict
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		_, err = tx.Put(key, &rec)
		return err
	})
	return err
}

func (d *Datastore) SaveProject(ctx context.Context, p domain.Project) error {
	rec, err := toProjectRecord(p)
	if err != nil {
		return err
	}
	key := datastore.NameKey(KindProject, p.ID, nil)
	_, err = d.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var stored projectRecord
		if err := tx.Get(key, &stored); err != nil {
			return mapDatastoreError(err)
		}
		rec.Tasks = stored.Tasks
		rec.TasksTimestamp = stored.TasksTimestamp
		_, err := tx.Put(key, &rec)
		return err
	})
	return err
}

func (d *Datastore) DeleteProject(ctx context.Context, id string) error {
	key := datastore.NameKey(KindProject, id, nil)
	_, err := d.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var stored projectRecord
		if err := tx.Get(key, &stored); err != nil {
			return mapDatastoreError(err)
		}
		return tx.Delete(key)
	})
	return err
}

func (d *Datastore) ApplyTasks(ctx context.Context, w domain.TasksWrite) (bool, error) {
	tasks := w.Tasks
	if tasks == nil {
		tasks = []domain.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return false, err
	}
	key := datastore.NameKey(KindProject, w.ProjectID, nil)
	applied := false
	_, err = d.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		applied = false
		var stored projectRecord
		if err := tx.Get(key, &stored); err != nil {
			return mapDatastoreError(err)
		}
		if stored.TasksTimestamp >= w.Timestamp {
			return nil
		}
		stored.Tasks = string(data)
		stored.TasksTimestamp = w.Timestamp
		if _, err := tx.Put(key, &stored); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (d *Datastore) ListMembers(ctx context.Context) ([]domain.TeamMember, error) {
	var records []memberRecord
	keys, err := d.ds.GetAll(ctx, datastore.NewQuery(KindMember), &records)
	if err != nil {
		return nil, err
	}
	members := make([]domain.TeamMember, 0, len(records))
	for i, key := range keys {
		r := records[i]
		members = append(members, domain.TeamMember{ID: key.Name, Name: r.Name, Role: r.Role, Email: r.Email, Avatar: r.Avatar})
	}
	domain.SortMembers(members)
	return members, nil
}

func (d *Datastore) SaveMember(ctx context.Context, m domain.TeamMember) error {
	rec := memberRecord{Name: m.Name, Role: m.Role, Email: m.Email, Avatar: m.Avatar}
	_, err := d.ds.Put(ctx, datastore.NameKey(KindMember, m.ID, nil), &rec)
	return err
}

func (d *Datastore) DeleteMember(ctx context.Context, id string) error {
	key := datastore.NameKey(KindMember, id, nil)
	var rec memberRecord
	if err := d.ds.Get(ctx, key, &rec); err != nil {
		return mapDatastoreError(err)
	}
	return d.ds.Delete(ctx, key)
}
