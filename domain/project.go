package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// ProjectStatus is the overall health of a project.
type ProjectStatus string

const (
	ProjectOnTrack   ProjectStatus = "on-track"
	ProjectAtRisk    ProjectStatus = "at-risk"
	ProjectDelayed   ProjectStatus = "delayed"
	ProjectCompleted ProjectStatus = "completed"
)

// ParseProjectStatus returns the matching status or on-track for unknown input.
func ParseProjectStatus(raw string) ProjectStatus {
	s := ProjectStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case ProjectOnTrack, ProjectAtRisk, ProjectDelayed, ProjectCompleted:
		return s
	}
	return ProjectOnTrack
}

// Priority ranks projects for sorting.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority returns the matching priority or medium for unknown input.
func ParsePriority(raw string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	}
	return PriorityMedium
}

func (p Priority) weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	}
	return 2
}

// ClientType decides which task template seeds a new project.
type ClientType string

const (
	ClientPrivate ClientType = "private"
	ClientPublic  ClientType = "public"
)

// ParseClientType treats anything other than "private" as public.
func ParseClientType(raw string) ClientType {
	if strings.ToLower(strings.TrimSpace(raw)) == string(ClientPrivate) {
		return ClientPrivate
	}
	return ClientPublic
}

// DateLayout is the calendar date format used for start and due dates.
const DateLayout = "2006-01-02"

// Note is a free-form comment attached to a project.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	AuthorID  string    `json:"authorId,omitempty"`
}

// Project is the document persisted per engagement. Its task collection is
// replaced as a whole on every board mutation.
type Project struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Client       string        `json:"client"`
	ClientType   ClientType    `json:"clientType,omitempty"`
	StartDate    string        `json:"startDate"`
	DueDate      string        `json:"dueDate"`
	Status       ProjectStatus `json:"status,omitempty"`
	Priority     Priority      `json:"priority,omitempty"`
	Tasks        []Task        `json:"tasks"`
	Notes        []Note        `json:"notes,omitempty"`
	AssignedTeam []string      `json:"assignedTeam,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Validate checks the fields a project cannot be saved without.
func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Client) == "" ||
		strings.TrimSpace(p.StartDate) == "" || strings.TrimSpace(p.DueDate) == "" {
		return ErrMissingField
	}
	return nil
}

// Normalize applies defaults to a project read from storage or input.
func (p Project) Normalize() Project {
	if p.Status == "" {
		p.Status = ProjectOnTrack
	}
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}
	if p.ClientType == "" {
		p.ClientType = ClientPublic
	}
	if p.Tasks == nil {
		p.Tasks = []Task{}
	}
	p.Tasks = NormalizeTasks(p.Tasks)
	return p
}

// Progress is the percentage of completed tasks, rounded to the nearest integer.
func (p Project) Progress() int {
	if len(p.Tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range p.Tasks {
		if t.Completed {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(p.Tasks)) * 100))
}

// completionRate is the unrounded share of completed tasks.
func (p Project) completionRate() float64 {
	if len(p.Tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range p.Tasks {
		if t.Completed {
			done++
		}
	}
	return float64(done) / float64(len(p.Tasks)) * 100
}

// DaysRemaining returns the number of calendar days until the due date, negative
// when overdue. ok is false for completed projects and unparsable dates.
func (p Project) DaysRemaining(today time.Time) (days int, ok bool) {
	if p.Status == ProjectCompleted {
		return 0, false
	}
	due, err := time.Parse(DateLayout, p.DueDate)
	if err != nil {
		return 0, false
	}
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(due.Sub(start).Hours() / 24)), true
}

// AddNote appends a note. Blank content is ignored.
func (p *Project) AddNote(id, content, authorID string, now time.Time) bool {
	content = strings.TrimSpace(content)
	if content == "" {
		return false
	}
	p.Notes = append(p.Notes, Note{ID: id, Content: content, Timestamp: now.UTC(), AuthorID: authorID})
	return true
}

// DeleteNote removes the note with the given id.
func (p *Project) DeleteNote(id string) bool {
	for i, n := range p.Notes {
		if n.ID == id {
			p.Notes = append(p.Notes[:i:i], p.Notes[i+1:]...)
			return true
		}
	}
	return false
}

// ProjectFilter narrows a project listing. Empty or "all" fields match everything.
type ProjectFilter struct {
	Status     string
	ClientType string
	Sort       string
}

func matches(want, got string) bool {
	return want == "" || want == "all" || want == got
}

// FilterProjects returns the projects matching f, sorted as requested.
func FilterProjects(projects []Project, f ProjectFilter) []Project {
	out := make([]Project, 0, len(projects))
	for _, p := range projects {
		if !matches(f.Status, string(p.Status)) || !matches(f.ClientType, string(p.ClientType)) {
			continue
		}
		out = append(out, p)
	}
	SortProjects(out, f.Sort)
	return out
}

// SortProjects orders projects by dueDate (default), name or priority.
func SortProjects(projects []Project, by string) {
	switch by {
	case "name":
		sort.SliceStable(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	case "priority":
		sort.SliceStable(projects, func(i, j int) bool {
			return projects[i].Priority.weight() > projects[j].Priority.weight()
		})
	default:
		sort.SliceStable(projects, func(i, j int) bool { return projects[i].DueDate < projects[j].DueDate })
	}
}

// CompletionRate is a single bar of the completion chart.
type CompletionRate struct {
	ProjectID  string        `json:"projectId"`
	Name       string        `json:"name"`
	Completion float64       `json:"completion"`
	Status     ProjectStatus `json:"status"`
}

// Stats summarises a project portfolio.
type Stats struct {
	Total        int                   `json:"total"`
	StatusCounts map[ProjectStatus]int `json:"statusCounts"`
	TopComplete  []CompletionRate      `json:"topComplete"`
}

const topCompleteLimit = 5

// ComputeStats counts projects per status and picks the five most complete.
func ComputeStats(projects []Project) Stats {
	st := Stats{Total: len(projects), StatusCounts: map[ProjectStatus]int{}}
	rates := make([]CompletionRate, 0, len(projects))
	for _, p := range projects {
		status := p.Status
		if status == "" {
			status = ProjectOnTrack
		}
		st.StatusCounts[status]++
		rates = append(rates, CompletionRate{ProjectID: p.ID, Name: p.Name, Completion: p.completionRate(), Status: status})
	}
	sort.SliceStable(rates, func(i, j int) bool { return rates[i].Completion > rates[j].Completion })
	if len(rates) > topCompleteLimit {
		rates = rates[:topCompleteLimit]
	}
	st.TopComplete = rates
	return st
}
