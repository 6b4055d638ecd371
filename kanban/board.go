package kanban

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"portal/domain"
)

// Hooks connect a board to the component that owns its task collection.
type Hooks struct {
	// OnTasksUpdate receives the complete new collection after every mutation.
	OnTasksUpdate func(tasks []domain.Task)
	// OnAddTask, when set, takes over task creation; the board does not mutate.
	OnAddTask func(name string)
	// OnDeleteTask, when set, takes over task deletion; the board does not mutate.
	OnDeleteTask func(id string)
}

// Board is the local task store of one project's kanban board. It is not safe for
// concurrent use; callers drive it from a single event loop or request.
type Board struct {
	tasks   []domain.Task
	members domain.MemberIndex
	hooks   Hooks
	now     func() time.Time
	newID   func() string
}

// Option customises a Board.
type Option func(*Board)

// WithClock overrides the time source used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

// WithIDs overrides the id generator used for new tasks.
func WithIDs(newID func() string) Option {
	return func(b *Board) { b.newID = newID }
}

// NewBoard creates a board from tasks as loaded from storage; they are normalized
// once here.
func NewBoard(tasks []domain.Task, members []domain.TeamMember, hooks Hooks, opts ...Option) *Board {
	b := &Board{
		tasks:   domain.NormalizeTasks(tasks),
		members: domain.IndexMembers(members),
		hooks:   hooks,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Tasks returns a copy of the current collection.
func (b *Board) Tasks() []domain.Task {
	return domain.CloneTasks(b.tasks)
}

// SetTasks replaces the collection with one supplied by the owner. It does not
// trigger OnTasksUpdate.
func (b *Board) SetTasks(tasks []domain.Task) {
	b.tasks = domain.NormalizeTasks(tasks)
}

// Replace swaps in a complete collection supplied from outside the board and
// reports it through OnTasksUpdate.
func (b *Board) Replace(tasks []domain.Task) bool {
	return b.commit(domain.NormalizeTasks(tasks), true)
}

// SetMembers replaces the member lookup table.
func (b *Board) SetMembers(members []domain.TeamMember) {
	b.members = domain.IndexMembers(members)
}

// Task returns the task with the given id.
func (b *Board) Task(id string) (domain.Task, bool) {
	i := indexOf(b.tasks, id)
	if i < 0 {
		return domain.Task{}, false
	}
	return domain.CloneTasks(b.tasks[i : i+1])[0], true
}

// Columns derives the four board columns.
func (b *Board) Columns() []Column {
	return Columns(b.tasks)
}

// AssigneeName resolves the member a task is assigned to, or "" when unassigned
// or dangling.
func (b *Board) AssigneeName(t domain.Task) string {
	return b.members.Name(t.AssignedTo)
}

// AddTask creates a task in the todo column. Blank names are ignored.
func (b *Board) AddTask(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if b.hooks.OnAddTask != nil {
		b.hooks.OnAddTask(name)
		return true
	}
	return b.commit(AppendTask(b.tasks, b.newID(), name, b.now()))
}

// DeleteTask removes a task and renumbers its former column.
func (b *Board) DeleteTask(id string) bool {
	if indexOf(b.tasks, id) < 0 {
		return false
	}
	if b.hooks.OnDeleteTask != nil {
		b.hooks.OnDeleteTask(id)
		return true
	}
	return b.commit(RemoveTask(b.tasks, id))
}

// DropOnTask places the dragged task next to the target task.
func (b *Board) DropOnTask(draggedID, targetID string, dir Direction) bool {
	return b.commit(MoveRelative(b.tasks, draggedID, targetID, dir, b.now()))
}

// DropOnColumn appends the dragged task to column s.
func (b *Board) DropOnColumn(draggedID string, s domain.Status) bool {
	return b.commit(MoveToColumn(b.tasks, draggedID, s, b.now()))
}

// MoveToStage is the menu-driven equivalent of dropping on a column.
func (b *Board) MoveToStage(id string, s domain.Status) bool {
	return b.DropOnColumn(id, s)
}

// SetCompleted applies the completion checkbox.
func (b *Board) SetCompleted(id string, completed bool) bool {
	return b.commit(SetCompleted(b.tasks, id, completed, b.now()))
}

// Assign sets the task's assignee; an empty memberID unassigns.
func (b *Board) Assign(id, memberID string) bool {
	return b.commit(AssignTask(b.tasks, id, memberID))
}

func (b *Board) commit(next []domain.Task, changed bool) bool {
	if !changed {
		return false
	}
	b.tasks = next
	if b.hooks.OnTasksUpdate != nil {
		b.hooks.OnTasksUpdate(b.Tasks())
	}
	return true
}
