package kanban

import (
	"strings"
	"time"

	"portal/domain"
)

// Direction tells on which side of the hovered task a dragged task lands.
type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

// ParseDirection maps user input onto a direction. Anything but "above" is below.
func ParseDirection(raw string) Direction {
	if strings.EqualFold(strings.TrimSpace(raw), string(Above)) {
		return Above
	}
	return Below
}

// The functions below never modify their input. They return a new collection and
// true, or the input itself and false when the move references unknown tasks or
// has nothing to do.

// MoveRelative reinserts the dragged task immediately above or below the target
// task, inside the target's column. The target column is renumbered 1..N in its new
// order. When the dragged task changes column its status and status timestamp are
// updated and its former column is renumbered as well. Other columns keep their
// orders.
func MoveRelative(tasks []domain.Task, draggedID, targetID string, dir Direction, now time.Time) ([]domain.Task, bool) {
	if draggedID == targetID {
		return tasks, false
	}
	di, ti := indexOf(tasks, draggedID), indexOf(tasks, targetID)
	if di < 0 || ti < 0 {
		return tasks, false
	}

	out := domain.CloneTasks(tasks)
	from, to := out[di].Status, out[ti].Status

	col := columnIndexes(out, to)
	col = removeIndex(col, di)
	pos := -1
	for i, idx := range col {
		if idx == ti {
			pos = i
			break
		}
	}
	if pos < 0 {
		return tasks, false
	}
	if dir != Above {
		pos++
	}
	col = insertIndex(col, pos, di)

	out[di].SetStatus(to, now)
	renumber(out, col)
	if from != to {
		renumberColumn(out, from)
	}
	return out, true
}

// MoveToColumn appends the dragged task to the end of column s, as when it is
// dropped on the column background rather than on a task. The task gets
// max(order in s, 0)+1; the other tasks of s keep their orders, even when they are
// sparse. The former column is renumbered. The status timestamp changes only if the
// status does.
func MoveToColumn(tasks []domain.Task, draggedID string, s domain.Status, now time.Time) ([]domain.Task, bool) {
	if !s.Valid() {
		return tasks, false
	}
	di := indexOf(tasks, draggedID)
	if di < 0 {
		return tasks, false
	}

	out := domain.CloneTasks(tasks)
	from := out[di].Status
	out[di].Order = maxOrder(out, s, draggedID) + 1
	out[di].SetStatus(s, now)
	if from != s {
		renumberColumn(out, from)
	}
	return out, true
}

// SetCompleted implements the completion checkbox: checking moves the task to the
// end of the completed column, unchecking moves it back to the end of todo.
func SetCompleted(tasks []domain.Task, id string, completed bool, now time.Time) ([]domain.Task, bool) {
	i := indexOf(tasks, id)
	if i < 0 || tasks[i].Completed == completed {
		return tasks, false
	}
	if completed {
		return MoveToColumn(tasks, id, domain.StatusCompleted, now)
	}
	return MoveToColumn(tasks, id, domain.StatusTodo, now)
}

// RemoveTask deletes a task and renumbers its former column only.
func RemoveTask(tasks []domain.Task, id string) ([]domain.Task, bool) {
	i := indexOf(tasks, id)
	if i < 0 {
		return tasks, false
	}
	status := tasks[i].Status
	out := make([]domain.Task, 0, len(tasks)-1)
	out = append(out, domain.CloneTasks(tasks[:i])...)
	out = append(out, domain.CloneTasks(tasks[i+1:])...)
	renumberColumn(out, status)
	return out, true
}

// AppendTask adds a new task at the end of the todo column. New tasks can only be
// created in todo; other columns are reached by moving.
func AppendTask(tasks []domain.Task, id, name string, now time.Time) ([]domain.Task, bool) {
	name = strings.TrimSpace(name)
	if name == "" || id == "" || indexOf(tasks, id) >= 0 {
		return tasks, false
	}
	ts := now.UTC()
	out := append(domain.CloneTasks(tasks), domain.Task{
		ID:              id,
		Name:            name,
		Status:          domain.StatusTodo,
		Order:           maxOrder(tasks, domain.StatusTodo, "") + 1,
		StatusTimestamp: &ts,
	})
	return out, true
}

// AssignTask sets or clears the member a task is assigned to.
func AssignTask(tasks []domain.Task, id, memberID string) ([]domain.Task, bool) {
	i := indexOf(tasks, id)
	if i < 0 || tasks[i].AssignedTo == memberID {
		return tasks, false
	}
	out := domain.CloneTasks(tasks)
	out[i].AssignedTo = memberID
	return out, true
}

func removeIndex(idx []int, v int) []int {
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if i != v {
			out = append(out, i)
		}
	}
	return out
}

func insertIndex(idx []int, pos, v int) []int {
	out := make([]int, 0, len(idx)+1)
	out = append(out, idx[:pos]...)
	out = append(out, v)
	return append(out, idx[pos:]...)
}
