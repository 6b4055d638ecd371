// Package kanban holds the board state model: column derivation, the reorder
// engine that maps drops onto new task collections, the board that owns a task
// collection and reports every change to its owner, and the drag session state
// machine.
package kanban

import (
	"sort"

	"portal/domain"
)

// Column is the derived set of tasks sharing a status, sorted by order.
type Column struct {
	Status domain.Status `json:"status"`
	Title  string        `json:"title"`
	Tasks  []domain.Task `json:"tasks"`
}

// Columns groups tasks into the four board columns in presentation order.
func Columns(tasks []domain.Task) []Column {
	cols := make([]Column, len(domain.Statuses))
	for i, s := range domain.Statuses {
		cols[i] = Column{Status: s, Title: s.Title(), Tasks: ColumnTasks(tasks, s)}
	}
	return cols
}

// ColumnTasks returns copies of the tasks in column s sorted ascending by order.
// Ties keep their position in the collection.
func ColumnTasks(tasks []domain.Task, s domain.Status) []domain.Task {
	out := []domain.Task{}
	for _, idx := range columnIndexes(tasks, s) {
		out = append(out, tasks[idx])
	}
	return out
}

// columnIndexes returns the collection indexes of column s in display order.
func columnIndexes(tasks []domain.Task, s domain.Status) []int {
	var idx []int
	for i, t := range tasks {
		if t.Status == s {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return tasks[idx[a]].Order < tasks[idx[b]].Order })
	return idx
}

// maxOrder returns the highest order in column s, ignoring skipID, or 0.
func maxOrder(tasks []domain.Task, s domain.Status, skipID string) int {
	max := 0
	for _, t := range tasks {
		if t.Status == s && t.ID != skipID && t.Order > max {
			max = t.Order
		}
	}
	return max
}

// renumber assigns orders 1..N to the given collection indexes, in sequence.
func renumber(tasks []domain.Task, idx []int) {
	for rank, i := range idx {
		tasks[i].Order = rank + 1
	}
}

// renumberColumn densely re-ranks column s in its current display order.
func renumberColumn(tasks []domain.Task, s domain.Status) {
	renumber(tasks, columnIndexes(tasks, s))
}

func indexOf(tasks []domain.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
