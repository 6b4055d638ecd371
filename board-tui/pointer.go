package main

import (
	"portal/domain"
	"portal/kanban"
)

// cardRows is the height of a rendered card: its name and a detail line.
const cardRows = 2

// pointer is the keyboard cursor over the board: a column and a row inside it,
// counted in screen rows. Row cardRows*len(tasks) is the column background below
// the last card.
type pointer struct {
	col int
	row int
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// move shifts the pointer and keeps it inside the board.
func (p *pointer) move(cols []kanban.Column, dCol, dRow int) {
	if len(cols) == 0 {
		*p = pointer{}
		return
	}
	p.col = clamp(p.col+dCol, 0, len(cols)-1)
	p.row = clamp(p.row+dRow, 0, cardRows*len(cols[p.col].Tasks))
}

// card returns the task under the pointer; false over the column background.
func (p pointer) card(cols []kanban.Column) (domain.Task, bool) {
	if p.col < 0 || p.col >= len(cols) {
		return domain.Task{}, false
	}
	tasks := cols[p.col].Tasks
	idx := p.row / cardRows
	if p.row < 0 || idx >= len(tasks) {
		return domain.Task{}, false
	}
	return tasks[idx], true
}

// hover reports the pointer position to the drag session. The top row of a card
// is its upper half, so hovering it drops above; the bottom row drops below.
func (p pointer) hover(s *kanban.Session, cols []kanban.Column) {
	if p.col < 0 || p.col >= len(cols) {
		return
	}
	if t, ok := p.card(cols); ok {
		top := float64((p.row / cardRows) * cardRows)
		s.OverTask(t.ID, cols[p.col].Status, float64(p.row)+0.5, top, cardRows)
		return
	}
	s.OverColumn(cols[p.col].Status)
}

// focus places the pointer on the top row of taskID, if present.
func (p *pointer) focus(cols []kanban.Column, taskID string) bool {
	for c, col := range cols {
		for i, t := range col.Tasks {
			if t.ID == taskID {
				p.col, p.row = c, i*cardRows
				return true
			}
		}
	}
	return false
}
