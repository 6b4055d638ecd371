package kanban

import (
	"testing"

	"portal/domain"
)

type recordedDrop struct {
	dragged, target string
	dir             Direction
	column          domain.Status
}

type fakeDropper struct {
	drops []recordedDrop
}

func (f *fakeDropper) DropOnTask(draggedID, targetID string, dir Direction) bool {
	f.drops = append(f.drops, recordedDrop{dragged: draggedID, target: targetID, dir: dir})
	return true
}

func (f *fakeDropper) DropOnColumn(draggedID string, s domain.Status) bool {
	f.drops = append(f.drops, recordedDrop{dragged: draggedID, column: s})
	return true
}

type countingFeedback struct {
	begins, ends int
	last         string
}

func (c *countingFeedback) Begin(id string) { c.begins++; c.last = id }
func (c *countingFeedback) End()            { c.ends++ }

func TestDirectionAt(t *testing.T) {
	tests := []struct {
		y    float64
		want Direction
	}{
		{y: 100, want: Above},
		{y: 119.9, want: Above},
		{y: 120, want: Below},
		{y: 139, want: Below},
	}
	for _, tt := range tests {
		if got := DirectionAt(tt.y, 100, 40); got != tt.want {
			t.Fatalf("y=%v: expected %s, got %s", tt.y, tt.want, got)
		}
	}
}

func TestSessionDropOnTask(t *testing.T) {
	d := &fakeDropper{}
	fx := &countingFeedback{}
	s := NewSession(d, fx)

	s.Start("t1")
	if st := s.Snapshot(); st.State != Dragging || st.DraggedTaskID != "t1" || fx.begins != 1 || fx.last != "t1" {
		t.Fatalf("unexpected state after start: %#v", st)
	}
	s.OverTask("t2", domain.StatusInProgress, 130, 100, 40)
	if st := s.Snapshot(); st.State != HoveringTask || st.HoveredTaskID != "t2" || st.Direction != Below {
		t.Fatalf("unexpected hover state: %#v", st)
	}
	s.OverTask("t2", domain.StatusInProgress, 105, 100, 40)
	if s.Snapshot().Direction != Above {
		t.Fatalf("direction must be recomputed on every drag-over")
	}

	if !s.Drop() {
		t.Fatalf("expected drop to report a change")
	}
	if len(d.drops) != 1 || d.drops[0] != (recordedDrop{dragged: "t1", target: "t2", dir: Above}) {
		t.Fatalf("unexpected drops %#v", d.drops)
	}
	if s.Active() || s.Snapshot() != (Snapshot{}) {
		t.Fatalf("expected idle after drop, got %#v", s.Snapshot())
	}
	if fx.ends != 1 {
		t.Fatalf("expected feedback ended once, got %d", fx.ends)
	}
}

func TestSessionDropOnColumn(t *testing.T) {
	d := &fakeDropper{}
	s := NewSession(d, nil)

	s.Start("t1")
	s.OverTask("t2", domain.StatusTodo, 0, 0, 10)
	s.OverColumn(domain.StatusReview)
	if st := s.Snapshot(); st.State != HoveringColumn || st.HoveredTaskID != "" || st.HoveredColumn != domain.StatusReview {
		t.Fatalf("unexpected column hover: %#v", st)
	}
	s.Drop()
	if len(d.drops) != 1 || d.drops[0] != (recordedDrop{dragged: "t1", column: domain.StatusReview}) {
		t.Fatalf("unexpected drops %#v", d.drops)
	}
}

func TestSessionIgnoresHoverOverDraggedTask(t *testing.T) {
	d := &fakeDropper{}
	s := NewSession(d, nil)

	s.Start("t1")
	s.OverTask("t1", domain.StatusTodo, 0, 0, 10)
	if s.Snapshot().State != Dragging {
		t.Fatalf("hovering the dragged task must not create a target")
	}
	if s.Drop() || len(d.drops) != 0 {
		t.Fatalf("drop with no target must not reorder")
	}
}

func TestSessionLeaveTask(t *testing.T) {
	s := NewSession(&fakeDropper{}, nil)
	s.Start("t1")
	s.OverTask("t2", domain.StatusReview, 0, 0, 10)

	s.LeaveTask(true)
	if s.Snapshot().HoveredTaskID != "t2" {
		t.Fatalf("moving onto a child element must keep the hover")
	}
	s.LeaveTask(false)
	st := s.Snapshot()
	if st.State != HoveringColumn || st.HoveredTaskID != "" || st.HoveredColumn != domain.StatusReview || !s.Active() {
		t.Fatalf("unexpected state after leaving the card: %#v", st)
	}
}

func TestSessionEventsWhileIdleAreIgnored(t *testing.T) {
	d := &fakeDropper{}
	fx := &countingFeedback{}
	s := NewSession(d, fx)

	s.OverTask("t2", domain.StatusTodo, 0, 0, 10)
	s.OverColumn(domain.StatusTodo)
	s.LeaveTask(false)
	s.End()
	if s.Drop() || len(d.drops) != 0 || s.Active() {
		t.Fatalf("idle session must ignore events")
	}
	if fx.begins != 0 || fx.ends != 0 {
		t.Fatalf("feedback must not fire while idle, got %d/%d", fx.begins, fx.ends)
	}
}

func TestSessionFeedbackIsPaired(t *testing.T) {
	fx := &countingFeedback{}
	s := NewSession(&fakeDropper{}, fx)

	s.Start("t1")
	s.Start("t2")
	if fx.begins != 2 || fx.ends != 1 {
		t.Fatalf("restarting must end the previous drag first, got %d/%d", fx.begins, fx.ends)
	}
	if s.Snapshot().DraggedTaskID != "t2" {
		t.Fatalf("expected t2 dragged")
	}
	s.End()
	s.End()
	if fx.begins != fx.ends {
		t.Fatalf("begin/end unbalanced: %d/%d", fx.begins, fx.ends)
	}
}

func TestSessionDrivesBoard(t *testing.T) {
	var emitted []domain.Task
	b := NewBoard([]domain.Task{
		task("t1", domain.StatusTodo, 1),
		task("t2", domain.StatusInProgress, 1),
	}, nil, Hooks{OnTasksUpdate: func(tasks []domain.Task) { emitted = tasks }}, WithClock(fixedClock))
	s := NewSession(b, nil)

	s.Start("t1")
	s.OverTask("t2", domain.StatusInProgress, 9, 0, 10)
	if !s.Drop() {
		t.Fatalf("expected board change")
	}
	if got := columnIDs(emitted, domain.StatusInProgress); len(got) != 2 || got[1] != "t1" {
		t.Fatalf("unexpected column %v", got)
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || HoveringTask.String() != "hovering-task" {
		t.Fatalf("unexpected state names")
	}
}
