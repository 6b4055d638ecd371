package kanban

import "portal/domain"

// State is the phase of a drag gesture.
type State int

const (
	Idle State = iota
	Dragging
	HoveringTask
	HoveringColumn
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case HoveringTask:
		return "hovering-task"
	case HoveringColumn:
		return "hovering-column"
	}
	return "idle"
}

// Feedback shows that a drag is in progress, for example by styling the dragged
// card and suppressing selection. Begin and End always come in pairs.
type Feedback interface {
	Begin(taskID string)
	End()
}

// Dropper receives completed drops. *Board implements it.
type Dropper interface {
	DropOnTask(draggedID, targetID string, dir Direction) bool
	DropOnColumn(draggedID string, s domain.Status) bool
}

type noFeedback struct{}

func (noFeedback) Begin(string) {}
func (noFeedback) End()         {}

// Snapshot is a read-only view of a session, used for rendering drop indicators.
type Snapshot struct {
	State         State
	DraggedTaskID string
	HoveredTaskID string
	HoveredColumn domain.Status
	Direction     Direction
}

// Session tracks one drag gesture at a time: idle -> dragging -> hovering a task
// or a column -> idle. It is never persisted.
type Session struct {
	target Dropper
	fx     Feedback

	state         State
	draggedID     string
	hoveredTaskID string
	hoveredColumn domain.Status
	direction     Direction
}

// NewSession creates an idle session delivering drops to target. fx may be nil.
func NewSession(target Dropper, fx Feedback) *Session {
	if fx == nil {
		fx = noFeedback{}
	}
	return &Session{target: target, fx: fx}
}

// DirectionAt reports whether a cursor at cursorY is in the top half of a card
// spanning [top, top+height).
func DirectionAt(cursorY, top, height float64) Direction {
	if cursorY < top+height/2 {
		return Above
	}
	return Below
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		State:         s.state,
		DraggedTaskID: s.draggedID,
		HoveredTaskID: s.hoveredTaskID,
		HoveredColumn: s.hoveredColumn,
		Direction:     s.direction,
	}
}

// Active reports whether a drag is in progress.
func (s *Session) Active() bool {
	return s.state != Idle
}

// Start begins dragging taskID. A drag still in progress is abandoned first.
func (s *Session) Start(taskID string) {
	if taskID == "" {
		return
	}
	if s.state != Idle {
		s.reset()
	}
	s.state = Dragging
	s.draggedID = taskID
	s.fx.Begin(taskID)
}

// OverTask records the task under the cursor and recomputes the drop direction.
// It is called on every drag-over event. Hovering the dragged task itself is
// ignored.
func (s *Session) OverTask(taskID string, column domain.Status, cursorY, top, height float64) {
	if s.state == Idle || taskID == "" || taskID == s.draggedID {
		return
	}
	s.state = HoveringTask
	s.hoveredTaskID = taskID
	s.hoveredColumn = column
	s.direction = DirectionAt(cursorY, top, height)
}

// OverColumn records that the cursor is over a column's background.
func (s *Session) OverColumn(column domain.Status) {
	if s.state == Idle {
		return
	}
	s.state = HoveringColumn
	s.hoveredColumn = column
	s.hoveredTaskID = ""
	s.direction = ""
}

// LeaveTask clears the hovered task when the cursor leaves its card, unless it
// only moved onto one of the card's own children. The drag continues.
func (s *Session) LeaveTask(intoChild bool) {
	if s.state != HoveringTask || intoChild {
		return
	}
	s.hoveredTaskID = ""
	s.direction = ""
	if s.hoveredColumn != "" {
		s.state = HoveringColumn
	} else {
		s.state = Dragging
	}
}

// Drop finishes the gesture. Hovering a task drops next to it, hovering a column
// appends to it; a drop with no target only ends the drag. It reports whether the
// board changed.
func (s *Session) Drop() bool {
	var changed bool
	switch s.state {
	case HoveringTask:
		dir := s.direction
		if dir == "" {
			dir = Below
		}
		changed = s.target.DropOnTask(s.draggedID, s.hoveredTaskID, dir)
	case HoveringColumn:
		changed = s.target.DropOnColumn(s.draggedID, s.hoveredColumn)
	}
	s.reset()
	return changed
}

// End abandons the gesture without reordering, as when a drag is cancelled or
// released outside any drop target.
func (s *Session) End() {
	s.reset()
}

func (s *Session) reset() {
	if s.state == Idle {
		return
	}
	s.state = Idle
	s.draggedID = ""
	s.hoveredTaskID = ""
	s.hoveredColumn = ""
	s.direction = ""
	s.fx.End()
}
