package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"portal/domain"
	"portal/kanban"
)

const (
	pageBoard = "board"
	pageAdd   = "add"

	helpText = "[::d]arrows move  space drag  enter drop  esc cancel  a add  d delete  c complete  r reload  q quit"
)

// boardView renders a kanban.Board in the terminal and drives its drag session
// from the keyboard. All fields are owned by the tview event loop.
type boardView struct {
	app     *tview.Application
	pages   *tview.Pages
	columns []*tview.TextView
	status  *tview.TextView
	input   *tview.InputField

	board    *kanban.Board
	session  *kanban.Session
	ptr      pointer
	dragging string
	adding   bool
	reload   func()
}

func newBoardView(app *tview.Application, title string) *boardView {
	v := &boardView{app: app}

	row := tview.NewFlex()
	for _, s := range domain.Statuses {
		tv := tview.NewTextView()
		tv.SetDynamicColors(true)
		tv.SetWrap(false)
		tv.SetBorder(true)
		tv.SetTitle(" " + s.Title() + " ")
		v.columns = append(v.columns, tv)
		row.AddItem(tv, 0, 1, false)
	}
	v.status = tview.NewTextView()
	v.status.SetDynamicColors(true)
	v.status.SetText(helpText)

	layout := tview.NewFlex().SetDirection(tview.FlexRow)
	header := tview.NewTextView()
	header.SetDynamicColors(true)
	header.SetText("[::b]" + tview.Escape(title))
	layout.AddItem(header, 1, 0, false)
	layout.AddItem(row, 0, 1, true)
	layout.AddItem(v.status, 1, 0, false)

	v.input = tview.NewInputField()
	v.input.SetLabel("New task: ")
	v.input.SetFieldWidth(40)
	v.input.SetBorder(true)
	v.input.SetDoneFunc(v.finishAdd)
	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(v.input, 3, 0, true).
			AddItem(nil, 0, 1, false), 56, 0, true).
		AddItem(nil, 0, 1, false)

	v.pages = tview.NewPages()
	v.pages.AddPage(pageBoard, layout, true, true)
	v.pages.AddPage(pageAdd, modal, true, false)
	app.SetRoot(v.pages, true)
	app.SetInputCapture(v.keyboard)
	return v
}

// attach binds the board the view edits. Drops reach the board through the
// session; the view is the session's feedback port.
func (v *boardView) attach(b *kanban.Board) {
	v.board = b
	v.session = kanban.NewSession(b, v)
	v.ptr.move(v.board.Columns(), 0, 0)
	v.render()
}

// Begin styles the board for a drag in progress.
func (v *boardView) Begin(taskID string) {
	v.dragging = taskID
	for _, tv := range v.columns {
		tv.SetBorderColor(tcell.ColorYellow)
	}
}

// End restores the idle styling.
func (v *boardView) End() {
	v.dragging = ""
	for _, tv := range v.columns {
		tv.SetBorderColor(tcell.ColorWhite)
	}
}

func (v *boardView) setStatus(msg string) {
	v.status.SetText(msg)
}

func (v *boardView) keyboard(ev *tcell.EventKey) *tcell.EventKey {
	if v.adding || v.board == nil {
		return ev
	}
	cols := v.board.Columns()
	switch ev.Key() {
	case tcell.KeyUp:
		v.step(cols, 0, -1)
	case tcell.KeyDown:
		v.step(cols, 0, 1)
	case tcell.KeyLeft:
		v.step(cols, -1, 0)
	case tcell.KeyRight:
		v.step(cols, 1, 0)
	case tcell.KeyEnter:
		if v.session.Active() {
			dragged := v.dragging
			v.session.Drop()
			v.ptr.focus(v.board.Columns(), dragged)
		}
	case tcell.KeyEscape:
		v.session.End()
	case tcell.KeyRune:
		v.handleRune(ev.Rune(), cols)
	default:
		return ev
	}
	v.render()
	return nil
}

func (v *boardView) step(cols []kanban.Column, dCol, dRow int) {
	v.ptr.move(cols, dCol, dRow)
	if v.session.Active() {
		v.ptr.hover(v.session, cols)
	}
}

func (v *boardView) handleRune(r rune, cols []kanban.Column) {
	if v.session.Active() {
		return
	}
	t, onCard := v.ptr.card(cols)
	switch r {
	case ' ':
		if onCard {
			v.session.Start(t.ID)
		}
	case 'a':
		v.adding = true
		v.input.SetText("")
		v.pages.ShowPage(pageAdd)
		v.app.SetFocus(v.input)
	case 'd':
		if onCard {
			v.board.DeleteTask(t.ID)
			v.ptr.move(v.board.Columns(), 0, 0)
		}
	case 'c':
		if onCard {
			v.board.SetCompleted(t.ID, !t.Completed)
			v.ptr.focus(v.board.Columns(), t.ID)
		}
	case 'r':
		if v.reload != nil {
			v.reload()
		}
	case 'q':
		v.app.Stop()
	}
}

func (v *boardView) finishAdd(key tcell.Key) {
	if key == tcell.KeyEnter {
		v.board.AddTask(v.input.GetText())
	}
	v.adding = false
	v.pages.HidePage(pageAdd)
	v.render()
}

func (v *boardView) render() {
	if v.board == nil {
		return
	}
	snap := v.session.Snapshot()
	for i, col := range v.board.Columns() {
		active := -1
		if i == v.ptr.col {
			active = v.ptr.row
		}
		tv := v.columns[i]
		tv.SetText(renderColumn(col, active, snap, v.board.AssigneeName))
		if snap.State == kanban.HoveringColumn && snap.HoveredColumn == col.Status {
			tv.SetBorderColor(tcell.ColorGreen)
		} else if v.dragging != "" {
			tv.SetBorderColor(tcell.ColorYellow)
		}
	}
}

// renderColumn draws the cards of one column. pointerRow is the pointer's row in
// this column or -1; the snapshot marks the dragged card and the drop position.
func renderColumn(col kanban.Column, pointerRow int, snap kanban.Snapshot, assignee func(domain.Task) string) string {
	var sb strings.Builder
	marker := "[green]────────────────[-]\n"
	for i, t := range col.Tasks {
		hovered := snap.State == kanban.HoveringTask && snap.HoveredTaskID == t.ID
		if hovered && snap.Direction == kanban.Above {
			sb.WriteString(marker)
		}

		style := ""
		switch {
		case t.ID == snap.DraggedTaskID:
			style = "[gray::d]"
		case pointerRow >= i*cardRows && pointerRow < (i+1)*cardRows:
			style = "[black:yellow]"
		}
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}
		fmt.Fprintf(&sb, "%s%s %s[-:-:-]\n", style, tview.Escape(check), tview.Escape(t.Name))

		detail := assignee(t)
		if detail == "" {
			detail = "unassigned"
		}
		if t.StatusTimestamp != nil {
			detail += " · " + t.StatusTimestamp.Local().Format("Jan 2 15:04")
		}
		fmt.Fprintf(&sb, "%s    %s[-:-:-]\n", style, tview.Escape(detail))

		if hovered && snap.Direction == kanban.Below {
			sb.WriteString(marker)
		}
	}
	if pointerRow == cardRows*len(col.Tasks) {
		sb.WriteString("[black:yellow]  drop here  [-:-:-]\n")
	}
	return sb.String()
}
