package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/rivo/tview"
	log "github.com/sirupsen/logrus"

	"portal/domain"
	"portal/kanban"
)

var (
	app       = kingpin.New("board-tui", "Terminal kanban board for portal projects.")
	apiURL    = app.Flag("api", "Portal API base URL.").Envar("PORTAL_API").Default("http://localhost:8080").String()
	token     = app.Flag("token", "Bearer token.").Envar("PORTAL_TOKEN").Required().String()
	projectID = app.Flag("project", "Project id.").Envar("PORTAL_PROJECT").Required().String()
	timeout   = app.Flag("timeout", "Request timeout.").Default("10s").Duration()
	logFile   = app.Flag("log-file", "Write logs to this file instead of discarding them.").Envar("BOARD_TUI_LOG").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	configureLogging(*logFile)

	c := newClient(*apiURL, *token, *timeout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, members, err := load(ctx, c, *projectID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "board-tui: %v\n", err)
		os.Exit(1)
	}

	ui := tview.NewApplication()
	v := newBoardView(ui, p.Name+" · "+p.Client)

	push := newPusher(
		func(ctx context.Context, tasks []domain.Task) error {
			_, err := c.PutTasks(ctx, p.ID, tasks)
			return err
		},
		func(err error) {
			log.WithError(err).WithField("project", p.ID).Error("task push failed")
			ui.QueueUpdateDraw(func() {
				v.setStatus(fmt.Sprintf("[red]save failed: %s[-]  press r to reload", tview.Escape(err.Error())))
			})
		},
		func() {
			ui.QueueUpdateDraw(func() { v.setStatus(helpText) })
		},
	)
	go push.run(ctx)

	attach := func(tasks []domain.Task, members []domain.TeamMember) {
		v.attach(kanban.NewBoard(tasks, members, kanban.Hooks{OnTasksUpdate: push.push}))
	}
	v.reload = func() {
		v.setStatus("[::d]reloading...")
		go func() {
			p, members, err := load(ctx, c, *projectID)
			ui.QueueUpdateDraw(func() {
				if err != nil {
					v.setStatus(fmt.Sprintf("[red]reload failed: %s[-]", tview.Escape(err.Error())))
					return
				}
				attach(p.Tasks, members)
				v.setStatus(helpText)
			})
		}()
	}
	attach(p.Tasks, members)

	if err := ui.Run(); err != nil {
		log.Fatalf("board-tui: %v", err)
	}
}

func load(ctx context.Context, c *client, id string) (domain.Project, []domain.TeamMember, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*(*timeout))
	defer cancel()
	p, err := c.Project(ctx, id)
	if err != nil {
		return domain.Project{}, nil, fmt.Errorf("load project: %w", err)
	}
	members, err := c.Members(ctx)
	if err != nil {
		return domain.Project{}, nil, fmt.Errorf("load team: %w", err)
	}
	return p, members, nil
}

// configureLogging keeps log output off the terminal the board draws on.
func configureLogging(path string) {
	log.SetOutput(io.Discard)
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "board-tui: log file: %v\n", err)
		return
	}
	log.SetOutput(f)
	log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
}
