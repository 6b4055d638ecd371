package domain

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Templates holds the task names a new project is seeded with, per client type.
type Templates struct {
	Private []string `yaml:"private"`
	Public  []string `yaml:"public"`
}

// DefaultTemplates returns the built-in templates.
func DefaultTemplates() Templates {
	t, err := ParseTemplates(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("embedded task templates: %v", err))
	}
	return t
}

// ParseTemplates decodes a YAML templates document. Both lists must be non-empty.
func ParseTemplates(data []byte) (Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Templates{}, err
	}
	t.Private = trimNames(t.Private)
	t.Public = trimNames(t.Public)
	if len(t.Private) == 0 || len(t.Public) == 0 {
		return Templates{}, fmt.Errorf("task templates: private and public lists are required")
	}
	return t, nil
}

// LoadTemplates reads a templates file from disk.
func LoadTemplates(path string) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, err
	}
	return ParseTemplates(data)
}

func trimNames(names []string) []string {
	out := names[:0]
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// SeedTasks builds the initial task collection of a project. Private clients get
// the private template; public clients get the custom names when present and the
// public template otherwise. Ids are positional, as they only need to be unique
// within the project.
func (t Templates) SeedTasks(ct ClientType, custom []string) []Task {
	names := t.Public
	if ct == ClientPrivate {
		names = t.Private
	} else if custom = trimNames(append([]string(nil), custom...)); len(custom) > 0 {
		names = custom
	}
	tasks := make([]Task, len(names))
	for i, n := range names {
		tasks[i] = Task{
			ID:     strconv.Itoa(i + 1),
			Name:   n,
			Order:  i + 1,
			Status: StatusTodo,
		}
	}
	return tasks
}
