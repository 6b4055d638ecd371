package domain

import "testing"

func TestDefaultTemplatesSeedPrivateProject(t *testing.T) {
	tasks := DefaultTemplates().SeedTasks(ClientPrivate, []string{"ignored"})
	if len(tasks) != 14 {
		t.Fatalf("expected 14 private tasks, got %d", len(tasks))
	}
	for i, task := range tasks {
		if task.Order != i+1 || task.Status != StatusTodo || task.Completed {
			t.Fatalf("unexpected seeded task %d: %#v", i, task)
		}
	}
	if tasks[0].Name != "TOR Submitted" || tasks[13].Name != "Final Report Submitted" {
		t.Fatalf("unexpected template names: %q .. %q", tasks[0].Name, tasks[13].Name)
	}
}

func TestSeedPublicProject(t *testing.T) {
	tpl := DefaultTemplates()
	tasks := tpl.SeedTasks(ClientPublic, []string{" Kickoff ", "", "Report"})
	if len(tasks) != 2 || tasks[0].Name != "Kickoff" || tasks[1].Order != 2 {
		t.Fatalf("unexpected custom tasks: %#v", tasks)
	}
	tasks = tpl.SeedTasks(ClientPublic, nil)
	if len(tasks) != 1 || tasks[0].Name != "Define project scope" {
		t.Fatalf("unexpected placeholder tasks: %#v", tasks)
	}
}

func TestParseTemplatesRequiresBothLists(t *testing.T) {
	if _, err := ParseTemplates([]byte("private: [a]\n")); err == nil {
		t.Fatalf("expected error for missing public list")
	}
	tpl, err := ParseTemplates([]byte("private: [a, b]\npublic: [c]\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tpl.Private) != 2 || tpl.Public[0] != "c" {
		t.Fatalf("unexpected templates: %#v", tpl)
	}
}
