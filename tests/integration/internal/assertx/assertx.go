// Package assertx holds the few assertions the scenarios share.
package assertx

import (
	"net/http"
	"testing"

	"portal/domain"
)

// Equal fails if want != got.
func Equal[T comparable](t *testing.T, want, got T) {
	t.Helper()
	if want != got {
		t.Fatalf("want %v, got %v", want, got)
	}
}

// Status fails unless the request succeeded with the wanted status code.
func Status(t *testing.T, what string, resp *http.Response, err error, want int) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
	if resp.StatusCode != want {
		t.Fatalf("%s: want status %d, got %d", what, want, resp.StatusCode)
	}
}

// ColumnOrder fails unless column s lists exactly the task ids in want, in order,
// with dense orders 1..N.
func ColumnOrder(t *testing.T, tasks []domain.Task, s domain.Status, want ...string) {
	t.Helper()
	var got []domain.Task
	for _, tk := range tasks {
		if tk.Status == s {
			got = append(got, tk)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("%s: want %d tasks, got %d (%#v)", s, len(want), len(got), got)
	}
	byOrder := make(map[int]string, len(got))
	for _, tk := range got {
		byOrder[tk.Order] = tk.ID
	}
	for i, id := range want {
		if byOrder[i+1] != id {
			t.Fatalf("%s: want %s at order %d, got %q", s, id, i+1, byOrder[i+1])
		}
	}
}
