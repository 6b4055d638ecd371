package main

import "testing"

func TestCheckWriteMode(t *testing.T) {
	tests := []struct {
		backend, mode string
		ok            bool
	}{
		{"tables", "direct", true},
		{"tables", "queue", true},
		{"datastore", "direct", true},
		{"datastore", "queue", false},
		{"tables", "batch", false},
		{"mongo", "direct", false},
	}
	for _, tt := range tests {
		err := checkWriteMode(tt.backend, tt.mode)
		if (err == nil) != tt.ok {
			t.Fatalf("checkWriteMode(%q, %q) = %v, want ok=%v", tt.backend, tt.mode, err, tt.ok)
		}
	}
}

func TestCheckWriteModeReadsEnv(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "Datastore")
	t.Setenv("WRITE_MODE", "QUEUE")
	if err := checkWriteMode(backendKind(), writeMode()); err == nil {
		t.Fatalf("expected queue mode on datastore to be rejected")
	}
	t.Setenv("STORAGE_BACKEND", "")
	if err := checkWriteMode(backendKind(), writeMode()); err != nil {
		t.Fatalf("default tables backend must accept queue mode: %v", err)
	}
}
