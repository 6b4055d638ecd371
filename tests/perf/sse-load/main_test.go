package main

import (
	"strings"
	"testing"
)

func TestCountEvents(t *testing.T) {
	body := ": keep-alive\n\n" +
		"event: tasks\ndata: {\"tasks\":[]}\n\n" +
		"event: other\ndata: x\n\n" +
		"event: tasks\ndata: {\"tasks\":[{\"id\":\"a\"}]}\n\n"
	n := 0
	if err := countEvents(strings.NewReader(body), func() { n++ }); err != nil {
		t.Fatalf("countEvents: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 task events, got %d", n)
	}
}

func TestStreamURLs(t *testing.T) {
	urls := streamURLs("http://api/", []string{"p1", " ", " p2 "})
	if len(urls) != 2 || urls[0] != "http://api/api/projects/p1/stream" || urls[1] != "http://api/api/projects/p2/stream" {
		t.Fatalf("unexpected urls %v", urls)
	}
}
