// Command sse-load holds many board streams open against portal-api and reports
// how many task events arrived.
package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	testutil "portal/tests/utils"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return i
}

// streamURLs builds one stream URL per project id.
func streamURLs(base string, projects []string) []string {
	base = strings.TrimRight(base, "/")
	var urls []string
	for _, p := range projects {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, base+"/api/projects/"+p+"/stream")
		}
	}
	return urls
}

// countEvents reads an event stream until it ends, calling onEvent for every
// "tasks" event carrying data.
func countEvents(r io.Reader, onEvent func()) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	var name string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if name == "tasks" || name == "" {
				onEvent()
			}
		case line == "":
			name = ""
		}
	}
	return scanner.Err()
}

type stats struct {
	events   atomic.Uint64
	attempts atomic.Uint64
	failures atomic.Uint64
}

func stream(ctx context.Context, client *http.Client, url, bearer string, st *stats) {
	backoff := time.Second
	wait := func() {
		st.failures.Add(1)
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 5*time.Second)
	}
	for ctx.Err() == nil {
		st.attempts.Add(1)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			wait()
			continue
		}
		req.Header.Set("Accept", "text/event-stream")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		resp, err := client.Do(req)
		if err != nil {
			wait()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			wait()
			continue
		}
		backoff = time.Second
		_ = countEvents(resp.Body, func() { st.events.Add(1) })
		resp.Body.Close()
		if ctx.Err() != nil {
			return
		}
		wait()
	}
}

func main() {
	base := getenv("PORTAL_API", "http://localhost:8080")
	projects := strings.Split(os.Getenv("PROJECT_IDS"), ",")
	conns := getenvInt("SSE_CONNECTIONS", 200)
	duration := time.Duration(getenvInt("DURATION_SEC", 120)) * time.Second

	urls := streamURLs(base, projects)
	if len(urls) == 0 {
		log.Fatal("PROJECT_IDS must list at least one project")
	}
	bearer := os.Getenv("TEST_BEARER")
	if bearer == "" {
		tok, err := testutil.Token(testutil.Identity{Subject: "sse-load", Email: "sse-load@example.com", TTL: duration + time.Hour})
		if err != nil {
			log.Fatalf("token: %v", err)
		}
		bearer = tok
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var st stats
	client := &http.Client{}
	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			stream(ctx, client, url, bearer, &st)
		}(urls[i%len(urls)])
	}

	go func() {
		select {
		case <-time.After(60 * time.Second):
			if st.events.Load() == 0 {
				log.Error("no events received in 60s")
				os.Exit(1)
			}
		case <-ctx.Done():
		}
	}()

	wg.Wait()
	attempts, failures, events := st.attempts.Load(), st.failures.Load(), st.events.Load()
	failureRate := 0.0
	if attempts > 0 {
		failureRate = float64(failures) / float64(attempts)
	}
	log.WithFields(log.Fields{
		"connections":  conns,
		"projects":     len(urls),
		"duration_sec": int(duration.Seconds()),
		"events":       events,
		"failures":     failures,
	}).Info("sse load finished")
	if events == 0 || failureRate > 0.01 {
		os.Exit(1)
	}
}
