package api

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	lastTimestamp int64
)

// nextTimestamp returns a strictly increasing nanosecond issue time for task
// collection writes.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}

// EnvInt reads an integer variable, falling back to def when unset or invalid.
func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

// EnvDur reads a time.ParseDuration variable, falling back to def when unset or
// invalid.
func EnvDur(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warnf("invalid %s=%q, using %v", key, v, def)
		return def
	}
	return d
}

// EnvString reads a string variable, falling back to def when unset.
func EnvString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
