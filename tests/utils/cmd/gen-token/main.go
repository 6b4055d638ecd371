// Command gen-token prints bearer tokens for portal-api running in shared-secret
// auth mode.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	testutil "portal/tests/utils"
)

var (
	app     = kingpin.New("gen-token", "Generate test bearer tokens for portal-api.")
	count   = app.Flag("count", "Number of tokens to generate.").Default("1").Int()
	prefix  = app.Flag("prefix", "Subject prefix when count > 1.").Default("perf-user").String()
	start   = app.Flag("start", "First subject index when count > 1.").Default("1").Int()
	domain  = app.Flag("email-domain", "Domain of the email claim.").Default("example.com").String()
	ttl     = app.Flag("ttl", "Token lifetime.").Default("1h").Duration()
	output  = app.Flag("output", "Write all tokens to this file as a JSON array.").String()
	subject = app.Arg("subject", "Explicit subject for a single token.").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if *count < 1 {
		log.Fatal("count must be at least 1")
	}
	if *start < 1 {
		log.Fatal("start index must be at least 1")
	}
	if *subject != "" && *count > 1 {
		log.Fatal("explicit subject cannot be combined with count > 1")
	}

	ids := identities(*count, *prefix, *start, *subject, *domain, *ttl)
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tok, err := testutil.Token(id)
		if err != nil {
			log.Fatalf("generate token: %v", err)
		}
		tokens[i] = tok
	}

	if *output != "" {
		if err := writeTokens(*output, tokens); err != nil {
			log.Fatalf("write tokens: %v", err)
		}
	}
	fmt.Print(tokens[0])
}

func identities(count int, prefix string, start int, subject, domain string, ttl time.Duration) []testutil.Identity {
	ids := make([]testutil.Identity, count)
	for i := range ids {
		sub := subject
		switch {
		case sub != "":
		case count == 1:
			sub = prefix
		default:
			sub = fmt.Sprintf("%s-%d", prefix, start+i)
		}
		ids[i] = testutil.Identity{Subject: sub, Email: sub + "@" + domain, TTL: ttl}
	}
	return ids
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := sonic.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
