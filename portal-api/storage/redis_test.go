package storage

import "testing"

func TestRedisOptionsURL(t *testing.T) {
	opts := RedisOptions("redis://:secret@cache.local:6380/2")
	if opts.Addr != "cache.local:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestRedisOptionsConnectionString(t *testing.T) {
	opts := RedisOptions("portal.redis.cache.windows.net:6380,password=abc=,ssl=True,abortConnect=False")
	if opts.Addr != "portal.redis.cache.windows.net:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.Password != "abc=" {
		t.Fatalf("unexpected password %q", opts.Password)
	}
	if opts.TLSConfig == nil {
		t.Fatalf("expected TLS to be enabled")
	}

	plain := RedisOptions("localhost:6379")
	if plain.Addr != "localhost:6379" || plain.TLSConfig != nil {
		t.Fatalf("unexpected options %+v", plain)
	}
}
