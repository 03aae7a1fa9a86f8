package cache

import (
	"testing"
	"time"
)

func TestTTLCache(t *testing.T) {
	c := New[[]string](time.Minute)

	if _, ok := c.Get("2024-03"); ok {
		t.Fatal("empty cache returned a hit")
	}
	c.Set("2024-03", []string{"a", "b"})
	c.Set("2024-04", []string{"c"})

	got, ok := c.Get("2024-03")
	if !ok || len(got) != 2 {
		t.Fatalf("Get() = %v, %v", got, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("Size() = %d", c.Size())
	}

	c.Delete("2024-04")
	if _, ok := c.Get("2024-04"); ok {
		t.Fatal("deleted key still present")
	}

	c.Flush()
	if c.Size() != 0 {
		t.Fatalf("Size() after Flush = %d", c.Size())
	}
}

func TestTTLCacheSetIfCurrent(t *testing.T) {
	c := New[string](time.Minute)

	gen := c.Generation()
	if !c.SetIfCurrent("k", "fresh", gen) {
		t.Fatal("SetIfCurrent refused the current generation")
	}

	stale := c.Generation()
	c.Flush()
	if c.Generation() == stale {
		t.Fatal("Flush did not start a new generation")
	}
	if c.SetIfCurrent("k", "stale", stale) {
		t.Fatal("SetIfCurrent stored data loaded before a Flush")
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("stale entry visible after Flush")
	}
}

func TestTTLCacheExpires(t *testing.T) {
	c := New[int](20 * time.Millisecond)
	c.Set("k", 1)
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry outlived its ttl")
	}
}

func TestNoop(t *testing.T) {
	var c Cache[int] = Noop[int]{}
	c.Set("k", 1)
	c.SetIfCurrent("k", 1, c.Generation())
	if _, ok := c.Get("k"); ok || c.Size() != 0 {
		t.Fatal("Noop cache stored a value")
	}
}
