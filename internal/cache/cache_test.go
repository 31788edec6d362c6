package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	a := Key("static", "padel rotterdam")
	if a != Key("static", "padel rotterdam") {
		t.Error("key must be deterministic")
	}
	if a == Key("webscrape", "padel rotterdam") {
		t.Error("connector must be part of the key")
	}
	if a == Key("static", "padel amsterdam") {
		t.Error("query must be part of the key")
	}
	// The separator prevents ("ab", "c") and ("a", "bc") colliding.
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("key boundaries must not collide")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, found := c.Get("missing"); found {
		t.Error("unexpected hit")
	}

	if err := c.Set("k", []byte("payload"), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, found := c.Get("k")
	if !found || !bytes.Equal(val, []byte("payload")) {
		t.Errorf("get = %q, %v", val, found)
	}

	if err := c.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if _, found := c.Get("k"); found {
		t.Error("deleted key still present")
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if err := c.Set("k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, found := c.Get("k"); found {
		t.Error("expired entry still served")
	}
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Minute)

	if err := c.Set(Key("static", "padel"), []byte("payload"), time.Minute); err != nil {
		t.Fatal(err)
	}

	// A fresh instance over the same directory sees the entry.
	reopened := NewDiskCache(dir, time.Minute)
	val, found := reopened.Get(Key("static", "padel"))
	if !found || !bytes.Equal(val, []byte("payload")) {
		t.Errorf("get = %q, %v", val, found)
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Minute)
	key := Key("static", "padel")

	if err := c.Set(key, []byte("v"), -time.Second); err != nil {
		t.Fatal(err)
	}
	if _, found := c.Get(key); found {
		t.Error("expired entry still served")
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()

	// Seed only the disk layer.
	seed := NewDiskCache(dir, time.Minute)
	if err := seed.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}

	c := NewLayeredCache(time.Minute, dir, time.Minute)
	val, found := c.Get("k")
	if !found || !bytes.Equal(val, []byte("v")) {
		t.Fatalf("get = %q, %v", val, found)
	}

	// Remove the disk entry; the promoted memory copy still serves.
	if err := seed.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if _, found := c.Get("k"); !found {
		t.Error("promoted entry missing from memory layer")
	}
}
