package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", 42, time.Minute)

	v, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.(int) != 42 {
		t.Fatalf("got %v", v)
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", "v", 0)

	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit for zero-ttl entry")
	}
}

func TestTTLCacheBytes(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("k", []byte("payload"), time.Minute); err != nil {
		t.Fatal(err)
	}

	b, ok, err := c.GetBytes("k")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if string(b) != "payload" {
		t.Fatalf("got %q", b)
	}
}
