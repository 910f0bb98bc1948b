package decaymap

import (
	"testing"
	"time"
)

func TestImpl(t *testing.T) {
	dm := New[string, string]()

	dm.Set("test", "hi", 5*time.Minute)

	val, ok := dm.Get("test")
	if !ok {
		t.Error("somehow the test key was not set")
	}

	if val != "hi" {
		t.Errorf("wanted value %q, got: %q", "hi", val)
	}

	ok = dm.expire("test")
	if !ok {
		t.Fatal("wanted to be able to mark this key as expired")
	}

	if _, ok := dm.Get("test"); ok {
		t.Error("got value even though it was supposed to be expired")
	}
}

func TestSetIfAbsent(t *testing.T) {
	dm := New[string, int]()

	if !dm.SetIfAbsent("nonce", 1, time.Minute) {
		t.Fatal("wanted first insert to succeed")
	}

	if dm.SetIfAbsent("nonce", 2, time.Minute) {
		t.Fatal("wanted second insert to fail")
	}

	if val, _ := dm.Get("nonce"); val != 1 {
		t.Errorf("value was overwritten: %d", val)
	}

	dm.expire("nonce")

	if !dm.SetIfAbsent("nonce", 3, time.Minute) {
		t.Fatal("wanted insert over an expired entry to succeed")
	}
}

func TestCleanup(t *testing.T) {
	dm := New[string, string]()

	dm.Set("test1", "hi1", 1*time.Second)
	dm.Set("test2", "hi2", 2*time.Second)
	dm.Set("test3", "hi3", 3*time.Second)

	dm.expire("test1")
	dm.expire("test2")

	dm.Cleanup()

	if got := dm.Len(); got != 1 {
		t.Fatalf("wanted 1 entry after cleanup, got: %d", got)
	}

	if _, ok := dm.Get("test3"); !ok {
		t.Error("test3 should not have been cleaned up")
	}
}
