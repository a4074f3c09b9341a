package config

import (
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8080")
	if p, err := Port("TEST_PORT", "1"); err != nil || p != "8080" {
		t.Fatalf("expected 8080, got %q (err=%v)", p, err)
	}
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "1"); err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "250ms")
	if d := Duration("TEST_TIMEOUT", time.Second); d != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", d)
	}
	t.Setenv("TEST_TIMEOUT", "7")
	if d := Duration("TEST_TIMEOUT", time.Second); d != 7*time.Second {
		t.Fatalf("expected 7s, got %s", d)
	}
	t.Setenv("TEST_TIMEOUT", "nope")
	if d := Duration("TEST_TIMEOUT", time.Second); d != time.Second {
		t.Fatalf("expected fallback, got %s", d)
	}
}

func TestIntAndList(t *testing.T) {
	t.Setenv("TEST_INT", "-3")
	if n := Int("TEST_INT", 10); n != 10 {
		t.Fatalf("expected fallback for negative value, got %d", n)
	}
	t.Setenv("TEST_LIST", " a, ,b ,")
	got := List("TEST_LIST")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %#v", got)
	}
}
