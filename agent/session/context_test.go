package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestSetAndGet(t *testing.T) {
	t.Parallel()

	c := New()
	if _, ok := c.Get("customer_name"); ok {
		t.Fatal("expected miss on empty context")
	}

	c.Set("customer_name", "Alice Johnson")
	v, ok := c.GetString("customer_name")
	if !ok || v != "Alice Johnson" {
		t.Fatalf("GetString = %q (ok=%v)", v, ok)
	}
}

func TestSetOnceFirstWriteWins(t *testing.T) {
	t.Parallel()

	c := New()
	c.SetOnce("customer_status", "active")
	c.SetOnce("customer_status", "disabled")

	v, _ := c.GetString("customer_status")
	if v != "active" {
		t.Fatalf("expected first write to win, got %q", v)
	}
}

func TestStepOutputKeying(t *testing.T) {
	t.Parallel()

	c := New()
	c.SetStepOutput("lookup", 42)
	c.Set("lookup", "shadow")

	v, ok := c.StepOutput("lookup")
	if !ok || v != 42 {
		t.Fatalf("StepOutput = %v (ok=%v)", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("expected step key and plain key to be distinct, Len = %d", c.Len())
	}
}

func TestConcurrentWriters(t *testing.T) {
	t.Parallel()

	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.SetStepOutput(fmt.Sprintf("step-%d", i), i)
			c.SetOnce("customer_name", fmt.Sprintf("writer-%d", i))
		}(i)
	}
	wg.Wait()

	if c.Len() != 17 {
		t.Fatalf("expected 17 values, got %d", c.Len())
	}
	if _, ok := c.GetString("customer_name"); !ok {
		t.Fatal("expected customer_name to be set by some writer")
	}
}
