// Package session holds the per-query scratch space. A Context is owned by
// exactly one in-flight plan and discarded once the aggregator has produced
// the final response; it is never a process-wide cache.
package session

import (
	"fmt"
	"sync"
)

// Context maps entity names and step ids to resolved values so a fact fetched
// once (say a customer record) is reusable by later steps without re-fetching.
// Steps at the same depth run concurrently, so access is guarded.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
}

func New() *Context {
	return &Context{values: make(map[string]any, 8)}
}

func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// SetOnce stores a value only when the key is unresolved, so the first fetch
// of an entity wins and later steps reuse it.
func (c *Context) SetOnce(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; !ok {
		c.values[key] = value
	}
}

func (c *Context) GetString(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StepOutput stores a completed step's payload under its step id.
func (c *Context) SetStepOutput(stepID string, payload any) {
	c.Set(stepKey(stepID), payload)
}

func (c *Context) StepOutput(stepID string) (any, bool) {
	return c.Get(stepKey(stepID))
}

func stepKey(stepID string) string {
	return fmt.Sprintf("step:%s", stepID)
}

// Len reports the number of resolved values; used by tests.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
