// Package pctx implements the thread-safe key-value store shared across
// pipeline stages as they execute.
package pctx

import (
	"fmt"
	"sync"
)

// Context is a thread-safe key-value store shared across pipeline stages.
// Handlers read prior stage output through it and write their own results
// back via Set or ApplyUpdates.
type Context struct {
	mu     sync.RWMutex
	values map[string]interface{}
	logs   []string
}

// New creates a Context seeded with the given values and log lines. Either
// may be nil.
func New(values map[string]interface{}, logs []string) *Context {
	c := &Context{values: make(map[string]interface{}), logs: make([]string, 0)}
	for k, v := range values {
		c.values[k] = v
	}
	c.logs = append(c.logs, logs...)
	return c
}

func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the value at key stringified, or def if absent.
func (c *Context) GetString(key, def string) string {
	v, ok := c.Get(key)
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return stringify(v)
}

func (c *Context) AppendLog(entry string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, entry)
}

// Snapshot returns a shallow copy of the current values.
func (c *Context) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy with its own lock, used to isolate
// parallel branches from each other.
func (c *Context) Clone() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	logsCopy := make([]string, len(c.logs))
	copy(logsCopy, c.logs)
	return New(deepCopyMap(c.values), logsCopy)
}

func (c *Context) ApplyUpdates(updates map[string]interface{}) {
	if len(updates) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range updates {
		c.values[k] = v
	}
}

func (c *Context) Logs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.logs))
	copy(out, c.logs)
	return out
}

func (c *Context) Values() map[string]interface{} {
	return c.Snapshot()
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
