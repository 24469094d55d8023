package coretest

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/camrelay/internal/core"
)

var ErrFull = errors.New("coretest: full")

// Conn records every frame it is handed. Test use only.
type Conn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	// Full makes TrySend report backpressure.
	Full bool
}

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("coretest: closed")
	}
	if c.Full {
		return ErrFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Messages decodes every recorded frame as a JSON object.
func (c *Conn) Messages() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// OfType returns recorded messages whose "type" equals typ.
func (c *Conn) OfType(typ string) []map[string]any {
	var out []map[string]any
	for _, m := range c.Messages() {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
