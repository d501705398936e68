package progress

import (
	"io"
	"strings"
	"sync"
)

// Console is a writer shared by log output and progress bars. While a bar
// created by a Factory over the console renders, lines written to the
// console are printed above the bar instead of through it.
type Console struct {
	w io.Writer

	mu     sync.Mutex
	active *Bar
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Write prints p above the active bar, or directly when no bar renders.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	bar := c.active
	c.mu.Unlock()

	if bar == nil {
		return c.w.Write(p)
	}
	bar.Write(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func (c *Console) attach(b *Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = b
	b.console = c
}

func (c *Console) detach(b *Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == b {
		c.active = nil
	}
}
