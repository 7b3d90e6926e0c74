package compositor

import (
	"errors"
	"sync"
)

// ErrCanvasBusy is returned when the canvas is leased to another owner.
var ErrCanvasBusy = errors.New("canvas is leased")

// Canvas arbitrates the shared drawing surface between the preview and
// export drivers. At most one exclusive lease exists at a time.
type Canvas struct {
	mu    sync.Mutex
	owner string
}

// Acquire leases the canvas to owner. Re-acquiring by the same owner succeeds.
func (c *Canvas) Acquire(owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner != "" && c.owner != owner {
		return ErrCanvasBusy
	}
	c.owner = owner
	return nil
}

// Release ends owner's lease. Releasing a lease held by someone else is a no-op.
func (c *Canvas) Release(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == owner {
		c.owner = ""
	}
}

// Owner returns the current lease holder, or "" when free.
func (c *Canvas) Owner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// Leased reports whether someone other than owner holds the canvas.
func (c *Canvas) Leased(owner string) bool {
	o := c.Owner()
	return o != "" && o != owner
}
