package activation

// Counter is a non-negative reference count.
// Decrementing at zero leaves it at zero.
type Counter struct {
	n int
}

// Inc adds one reference.
func (c *Counter) Inc() {
	c.n++
}

// Dec drops one reference. It reports false when the counter was already zero.
func (c *Counter) Dec() bool {
	if c.n == 0 {
		return false
	}
	c.n--
	return true
}

// Clamp lowers the counter to max if it is above it.
func (c *Counter) Clamp(max int) {
	if max < 0 {
		max = 0
	}
	if c.n > max {
		c.n = max
	}
}

// Value returns the current count.
func (c *Counter) Value() int {
	return c.n
}

// Reset drops every reference.
func (c *Counter) Reset() {
	c.n = 0
}
