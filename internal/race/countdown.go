package race

// Countdown is the pre-race timer. It emits one integer tick per time unit,
// from the starting value down to 0, and is advanced by the scheduler rather
// than blocking. Clearing it cancels the sequence.
type Countdown struct {
	running bool
	from    int
	next    int
	startAt float64
}

// Start arms the timer. Tick from is due immediately at now.
func (c *Countdown) Start(from int, now float64) {
	if from < 0 {
		from = 0
	}
	c.running = true
	c.from = from
	c.next = from
	c.startAt = now
}

// Running reports whether ticks are still pending.
func (c *Countdown) Running() bool { return c.running }

// Remaining returns the next value to be emitted, or -1 when idle.
func (c *Countdown) Remaining() int {
	if !c.running {
		return -1
	}
	return c.next
}

// ZeroAt returns when tick 0 is scheduled.
func (c *Countdown) ZeroAt() float64 {
	return c.deadline(0)
}

// Advance emits every tick that is due at now, in strictly decreasing order.
// done is true once tick 0 has been emitted; the timer is then idle.
func (c *Countdown) Advance(now float64) (ticks []int, done bool) {
	for c.running && now >= c.deadline(c.next) {
		ticks = append(ticks, c.next)
		if c.next == 0 {
			c.running = false
			return ticks, true
		}
		c.next--
	}
	return ticks, false
}

// Cancel clears the timer without emitting anything.
func (c *Countdown) Cancel() {
	*c = Countdown{}
}

func (c *Countdown) deadline(value int) float64 {
	return c.startAt + float64(c.from-value)
}
