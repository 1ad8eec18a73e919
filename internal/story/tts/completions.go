package tts

import "sync"

// completions pairs engine-side results with caller callbacks, in whichever
// order they arrive, and delivers each result once.
type completions struct {
	mu      sync.Mutex
	next    Handle
	entries map[Handle]*pending
}

type pending struct {
	fn   CompletionFunc
	done *Completion
}

func newCompletions() *completions {
	return &completions{entries: make(map[Handle]*pending)}
}

func (c *completions) issue() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.entries[c.next] = &pending{}
	return c.next
}

// register attaches fn to h. A result that is already waiting is delivered
// on a new goroutine so callers may hold their own locks.
func (c *completions) register(h Handle, fn CompletionFunc) {
	c.mu.Lock()
	p, ok := c.entries[h]
	if !ok {
		c.mu.Unlock()
		return
	}
	if p.done == nil {
		p.fn = fn
		c.mu.Unlock()
		return
	}
	done := *p.done
	delete(c.entries, h)
	c.mu.Unlock()

	go fn(done)
}

// complete records the result for h and delivers it on the calling goroutine
// if a callback is waiting. Results for delivered handles are dropped.
func (c *completions) complete(res Completion) {
	c.mu.Lock()
	p, ok := c.entries[res.Handle]
	if !ok || p.done != nil {
		c.mu.Unlock()
		return
	}
	if p.fn == nil {
		p.done = &res
		c.mu.Unlock()
		return
	}
	fn := p.fn
	delete(c.entries, res.Handle)
	c.mu.Unlock()

	fn(res)
}
