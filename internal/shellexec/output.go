package shellexec

import (
	"bytes"
	"sync"
)

// OutputKind tags an OutputEvent variant.
type OutputKind int

const (
	// OutputData carries a chunk of text output.
	OutputData OutputKind = iota
	// OutputBinaryDetected is emitted once, the first time the output
	// stream is judged non-text.
	OutputBinaryDetected
	// OutputBinaryProgress replaces further data events after binary is
	// detected, reporting the growing byte count.
	OutputBinaryProgress
)

// OutputEvent is one streamed output notification.
type OutputEvent struct {
	Kind          OutputKind
	Chunk         string
	BytesReceived int
}

// collector accumulates process output, applies the retained-output cap,
// and emits streaming events. Binary detection is a single deterministic
// rule shared by both execution strategies: the first NUL byte anywhere in
// the output flags the stream as binary, after which no literal text is
// forwarded.
type collector struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
	binary    bool
	total     int
	closed    bool
	emit      func(OutputEvent)
}

func newCollector(maxBytes int, emit func(OutputEvent)) *collector {
	return &collector{max: maxBytes, emit: emit}
}

// Write implements io.Writer; both strategies funnel raw chunks here.
func (c *collector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total += len(p)
	if c.closed {
		return len(p), nil
	}

	if !c.binary && bytes.IndexByte(p, 0) >= 0 {
		c.binary = true
		c.emit(OutputEvent{Kind: OutputBinaryDetected})
	}
	if c.binary {
		c.emit(OutputEvent{Kind: OutputBinaryProgress, BytesReceived: c.total})
		return len(p), nil
	}

	if !c.truncated {
		room := c.max - c.buf.Len()
		if room > len(p) {
			room = len(p)
		}
		if room > 0 {
			c.buf.Write(p[:room])
		}
		if room < len(p) {
			c.truncated = true
		}
	}
	c.emit(OutputEvent{Kind: OutputData, Chunk: string(p)})
	return len(p), nil
}

// close stops event emission; late writes from draining readers still
// count bytes but notify nobody.
func (c *collector) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// String returns the retained text output.
func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Truncated reports whether the retained output was capped.
func (c *collector) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}

// Binary reports whether the stream was flagged binary.
func (c *collector) Binary() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binary
}

// Total reports every byte the process produced, including bytes dropped by
// the cap or withheld after binary detection.
func (c *collector) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
