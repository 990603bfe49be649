package logging

import (
	"strings"
	"sync"
)

// Tail keeps the most recent log lines in a ring.
type Tail struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// Recent receives INFO and above from the server logger.
var Recent = NewTail(200)

func NewTail(size int) *Tail {
	if size < 1 {
		size = 1
	}
	return &Tail{lines: make([]string, size)}
}

// Write stores each complete line of p.
func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		t.lines[t.next] = line
		t.next = (t.next + 1) % len(t.lines)
		if t.next == 0 {
			t.full = true
		}
	}
	return len(p), nil
}

// Last returns the newest line or "".
func (t *Tail) Last() string {
	l := t.Lines(1)
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

// Lines returns up to n lines, oldest first.
func (t *Tail) Lines(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := t.next
	if t.full {
		count = len(t.lines)
	}
	if n > count {
		n = count
	}
	out := make([]string, 0, n)
	for i := n; i > 0; i-- {
		idx := (t.next - i + len(t.lines)) % len(t.lines)
		out = append(out, t.lines[idx])
	}
	return out
}
