package device

import "sync/atomic"

// RecordingLine is an output line that remembers its level and counts
// transitions. It is safe to drive from one goroutine and read from another.
type RecordingLine struct {
	level atomic.Bool
	edges atomic.Uint32
}

// High drives the line high.
func (l *RecordingLine) High() {
	if !l.level.Swap(true) {
		l.edges.Add(1)
	}
}

// Low drives the line low.
func (l *RecordingLine) Low() {
	if l.level.Swap(false) {
		l.edges.Add(1)
	}
}

// Level returns the current level.
func (l *RecordingLine) Level() bool {
	return l.level.Load()
}

// Edges returns the number of transitions seen so far.
func (l *RecordingLine) Edges() uint32 {
	return l.edges.Load()
}
