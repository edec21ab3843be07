package runtime

// actionLog buffers human-readable lines until they are drained.
type actionLog struct {
	lines []string
}

func (l *actionLog) append(lines ...string) {
	l.lines = append(l.lines, lines...)
}

// drain returns the pending lines and empties the buffer.
func (l *actionLog) drain() []string {
	out := l.lines
	l.lines = nil
	if out == nil {
		return []string{}
	}
	return out
}
