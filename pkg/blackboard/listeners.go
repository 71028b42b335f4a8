package blackboard

// listeners is an ordered list of change subscribers.
// Removal during dispatch is honoured: a removed listener is not called again.
type listeners struct {
	entries []*listener
}

type listener struct {
	fn      func()
	removed bool
}

func (l *listeners) add(fn func()) func() {
	entry := &listener{fn: fn}
	l.entries = append(l.entries, entry)
	return func() {
		if entry.removed {
			return
		}
		entry.removed = true
		for i, e := range l.entries {
			if e == entry {
				l.entries = append(l.entries[:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners) fire() {
	if len(l.entries) == 0 {
		return
	}
	snapshot := make([]*listener, len(l.entries))
	copy(snapshot, l.entries)
	for _, e := range snapshot {
		if !e.removed {
			e.fn()
		}
	}
}

func (l *listeners) len() int {
	return len(l.entries)
}
