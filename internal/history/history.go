// Package history keeps bounded undo/redo stacks of scene snapshots.
package history

import "github.com/inamate/stickers/internal/scene"

// DefaultMaxDepth bounds each stack when no depth is configured.
const DefaultMaxDepth = 100

// Entry is one recorded scene state. Seq is monotonic across the lifetime
// of the Manager.
type Entry struct {
	Seq   uint64
	Label string
	State scene.Snapshot
}

// Manager is a linear undo/redo history. It never references the live scene;
// callers pass the current state in and apply what comes back out.
type Manager struct {
	maxDepth int
	undo     []Entry
	redo     []Entry
	seq      uint64
}

// New creates a history bounded to maxDepth entries per stack.
func New(maxDepth int) *Manager {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Manager{maxDepth: maxDepth}
}

// Commit records the state before an action and invalidates redo history.
func (m *Manager) Commit(label string, before scene.Snapshot) {
	m.undo = m.push(m.undo, label, before)
	m.redo = nil
}

// Undo returns the state to restore, and moves current onto the redo stack.
// It returns false when there is nothing to undo.
func (m *Manager) Undo(current scene.Snapshot) (Entry, bool) {
	if len(m.undo) == 0 {
		return Entry{}, false
	}
	e := m.undo[len(m.undo)-1]
	m.undo[len(m.undo)-1] = Entry{}
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = m.push(m.redo, e.Label, current)
	return e, true
}

// Redo returns the state to re-apply, and moves current back onto the undo
// stack. It returns false when there is nothing to redo.
func (m *Manager) Redo(current scene.Snapshot) (Entry, bool) {
	if len(m.redo) == 0 {
		return Entry{}, false
	}
	e := m.redo[len(m.redo)-1]
	m.redo[len(m.redo)-1] = Entry{}
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = m.push(m.undo, e.Label, current)
	return e, true
}

// CanUndo reports whether Undo would return an entry.
func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether Redo would return an entry.
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// Depths returns the sizes of the undo and redo stacks.
func (m *Manager) Depths() (undo, redo int) { return len(m.undo), len(m.redo) }

// Seq returns the sequence number of the most recently pushed entry.
func (m *Manager) Seq() uint64 { return m.seq }

// Clear drops both stacks. Sequence numbers keep increasing.
func (m *Manager) Clear() {
	m.undo = nil
	m.redo = nil
}

func (m *Manager) push(stack []Entry, label string, state scene.Snapshot) []Entry {
	m.seq++
	stack = append(stack, Entry{Seq: m.seq, Label: label, State: state})
	if over := len(stack) - m.maxDepth; over > 0 {
		// Drop oldest into a fresh array.
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}
