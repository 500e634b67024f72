// Package history keeps an undo/redo stack of serialized working-set
// snapshots.
package history

import (
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultDepth is the number of snapshots kept when none is configured.
const DefaultDepth = 50

// History stores JSON snapshots of T. entries[:index] are undoable; when
// the caller has undone, entries[index] is the state currently shown.
type History[T any] struct {
	mu      sync.Mutex
	depth   int
	entries [][]byte
	index   int
}

func New[T any](depth int) *History[T] {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History[T]{depth: depth}
}

func encode[T any](v T) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot encode: %w", err)
	}
	return b, nil
}

func decode[T any](b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("snapshot decode: %w", err)
	}
	return v, nil
}

// Record saves state as it was before an edit and discards any redo tail.
func (h *History[T]) Record(state T) error {
	b, err := encode(state)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index], b)
	h.index = len(h.entries)
	if len(h.entries) > h.depth {
		h.entries = h.entries[len(h.entries)-h.depth:]
		h.index = len(h.entries)
	}
	return nil
}

// Undo returns the state to restore. current is the state being left; it
// is kept so Redo can return to it. ok is false when there is nothing to undo.
func (h *History[T]) Undo(current T) (state T, ok bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index == 0 {
		return state, false, nil
	}
	if h.index == len(h.entries) {
		b, err := encode(current)
		if err != nil {
			return state, false, err
		}
		h.entries = append(h.entries, b)
	}
	h.index--
	state, err = decode[T](h.entries[h.index])
	if err != nil {
		h.index++
		return state, false, err
	}
	return state, true, nil
}

// Redo returns the state that was undone last.
func (h *History[T]) Redo() (state T, ok bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index+1 >= len(h.entries) {
		return state, false, nil
	}
	h.index++
	state, err = decode[T](h.entries[h.index])
	if err != nil {
		h.index--
		return state, false, err
	}
	return state, true, nil
}

// CanUndo reports whether Undo would return a state.
func (h *History[T]) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index > 0
}

// CanRedo reports whether Redo would return a state.
func (h *History[T]) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index+1 < len(h.entries)
}

// Len returns the number of stored snapshots.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Reset drops every snapshot.
func (h *History[T]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.index = 0
}

// Forget drops the snapshot added by the last Record. It is used when the
// edit that followed the Record did not happen.
func (h *History[T]) Forget() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == 0 || h.index != len(h.entries) {
		return
	}
	h.entries = h.entries[:h.index-1]
	h.index--
}
