package history

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state struct {
	Employees []string                     `json:"employees"`
	Schedule  map[string]map[string]string `json:"schedule"`
}

func clone(s state) state {
	var out state
	b, _ := json.Marshal(s)
	_ = json.Unmarshal(b, &out)
	return out
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestUndoRedoSymmetry(t *testing.T) {
	for _, n := range []int{1, 2, 5, 10} {
		t.Run(fmt.Sprintf("%d edits", n), func(t *testing.T) {
			h := New[state](50)
			cur := state{Employees: []string{"Alice"}, Schedule: map[string]map[string]string{}}
			before := mustJSON(t, cur)

			for i := 0; i < n; i++ {
				require.NoError(t, h.Record(cur))
				cur = clone(cur)
				cur.Employees = append(cur.Employees, fmt.Sprintf("E%d", i))
				cur.Schedule[fmt.Sprintf("E%d", i)] = map[string]string{"2024-03-15": "9a-5p"}
			}
			after := mustJSON(t, cur)

			for i := 0; i < n; i++ {
				var ok bool
				var err error
				cur, ok, err = h.Undo(cur)
				require.NoError(t, err)
				require.True(t, ok)
			}
			assert.Equal(t, before, mustJSON(t, cur))
			_, ok, _ := h.Undo(cur)
			assert.False(t, ok)

			for i := 0; i < n; i++ {
				var ok bool
				var err error
				cur, ok, err = h.Redo()
				require.NoError(t, err)
				require.True(t, ok)
			}
			assert.Equal(t, after, mustJSON(t, cur))
			_, ok, _ = h.Redo()
			assert.False(t, ok)
		})
	}
}

func TestRecordAfterUndoDiscardsRedo(t *testing.T) {
	h := New[int](10)
	require.NoError(t, h.Record(0))
	require.NoError(t, h.Record(1))
	cur := 2

	cur, _, _ = h.Undo(cur)
	assert.Equal(t, 1, cur)
	assert.True(t, h.CanRedo())

	require.NoError(t, h.Record(cur))
	cur = 7
	assert.False(t, h.CanRedo())

	cur, _, _ = h.Undo(cur)
	assert.Equal(t, 1, cur)
	cur, _, _ = h.Undo(cur)
	assert.Equal(t, 0, cur)
	cur, _, _ = h.Redo()
	assert.Equal(t, 1, cur)
	cur, _, _ = h.Redo()
	assert.Equal(t, 7, cur)
}

func TestDepthIsCapped(t *testing.T) {
	h := New[int](3)
	for i := 0; i < 10; i++ {
		require.NoError(t, h.Record(i))
	}
	assert.Equal(t, 3, h.Len())

	cur := 10
	var undone []int
	for h.CanUndo() {
		cur, _, _ = h.Undo(cur)
		undone = append(undone, cur)
	}
	assert.Equal(t, []int{9, 8, 7}, undone)
}

func TestEmptyHistory(t *testing.T) {
	h := New[int](0)
	_, ok, err := h.Undo(1)
	assert.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = h.Redo()
	assert.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.Record(1))
	h.Reset()
	assert.False(t, h.CanUndo())
}

func TestRecordRejectsUnencodableState(t *testing.T) {
	h := New[any](5)
	assert.Error(t, h.Record(make(chan int)))
	assert.Zero(t, h.Len())
}

func TestForgetDropsLastRecord(t *testing.T) {
	h := New[state](10)
	require.NoError(t, h.Record(state{Employees: []string{"a"}}))
	require.NoError(t, h.Record(state{Employees: []string{"a", "b"}}))

	h.Forget()
	assert.Equal(t, 1, h.Len())

	got, ok, err := h.Undo(state{Employees: []string{"a", "c"}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got.Employees)

	// Forget is a no-op while an undo is in effect.
	h.Forget()
	assert.True(t, h.CanRedo())
}
