package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_InsertAtCursor(t *testing.T) {
	b := NewBuffer("main.go", "package main\n")
	assert.Equal(t, 13, b.Cursor())

	offset, err := b.Insert(-1, "func main() {}\n")
	require.NoError(t, err)
	assert.Equal(t, 13, offset)
	assert.Equal(t, "package main\nfunc main() {}\n", b.Text())
	assert.Equal(t, 1, b.Revision())
}

func TestBuffer_InsertOutOfRange(t *testing.T) {
	b := NewBuffer("doc", "abc")
	_, err := b.Insert(10, "x")
	require.Error(t, err)
	assert.Equal(t, "abc", b.Text())
	assert.Equal(t, 0, b.Revision())
}

func TestBuffer_SelectionRoundTrip(t *testing.T) {
	b := NewBuffer("doc", "héllo world")
	require.NoError(t, b.Select(0, 5))

	text, start, end := b.Selection()
	assert.Equal(t, "héllo", text)
	assert.Equal(t, 0, start)
	assert.Equal(t, 5, end)

	removed := b.ReplaceSelection("goodbye")
	assert.Equal(t, "héllo", removed)
	assert.Equal(t, "goodbye world", b.Text())

	text, _, _ = b.Selection()
	assert.Empty(t, text)
	assert.Equal(t, 7, b.Cursor())
}

func TestBuffer_ReplaceEmptySelectionInserts(t *testing.T) {
	b := NewBuffer("doc", "ab")
	require.NoError(t, b.Select(1, 1))
	b.ReplaceSelection("X")
	assert.Equal(t, "aXb", b.Text())
}

func TestBuffer_SelectInvalidRange(t *testing.T) {
	b := NewBuffer("doc", "abc")
	assert.Error(t, b.Select(2, 1))
	assert.Error(t, b.Select(-1, 1))
	assert.Error(t, b.Select(0, 4))
}

func TestBuffer_OnChange(t *testing.T) {
	b := NewBuffer("doc", "abc")
	var changes []Change
	b.OnChange(func(c Change) { changes = append(changes, c) })

	_, err := b.Insert(0, ">")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Revision: 1, Offset: 0, Inserted: ">"}, changes[0])
}

func TestWorkspace_BufferPerSession(t *testing.T) {
	w := NewWorkspace()
	a := w.For("a")
	_, err := a.Insert(-1, "alpha")
	require.NoError(t, err)

	assert.Same(t, a, w.For("a"))
	assert.Equal(t, "", w.For("b").Text())
	assert.Equal(t, 2, w.Len())

	w.Drop("a")
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, "", w.For("a").Text())
}
