package editor

import (
	"fmt"
	"sync"
	"unicode/utf8"
)

// Buffer is an in-memory text document with a cursor and a selection.
// Offsets are rune offsets. All methods are safe for concurrent use.
type Buffer struct {
	mu        sync.RWMutex
	name      string
	text      []rune
	cursor    int
	selStart  int
	selEnd    int
	revision  int
	listeners []func(Change)
}

// Change describes one mutation of a buffer
type Change struct {
	Revision int
	Offset   int
	Removed  string
	Inserted string
}

// NewBuffer creates a buffer holding text, with the cursor at the end.
func NewBuffer(name, text string) *Buffer {
	runes := []rune(text)
	return &Buffer{
		name:     name,
		text:     runes,
		cursor:   len(runes),
		selStart: len(runes),
		selEnd:   len(runes),
	}
}

// For returns b for any session
func (b *Buffer) For(string) *Buffer {
	return b
}

// Name returns the document name
func (b *Buffer) Name() string {
	return b.name
}

// Text returns the full document text
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.text)
}

// Len returns the document length in runes
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.text)
}

// Revision increases by one on every mutation
func (b *Buffer) Revision() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revision
}

// Cursor returns the cursor offset
func (b *Buffer) Cursor() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cursor
}

// Selection returns the selected text and its bounds
func (b *Buffer) Selection() (string, int, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.text[b.selStart:b.selEnd]), b.selStart, b.selEnd
}

// Select sets the selection to [start, end) and moves the cursor to end.
func (b *Buffer) Select(start, end int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkRange(start, end); err != nil {
		return err
	}
	b.selStart, b.selEnd, b.cursor = start, end, end
	return nil
}

// Insert inserts text at offset. A negative offset means the cursor.
func (b *Buffer) Insert(offset int, text string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 {
		offset = b.cursor
	}
	if offset > len(b.text) {
		return 0, fmt.Errorf("offset %d out of range [0,%d]", offset, len(b.text))
	}
	b.replace(offset, offset, text)
	return offset, nil
}

// ReplaceSelection replaces the selected text, or inserts at the cursor
// when the selection is empty. It returns the replaced text.
func (b *Buffer) ReplaceSelection(text string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	start, end := b.selStart, b.selEnd
	if start == end {
		start, end = b.cursor, b.cursor
	}
	removed := string(b.text[start:end])
	b.replace(start, end, text)
	return removed
}

// OnChange registers a listener called after every mutation.
// The listener runs with the buffer locked and must not call back into it.
func (b *Buffer) OnChange(fn func(Change)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

func (b *Buffer) replace(start, end int, text string) {
	inserted := []rune(text)
	removed := string(b.text[start:end])

	next := make([]rune, 0, len(b.text)-(end-start)+len(inserted))
	next = append(next, b.text[:start]...)
	next = append(next, inserted...)
	next = append(next, b.text[end:]...)
	b.text = next

	b.cursor = start + len(inserted)
	b.selStart, b.selEnd = b.cursor, b.cursor
	b.revision++

	change := Change{Revision: b.revision, Offset: start, Removed: removed, Inserted: text}
	for _, fn := range b.listeners {
		fn(change)
	}
}

func (b *Buffer) checkRange(start, end int) error {
	if start < 0 || end < start || end > len(b.text) {
		return fmt.Errorf("range [%d,%d) out of bounds for document of length %d", start, end, len(b.text))
	}
	return nil
}

// RuneCount returns the number of runes in s
func RuneCount(s string) int {
	return utf8.RuneCountInString(s)
}
