package contextpack

import (
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// A Caser is stateful, so each call gets its own.
func foldKey(s string) string {
	return cases.Fold().String(s)
}

func compareFold(a, b string) int {
	if c := strings.Compare(foldKey(a), foldKey(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// Selection is the set of files chosen for the context pack
type Selection struct {
	mu    sync.Mutex
	files map[string]struct{}
}

// NewSelection creates a selection holding files
func NewSelection(files ...string) *Selection {
	s := &Selection{files: make(map[string]struct{})}
	for _, f := range files {
		s.Set(f, true)
	}
	return s
}

// Set adds or removes a file
func (s *Selection) Set(file string, selected bool) {
	if file == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if selected {
		s.files[file] = struct{}{}
	} else {
		delete(s.files, file)
	}
}

// Clear removes every file
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.files)
}

// Count returns the number of selected files
func (s *Selection) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Sorted returns the selected files ordered case-insensitively
func (s *Selection) Sorted() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.files))
	for f := range s.files {
		out = append(out, f)
	}
	s.mu.Unlock()

	slices.SortFunc(out, compareFold)
	return out
}
