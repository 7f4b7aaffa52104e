package contextpack

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// TreePrinter renders the project layout, directories first
type TreePrinter struct {
	rules *IgnoreRules
}

// NewTreePrinter creates a printer honoring rules
func NewTreePrinter(rules *IgnoreRules) *TreePrinter {
	if rules == nil {
		rules = DefaultIgnoreRules()
	}
	return &TreePrinter{rules: rules}
}

// Print renders root as an indented tree, two spaces per level
func (p *TreePrinter) Print(root string) (string, error) {
	var sb strings.Builder
	sb.WriteString(filepath.Base(root))
	sb.WriteString("/\n")

	err := p.walk(root, root, 1, func(path string, depth int, isDir bool) {
		sb.WriteString(strings.Repeat("  ", depth))
		if isDir {
			sb.WriteString("📁 ")
		} else {
			sb.WriteString("📄 ")
		}
		sb.WriteString(filepath.Base(path))
		if isDir {
			sb.WriteString("/")
		}
		sb.WriteString("\n")
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Files returns every visible regular file under root as a slash-separated
// relative path, in tree order.
func (p *TreePrinter) Files(root string) ([]string, error) {
	var files []string
	err := p.walk(root, root, 1, func(path string, depth int, isDir bool) {
		if isDir {
			return
		}
		rel, err := filepath.Rel(root, path)
		if err == nil {
			files = append(files, filepath.ToSlash(rel))
		}
	})
	return files, err
}

func (p *TreePrinter) walk(root, dir string, depth int, visit func(path string, depth int, isDir bool)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	slices.SortFunc(entries, func(a, b os.DirEntry) int {
		if a.IsDir() != b.IsDir() {
			if a.IsDir() {
				return -1
			}
			return 1
		}
		return compareFold(a.Name(), b.Name())
	})

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if p.rules.ShouldIgnore(path, root) {
			continue
		}
		if entry.IsDir() {
			visit(path, depth, true)
			if err := p.walk(root, path, depth+1, visit); err != nil {
				return err
			}
			continue
		}
		if entry.Type().IsRegular() {
			visit(path, depth, false)
		}
	}
	return nil
}
