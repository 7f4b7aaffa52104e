package contextpack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

const timestampLayout = "2006-01-02 15:04:05 Z07:00"

// Builder assembles the context pack sent as the user prompt: project
// tree, optional chat history, the prompt itself and the selected files.
type Builder struct {
	tree   *TreePrinter
	reader *Reader
	now    func() time.Time
}

// NewBuilder creates a builder
func NewBuilder(tree *TreePrinter, reader *Reader) *Builder {
	return &Builder{tree: tree, reader: reader, now: time.Now}
}

// Request holds the inputs of one context pack
type Request struct {
	ProjectRoot string
	// Selected files, absolute or relative to ProjectRoot
	Selected []string
	Prompt   string
	History  string
}

// Build renders the context pack
func (b *Builder) Build(req Request) (string, error) {
	root, err := filepath.Abs(req.ProjectRoot)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, "project root is invalid", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, "project root is invalid", err)
	}

	var sb strings.Builder
	sb.WriteString("=== GPT-Agent Context Pack ===\n")
	fmt.Fprintf(&sb, "generated_at: %s\n", b.now().Format(timestampLayout))
	fmt.Fprintf(&sb, "project_root: %s\n", root)
	fmt.Fprintf(&sb, "selected_files_count: %d\n", len(req.Selected))
	sb.WriteString("\n")

	tree, err := b.tree.Print(root)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, "failed to print project tree", err)
	}
	sb.WriteString("=== Project Tree (paths only) ===\n")
	sb.WriteString(tree)
	sb.WriteString("\n")

	if history := strings.TrimSpace(req.History); history != "" {
		sb.WriteString("=== Chat History (AI suggested changes) ===\n")
		sb.WriteString(history)
		sb.WriteString("\n\n")
	}

	sb.WriteString("=== User Prompt ===\n")
	sb.WriteString(strings.TrimSpace(req.Prompt))
	sb.WriteString("\n\n")

	sb.WriteString("=== Selected Files Content (UTF-8) ===\n")
	for _, f := range req.Selected {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		fmt.Fprintf(&sb, "\n--- FILE: %s ---\n", filepath.ToSlash(rel))

		content, err := b.reader.ReadText(path)
		if err != nil {
			fmt.Fprintf(&sb, "[[ERROR reading file: %v]]\n", err)
			continue
		}
		sb.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n=== End Context Pack ===\n")
	return sb.String(), nil
}
