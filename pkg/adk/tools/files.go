package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kagent-dev/agentdesk/pkg/adk/contextpack"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

const (
	MaxLineLength = 2000
)

// Project gives file tools their root and visibility rules
type Project struct {
	Root   string
	Rules  *contextpack.IgnoreRules
	Reader *contextpack.Reader
}

// NewProject creates a project rooted at root with the default rules
func NewProject(root string, maxFileBytes int64) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeFileOperation, "invalid project root", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, apperrors.New(apperrors.ErrCodeFileOperation, fmt.Sprintf("project root %s is not a directory", abs), err)
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeFileOperation, "invalid project root", err)
	}
	return &Project{
		Root:   abs,
		Rules:  contextpack.DefaultIgnoreRules(),
		Reader: contextpack.NewReader(maxFileBytes),
	}, nil
}

// resolve maps a model-supplied path onto the project, rejecting paths
// that escape the root or are hidden by the ignore rules.
func (p *Project) resolve(path string) (string, error) {
	if path == "" {
		return "", apperrors.New(apperrors.ErrCodeInvalidArguments, "path is required", nil)
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(p.Root, full)
	}
	full = filepath.Clean(full)
	if !within(p.Root, full) {
		return "", apperrors.Newf(apperrors.ErrCodeInvalidArguments, "path %s is outside the project", path)
	}

	full, err := evalExisting(full)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, fmt.Sprintf("failed to resolve %s", path), err)
	}
	if !within(p.Root, full) {
		return "", apperrors.Newf(apperrors.ErrCodeInvalidArguments, "path %s resolves outside the project", path)
	}
	if p.Rules.ShouldIgnore(full, p.Root) {
		return "", apperrors.Newf(apperrors.ErrCodeInvalidArguments, "path %s is ignored", path)
	}
	return full, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// evalExisting follows symlinks in the deepest existing ancestor of path
// and re-appends the components that do not exist yet.
func evalExisting(path string) (string, error) {
	var missing []string
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}

// ProjectTools returns the file tools operating on p
func ProjectTools(p *Project) []Tool {
	return []Tool{
		NewListFilesTool(p),
		NewReadFileTool(p),
		NewWriteFileTool(p),
		NewEditFileTool(p),
	}
}

// ListFilesTool lists the visible project files
type ListFilesTool struct {
	BaseTool
	project *Project
}

// NewListFilesTool creates a new ListFilesTool
func NewListFilesTool(p *Project) *ListFilesTool {
	return &ListFilesTool{
		BaseTool: NewBaseTool("list_files", "List the project files as an indented tree", nil),
		project:  p,
	}
}

func (l *ListFilesTool) RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error) {
	tree, err := contextpack.NewTreePrinter(l.project.Rules).Print(l.project.Root)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, "failed to list files", err)
	}
	return tree, nil
}

// ReadFileTool implements file reading with line numbers
type ReadFileTool struct {
	BaseTool
	project *Project
}

// NewReadFileTool creates a new ReadFileTool
func NewReadFileTool(p *Project) *ReadFileTool {
	return &ReadFileTool{
		BaseTool: NewBaseTool("read_file", "Read a project file with line numbers",
			ObjectSchema(map[string]any{
				"path":   StringProperty("File path relative to the project root"),
				"offset": IntegerProperty("First line to return, 1-based"),
				"limit":  IntegerProperty("Maximum number of lines to return"),
			}, "path")),
		project: p,
	}
}

func (r *ReadFileTool) RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error) {
	path, _ := StringArg(args, "path")
	filePath, err := r.project.resolve(path)
	if err != nil {
		return "", err
	}

	content, err := r.project.Reader.ReadText(filePath)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, "failed to read file", err)
	}
	if strings.HasPrefix(content, "[[BINARY FILE SKIPPED") {
		return content, nil
	}

	offset := 1
	if o, ok := IntArg(args, "offset"); ok && o > 0 {
		offset = o
	}
	limit := -1
	if l, ok := IntArg(args, "limit"); ok && l > 0 {
		limit = l
	}

	var result strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), int(r.project.Reader.MaxBytes())+1024)
	lineNum := 1

	for scanner.Scan() {
		if lineNum < offset {
			lineNum++
			continue
		}
		if limit > 0 && lineNum >= offset+limit {
			break
		}

		line := scanner.Text()
		if len(line) > MaxLineLength {
			line = line[:MaxLineLength] + "... (truncated)"
		}

		fmt.Fprintf(&result, "%5d\t%s\n", lineNum, line)
		lineNum++
	}

	if err := scanner.Err(); err != nil {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, "failed to read file", err)
	}

	return result.String(), nil
}

// WriteFileTool implements file writing
type WriteFileTool struct {
	BaseTool
	project *Project
}

// NewWriteFileTool creates a new WriteFileTool
func NewWriteFileTool(p *Project) *WriteFileTool {
	return &WriteFileTool{
		BaseTool: NewBaseTool("write_file", "Create or overwrite a project file",
			ObjectSchema(map[string]any{
				"path":    StringProperty("File path relative to the project root"),
				"content": StringProperty("Full file content"),
			}, "path", "content")),
		project: p,
	}
}

func (w *WriteFileTool) RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error) {
	path, _ := StringArg(args, "path")
	content, _ := StringArg(args, "content")

	filePath, err := w.project.resolve(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, "failed to create directory", err)
	}
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, "failed to write file", err)
	}

	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), nil
}

// EditFileTool implements file editing with string replacement
type EditFileTool struct {
	BaseTool
	project *Project
}

// NewEditFileTool creates a new EditFileTool
func NewEditFileTool(p *Project) *EditFileTool {
	return &EditFileTool{
		BaseTool: NewBaseTool("edit_file", "Edit a project file by replacing an exact string",
			ObjectSchema(map[string]any{
				"path":        StringProperty("File path relative to the project root"),
				"old_string":  StringProperty("Exact text to replace"),
				"new_string":  StringProperty("Replacement text"),
				"replace_all": BooleanProperty("Replace every occurrence instead of requiring a unique match"),
			}, "path", "old_string", "new_string")),
		project: p,
	}
}

func (e *EditFileTool) RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error) {
	path, _ := StringArg(args, "path")
	oldString, _ := StringArg(args, "old_string")
	newString, _ := StringArg(args, "new_string")
	replaceAll, _ := BoolArg(args, "replace_all")

	if oldString == "" {
		return "", apperrors.New(apperrors.ErrCodeInvalidArguments, "old_string must not be empty", nil)
	}

	filePath, err := e.project.resolve(path)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, "failed to read file", err)
	}

	contentStr := string(content)
	count := strings.Count(contentStr, oldString)
	switch {
	case count == 0:
		return "", apperrors.New(apperrors.ErrCodeInvalidArguments, "old_string not found in file", nil)
	case count > 1 && !replaceAll:
		return "", apperrors.New(apperrors.ErrCodeInvalidArguments,
			"old_string is not unique (use replace_all=true to replace all)", nil)
	}

	var newContent string
	if replaceAll {
		newContent = strings.ReplaceAll(contentStr, oldString, newString)
	} else {
		newContent = strings.Replace(contentStr, oldString, newString, 1)
		count = 1
	}

	if err := os.WriteFile(filePath, []byte(newContent), 0644); err != nil {
		return "", apperrors.New(apperrors.ErrCodeFileOperation, "failed to write file", err)
	}

	return fmt.Sprintf("Successfully replaced %d occurrence(s) in %s", count, path), nil
}
