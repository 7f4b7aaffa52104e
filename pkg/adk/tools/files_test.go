package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

func newTestProject(t *testing.T) *Project {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main\n\nfunc main() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# demo\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0644))

	p, err := NewProject(root, 0)
	require.NoError(t, err)
	return p
}

func TestNewProject_InvalidRoot(t *testing.T) {
	_, err := NewProject(filepath.Join(t.TempDir(), "missing"), 0)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeFileOperation))
}

func TestProjectTools_Names(t *testing.T) {
	p := newTestProject(t)
	var names []string
	for _, tool := range ProjectTools(p) {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"list_files", "read_file", "write_file", "edit_file"}, names)
}

func TestListFilesTool(t *testing.T) {
	p := newTestProject(t)
	out, err := NewListFilesTool(p).RunAsync(context.Background(), nil, &Context{})
	require.NoError(t, err)
	assert.Contains(t, out, "main.go")
	assert.Contains(t, out, "README.md")
	assert.NotContains(t, out, "HEAD")
}

func TestReadFileTool_RunAsync_Success(t *testing.T) {
	p := newTestProject(t)
	out, err := NewReadFileTool(p).RunAsync(context.Background(), map[string]any{
		"path": "src/main.go",
	}, &Context{})

	require.NoError(t, err)
	assert.Contains(t, out, "    1\tpackage main")
	assert.Contains(t, out, "    3\tfunc main() {}")
}

func TestReadFileTool_RunAsync_OffsetAndLimit(t *testing.T) {
	p := newTestProject(t)
	out, err := NewReadFileTool(p).RunAsync(context.Background(), map[string]any{
		"path":   "src/main.go",
		"offset": float64(2),
		"limit":  float64(1),
	}, &Context{})

	require.NoError(t, err)
	assert.Equal(t, "    2\t\n", out)
}

func TestReadFileTool_RunAsync_FileNotFound(t *testing.T) {
	p := newTestProject(t)
	_, err := NewReadFileTool(p).RunAsync(context.Background(), map[string]any{
		"path": "nope.txt",
	}, &Context{})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeFileOperation))
}

func TestReadFileTool_RejectsEscapingAndIgnoredPaths(t *testing.T) {
	p := newTestProject(t)
	tool := NewReadFileTool(p)

	for _, path := range []string{"../outside.txt", "/etc/passwd", ".git/HEAD", ""} {
		t.Run(path, func(t *testing.T) {
			_, err := tool.RunAsync(context.Background(), map[string]any{"path": path}, &Context{})
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidArguments))
		})
	}
}

func TestWriteFileTool_RunAsync(t *testing.T) {
	p := newTestProject(t)
	out, err := NewWriteFileTool(p).RunAsync(context.Background(), map[string]any{
		"path":    "docs/notes.txt",
		"content": "hello",
	}, &Context{})

	require.NoError(t, err)
	assert.Contains(t, out, "5 bytes")

	data, err := os.ReadFile(filepath.Join(p.Root, "docs", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestEditFileTool_RunAsync(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		args       map[string]any
		wantErr    string
		wantResult string
		wantFile   string
	}{
		{
			name:       "unique replacement",
			content:    "# demo\nsee the docs\n",
			args:       map[string]any{"old_string": "demo", "new_string": "agentdesk"},
			wantResult: "1 occurrence",
			wantFile:   "# agentdesk\nsee the docs\n",
		},
		{
			name:    "not found",
			content: "# demo\n",
			args:    map[string]any{"old_string": "absent", "new_string": "x"},
			wantErr: apperrors.ErrCodeInvalidArguments,
		},
		{
			name:    "ambiguous",
			content: "# demo\nsee demo docs\n",
			args:    map[string]any{"old_string": "demo", "new_string": "x"},
			wantErr: apperrors.ErrCodeInvalidArguments,
		},
		{
			name:       "replace all",
			content:    "# demo\nsee demo docs\n",
			args:       map[string]any{"old_string": "d", "new_string": "D", "replace_all": true},
			wantResult: "3 occurrence",
			wantFile:   "# Demo\nsee Demo Docs\n",
		},
		{
			name:    "empty old string",
			content: "# demo\n",
			args:    map[string]any{"old_string": "", "new_string": "x"},
			wantErr: apperrors.ErrCodeInvalidArguments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProject(t)
			path := filepath.Join(p.Root, "README.md")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			args := map[string]any{"path": "README.md"}
			for k, v := range tt.args {
				args[k] = v
			}

			out, err := NewEditFileTool(p).RunAsync(context.Background(), args, &Context{})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, tt.wantErr))
				data, rerr := os.ReadFile(path)
				require.NoError(t, rerr)
				assert.Equal(t, tt.content, string(data))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantResult)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, string(data))
		})
	}
}

func TestProjectTools_RejectSymlinkEscapes(t *testing.T) {
	p := newTestProject(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret\n"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(p.Root, "link")))

	_, err := NewWriteFileTool(p).RunAsync(context.Background(), map[string]any{
		"path":    "link/pwned.txt",
		"content": "x",
	}, &Context{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidArguments))
	assert.NoFileExists(t, filepath.Join(outside, "pwned.txt"))

	_, err = NewReadFileTool(p).RunAsync(context.Background(), map[string]any{
		"path": "link/secret.txt",
	}, &Context{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidArguments))

	_, err = NewEditFileTool(p).RunAsync(context.Background(), map[string]any{
		"path":       "link/secret.txt",
		"old_string": "secret",
		"new_string": "gone",
	}, &Context{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidArguments))

	data, err := os.ReadFile(filepath.Join(outside, "secret.txt"))
	require.NoError(t, err)
	assert.Equal(t, "secret\n", string(data))
}

func TestProjectTools_FollowSymlinksInsideRoot(t *testing.T) {
	p := newTestProject(t)
	require.NoError(t, os.Symlink(filepath.Join(p.Root, "src"), filepath.Join(p.Root, "alias")))

	out, err := NewReadFileTool(p).RunAsync(context.Background(), map[string]any{
		"path": "alias/main.go",
	}, &Context{})
	require.NoError(t, err)
	assert.Contains(t, out, "package main")
}
