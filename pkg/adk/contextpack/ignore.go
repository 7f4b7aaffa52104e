package contextpack

import (
	"path/filepath"
	"strings"
)

var defaultIgnoredDirs = []string{
	".git", ".idea", ".gradle", "build", "out", "target", "node_modules",
	".vscode", ".settings", ".classpath", ".project",
}

var defaultIgnoredExtensions = []string{
	// binaries / archives
	".class", ".jar", ".war", ".ear", ".zip", ".7z", ".rar", ".tar", ".gz",
	".exe", ".dll", ".so", ".dylib",
	// images / media
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".ico",
	".mp3", ".mp4", ".mov", ".avi", ".mkv", ".wav",
	".pdf", ".psd", ".ttf", ".otf", ".woff", ".woff2",
	".lock",
}

// IgnoreRules decides which project paths are hidden from the model
type IgnoreRules struct {
	dirs       map[string]struct{}
	extensions []string
}

// DefaultIgnoreRules returns the rules for VCS, IDE and build directories
// and for binary, media and lock files.
func DefaultIgnoreRules() *IgnoreRules {
	return NewIgnoreRules(defaultIgnoredDirs, defaultIgnoredExtensions)
}

// NewIgnoreRules creates rules from directory names and file extensions
func NewIgnoreRules(dirs, extensions []string) *IgnoreRules {
	r := &IgnoreRules{dirs: make(map[string]struct{}, len(dirs))}
	for _, d := range dirs {
		r.dirs[d] = struct{}{}
	}
	for _, ext := range extensions {
		r.extensions = append(r.extensions, strings.ToLower(ext))
	}
	return r
}

// ShouldIgnore reports whether path, located under root, is ignored.
// Any ignored segment of the relative path hides the whole subtree.
func (r *IgnoreRules) ShouldIgnore(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, ok := r.dirs[part]; ok {
			return true
		}
	}

	name := strings.ToLower(filepath.Base(path))
	for _, ext := range r.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
