// Package snippets extracts structured edit blocks from assistant replies.
package snippets

import (
	"strings"
)

// Block is one edit proposed by the assistant
type Block struct {
	File   string `json:"file,omitempty"`
	Action string `json:"action,omitempty"`
	Range  string `json:"range,omitempty"`
	Target string `json:"target,omitempty"`
	Anchor string `json:"anchor,omitempty"`
	Note   string `json:"note,omitempty"`
	Code   string `json:"code,omitempty"`
}

var headerKeys = []string{"FILE:", "OPERATION:", "ANCHOR:", "LANGUAGE:"}

// Parse returns the blocks found in text. The CHANGE: format is tried
// first, then comment-headed snippets. Text in neither format yields nil.
func Parse(text string) []Block {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if blocks := parseChanges(text); len(blocks) > 0 {
		return blocks
	}
	return parseSnippets(text)
}

func parseChanges(text string) []Block {
	var (
		blocks    []Block
		cur       *Block
		inCode    bool
		code      strings.Builder
		hasAction bool
	)

	flush := func() {
		if cur == nil {
			return
		}
		cur.Code = strings.TrimRight(code.String(), " \t\n")
		blocks = append(blocks, *cur)
	}

	for _, line := range strings.Split(text, "\n") {
		if line == "CHANGE:" {
			flush()
			cur = &Block{}
			inCode = false
			code.Reset()
			continue
		}
		if cur == nil {
			continue
		}
		if strings.HasPrefix(line, "code:") {
			inCode = true
			continue
		}
		if inCode {
			code.WriteString(line)
			code.WriteByte('\n')
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "file":
			cur.File = value
		case "action":
			cur.Action = value
			hasAction = true
		case "range":
			cur.Range = value
		case "target":
			cur.Target = value
		case "anchor":
			cur.Anchor = value
		case "note":
			cur.Note = value
		}
	}
	flush()

	if !hasAction {
		return nil
	}
	return blocks
}

func parseSnippets(text string) []Block {
	var out []Block
	for _, raw := range splitSnippets(text) {
		if b, ok := parseSnippet(raw); ok {
			out = append(out, b)
		}
	}
	return out
}

// splitSnippets cuts text at blank lines followed by a header line.
// Blank lines inside code do not split.
func splitSnippets(text string) []string {
	lines := strings.Split(text, "\n")
	var (
		snippets []string
		cur      []string
	)

	for i, line := range lines {
		blank := strings.TrimSpace(line) == ""
		if blank && len(cur) == 0 {
			continue
		}
		if blank {
			j := i + 1
			for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
				j++
			}
			if j < len(lines) && isHeaderLine(lines[j]) {
				snippets = append(snippets, strings.TrimRightFunc(strings.Join(cur, "\n"), isSpace))
				cur = cur[:0]
				continue
			}
		}
		cur = append(cur, line)
	}

	if last := strings.TrimSpace(strings.Join(cur, "\n")); last != "" {
		snippets = append(snippets, last)
	}
	return snippets
}

func parseSnippet(snippet string) (Block, bool) {
	var (
		b         Block
		operation string
		language  string
		sawHeader bool
	)

	for _, line := range strings.Split(snippet, "\n") {
		header, ok := commentHeader(line)
		if !ok {
			if sawHeader {
				break
			}
			// leading code before any header means this is not a snippet
			if strings.TrimSpace(line) != "" && !isCommentLine(line) {
				return Block{}, false
			}
			continue
		}
		sawHeader = true

		key, value, _ := strings.Cut(header, ":")
		value = strings.TrimSpace(value)
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "FILE":
			b.File = value
		case "OPERATION":
			operation = value
		case "ANCHOR":
			b.Anchor = value
		case "LANGUAGE":
			language = value
		}
	}

	if !sawHeader || strings.TrimSpace(b.File) == "" || strings.TrimSpace(operation) == "" {
		return Block{}, false
	}

	b.Action = strings.ToUpper(strings.TrimSpace(operation))
	if language != "" {
		b.Note = "LANGUAGE=" + language
	}
	b.Code = strings.TrimRightFunc(snippet, isSpace)
	return b, true
}

func isHeaderLine(line string) bool {
	_, ok := commentHeader(line)
	return ok
}

func isCommentLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "#") || strings.HasPrefix(t, "<!--")
}

// commentHeader returns "KEY: value" when line is a comment carrying one
// of the known header keys.
func commentHeader(line string) (string, bool) {
	t := strings.TrimSpace(line)

	var inner string
	switch {
	case strings.HasPrefix(t, "//"):
		inner = strings.TrimSpace(t[2:])
	case strings.HasPrefix(t, "#"):
		inner = strings.TrimSpace(t[1:])
	case strings.HasPrefix(t, "<!--"):
		inner = strings.TrimSpace(t[4:])
		inner = strings.TrimSpace(strings.TrimSuffix(inner, "-->"))
	default:
		return "", false
	}

	upper := strings.ToUpper(inner)
	for _, key := range headerKeys {
		if strings.HasPrefix(upper, key) {
			return inner, true
		}
	}
	return "", false
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
