package contextpack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	// MinFileBytes is the smallest per-file read limit
	MinFileBytes = 4 * 1024
	// DefaultFileBytes is the default per-file read limit
	DefaultFileBytes = 256 * 1024

	probeBytes = 4096
)

// Reader reads project files as UTF-8 text, skipping binaries and
// truncating large files.
type Reader struct {
	maxBytes int64
}

// NewReader creates a reader with a per-file limit of at least MinFileBytes
func NewReader(maxBytes int64) *Reader {
	return &Reader{maxBytes: max(MinFileBytes, maxBytes)}
}

// MaxBytes returns the effective per-file limit
func (r *Reader) MaxBytes() int64 {
	return r.maxBytes
}

// ReadText returns the file content, or a [[...]] marker line for
// binary files and suspicious reads.
func (r *Reader) ReadText(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	size := info.Size()

	probe, err := readHead(path, min(probeBytes, size))
	if err != nil {
		return "", err
	}
	if looksBinary(probe) {
		return fmt.Sprintf("[[BINARY FILE SKIPPED: %s (%d bytes)]]\n", filepath.Base(path), size), nil
	}

	toRead := min(size, r.maxBytes)
	data, err := readHead(path, toRead)
	if err != nil {
		return "", err
	}
	if size > 0 && len(data) == 0 {
		return fmt.Sprintf("[[READ_WARNING: file had size=%d but 0 bytes were read. Possibly locked or mid-write: %s]]\n",
			size, filepath.Base(path)), nil
	}

	content := string(data)
	if size > r.maxBytes {
		content += fmt.Sprintf("\n[[TRUNCATED: file size=%d bytes, read=%d bytes]]\n", size, toRead)
	}
	return content, nil
}

func readHead(path string, n int64) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

// looksBinary treats any NUL byte, or more than 20% of bytes outside
// tab/LF/CR, printable ASCII and UTF-8 lead bytes, as binary.
func looksBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	weird := 0
	for _, c := range data {
		if c == 0 {
			return true
		}
		ok := c == '\t' || c == '\n' || c == '\r' ||
			(c >= 32 && c <= 126) ||
			(c >= 0xC2 && c <= 0xF4)
		if !ok {
			weird++
		}
	}
	return float64(weird)/float64(len(data)) > 0.20
}
