// internal/blob/fs.go
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSink writes artifacts below a root directory.
type FileSink struct {
	root string
}

// NewFileSink creates root if needed and returns a sink writing into it.
func NewFileSink(root string) (*FileSink, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &FileSink{root: root}, nil
}

func (s *FileSink) Driver() Driver { return DriverFilesystem }

// Put writes r to root/key, replacing any existing file. The content type
// is not stored.
func (s *FileSink) Put(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("blob key %q escapes export dir", key)
	}
	path := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}

	// Write to a temp file first so readers never see a partial export.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename %s: %w", key, err)
	}
	return path, nil
}
