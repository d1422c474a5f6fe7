package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Disk stores objects under a directory and serves them from baseURL.
type Disk struct {
	root    string
	baseURL string
}

// NewDisk creates the root directory if needed.
func NewDisk(root, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Disk{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes data to objectPath, replacing any existing file atomically.
func (d *Disk) Put(_ context.Context, objectPath string, data []byte, _ string) (string, error) {
	clean := path.Clean("/" + objectPath)[1:]
	if clean == "" {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	dst := filepath.Join(d.root, filepath.FromSlash(clean))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write object %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close object %s: %w", clean, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod object %s: %w", clean, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("commit object %s: %w", clean, err)
	}

	return d.baseURL + "/" + escapePath(clean), nil
}

// Handler serves stored objects. Mount it with http.StripPrefix at the path
// of baseURL.
func (d *Disk) Handler() http.Handler {
	return http.FileServer(http.Dir(d.root))
}
