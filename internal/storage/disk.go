package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Disk stores uploaded drawing files on the local filesystem under a
// single directory.
type Disk struct {
	dir string
}

func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

// Save writes the upload to a uniquely named file, keeping the original
// extension, and returns the stored path.
func (d *Disk) Save(r io.Reader, originalName string) (string, error) {
	name := uuid.New().String() + filepath.Ext(filepath.Base(originalName))
	path := filepath.Join(d.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

func (d *Disk) Read(path string) ([]byte, error) {
	if err := d.check(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (d *Disk) Remove(path string) error {
	if err := d.check(path); err != nil {
		return err
	}
	return os.Remove(path)
}

// check refuses paths outside the upload dir.
func (d *Disk) check(path string) error {
	rel, err := filepath.Rel(d.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %q is outside the upload dir", path)
	}
	return nil
}
