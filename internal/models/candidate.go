package models

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/desertthunder/signx/internal/shared"
)

// UploadCandidate is a local file chosen for submission.
//
// Only presence is checked; content and format are left to the processing service.
type UploadCandidate struct {
	name string
	path string
	size int64
	open func() (io.ReadCloser, error)
}

// NewFileCandidate validates that path names an existing regular file.
func NewFileCandidate(path string) (*UploadCandidate, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no file selected", shared.ErrValidation)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", shared.ErrValidation, path)
	}

	return &UploadCandidate{
		name: filepath.Base(path),
		path: path,
		size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// NewReaderCandidate builds a candidate from an in-memory source; open is called once per submission.
func NewReaderCandidate(name string, size int64, open func() (io.ReadCloser, error)) (*UploadCandidate, error) {
	if name == "" || open == nil {
		return nil, fmt.Errorf("%w: no file selected", shared.ErrValidation)
	}
	return &UploadCandidate{name: name, size: size, open: open}, nil
}

func (c *UploadCandidate) Name() string { return c.name }
func (c *UploadCandidate) Path() string { return c.path }
func (c *UploadCandidate) Size() int64  { return c.size }

// Open returns a fresh reader over the candidate's content.
func (c *UploadCandidate) Open() (io.ReadCloser, error) {
	return c.open()
}
