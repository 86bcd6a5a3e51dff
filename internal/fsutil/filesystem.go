// Package fsutil provides filesystem abstractions for testability.
package fsutil

import (
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/spf13/afero"
)

// FileSystem abstracts filesystem operations for testability.
// Use NewOSFileSystem for production; NewMemoryFileSystem for testing.
type FileSystem interface {
	// Open opens the named file for reading.
	Open(name string) (io.ReadCloser, error)

	// Create creates or truncates the named file.
	Create(name string) (io.WriteCloser, error)

	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Stat returns a FileInfo describing the named file.
	Stat(name string) (fs.FileInfo, error)

	// MkdirAll creates a directory and all necessary parents. It succeeds if
	// the directory already exists.
	MkdirAll(path string, perm os.FileMode) error

	// RemoveAll removes path and any children it contains.
	RemoveAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(name string) bool

	// IsDir reports whether name exists and is a directory.
	IsDir(name string) bool

	// Glob returns the names of all files matching pattern, sorted.
	Glob(pattern string) ([]string, error)

	// ReadDir returns the directory entries of dirname, sorted by name.
	ReadDir(dirname string) ([]fs.FileInfo, error)

	// Afero exposes the backing afero filesystem for libraries that accept
	// one directly (viper).
	Afero() afero.Fs
}

// aferoFileSystem implements FileSystem on top of an afero.Fs.
type aferoFileSystem struct {
	fs afero.Fs
}

// NewOSFileSystem returns a FileSystem backed by the host filesystem.
func NewOSFileSystem() FileSystem {
	return &aferoFileSystem{fs: afero.NewOsFs()}
}

// NewMemoryFileSystem returns an empty in-memory FileSystem.
func NewMemoryFileSystem() FileSystem {
	return &aferoFileSystem{fs: afero.NewMemMapFs()}
}

// Wrap adapts an existing afero.Fs.
func Wrap(afs afero.Fs) FileSystem {
	return &aferoFileSystem{fs: afs}
}

func (a *aferoFileSystem) Open(name string) (io.ReadCloser, error) {
	return a.fs.Open(name)
}

func (a *aferoFileSystem) Create(name string) (io.WriteCloser, error) {
	return a.fs.Create(name)
}

func (a *aferoFileSystem) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(a.fs, name)
}

func (a *aferoFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return afero.WriteFile(a.fs, name, data, perm)
}

func (a *aferoFileSystem) Stat(name string) (fs.FileInfo, error) {
	return a.fs.Stat(name)
}

func (a *aferoFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return a.fs.MkdirAll(path, perm)
}

func (a *aferoFileSystem) RemoveAll(path string) error {
	return a.fs.RemoveAll(path)
}

func (a *aferoFileSystem) Exists(name string) bool {
	ok, err := afero.Exists(a.fs, name)
	return err == nil && ok
}

func (a *aferoFileSystem) IsDir(name string) bool {
	ok, err := afero.IsDir(a.fs, name)
	return err == nil && ok
}

func (a *aferoFileSystem) Glob(pattern string) ([]string, error) {
	matches, err := afero.Glob(a.fs, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (a *aferoFileSystem) ReadDir(dirname string) ([]fs.FileInfo, error) {
	return afero.ReadDir(a.fs, dirname)
}

func (a *aferoFileSystem) Afero() afero.Fs {
	return a.fs
}
