package fs

import (
	"io"
	"os"
)

// File is the subset of *os.File the blob stores use.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	Sync() error
	Stat() (os.FileInfo, error)
}

// FileSystem is the set of operations the local blob and commit stores
// perform. Publishing a blob is a Rename; publishing a commit is a Link,
// which must fail with fs.ErrExist when newpath exists.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Link(oldpath, newpath string) error
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// OS is the FileSystem backed by package os.
type OS struct{}

var _ FileSystem = OS{}

func (OS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		// Avoid returning a typed nil inside the File interface.
		return nil, err
	}
	return f, nil
}

func (OS) Remove(name string) error                     { return os.Remove(name) }
func (OS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (OS) Link(oldpath, newpath string) error           { return os.Link(oldpath, newpath) }
func (OS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OS) ReadDir(name string) ([]os.DirEntry, error)   { return os.ReadDir(name) }

// Default is the FileSystem used when none is injected.
var Default FileSystem = OS{}
