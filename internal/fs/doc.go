// Package fs provides the filesystem abstraction used by the local blob and
// commit stores, so tests can inject I/O failures.
//
//   - [OS]: the os-backed implementation, also available as Default
//   - [FaultyFS]: wraps another FileSystem and fails selected operations
//
// Production code uses fs.Default:
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
//
// Filesystem operations take no context.Context; local syscalls are not
// interruptible.
package fs
