package syncer

import "os"

// FileSystem is the probe capability the engine uses to check that a
// queued receipt photo still exists before upload.
type FileSystem interface {
	Exists(path string) bool
}

// OSFileSystem probes the real filesystem.
type OSFileSystem struct{}

// Exists reports whether path refers to an existing regular file.
func (OSFileSystem) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
