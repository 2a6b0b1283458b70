// Package discovery finds report files on disk by name prefix and extension.
//
// It is the fallback used when the manifest has no entry for an artifact kind,
// or when the recorded file has since been removed. The newest file by
// modification time wins; ties go to the lexically greatest name.
//
// Example usage:
//
//	d := discovery.New([]string{"output", "."}, logger.Default())
//	f, err := d.Latest("cascade_usage_by_user_", ".csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(f.Path)
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// File is a discovered report file.
type File struct {
	// Path is the file path, joined from the scanned directory.
	Path string

	// Name is the base name.
	Name string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime time.Time
}

// Discoverer finds report files in a set of directories.
type Discoverer interface {
	// Find returns every file whose name starts with prefix and ends with
	// ext, newest first.
	Find(prefix, ext string) ([]File, error)

	// Latest returns the newest matching file, or ErrNoFilesFound.
	Latest(prefix, ext string) (*File, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	dirs   []string
	logger Logger
}

// New creates a Discoverer scanning dirs in order. Missing directories are
// skipped with a warning.
func New(dirs []string, logger Logger) Discoverer {
	return &discoverer{
		dirs:   dirs,
		logger: logger,
	}
}

// Latest is a convenience for a single-directory lookup.
func Latest(dir, prefix, ext string) (*File, error) {
	return New([]string{dir}, nopLogger{}).Latest(prefix, ext)
}

// Find implements Discoverer.Find.
func (d *discoverer) Find(prefix, ext string) ([]File, error) {
	var files []File
	seen := make(map[string]bool)

	for _, dir := range d.dirs {
		expanded := expandHome(dir)

		if _, err := os.Stat(expanded); err != nil {
			if os.IsNotExist(err) {
				d.logger.Debug("directory not found, skipping", "path", expanded)
				continue
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, expanded, err)
		}

		found, err := d.scanDirectory(expanded, prefix, ext)
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory %s: %w", expanded, err)
		}

		for _, f := range found {
			abs, absErr := filepath.Abs(f.Path)
			if absErr != nil {
				abs = f.Path
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			files = append(files, f)
		}
	}

	sortNewestFirst(files)

	d.logger.Debug("discovery complete", "prefix", prefix, "ext", ext, "files", len(files))
	return files, nil
}

// Latest implements Discoverer.Latest.
func (d *discoverer) Latest(prefix, ext string) (*File, error) {
	files, err := d.Find(prefix, ext)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s*%s", ErrNoFilesFound, prefix, ext)
	}

	latest := files[0]
	d.logger.Info("using latest file", "path", latest.Path, "modified", latest.ModTime.Format(time.RFC3339))
	return &latest, nil
}

// scanDirectory lists regular files in dir matching prefix and ext.
func (d *discoverer) scanDirectory(dir, prefix, ext string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}

		path := filepath.Join(dir, name)
		info, err := entry.Info()
		if err != nil {
			d.logger.Warn("failed to get file info", "path", path, "error", err)
			continue
		}

		files = append(files, File{
			Path:    path,
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return files, nil
}

// sortNewestFirst orders by modification time, then by name, both descending.
func sortNewestFirst(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name > files[j].Name
	})
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
