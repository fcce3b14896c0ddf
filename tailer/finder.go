package tailer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/djherbis/times"
)

var (
	// ErrLogDirectoryMissing means the configured log directory does not exist.
	// It is a configuration error and stops the tailer.
	ErrLogDirectoryMissing = errors.New("log directory does not exist")

	// ErrNoData marks cycles which found nothing to export.
	ErrNoData = errors.New("no data")
	// ErrNoLogFiles is returned when no file in the directory matches the pattern.
	ErrNoLogFiles = fmt.Errorf("%w: no log files match the pattern", ErrNoData)
	// ErrIncompleteLog is returned when the newest log lacks a header or a record.
	ErrIncompleteLog = fmt.Errorf("%w: log has no header or no timestamped record", ErrNoData)
)

// LogFile is a candidate Core Temp log.
type LogFile struct {
	Path    string
	Created time.Time
}

// creationTimeFunc reports when a file was created.
type creationTimeFunc func(path string, info fs.FileInfo) time.Time

// creationTime uses the birth time when the platform records one, then the
// status change time, then the modification time.
func creationTime(path string, info fs.FileInfo) time.Time {
	ts, err := times.Stat(path)
	if err != nil {
		return info.ModTime()
	}
	if ts.HasBirthTime() {
		return ts.BirthTime()
	}
	if ts.HasChangeTime() {
		return ts.ChangeTime()
	}
	return ts.ModTime()
}

// FindLatestLog returns the most recently created file in dir matching pattern.
func FindLatestLog(dir, pattern string) (LogFile, error) {
	return findLatestLog(dir, pattern, creationTime)
}

func findLatestLog(dir, pattern string, created creationTimeFunc) (LogFile, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return LogFile{}, fmt.Errorf("%w: %s", ErrLogDirectoryMissing, dir)
	}
	if err != nil {
		return LogFile{}, fmt.Errorf("stat log directory %s: %w", dir, err)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return LogFile{}, fmt.Errorf("match %q in %s: %w", pattern, dir, err)
	}

	var (
		latest LogFile
		found  bool
	)
	for _, match := range matches {
		path := filepath.Join(dir, filepath.FromSlash(match))
		fileInfo, err := os.Stat(path)
		if err != nil {
			// Removed between listing and stat.
			continue
		}
		ts := created(path, fileInfo)
		// Ties keep the first file listed.
		if !found || ts.After(latest.Created) {
			latest = LogFile{Path: path, Created: ts}
			found = true
		}
	}
	if !found {
		return LogFile{}, fmt.Errorf("%w (%q in %s)", ErrNoLogFiles, pattern, dir)
	}
	return latest, nil
}
