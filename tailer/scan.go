package tailer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// headerMarker starts the column header line in a Core Temp log.
const headerMarker = "Time,"

const maxLineSize = 1024 * 1024

// Snapshot is the result of scanning one log file.
type Snapshot struct {
	Header    string
	Record    string
	Timestamp time.Time
}

// Complete reports whether both a header and a record were found.
func (s Snapshot) Complete() bool {
	return strings.TrimSpace(s.Header) != "" && strings.TrimSpace(s.Record) != ""
}

// scanState folds lines into a Snapshot. found is false until the first
// timestamped line is seen.
type scanState struct {
	snapshot Snapshot
	found    bool
	layout   string
	location *time.Location
}

func (s scanState) step(line string) scanState {
	if strings.TrimSpace(line) == "" {
		return s
	}
	first, _, _ := strings.Cut(line, ",")
	if ts, err := time.ParseInLocation(s.layout, first, s.location); err == nil {
		// Equal timestamps keep the earlier record.
		if !s.found || ts.After(s.snapshot.Timestamp) {
			s.snapshot.Record = line
			s.snapshot.Timestamp = ts
			s.found = true
		}
	}
	if strings.HasPrefix(line, headerMarker) {
		s.snapshot.Header = line
	}
	return s
}

// ScanLines folds already split lines. layout is a Go time layout.
func ScanLines(lines []string, layout string, loc *time.Location) Snapshot {
	state := scanState{layout: layout, location: loc}
	for _, line := range lines {
		state = state.step(line)
	}
	return state.snapshot
}

// ScanReader reads r line by line and returns the last header line and the
// record with the greatest timestamp.
func ScanReader(r io.Reader, layout string, loc *time.Location) (Snapshot, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	state := scanState{layout: layout, location: loc}
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		state = state.step(line)
	}
	if err := scanner.Err(); err != nil {
		return state.snapshot, err
	}
	return state.snapshot, nil
}

// ScanLog scans the log file at path. The file is opened read-only so Core
// Temp can keep appending to it.
func ScanLog(path, layout string, loc *time.Location) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	snapshot, err := ScanReader(f, layout, loc)
	if err != nil {
		return snapshot, fmt.Errorf("read log %s: %w", path, err)
	}
	return snapshot, nil
}
