// Package audit appends newline-delimited JSON records describing lifecycle
// actions, and reads them back tolerantly.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs"
)

// Record is one audit log line.
type Record struct {
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data"`
}

// Log is the append-only audit collaborator.
type Log struct {
	fs   afs.Service
	path string
}

// NewLog creates an audit log at the given path.
func NewLog(path string) *Log {
	return &Log{fs: afs.New(), path: path}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Record appends one JSON object for the action.
func (l *Log) Record(ctx context.Context, action string, data map[string]any) error {
	record := Record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Action:    action,
		Data:      data,
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}

	var existing []byte
	if ok, _ := l.fs.Exists(ctx, l.path); ok {
		existing, err = l.fs.DownloadWithURL(ctx, l.path)
		if err != nil {
			return fmt.Errorf("failed to read audit log %s: %w", l.path, err)
		}
	}
	var buffer bytes.Buffer
	buffer.Write(existing)
	buffer.Write(line)
	buffer.WriteByte('\n')
	if err := l.fs.Upload(ctx, l.path, 0644, bytes.NewReader(buffer.Bytes())); err != nil {
		return fmt.Errorf("failed to write audit log %s: %w", l.path, err)
	}
	return nil
}

// Read returns the most recent records, skipping malformed lines. A negative
// limit returns everything.
func (l *Log) Read(ctx context.Context, limit int) ([]Record, []string, error) {
	if ok, _ := l.fs.Exists(ctx, l.path); !ok {
		return nil, nil, nil
	}
	data, err := l.fs.DownloadWithURL(ctx, l.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read audit log %s: %w", l.path, err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if limit >= 0 && limit < len(lines) {
		lines = lines[len(lines)-limit:]
	}
	var records []Record
	var warnings []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping malformed audit log line: %s", line))
			continue
		}
		records = append(records, record)
	}
	return records, warnings, nil
}
