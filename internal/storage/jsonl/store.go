package jsonl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/firehose-archiver/internal/domain"
)

// Store implements storage.RecordStore on newline-delimited JSON segment
// files, bucketed by the record's event timestamp at hour granularity.
type Store struct {
	dataDir string
	rawDir  string
	log     *zap.Logger
}

// NewStore creates a new JSONL segment store
func NewStore(dataDir, rawDir string, log *zap.Logger) *Store {
	return &Store{
		dataDir: dataDir,
		rawDir:  rawDir,
		log:     log,
	}
}

// SegmentPath returns the segment file for a timestamp in unix microseconds,
// laid out as <root>/<YYYY-MM>/<DD>/<prefix>_<YYYYMMDD>_<HH>.jsonl. All
// records within the same calendar hour map to the same path.
func SegmentPath(root, prefix string, timeUS int64) string {
	t := time.UnixMicro(timeUS)
	dir := filepath.Join(root, t.Format("2006-01"), t.Format("02"))
	name := fmt.Sprintf("%s_%s.jsonl", prefix, t.Format("20060102_15"))
	return filepath.Join(dir, name)
}

// AppendRecords groups records by hour bucket and appends each group to its
// segment, serialized one record per line.
func (s *Store) AppendRecords(ctx context.Context, records []*domain.EventRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	buckets := make(map[string][]*domain.EventRecord)
	var order []string
	for _, record := range records {
		path := SegmentPath(s.dataDir, "posts", record.TimeUS)
		if _, ok := buckets[path]; !ok {
			order = append(order, path)
		}
		buckets[path] = append(buckets[path], record)
	}

	written := 0
	for _, path := range order {
		lines := make([][]byte, 0, len(buckets[path]))
		for _, record := range buckets[path] {
			line, err := json.Marshal(record)
			if err != nil {
				return written, fmt.Errorf("failed to serialize record %s: %w", record.RKey, err)
			}
			lines = append(lines, line)
		}

		if err := appendLines(path, lines); err != nil {
			return written, err
		}
		written += len(lines)

		s.log.Debug("Appended records to segment",
			zap.String("segment", path),
			zap.Int("record_count", len(lines)))
	}

	return written, nil
}

// AppendRaw appends verbatim frames to the raw segment hierarchy.
func (s *Store) AppendRaw(ctx context.Context, records []*domain.EventRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	written := 0
	for _, record := range records {
		path := SegmentPath(s.rawDir, "records", record.TimeUS)
		if err := appendLines(path, [][]byte{record.Raw}); err != nil {
			return written, err
		}
		written++
	}

	return written, nil
}

// appendLines appends newline-terminated lines to path, creating the file
// and any missing parent directories.
func appendLines(path string, lines [][]byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create segment directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open segment %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	for _, line := range lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append to segment %s: %w", path, err)
	}

	return nil
}
