package storage

import (
	"context"

	"github.com/BarkinBalci/firehose-archiver/internal/domain"
)

// RecordStore defines the interface for the durable append-only sink
type RecordStore interface {
	// AppendRecords appends classified records to their hourly segments,
	// returning how many were written.
	AppendRecords(ctx context.Context, records []*domain.EventRecord) (int, error)

	// AppendRaw appends verbatim frames to the raw segment hierarchy,
	// returning how many were written.
	AppendRaw(ctx context.Context, records []*domain.EventRecord) (int, error)
}
