package domain

import "encoding/json"

// Commit is the record-level portion of a commit frame from the feed.
type Commit struct {
	Operation  string          `json:"operation"`
	Collection string          `json:"collection,omitempty"`
	RKey       string          `json:"rkey,omitempty"`
	Record     json.RawMessage `json:"record,omitempty"`
}

// RawEvent is one decoded frame from the firehose feed.
type RawEvent struct {
	Kind   string  `json:"kind"`
	DID    string  `json:"did"`
	TimeUS int64   `json:"time_us"`
	Commit *Commit `json:"commit,omitempty"`
}

// EventRecord is the unit that flows through the pipeline. The feed listener
// creates it, the enrichment stage fills in Handle, and the persistence stage
// serializes it into an hourly segment. A record is owned by exactly one
// channel slot at a time.
type EventRecord struct {
	Handle *string         `json:"handle"`
	Record json.RawMessage `json:"record,omitempty"`
	RKey   string          `json:"rkey,omitempty"`
	DID    string          `json:"did,omitempty"`
	TimeUS int64           `json:"time_us"`

	// Raw holds the verbatim frame in archive-all mode. When set, the record
	// bypasses handle resolution and is persisted as-is.
	Raw json.RawMessage `json:"-"`
}
