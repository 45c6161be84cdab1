// Package storage keeps the optional state around the stateless engine:
// redelivery markers in Redis and failed deliveries in PostgreSQL.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Deduper remembers which inbound events were already handled.
type Deduper interface {
	// Seen marks key as handled and reports whether it was handled before.
	Seen(ctx context.Context, key string) (bool, error)
}

// Failure is an outbound call that could not be delivered.
type Failure struct {
	TaskID     string
	Task       string
	SenderID   string
	Payload    json.RawMessage
	Error      string
	OccurredAt time.Time
}

// FailureLog records deliveries that failed for good.
type FailureLog interface {
	Record(ctx context.Context, f Failure) error
}

// NopDeduper never reports an event as seen.
type NopDeduper struct{}

func (NopDeduper) Seen(context.Context, string) (bool, error) { return false, nil }

// NopFailureLog drops failures; they are still logged by the dispatcher.
type NopFailureLog struct{}

func (NopFailureLog) Record(context.Context, Failure) error { return nil }
