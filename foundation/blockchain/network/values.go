package network

import (
	"context"
	"time"
)

type ctxKey int

const key ctxKey = 1

// Values represent state for each inbound connection.
type Values struct {
	TraceID string
	Remote  string
	Now     time.Time
}

// GetValues returns the values from the context. A context that did not
// come from the server gets zero values with the current time.
func GetValues(ctx context.Context) *Values {
	v, ok := ctx.Value(key).(*Values)
	if !ok {
		return &Values{
			TraceID: "00000000-0000-0000-0000-000000000000",
			Now:     time.Now(),
		}
	}

	return v
}

// GetTraceID returns the trace id from the context.
func GetTraceID(ctx context.Context) string {
	return GetValues(ctx).TraceID
}
