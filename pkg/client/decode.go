package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// Decode unmarshals a JSON payload into T.
func Decode[T any](payload []byte) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		var zero T
		return zero, &DecodeError{Target: fmt.Sprintf("%T", v), Err: err}
	}
	return v, nil
}

type markerKey struct{}

// WithMarker attaches a correlation marker to ctx. Every call made with the
// returned context logs it.
func WithMarker(ctx context.Context, marker string) context.Context {
	return context.WithValue(ctx, markerKey{}, marker)
}

// MarkerFrom returns the marker attached to ctx, or "".
func MarkerFrom(ctx context.Context) string {
	if m, ok := ctx.Value(markerKey{}).(string); ok {
		return m
	}
	return ""
}
