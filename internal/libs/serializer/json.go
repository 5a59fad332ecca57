// Package serializer provides serialization interfaces and implementations for
// converting cache payloads to and from byte slices. The wire forms stored in
// the distributed tier (buffered responses and stream metadata) pass through
// an ISerializer so the encoding is swappable per deployment.
//
// The package includes a default JSON serializer implementation that uses the
// goccy/go-json library for efficient JSON marshaling and unmarshaling. JSON
// is the documented wire format; the alternates are for homogeneous fleets
// that read and write with the same serializer.
package serializer

import (
	"github.com/goccy/go-json"

	"github.com/hyp3rd/ewrap"
)

// DefaultJSONSerializer leverages `json` to encode payloads before storing them in the distributed tier.
type DefaultJSONSerializer struct{}

// Marshal serializes the given value into a byte slice.
func (*DefaultJSONSerializer) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to marshal json")
	}

	return data, nil
}

// Unmarshal deserializes the given byte slice into the given value.
func (*DefaultJSONSerializer) Unmarshal(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err != nil {
		return ewrap.Wrap(err, "failed to unmarshal json")
	}

	return nil
}
