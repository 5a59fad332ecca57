package serializer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/hyp3rd/hyperfetch/internal/sentinel"
)

type wirePayload struct {
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
	Status  int               `json:"status"`
}

func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		serializerType string
		wantErr        error
	}{
		{
			name:           "default serializer",
			serializerType: DefaultSerializerName,
			wantErr:        nil,
		},
		{
			name:           "msgpack serializer",
			serializerType: "msgpack",
			wantErr:        nil,
		},
		{
			name:           "cbor serializer",
			serializerType: "cbor",
			wantErr:        nil,
		},
		{
			name:           "empty name",
			serializerType: "",
			wantErr:        sentinel.ErrParamCannotBeEmpty,
		},
		{
			name:           "unknown name",
			serializerType: "protobuf",
			wantErr:        sentinel.ErrSerializerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ser, err := New(tt.serializerType)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}

			if tt.wantErr == nil && ser == nil {
				t.Fatal("expected a serializer instance")
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	payload := wirePayload{
		Body:    "response body",
		Headers: map[string]string{"Content-Type": "text/plain"},
		Status:  200,
	}

	for _, name := range []string{DefaultSerializerName, "msgpack", "cbor"} {
		t.Run(name, func(t *testing.T) {
			ser, err := New(name)
			if err != nil {
				t.Fatalf("New(%q) failed: %v", name, err)
			}

			data, err := ser.Marshal(payload)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			var decoded wirePayload

			err = ser.Unmarshal(data, &decoded)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}

			if !reflect.DeepEqual(payload, decoded) {
				t.Errorf("round trip mismatch: %+v != %+v", decoded, payload)
			}
		})
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	ser, err := New(DefaultSerializerName)
	if err != nil {
		t.Fatal(err)
	}

	var decoded wirePayload

	err = ser.Unmarshal([]byte("{ not json"), &decoded)
	if err == nil {
		t.Fatal("expected an error for malformed input")
	}
}

func TestRegistryCustomSerializer(t *testing.T) {
	registry := NewEmptySerializerRegistry()

	_, err := registry.New("custom")
	if !errors.Is(err, sentinel.ErrSerializerNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}

	registry.Register("custom", func() ISerializer {
		return &DefaultJSONSerializer{}
	})

	ser, err := registry.New("custom")
	if err != nil {
		t.Fatalf("New after Register failed: %v", err)
	}

	if ser == nil {
		t.Fatal("expected a serializer instance")
	}
}
