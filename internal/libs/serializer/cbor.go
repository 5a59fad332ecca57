package serializer

import (
	"github.com/hyp3rd/ewrap"
	"github.com/ugorji/go/codec"
)

// cborHandle is shared by all CBOR serializer instances; the handle is
// stateless and safe for concurrent encoders/decoders.
var cborHandle = new(codec.CborHandle)

// CBORSerializer leverages the ugorji codec's CBOR handle to encode payloads
// before storing them in the distributed tier. CBOR keeps binary bodies
// compact compared to base64-in-JSON at the cost of a non-human-readable form.
type CBORSerializer struct{}

// Marshal serializes the given value into a byte slice.
func (*CBORSerializer) Marshal(v any) ([]byte, error) {
	var data []byte

	err := codec.NewEncoderBytes(&data, cborHandle).Encode(v)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to marshal cbor")
	}

	return data, nil
}

// Unmarshal deserializes the given byte slice into the given value.
func (*CBORSerializer) Unmarshal(data []byte, v any) error {
	err := codec.NewDecoderBytes(data, cborHandle).Decode(v)
	if err != nil {
		return ewrap.Wrap(err, "failed to unmarshal cbor")
	}

	return nil
}
