package cache

import (
	"net/http"
	"testing"
)

func TestKey(t *testing.T) {
	got := Key(http.MethodGet, "https://api.example.com/v1/items?page=2")
	want := "GET:https://api.example.com/v1/items?page=2"

	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStreamKeys(t *testing.T) {
	key := Key(http.MethodGet, "https://example.com/feed")

	if got := StreamKey(key); got != key+":stream" {
		t.Errorf("stream key %q", got)
	}

	if got := StreamMetaKey(key); got != key+":stream:meta" {
		t.Errorf("stream meta key %q", got)
	}
}

func TestValue_Clone(t *testing.T) {
	orig := &Value{
		Body:       []byte("payload"),
		Headers:    map[string]string{"Content-Type": "application/json"},
		StatusCode: 201,
	}

	clone := orig.Clone()

	clone.Body[0] = 'X'
	clone.Headers["Content-Type"] = "text/plain"

	if string(orig.Body) != "payload" {
		t.Errorf("clone shares body bytes with the original")
	}

	if orig.Headers["Content-Type"] != "application/json" {
		t.Errorf("clone shares the header map with the original")
	}

	if clone.StatusCode != orig.StatusCode {
		t.Errorf("status code not copied")
	}

	var nilValue *Value
	if nilValue.Clone() != nil {
		t.Errorf("nil clone must stay nil")
	}
}

func TestValue_Size(t *testing.T) {
	v := &Value{Body: []byte("12345")}
	if v.Size() != 5 {
		t.Errorf("got size %d, want 5", v.Size())
	}

	var nilValue *Value
	if nilValue.Size() != 0 {
		t.Errorf("nil value must report zero size")
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Add("Vary", "Accept")
	header.Add("Vary", "Accept-Encoding")

	flat := FlattenHeader(header)

	if flat["Content-Type"] != "application/json" {
		t.Errorf("single value mangled: %q", flat["Content-Type"])
	}

	if flat["Vary"] != "Accept, Accept-Encoding" {
		t.Errorf("multi value not folded: %q", flat["Vary"])
	}

	back := (&Value{Headers: flat}).HTTPHeader()

	if back.Get("Content-Type") != "application/json" {
		t.Errorf("round trip lost content type")
	}

	if back.Get("Vary") != "Accept, Accept-Encoding" {
		t.Errorf("round trip lost folded values")
	}
}
