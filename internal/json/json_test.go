package json

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func TestMarshalUnmarshal(t *testing.T) {
	in := sample{Name: "mailtm", Count: 3, Tags: []string{"mail", "temp"}}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out sample
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count || len(out.Tags) != 2 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte(`{"ok":true}`)) {
		t.Error("expected valid JSON")
	}
	if Valid([]byte(`{"ok":`)) {
		t.Error("expected invalid JSON")
	}
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Encode(sample{Name: "a"}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := enc.Encode(sample{Name: "b"}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	dec := NewDecoder(&buf)
	var first, second sample
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if first.Name != "a" || second.Name != "b" {
		t.Errorf("decoded %q then %q", first.Name, second.Name)
	}
}

func TestDecoderDisallowUnknownFields(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"name":"x","bogus":1}`))
	dec.DisallowUnknownFields()
	var out sample
	if err := dec.Decode(&out); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestCompactAndIndent(t *testing.T) {
	src := []byte("{\n  \"a\": 1\n}")
	var compacted []byte
	if err := Compact(&compacted, src); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if string(compacted) != `{"a":1}` {
		t.Errorf("Compact produced %q", compacted)
	}

	var indented []byte
	if err := Indent(&indented, compacted, "", "  "); err != nil {
		t.Fatalf("Indent failed: %v", err)
	}
	if !strings.Contains(string(indented), "\n") {
		t.Errorf("Indent produced %q", indented)
	}
}
