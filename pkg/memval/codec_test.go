package memval

import "testing"

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name string
		want Codec
		ok   bool
	}{
		{"", JSON, true},
		{"json", JSON, true},
		{"cbor", CBOR, true},
		{"yaml", nil, false},
	}

	for _, tt := range tests {
		got, ok := CodecByName(tt.name)
		if ok != tt.ok || (ok && got.Name() != tt.want.Name()) {
			t.Errorf("CodecByName(%q) = %v, %v", tt.name, got, ok)
		}
	}
}

func TestSnapshotCodec(t *testing.T) {
	for _, codec := range []Codec{JSON, CBOR} {
		t.Run(codec.Name(), func(t *testing.T) {
			value := map[string]any{"a": []any{1, "two", true}, "b": nil}

			data, err := encodeSnapshot(codec, Some(value))
			if err != nil {
				t.Fatalf("encode error = %v", err)
			}
			snap, err := decodeSnapshot[map[string]any](codec, data)
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if !snap.Present() || !Equal(snap.Value(), value) {
				t.Errorf("expected %v, got %v", value, snap)
			}

			data, err = encodeSnapshot(codec, None[map[string]any]())
			if err != nil {
				t.Fatalf("encode null error = %v", err)
			}
			snap, err = decodeSnapshot[map[string]any](codec, data)
			if err != nil {
				t.Fatalf("decode null error = %v", err)
			}
			if !snap.IsNull() {
				t.Errorf("expected null, got %v", snap.State())
			}
		})
	}
}

func TestDecodeSnapshotEmpty(t *testing.T) {
	snap, err := decodeSnapshot[int](JSON, nil)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !snap.IsNull() {
		t.Errorf("expected empty data to decode as null, got %v", snap.State())
	}
}

func TestDecodeSnapshotInvalid(t *testing.T) {
	if _, err := decodeSnapshot[int](JSON, []byte(`"text"`)); err == nil {
		t.Error("expected type mismatch error")
	}
}
