package ethproofs

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
	"testing"
)

func TestEncodeProofRoundTrips(t *testing.T) {
	raw := []byte("a proof payload that should survive gzip and base64 round trip")

	encoded, err := EncodeProof(raw)
	if err != nil {
		t.Fatalf("EncodeProof: %v", err)
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}

	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read gzip: %v", err)
	}

	if !bytes.Equal(got, raw) {
		t.Errorf("round-tripped proof = %q, want %q", got, raw)
	}
}

func TestEncodeProofEmptyInput(t *testing.T) {
	encoded, err := EncodeProof(nil)
	if err != nil {
		t.Fatalf("EncodeProof(nil): %v", err)
	}
	if encoded == "" {
		t.Errorf("EncodeProof(nil) = empty string, want a valid (empty-payload) gzip stream encoded")
	}
}
