package ethproofs

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
)

// EncodeProof gzip-compresses raw at best compression and base64
// (standard alphabet) encodes the result, producing the wire format
// ethproofs.org expects in the proved-proof submission payload.
func EncodeProof(raw []byte) (string, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", fmt.Errorf("ethproofs: create gzip writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return "", fmt.Errorf("ethproofs: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ethproofs: gzip close: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
