// Package cache implements the content-addressed on-disk cache used to
// persist block inputs and receipts between pipeline runs, and to let
// a single-block run serve a previously-fetched block without hitting
// the RPC endpoint again.
//
// Layout, rooted at the configured directory:
//
//	<root>/blocks/<block_number>/block.json
//	<root>/blocks/<block_number>/execution_witness.json
//	<root>/blocks/<block_number>/receipts/<0xtxhash>.json
//
// All writes are whole-file JSON writes; callers never see partially
// written files because Has reports true only once both block.json and
// execution_witness.json exist on disk.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certenio/ethprover/pkg/prover"
)

const (
	blockFileName   = "block.json"
	witnessFileName = "execution_witness.json"
	receiptsDir     = "receipts"
	dirPerm         = 0o755
	filePerm        = 0o644
)

// Store is a filesystem-backed cache of block inputs and receipts.
type Store struct {
	root string
}

// New returns a Store rooted at dir. The directory tree is created
// lazily on first write; New does not touch the filesystem.
func New(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) blockDir(number uint64) string {
	return filepath.Join(s.root, "blocks", fmt.Sprintf("%d", number))
}

// Has reports whether a complete cached entry exists for number. A
// directory with only one of the two required files present (e.g. from
// a crash mid-write) is treated as not cached.
func (s *Store) Has(number uint64) bool {
	dir := s.blockDir(number)
	if _, err := os.Stat(filepath.Join(dir, blockFileName)); err != nil {
		return false
	}
	if _, err := os.Stat(filepath.Join(dir, witnessFileName)); err != nil {
		return false
	}
	return true
}

// Put writes the raw block JSON and execution witness for number,
// pretty-printed, creating parent directories as needed. Put overwrites
// any existing entry for number.
func (s *Store) Put(number uint64, blockJSON json.RawMessage, witness *prover.ExecutionWitness) error {
	dir := s.blockDir(number)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("cache: create block dir: %w", err)
	}

	pretty, err := indentJSON(blockJSON)
	if err != nil {
		return fmt.Errorf("cache: reformat block json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, blockFileName), pretty, filePerm); err != nil {
		return fmt.Errorf("cache: write block json: %w", err)
	}

	witnessBytes, err := json.MarshalIndent(witness, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal execution witness: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, witnessFileName), witnessBytes, filePerm); err != nil {
		return fmt.Errorf("cache: write execution witness: %w", err)
	}

	return nil
}

// Load reads back a previously cached block and witness. ok is false
// if no complete entry exists for number; callers should treat that the
// same as a cache miss, not an error.
func (s *Store) Load(number uint64) (blockJSON json.RawMessage, witness *prover.ExecutionWitness, ok bool, err error) {
	if !s.Has(number) {
		return nil, nil, false, nil
	}
	dir := s.blockDir(number)

	blockJSON, err = os.ReadFile(filepath.Join(dir, blockFileName))
	if err != nil {
		return nil, nil, false, fmt.Errorf("cache: read block json: %w", err)
	}

	witnessBytes, err := os.ReadFile(filepath.Join(dir, witnessFileName))
	if err != nil {
		return nil, nil, false, fmt.Errorf("cache: read execution witness: %w", err)
	}
	witness = &prover.ExecutionWitness{}
	if err := json.Unmarshal(witnessBytes, witness); err != nil {
		return nil, nil, false, fmt.Errorf("cache: unmarshal execution witness: %w", err)
	}

	return blockJSON, witness, true, nil
}

// Remove deletes the cached entry for number, including any cached
// receipts. Removing a nonexistent entry is not an error.
func (s *Store) Remove(number uint64) error {
	if err := os.RemoveAll(s.blockDir(number)); err != nil {
		return fmt.Errorf("cache: remove block %d: %w", number, err)
	}
	return nil
}

// SaveReceipt caches a single transaction receipt under its block.
func (s *Store) SaveReceipt(number uint64, txHash common.Hash, receiptJSON json.RawMessage) error {
	dir := filepath.Join(s.blockDir(number), receiptsDir)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("cache: create receipts dir: %w", err)
	}
	pretty, err := indentJSON(receiptJSON)
	if err != nil {
		return fmt.Errorf("cache: reformat receipt json: %w", err)
	}
	path := filepath.Join(dir, txHash.Hex()+".json")
	if err := os.WriteFile(path, pretty, filePerm); err != nil {
		return fmt.Errorf("cache: write receipt: %w", err)
	}
	return nil
}

// LoadReceipt reads back a cached receipt. ok is false on a cache miss.
func (s *Store) LoadReceipt(number uint64, txHash common.Hash) (receiptJSON json.RawMessage, ok bool, err error) {
	path := filepath.Join(s.blockDir(number), receiptsDir, txHash.Hex()+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: read receipt: %w", err)
	}
	return data, true, nil
}

func indentJSON(raw json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
