package prover

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// AccountProperties is the subset of account state the oracle looks up
// from the initial trie for a single witness key.
type AccountProperties struct {
	Nonce    uint64
	Balance  []byte
	CodeHash []byte
	Root     []byte
}

// Oracle is the fully assembled non-deterministic input a proving
// backend reads from while re-executing a block: the ancestor header
// chain, the transaction stream, a preimage table keyed by Keccak256
// digest, and an index of account properties resolved from the witness
// keys against the initial state root.
type Oracle struct {
	TargetHeader  *types.Header
	ParentHeaders []*types.Header
	Transactions  [][]byte
	Withdrawals   []byte
	Preimages     map[common.Hash][]byte
	InitialRoot   common.Hash
	AccountIndex  map[common.Address]AccountProperties
}

// BuildOracle assembles an Oracle from a BlockInput, following five
// steps: decode and validate the ancestor header chain, establish the
// initial state root, build a preimage table from the witness's trie
// nodes and contract code, walk the initial trie for every witness key
// to build an account index, and bundle the result together with the
// block's transactions and withdrawals.
//
// Any failure to decode the witness or headers, or a header chain that
// is empty or not strictly ascending by number, is reported as an
// invalid-witness error: none of these are retryable by re-running the
// same input.
func BuildOracle(input *BlockInput) (*Oracle, error) {
	if input == nil || input.ExecutionWitness == nil {
		return nil, fmt.Errorf("prover: nil block input or execution witness")
	}
	witness := input.ExecutionWitness

	headers, err := decodeAscendingHeaders(witness.Headers)
	if err != nil {
		return nil, fmt.Errorf("prover: decode ancestor headers: %w", err)
	}

	// headers is ascending by number; reverse so index 0 is the most
	// recent ancestor, matching the order the trie walk and the oracle
	// consumers expect.
	reverseHeaders(headers)
	initialRoot := headers[0].Root

	preimages := buildPreimageTable(witness.State, witness.Codes)

	accountIndex, err := buildAccountIndex(initialRoot, preimages, witness.Keys)
	if err != nil {
		return nil, fmt.Errorf("prover: build account index: %w", err)
	}

	return &Oracle{
		TargetHeader:  input.BlockHeader,
		ParentHeaders: headers,
		Transactions:  input.Transactions,
		Withdrawals:   input.WithdrawalsRLP,
		Preimages:     preimages,
		InitialRoot:   initialRoot,
		AccountIndex:  accountIndex,
	}, nil
}

func decodeAscendingHeaders(encoded []hexutil.Bytes) ([]*types.Header, error) {
	if len(encoded) == 0 {
		return nil, fmt.Errorf("witness contains no ancestor headers")
	}

	headers := make([]*types.Header, 0, len(encoded))
	for i, raw := range encoded {
		var h types.Header
		if err := rlp.DecodeBytes(raw, &h); err != nil {
			return nil, fmt.Errorf("decode header %d: %w", i, err)
		}
		headers = append(headers, &h)
	}

	for i := 1; i < len(headers); i++ {
		if headers[i-1].Number.Cmp(headers[i].Number) >= 0 {
			return nil, fmt.Errorf("ancestor headers are not strictly ascending by number")
		}
	}

	return headers, nil
}

func reverseHeaders(h []*types.Header) {
	for i, j := 0, len(h)-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
}

func buildPreimageTable(state, codes []hexutil.Bytes) map[common.Hash][]byte {
	preimages := make(map[common.Hash][]byte, len(state)+len(codes))
	for _, blob := range state {
		preimages[crypto.Keccak256Hash(blob)] = blob
	}
	for _, blob := range codes {
		preimages[crypto.Keccak256Hash(blob)] = blob
	}
	return preimages
}

// buildAccountIndex walks the Merkle Patricia Trie rooted at
// initialRoot, resolving every node by Keccak256 digest against the
// supplied preimage table, looking up each 20-byte witness key's
// account properties. The trie itself is keyed by the Keccak256 digest
// of the address (as Ethereum state tries always are), but the
// returned index is keyed by the raw address, matching how a proving
// backend looks an account up by the address it already has in hand. A
// key that cannot be resolved (missing node, no such account) is
// skipped rather than treated as an error: the witness is permitted to
// over-approximate the set of keys a block might touch.
func buildAccountIndex(initialRoot common.Hash, preimages map[common.Hash][]byte, keys []hexutil.Bytes) (map[common.Address]AccountProperties, error) {
	rootNode, ok := preimages[initialRoot]
	if !ok {
		return nil, fmt.Errorf("initial state root %s has no matching preimage", initialRoot)
	}

	index := make(map[common.Address]AccountProperties, len(keys))
	for _, key := range keys {
		if len(key) != common.AddressLength {
			continue
		}
		address := common.BytesToAddress(key)
		hashedKey := crypto.Keccak256Hash(key)

		raw, ok := walkTrieNode(rootNode, keyToNibbles(hashedKey.Bytes()), preimages)
		if !ok || len(raw) == 0 {
			continue
		}

		var account types.StateAccount
		if err := rlp.DecodeBytes(raw, &account); err != nil {
			continue
		}

		index[address] = AccountProperties{
			Nonce:    account.Nonce,
			Balance:  account.Balance.Bytes(),
			CodeHash: append([]byte(nil), account.CodeHash...),
			Root:     append([]byte(nil), account.Root.Bytes()...),
		}
	}

	return index, nil
}

// walkTrieNode resolves a single MPT lookup of nibbles against nodeRLP,
// descending into child nodes (by hash reference through preimages, or
// inline when a child is embedded because its encoding is under 32
// bytes) until the matching leaf value or a dead end is found.
func walkTrieNode(nodeRLP []byte, nibbles []byte, preimages map[common.Hash][]byte) ([]byte, bool) {
	var items []rlp.RawValue
	if err := rlp.DecodeBytes(nodeRLP, &items); err != nil {
		return nil, false
	}

	switch len(items) {
	case 17: // branch node: 16 children plus a value slot
		if len(nibbles) == 0 {
			return decodeRLPString(items[16])
		}
		return descend(items[nibbles[0]], nibbles[1:], preimages)

	case 2: // leaf or extension node
		pathRaw, ok := decodeRLPString(items[0])
		if !ok {
			return nil, false
		}
		path, isLeaf := decodeHexPrefix(pathRaw)
		if len(nibbles) < len(path) {
			return nil, false
		}
		for i := range path {
			if path[i] != nibbles[i] {
				return nil, false
			}
		}
		rest := nibbles[len(path):]
		if isLeaf {
			if len(rest) != 0 {
				return nil, false
			}
			return decodeRLPString(items[1])
		}
		return descend(items[1], rest, preimages)

	default:
		return nil, false
	}
}

func descend(child rlp.RawValue, nibbles []byte, preimages map[common.Hash][]byte) ([]byte, bool) {
	if val, isString := decodeRLPString(child); isString {
		if len(val) == 0 {
			return nil, false
		}
		if len(val) != common.HashLength {
			return nil, false
		}
		nodeRLP, ok := preimages[common.BytesToHash(val)]
		if !ok {
			return nil, false
		}
		return walkTrieNode(nodeRLP, nibbles, preimages)
	}
	// child is encoded inline (its RLP representation is under 32
	// bytes), so it's already the node to descend into.
	return walkTrieNode(child, nibbles, preimages)
}

func decodeRLPString(item rlp.RawValue) ([]byte, bool) {
	var s []byte
	if err := rlp.DecodeBytes(item, &s); err != nil {
		return nil, false
	}
	return s, true
}

// decodeHexPrefix decodes the compact hex-prefix encoding MPT leaf and
// extension nodes use for their path segment.
func decodeHexPrefix(compact []byte) (nibbles []byte, isLeaf bool) {
	if len(compact) == 0 {
		return nil, false
	}
	first := compact[0]
	isLeaf = first&0x20 != 0
	oddLen := first&0x10 != 0

	nibbles = make([]byte, 0, len(compact)*2)
	if oddLen {
		nibbles = append(nibbles, first&0x0f)
	}
	for _, b := range compact[1:] {
		nibbles = append(nibbles, b>>4, b&0x0f)
	}
	return nibbles, isLeaf
}

func keyToNibbles(key []byte) []byte {
	nibbles := make([]byte, len(key)*2)
	for i, b := range key {
		nibbles[i*2] = b >> 4
		nibbles[i*2+1] = b & 0x0f
	}
	return nibbles
}
