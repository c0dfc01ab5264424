package prover

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

func TestBuildOracleReversesHeadersAndUsesFirstAsInitialRoot(t *testing.T) {
	h1 := &types.Header{Number: big.NewInt(10), Root: common.HexToHash("0x01")}
	h2 := &types.Header{Number: big.NewInt(11), Root: common.HexToHash("0x02")}

	enc1, err := rlp.EncodeToBytes(h1)
	if err != nil {
		t.Fatalf("encode h1: %v", err)
	}
	enc2, err := rlp.EncodeToBytes(h2)
	if err != nil {
		t.Fatalf("encode h2: %v", err)
	}

	input := &BlockInput{
		BlockHeader: &types.Header{Number: big.NewInt(12)},
		ExecutionWitness: &ExecutionWitness{
			Headers: []hexutil.Bytes{enc1, enc2},
		},
	}

	oracle, err := BuildOracle(input)
	if err != nil {
		t.Fatalf("BuildOracle: %v", err)
	}

	if len(oracle.ParentHeaders) != 2 {
		t.Fatalf("len(ParentHeaders) = %d, want 2", len(oracle.ParentHeaders))
	}
	// Reversed: most recent ancestor (number 11) comes first.
	if oracle.ParentHeaders[0].Number.Uint64() != 11 {
		t.Errorf("ParentHeaders[0].Number = %d, want 11", oracle.ParentHeaders[0].Number.Uint64())
	}
	if oracle.InitialRoot != h2.Root {
		t.Errorf("InitialRoot = %s, want %s", oracle.InitialRoot, h2.Root)
	}
}

func TestBuildOracleRejectsEmptyHeaders(t *testing.T) {
	input := &BlockInput{
		BlockHeader:      &types.Header{Number: big.NewInt(1)},
		ExecutionWitness: &ExecutionWitness{},
	}
	if _, err := BuildOracle(input); err == nil {
		t.Fatal("BuildOracle with no headers = nil error, want failure")
	}
}

func TestBuildOracleRejectsNonAscendingHeaders(t *testing.T) {
	h1 := &types.Header{Number: big.NewInt(10)}
	h2 := &types.Header{Number: big.NewInt(10)} // not strictly ascending
	enc1, _ := rlp.EncodeToBytes(h1)
	enc2, _ := rlp.EncodeToBytes(h2)

	input := &BlockInput{
		BlockHeader:      &types.Header{Number: big.NewInt(11)},
		ExecutionWitness: &ExecutionWitness{Headers: []hexutil.Bytes{enc1, enc2}},
	}
	if _, err := BuildOracle(input); err == nil {
		t.Fatal("BuildOracle with non-ascending headers = nil error, want failure")
	}
}

func TestBuildAccountIndexResolvesSingleLeafTrie(t *testing.T) {
	address := common.HexToAddress("0x000000000000000000000000000000000000aa")
	hashedKey := crypto.Keccak256Hash(address.Bytes())

	account := types.StateAccount{
		Nonce:    5,
		Balance:  uint256.NewInt(100),
		Root:     common.Hash{},
		CodeHash: crypto.Keccak256(nil),
	}
	accountRLP, err := rlp.EncodeToBytes(&account)
	if err != nil {
		t.Fatalf("encode account: %v", err)
	}

	// A trie holding exactly one account has a single leaf node at its
	// root, whose hex-prefix-encoded path is the full 32-byte hashed
	// key (even nibble count, leaf flag 0x20, no odd-length nibble).
	leafPath := append([]byte{0x20}, hashedKey.Bytes()...)
	leafNode := []interface{}{leafPath, accountRLP}
	leafNodeRLP, err := rlp.EncodeToBytes(leafNode)
	if err != nil {
		t.Fatalf("encode leaf node: %v", err)
	}

	root := crypto.Keccak256Hash(leafNodeRLP)
	preimages := map[common.Hash][]byte{root: leafNodeRLP}

	index, err := buildAccountIndex(root, preimages, []hexutil.Bytes{address.Bytes()})
	if err != nil {
		t.Fatalf("buildAccountIndex: %v", err)
	}

	got, ok := index[address]
	if !ok {
		t.Fatalf("index missing entry for address %s", address)
	}
	if got.Nonce != 5 {
		t.Errorf("Nonce = %d, want 5", got.Nonce)
	}
}

func TestBuildAccountIndexSkipsUnresolvableKeys(t *testing.T) {
	root := common.HexToHash("0xdeadbeef")
	preimages := map[common.Hash][]byte{} // root has no matching preimage

	_, err := buildAccountIndex(root, preimages, []hexutil.Bytes{make([]byte, common.AddressLength)})
	if err == nil {
		t.Fatal("buildAccountIndex with missing root preimage = nil error, want failure")
	}
}
