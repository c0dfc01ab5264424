package prover

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func mustSignedLegacyTx(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, value int64) []byte {
	t.Helper()
	to := common.HexToAddress("0x00000000000000000000000000000000000bbb")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(value),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})

	signed, err := types.SignTx(tx, types.HomesteadSigner{}, key)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal tx: %v", err)
	}
	return raw
}

func TestForwardRunAcceptsValidSequentialTransactions(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)

	oracle := &Oracle{
		Transactions: [][]byte{
			mustSignedLegacyTx(t, key, 0, 100),
			mustSignedLegacyTx(t, key, 1, 100),
		},
		AccountIndex: map[common.Address]AccountProperties{
			sender: {Nonce: 0, Balance: big.NewInt(1_000_000).Bytes()},
		},
	}

	if err := ForwardRun(oracle); err != nil {
		t.Fatalf("ForwardRun: %v", err)
	}
}

func TestForwardRunRejectsNonceMismatch(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)

	oracle := &Oracle{
		// account is at nonce 0, but the transaction carries nonce 5.
		Transactions: [][]byte{mustSignedLegacyTx(t, key, 5, 100)},
		AccountIndex: map[common.Address]AccountProperties{
			sender: {Nonce: 0, Balance: big.NewInt(1_000_000).Bytes()},
		},
	}

	if err := ForwardRun(oracle); err == nil {
		t.Fatal("ForwardRun with mismatched nonce = nil error, want failure")
	}
}

func TestForwardRunRejectsInsufficientBalance(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)

	oracle := &Oracle{
		Transactions: [][]byte{mustSignedLegacyTx(t, key, 0, 1_000_000)},
		AccountIndex: map[common.Address]AccountProperties{
			sender: {Nonce: 0, Balance: big.NewInt(100).Bytes()},
		},
	}

	if err := ForwardRun(oracle); err == nil {
		t.Fatal("ForwardRun with insufficient balance = nil error, want failure")
	}
}

func TestReplayRecordsEveryTransactionWithoutStoppingAtTheFirstFailure(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)

	oracle := &Oracle{
		Transactions: [][]byte{
			mustSignedLegacyTx(t, key, 5, 100), // wrong nonce: invalid
			mustSignedLegacyTx(t, key, 6, 100), // nonce follows tx[0] regardless of its validity
		},
		AccountIndex: map[common.Address]AccountProperties{
			sender: {Nonce: 0, Balance: big.NewInt(1_000_000).Bytes()},
		},
	}

	results, err := Replay(oracle)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Valid {
		t.Error("results[0].Valid = true, want false (wrong nonce)")
	}
}
