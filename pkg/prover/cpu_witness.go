package prover

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	zkvm "github.com/ProjectZKM/Ziren/crates/go-runtime/zkvm_runtime"
)

// CPUWitnessGenerator runs the zkVM guest program against an Oracle to
// produce a witness, using an opaque zkvm_runtime execution rather than
// re-implementing the guest's instruction set ourselves.
type CPUWitnessGenerator struct {
	appBinPath string
}

// NewCPUWitnessGenerator returns a generator that runs the guest binary
// at appBinPath.
func NewCPUWitnessGenerator(appBinPath string) *CPUWitnessGenerator {
	return &CPUWitnessGenerator{appBinPath: appBinPath}
}

// GenerateWitness serializes oracle as the guest program's input,
// executes it, and returns the accumulated witness words. An all-zero
// output is treated as a generator failure, matching the guest
// program's own convention for reporting it made no progress.
func (g *CPUWitnessGenerator) GenerateWitness(ctx context.Context, oracle *Oracle) ([]uint32, error) {
	input, err := json.Marshal(oracleWireFormatFrom(oracle))
	if err != nil {
		return nil, fmt.Errorf("prover: encode oracle input: %w", err)
	}

	runtime := zkvm.NewRuntime(g.appBinPath)
	output, err := runtime.Execute(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("prover: execute guest program: %w", err)
	}

	if allZero(output) {
		return nil, fmt.Errorf("prover: guest program produced an all-zero witness")
	}

	return output, nil
}

func allZero(words []uint32) bool {
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if w != 0 {
			return false
		}
	}
	return true
}

// accountPropertiesWire is the JSON shape of a single resolved account,
// keyed by address in oracleWireFormat.AccountIndex.
type accountPropertiesWire struct {
	Nonce    uint64 `json:"nonce"`
	Balance  []byte `json:"balance"`
	CodeHash []byte `json:"code_hash"`
	Root     []byte `json:"root"`
}

// oracleWireFormat is the JSON shape handed to the guest program: the
// target header and transaction stream it must replay, plus the
// preimage table and account index it may consult instead of fetching
// state over any external channel.
type oracleWireFormat struct {
	TargetHeaderRLP []byte                           `json:"target_header"`
	ParentHeaders   [][]byte                         `json:"parent_headers"`
	Transactions    [][]byte                         `json:"transactions"`
	Withdrawals     []byte                           `json:"withdrawals"`
	Preimages       map[string][]byte                `json:"preimages"`
	InitialRoot     []byte                           `json:"initial_root"`
	AccountIndex    map[string]accountPropertiesWire `json:"account_index"`
}

func oracleWireFormatFrom(o *Oracle) oracleWireFormat {
	parents := make([][]byte, 0, len(o.ParentHeaders))
	for _, h := range o.ParentHeaders {
		enc, _ := headerRLP(h)
		parents = append(parents, enc)
	}
	target, _ := headerRLP(o.TargetHeader)

	preimages := make(map[string][]byte, len(o.Preimages))
	for digest, blob := range o.Preimages {
		preimages[digest.Hex()] = blob
	}

	accountIndex := make(map[string]accountPropertiesWire, len(o.AccountIndex))
	for address, props := range o.AccountIndex {
		accountIndex[address.Hex()] = accountPropertiesWire{
			Nonce:    props.Nonce,
			Balance:  props.Balance,
			CodeHash: props.CodeHash,
			Root:     props.Root,
		}
	}

	return oracleWireFormat{
		TargetHeaderRLP: target,
		ParentHeaders:   parents,
		Transactions:    o.Transactions,
		Withdrawals:     o.Withdrawals,
		Preimages:       preimages,
		InitialRoot:     o.InitialRoot.Bytes(),
		AccountIndex:    accountIndex,
	}
}

func headerRLP(h *types.Header) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("prover: nil header")
	}
	return rlp.EncodeToBytes(h)
}
