package blocksource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/certenio/ethprover/pkg/prover"
)

// RPCClient is the narrow slice of Ethereum JSON-RPC methods the block
// source needs: reading chain head and full blocks via the standard
// ethclient, and the two methods ethclient does not expose, reached
// through the raw RPC client.
type RPCClient struct {
	eth *ethclient.Client
	raw *rpc.Client
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*RPCClient, error) {
	raw, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("blocksource: dial %s: %w", url, err)
	}
	return &RPCClient{eth: ethclient.NewClient(raw), raw: raw}, nil
}

// Close releases the underlying connection.
func (c *RPCClient) Close() {
	c.raw.Close()
}

// HeadNumber returns the current chain head block number.
func (c *RPCClient) HeadNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("blocksource: eth_blockNumber: %w", err)
	}
	return n, nil
}

// FetchInput retrieves the block at number together with its execution
// witness and assembles the BlockInput the prover oracle is built from.
func (c *RPCClient) FetchInput(ctx context.Context, number uint64) (*prover.BlockInput, json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.raw.CallContext(ctx, &raw, "eth_getBlockByNumber", toBlockTag(number), true); err != nil {
		return nil, nil, fmt.Errorf("blocksource: eth_getBlockByNumber(%d): %w", number, err)
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("blocksource: eth_getBlockByNumber(%d): block not found", number)
	}

	block, err := decodeBlock(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("blocksource: decode block %d: %w", number, err)
	}

	var witness prover.ExecutionWitness
	if err := c.raw.CallContext(ctx, &witness, "debug_executionWitness", toBlockTag(number)); err != nil {
		return nil, nil, fmt.Errorf("blocksource: debug_executionWitness(%d): %w", number, err)
	}

	input, err := prover.NewBlockInput(block, &witness)
	if err != nil {
		return nil, nil, fmt.Errorf("blocksource: build block input %d: %w", number, err)
	}

	return input, raw, nil
}

// FetchReceipt retrieves a single transaction receipt as raw JSON, for
// caching alongside a block.
func (c *RPCClient) FetchReceipt(ctx context.Context, txHash common.Hash) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.raw.CallContext(ctx, &raw, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, fmt.Errorf("blocksource: eth_getTransactionReceipt(%s): %w", txHash, err)
	}
	return raw, nil
}

func toBlockTag(number uint64) string {
	return fmt.Sprintf("0x%x", number)
}
