// Package ethprovertest provides a fake Ethereum JSON-RPC server for
// exercising the block source and pipeline end to end without a real
// node, mirroring the upstream project's own integration test harness.
package ethprovertest

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"

	"github.com/ethereum/go-ethereum/core/types"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FakeNode is a minimal JSON-RPC server that answers eth_blockNumber,
// eth_getBlockByNumber and debug_executionWitness for a single,
// fixed block number, enough to drive a one-block pipeline run in a
// test without a real Ethereum node.
type FakeNode struct {
	Server      *httptest.Server
	BlockNumber uint64

	// Calls counts requests per method, for asserting cache behavior
	// (a cached second run should not increase these).
	Calls map[string]int
}

// NewFakeNode starts a FakeNode serving blockNumber as both the chain
// head and the only block it knows about.
func NewFakeNode(blockNumber uint64) *FakeNode {
	n := &FakeNode{BlockNumber: blockNumber, Calls: map[string]int{}}
	n.Server = httptest.NewServer(http.HandlerFunc(n.handle))
	return n
}

// Close shuts down the underlying httptest.Server.
func (n *FakeNode) Close() { n.Server.Close() }

// URL is the HTTP endpoint to dial as the RPC URL.
func (n *FakeNode) URL() string { return n.Server.URL }

func (n *FakeNode) handle(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.Calls[req.Method]++

	var result any
	var rpcErr *rpcError

	switch req.Method {
	case "eth_blockNumber":
		result = fmt.Sprintf("0x%x", n.BlockNumber)
	case "eth_getBlockByNumber":
		result = n.block()
	case "debug_executionWitness":
		result = map[string]any{
			"headers": []string{},
			"state":   []string{},
			"codes":   []string{},
			"keys":    []string{},
		}
	case "eth_getTransactionReceipt":
		result = map[string]any{"status": "0x1"}
	default:
		rpcErr = &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		raw, err := json.Marshal(result)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Result = raw
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *FakeNode) block() *types.Header {
	return &types.Header{Number: new(big.Int).SetUint64(n.BlockNumber), Difficulty: new(big.Int)}
}
