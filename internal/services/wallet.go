// internal/services/wallet.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// WalletProvider is the port for the wallet that signs and broadcasts
// the source-chain transaction. The production implementation speaks
// JSON-RPC to a connected wallet bridge; tests substitute fakes.
type WalletProvider interface {
	Accounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (int64, error)
	SwitchChain(ctx context.Context, chainID int64) error
	SendTransaction(ctx context.Context, payload TransactionPayload) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error)
}

type TransactionReceipt struct {
	Hash        string `json:"hash"`
	ChainID     int64  `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	Success     bool   `json:"success"`
}

// JSONRPCWallet talks to a wallet session endpoint (a connected wallet
// relayed over HTTP) using Ethereum provider semantics.
type JSONRPCWallet struct {
	endpoint   string
	httpClient *http.Client
}

const walletRejectedCode = 4001

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func NewJSONRPCWallet(endpoint string) *JSONRPCWallet {
	return &JSONRPCWallet{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // wallet prompts can sit open for a while
		},
	}
}

func (w *JSONRPCWallet) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wallet rpc call failed: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}

	if rpcResp.Error != nil {
		if rpcResp.Error.Code == walletRejectedCode {
			return fmt.Errorf("%w: %s", ErrWalletRejected, rpcResp.Error.Message)
		}
		return fmt.Errorf("wallet rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode rpc result: %w", err)
		}
	}

	return nil
}

func (w *JSONRPCWallet) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := w.call(ctx, "eth_accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (w *JSONRPCWallet) ChainID(ctx context.Context) (int64, error) {
	var hexID string
	if err := w.call(ctx, "eth_chainId", nil, &hexID); err != nil {
		return 0, err
	}
	return parseHexInt(hexID)
}

func (w *JSONRPCWallet) SwitchChain(ctx context.Context, chainID int64) error {
	params := []interface{}{map[string]string{
		"chainId": fmt.Sprintf("0x%x", chainID),
	}}
	return w.call(ctx, "wallet_switchEthereumChain", params, nil)
}

func (w *JSONRPCWallet) SendTransaction(ctx context.Context, payload TransactionPayload) (string, error) {
	tx := map[string]string{
		"to":    payload.To,
		"data":  payload.Data,
		"value": "0x" + payload.ValueWei.BigInt().Text(16),
		"gas":   fmt.Sprintf("0x%x", payload.Gas),
	}

	var txHash string
	if err := w.call(ctx, "eth_sendTransaction", []interface{}{tx}, &txHash); err != nil {
		return "", err
	}
	return txHash, nil
}

func (w *JSONRPCWallet) WaitForReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error) {
	type rawReceipt struct {
		Status      string `json:"status"`
		BlockNumber string `json:"blockNumber"`
	}

	for {
		var receipt *rawReceipt
		if err := w.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &receipt); err != nil {
			return nil, err
		}

		if receipt != nil {
			block, _ := parseHexInt(receipt.BlockNumber)
			chainID, err := w.ChainID(ctx)
			if err != nil {
				return nil, err
			}
			out := &TransactionReceipt{
				Hash:        txHash,
				ChainID:     chainID,
				BlockNumber: uint64(block),
				Success:     receipt.Status == "0x1",
			}
			if !out.Success {
				return out, fmt.Errorf("%w: %s", ErrTransactionReverted, txHash)
			}
			return out, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
}

func parseHexInt(s string) (int64, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	v, err := strconv.ParseInt(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex value %q: %w", s, err)
	}
	return v, nil
}
