package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/models"
)

const (
	methodGetAllWraps   = "embedded.bridge.getAllWrapTokenRequests"
	methodGetAllUnwraps = "embedded.bridge.getAllUnwrapTokenRequests"
)

// WrapPage is one page of wrap token requests from the node.
type WrapPage struct {
	Count int64
	List  []models.WrapTokenRequest
}

// UnwrapPage is one page of unwrap token requests from the node.
type UnwrapPage struct {
	Count int64
	List  []models.UnwrapTokenRequest
}

// BridgeRPCClient talks JSON-RPC 2.0 to a Zenon node's embedded bridge
// contract. Calls are not retried; callers decide what a failed page
// means for the pass they are running.
type BridgeRPCClient struct {
	url        string
	httpClient *http.Client
	logger     *logrus.Logger
	nextID     atomic.Uint64
}

// NewBridgeRPCClient creates a client for the given node RPC endpoint.
func NewBridgeRPCClient(url string, timeout time.Duration, logger *logrus.Logger) *BridgeRPCClient {
	return &BridgeRPCClient{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call performs one JSON-RPC request and decodes the result field into out.
func (c *BridgeRPCClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rpc call %s returned status %d: %s", method, resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode rpc response for %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc call %s: %w", method, rpcResp.Error)
	}
	if out != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode result for %s: %w", method, err)
		}
	}
	return nil
}

// Wire shapes as the node serializes them. Amounts arrive as decimal
// strings via json.Number and pass through untouched; redeemed and
// revoked arrive as 0/1 integers.

type tokenInfo struct {
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type wrapEntry struct {
	ID                      string      `json:"id"`
	NetworkClass            int         `json:"networkClass"`
	ChainID                 int         `json:"chainId"`
	ToAddress               string      `json:"toAddress"`
	TokenStandard           string      `json:"tokenStandard"`
	TokenAddress            string      `json:"tokenAddress"`
	Amount                  json.Number `json:"amount"`
	Fee                     json.Number `json:"fee"`
	Signature               string      `json:"signature"`
	CreationMomentumHeight  uint64      `json:"creationMomentumHeight"`
	ConfirmationsToFinality int64       `json:"confirmationsToFinality"`
	Token                   *tokenInfo  `json:"token"`
}

type unwrapEntry struct {
	TransactionHash            string      `json:"transactionHash"`
	LogIndex                   uint32      `json:"logIndex"`
	RegistrationMomentumHeight uint64      `json:"registrationMomentumHeight"`
	NetworkClass               int         `json:"networkClass"`
	ChainID                    int         `json:"chainId"`
	ToAddress                  string      `json:"toAddress"`
	TokenAddress               string      `json:"tokenAddress"`
	TokenStandard              string      `json:"tokenStandard"`
	Amount                     json.Number `json:"amount"`
	Signature                  string      `json:"signature"`
	Redeemed                   int         `json:"redeemed"`
	Revoked                    int         `json:"revoked"`
	RedeemableIn               int64       `json:"redeemableIn"`
	Token                      *tokenInfo  `json:"token"`
}

type pagedResult struct {
	Count int64           `json:"count"`
	List  json.RawMessage `json:"list"`
}

// GetWrapRequests fetches one page of wrap token requests. The node
// lists most recent first.
func (c *BridgeRPCClient) GetWrapRequests(ctx context.Context, pageIndex, pageSize uint32) (*WrapPage, error) {
	var result pagedResult
	if err := c.call(ctx, methodGetAllWraps, []interface{}{pageIndex, pageSize}, &result); err != nil {
		return nil, err
	}

	var entries []wrapEntry
	if result.List != nil {
		if err := json.Unmarshal(result.List, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode wrap list: %w", err)
		}
	}

	page := &WrapPage{Count: result.Count, List: make([]models.WrapTokenRequest, 0, len(entries))}
	for _, e := range entries {
		page.List = append(page.List, e.toModel())
	}
	return page, nil
}

// GetUnwrapRequests fetches one page of unwrap token requests. The node
// lists most recent first.
func (c *BridgeRPCClient) GetUnwrapRequests(ctx context.Context, pageIndex, pageSize uint32) (*UnwrapPage, error) {
	var result pagedResult
	if err := c.call(ctx, methodGetAllUnwraps, []interface{}{pageIndex, pageSize}, &result); err != nil {
		return nil, err
	}

	var entries []unwrapEntry
	if result.List != nil {
		if err := json.Unmarshal(result.List, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode unwrap list: %w", err)
		}
	}

	page := &UnwrapPage{Count: result.Count, List: make([]models.UnwrapTokenRequest, 0, len(entries))}
	for _, e := range entries {
		page.List = append(page.List, e.toModel())
	}
	return page, nil
}

// WrapCount returns the total number of wrap requests on the node. It
// fetches a single-entry page and reads the count field.
func (c *BridgeRPCClient) WrapCount(ctx context.Context) (int64, error) {
	page, err := c.GetWrapRequests(ctx, 0, 1)
	if err != nil {
		return 0, err
	}
	return page.Count, nil
}

// UnwrapCount returns the total number of unwrap requests on the node.
func (c *BridgeRPCClient) UnwrapCount(ctx context.Context) (int64, error) {
	page, err := c.GetUnwrapRequests(ctx, 0, 1)
	if err != nil {
		return 0, err
	}
	return page.Count, nil
}

func (e *wrapEntry) toModel() models.WrapTokenRequest {
	m := models.WrapTokenRequest{
		RequestID:               e.ID,
		NetworkClass:            e.NetworkClass,
		ChainID:                 e.ChainID,
		ToAddress:               e.ToAddress,
		TokenStandard:           e.TokenStandard,
		TokenAddress:            e.TokenAddress,
		Amount:                  e.Amount.String(),
		Fee:                     e.Fee.String(),
		Signature:               e.Signature,
		CreationMomentumHeight:  e.CreationMomentumHeight,
		ConfirmationsToFinality: e.ConfirmationsToFinality,
	}
	if e.Token != nil {
		m.TokenSymbol = e.Token.Symbol
		m.TokenDecimals = e.Token.Decimals
	}
	return m
}

func (e *unwrapEntry) toModel() models.UnwrapTokenRequest {
	m := models.UnwrapTokenRequest{
		TransactionHash:            e.TransactionHash,
		LogIndex:                   e.LogIndex,
		RegistrationMomentumHeight: e.RegistrationMomentumHeight,
		NetworkClass:               e.NetworkClass,
		ChainID:                    e.ChainID,
		ToAddress:                  e.ToAddress,
		TokenAddress:               e.TokenAddress,
		TokenStandard:              e.TokenStandard,
		Amount:                     e.Amount.String(),
		Signature:                  e.Signature,
		Redeemed:                   e.Redeemed == 1,
		Revoked:                    e.Revoked == 1,
		RedeemableIn:               e.RedeemableIn,
	}
	if e.Token != nil {
		m.TokenSymbol = e.Token.Symbol
		m.TokenDecimals = e.Token.Decimals
	}
	return m
}
