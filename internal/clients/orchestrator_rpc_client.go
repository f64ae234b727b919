package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Orchestrator node states as reported by getStatus.
const (
	StateLive      = 0
	StateKeyGen    = 1
	StateHalted    = 2
	StateEmergency = 3
	StateReSign    = 4
)

var stateNames = map[int]string{
	StateLive:      "LiveState",
	StateKeyGen:    "KeyGenState",
	StateHalted:    "HaltedState",
	StateEmergency: "EmergencyState",
	StateReSign:    "ReSignState",
}

// Canonical short names for the networks an orchestrator signs for,
// keyed by the name the node reports.
var networkAliases = map[string]string{
	"BNB Chain": "bnb",
	"Ethereum":  "eth",
	"Supernova": "supernova",
}

// CanonicalNetworks lists the short network names every snapshot
// carries, whether or not the node reported them.
func CanonicalNetworks() []string {
	return []string{"bnb", "eth", "supernova"}
}

// ZeroNetworkCounts returns a fresh map with every canonical network
// at zero queue depth.
func ZeroNetworkCounts() map[string]NetworkCounts {
	counts := make(map[string]NetworkCounts, 3)
	for _, name := range CanonicalNetworks() {
		counts[name] = NetworkCounts{}
	}
	return counts
}

// StateName maps a numeric orchestrator state to its name. Unknown
// states are rendered as UnknownState(n).
func StateName(state int) string {
	if name, ok := stateNames[state]; ok {
		return name
	}
	return fmt.Sprintf("UnknownState(%d)", state)
}

// IsOnlineState reports whether a state counts as online. Live and
// key generation both do; halted, emergency and re-sign do not.
func IsOnlineState(state int) bool {
	return state == StateLive || state == StateKeyGen
}

// Identity is the decoded getIdentity response. The node serializes
// the producer address under the bare key "producer".
type Identity struct {
	PillarName      string `json:"pillarName"`
	ProducerAddress string `json:"producer"`

	Raw json.RawMessage `json:"-"`
}

// NetworkCounts holds the signing queue depth for one network.
type NetworkCounts struct {
	WrapsToSign   int `json:"wrapsToSign"`
	UnwrapsToSign int `json:"unwrapsToSign"`
}

// Status is the decoded getStatus response. Networks is keyed by the
// canonical short name (bnb, eth, supernova).
type Status struct {
	State     int
	StateName string
	Online    bool
	Networks  map[string]NetworkCounts

	Raw json.RawMessage
}

// OrchestratorRPCClient queries orchestrator nodes over their JSON-RPC
// port. One client serves the whole fleet; the endpoint is passed per
// call.
type OrchestratorRPCClient struct {
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewOrchestratorRPCClient creates a client with the given per-call timeout.
func NewOrchestratorRPCClient(timeout time.Duration, logger *logrus.Logger) *OrchestratorRPCClient {
	return &OrchestratorRPCClient{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        30,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

func (c *OrchestratorRPCClient) call(ctx context.Context, endpoint, method string) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  []interface{}{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rpc call %s returned status %d: %s", method, resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode rpc response for %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc call %s: %w", method, rpcResp.Error)
	}
	return rpcResp.Result, nil
}

// GetIdentity queries getIdentity on the given endpoint and keeps the
// raw result alongside the decoded fields.
func (c *OrchestratorRPCClient) GetIdentity(ctx context.Context, endpoint string) (*Identity, error) {
	raw, err := c.call(ctx, endpoint, "getIdentity")
	if err != nil {
		return nil, err
	}
	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	identity.Raw = raw
	return &identity, nil
}

// GetStatus queries getStatus on the given endpoint. The result always
// carries every canonical network: reported names are normalized to
// their short aliases, missing ones default to zero counts and names
// outside the mapping are dropped.
func (c *OrchestratorRPCClient) GetStatus(ctx context.Context, endpoint string) (*Status, error) {
	raw, err := c.call(ctx, endpoint, "getStatus")
	if err != nil {
		return nil, err
	}

	var wire struct {
		State    int                      `json:"state"`
		Networks map[string]NetworkCounts `json:"networks"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}

	status := &Status{
		State:     wire.State,
		StateName: StateName(wire.State),
		Online:    IsOnlineState(wire.State),
		Networks:  ZeroNetworkCounts(),
		Raw:       raw,
	}
	for name, counts := range wire.Networks {
		if alias, ok := networkAliases[name]; ok {
			status.Networks[alias] = counts
		}
	}
	return status, nil
}

// Endpoint builds the RPC URL for a node address and port.
func Endpoint(ip string, port int) string {
	return fmt.Sprintf("http://%s:%d", ip, port)
}
