package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateName(t *testing.T) {
	assert.Equal(t, "LiveState", StateName(0))
	assert.Equal(t, "KeyGenState", StateName(1))
	assert.Equal(t, "HaltedState", StateName(2))
	assert.Equal(t, "EmergencyState", StateName(3))
	assert.Equal(t, "ReSignState", StateName(4))
	assert.Equal(t, "UnknownState(9)", StateName(9))
}

func TestIsOnlineState(t *testing.T) {
	assert.True(t, IsOnlineState(StateLive))
	assert.True(t, IsOnlineState(StateKeyGen))
	assert.False(t, IsOnlineState(StateHalted))
	assert.False(t, IsOnlineState(StateEmergency))
	assert.False(t, IsOnlineState(StateReSign))
}

func TestGetIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getIdentity", req["method"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"pillarName":"SultanOfStaking","producer":"z1qzal6c5s9rjnnxd2z7dvdhjxpmmj4fmw56a0mz"}}`))
	}))
	defer server.Close()

	client := NewOrchestratorRPCClient(5*time.Second, newTestLogger())
	identity, err := client.GetIdentity(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "SultanOfStaking", identity.PillarName)
	assert.Equal(t, "z1qzal6c5s9rjnnxd2z7dvdhjxpmmj4fmw56a0mz", identity.ProducerAddress)
	assert.NotEmpty(t, identity.Raw)
}

func TestGetStatusNormalizesNetworks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"jsonrpc": "2.0", "id": 1,
			"result": {
				"state": 0,
				"networks": {
					"BNB Chain": {"wrapsToSign": 2, "unwrapsToSign": 0},
					"Ethereum": {"wrapsToSign": 0, "unwrapsToSign": 5},
					"Supernova": {"wrapsToSign": 1, "unwrapsToSign": 1}
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewOrchestratorRPCClient(5*time.Second, newTestLogger())
	status, err := client.GetStatus(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, StateLive, status.State)
	assert.Equal(t, "LiveState", status.StateName)
	assert.True(t, status.Online)
	assert.Equal(t, NetworkCounts{WrapsToSign: 2, UnwrapsToSign: 0}, status.Networks["bnb"])
	assert.Equal(t, NetworkCounts{WrapsToSign: 0, UnwrapsToSign: 5}, status.Networks["eth"])
	assert.Equal(t, NetworkCounts{WrapsToSign: 1, UnwrapsToSign: 1}, status.Networks["supernova"])
}

func TestGetStatusFillsMissingNetworks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"jsonrpc": "2.0", "id": 1,
			"result": {
				"state": 0,
				"networks": {
					"Ethereum": {"wrapsToSign": 3, "unwrapsToSign": 0},
					"Dogecoin": {"wrapsToSign": 7, "unwrapsToSign": 7}
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewOrchestratorRPCClient(5*time.Second, newTestLogger())
	status, err := client.GetStatus(context.Background(), server.URL)
	require.NoError(t, err)

	// Unreported networks are present at zero; unmapped names dropped.
	assert.Len(t, status.Networks, 3)
	assert.Equal(t, NetworkCounts{WrapsToSign: 3}, status.Networks["eth"])
	assert.Equal(t, NetworkCounts{}, status.Networks["bnb"])
	assert.Equal(t, NetworkCounts{}, status.Networks["supernova"])
}

func TestGetStatusOfflineStates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"state":3,"networks":{}}}`))
	}))
	defer server.Close()

	client := NewOrchestratorRPCClient(5*time.Second, newTestLogger())
	status, err := client.GetStatus(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "EmergencyState", status.StateName)
	assert.False(t, status.Online)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "http://10.0.0.7:55000", Endpoint("10.0.0.7", 55000))
}
