package attestation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
)

func TestNewClient(t *testing.T) {
	logger := zap.NewNop()

	t.Run("defaults to sandbox URL", func(t *testing.T) {
		client := NewClient(Config{Environment: "sandbox"}, logger)
		assert.Equal(t, IrisSandboxURL, client.config.BaseURL)
	})

	t.Run("uses mainnet URL", func(t *testing.T) {
		client := NewClient(Config{Environment: "mainnet"}, logger)
		assert.Equal(t, IrisMainnetURL, client.config.BaseURL)
	})

	t.Run("respects custom base URL", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "https://custom.api"}, logger)
		assert.Equal(t, "https://custom.api", client.config.BaseURL)
	})
}

func TestGetMessage(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns message on success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/messages/6", r.URL.Path)
			assert.Equal(t, "0xabc123", r.URL.Query().Get("transactionHash"))

			resp := MessagesResponse{
				Messages: []Message{{
					Status:      StatusComplete,
					Attestation: "0xattestation",
					Message:     "0xmessage",
				}},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		resp, err := client.GetMessage(context.Background(), DomainBaseSepolia, "0xabc123")

		require.NoError(t, err)
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, StatusComplete, resp.Messages[0].Status)
		assert.Equal(t, "0xattestation", resp.Messages[0].Attestation)
	})

	t.Run("returns error when no messages", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(MessagesResponse{Messages: []Message{}})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		_, err := client.GetMessage(context.Background(), DomainBaseSepolia, "0xabc123")

		assert.ErrorIs(t, err, ErrNoMessages)
	})

	t.Run("surfaces 404 as not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		_, err := client.GetMessage(context.Background(), DomainBaseSepolia, "0xabc123")

		require.Error(t, err)
		var apiErr *ErrorResponse
		require.ErrorAs(t, err, &apiErr)
		assert.True(t, apiErr.IsNotFound())
	})
}

func TestGetFees(t *testing.T) {
	logger := zap.NewNop()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/burn/USDC/fees", r.URL.Path)
		assert.Equal(t, "6", r.URL.Query().Get("sourceDomain"))
		assert.Equal(t, "2", r.URL.Query().Get("destinationDomain"))

		resp := FeesResponse{
			SourceDomain:      DomainBaseSepolia,
			DestinationDomain: DomainOptimismSepolia,
			StandardFee:       Fee{MinimumFee: 0},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, logger)
	resp, err := client.GetFees(context.Background(), DomainBaseSepolia, DomainOptimismSepolia)

	require.NoError(t, err)
	assert.Equal(t, DomainBaseSepolia, resp.SourceDomain)
	assert.Equal(t, DomainOptimismSepolia, resp.DestinationDomain)
}

func TestRetrieveAttestation(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns immediately when first poll is complete", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(MessagesResponse{
				Messages: []Message{{Status: StatusComplete, Message: "0xmsg", Attestation: "0xatt"}},
			})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, PollInterval: 2 * time.Second}, logger)

		start := time.Now()
		record, err := client.RetrieveAttestation(context.Background(), DomainBaseSepolia, "0xabc", 10*time.Second)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, entities.AttestationComplete, record.Status)
		assert.Equal(t, "0xmsg", record.Message)
		assert.Equal(t, "0xatt", record.Attestation)
		assert.Less(t, elapsed, time.Second, "should not wait the inter-poll delay")
	})

	t.Run("completes on a later attempt", func(t *testing.T) {
		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(MessagesResponse{
				Messages: []Message{{Status: StatusComplete, Message: "0xmsg", Attestation: "0xatt"}},
			})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, PollInterval: 10 * time.Millisecond}, logger)
		record, err := client.RetrieveAttestation(context.Background(), DomainBaseSepolia, "0xabc", 5*time.Second)

		require.NoError(t, err)
		assert.Equal(t, entities.AttestationComplete, record.Status)
		assert.Equal(t, int64(3), calls.Load())
	})

	t.Run("times out when service never completes", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, PollInterval: 20 * time.Millisecond}, logger)
		record, err := client.RetrieveAttestation(context.Background(), DomainBaseSepolia, "0xabc", 150*time.Millisecond)

		assert.Nil(t, record)
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("times out when status stays pending", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(MessagesResponse{
				Messages: []Message{{Status: StatusPending}},
			})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, PollInterval: 20 * time.Millisecond}, logger)
		record, err := client.RetrieveAttestation(context.Background(), DomainBaseSepolia, "0xabc", 150*time.Millisecond)

		assert.Nil(t, record)
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("keeps polling through service errors", func(t *testing.T) {
		var calls atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"message": "temporarily unavailable"})
				return
			}
			json.NewEncoder(w).Encode(MessagesResponse{
				Messages: []Message{{Status: StatusComplete, Message: "0xmsg", Attestation: "0xatt"}},
			})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL, PollInterval: 10 * time.Millisecond}, logger)
		record, err := client.RetrieveAttestation(context.Background(), DomainBaseSepolia, "0xabc", 5*time.Second)

		require.NoError(t, err)
		assert.Equal(t, entities.AttestationComplete, record.Status)
		assert.GreaterOrEqual(t, calls.Load(), int64(3))
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()

		client := NewClient(Config{BaseURL: server.URL, PollInterval: time.Second}, logger)
		_, err := client.RetrieveAttestation(ctx, DomainBaseSepolia, "0xabc", 10*time.Second)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLookup(t *testing.T) {
	logger := zap.NewNop()

	t.Run("maps 404 to pending", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		record, err := client.Lookup(context.Background(), DomainBaseSepolia, "0xabc")

		require.NoError(t, err)
		assert.Equal(t, entities.AttestationPending, record.Status)
	})

	t.Run("maps pending status to pending", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(MessagesResponse{Messages: []Message{{Status: StatusPending}}})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		record, err := client.Lookup(context.Background(), DomainBaseSepolia, "0xabc")

		require.NoError(t, err)
		assert.Equal(t, entities.AttestationPending, record.Status)
	})

	t.Run("returns complete record with payloads", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(MessagesResponse{
				Messages: []Message{{Status: StatusComplete, Message: "0xmsg", Attestation: "0xatt"}},
			})
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, logger)
		record, err := client.Lookup(context.Background(), DomainBaseSepolia, "0xabc")

		require.NoError(t, err)
		assert.Equal(t, entities.AttestationComplete, record.Status)
		assert.Equal(t, "0xmsg", record.Message)
		assert.Equal(t, "0xatt", record.Attestation)
	})
}

func TestChainDomains(t *testing.T) {
	assert.Equal(t, uint32(0), ChainDomains[entities.ChainEthereumSepolia])
	assert.Equal(t, uint32(1), ChainDomains[entities.ChainAvalancheFuji])
	assert.Equal(t, uint32(2), ChainDomains[entities.ChainOptimismSepolia])
	assert.Equal(t, uint32(3), ChainDomains[entities.ChainArbitrumSepolia])
	assert.Equal(t, uint32(6), ChainDomains[entities.ChainBaseSepolia])
}
