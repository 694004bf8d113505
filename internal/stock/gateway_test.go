package stock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stockledger/inventory-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchStock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/7", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"id":7,"name":"Widget","price":"19.99","stock":42}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	product, err := client.FetchStock(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, uint(7), product.ID)
	assert.Equal(t, "Widget", product.Name)
	assert.Equal(t, 42, product.Stock)
}

func TestFetchStockNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":"Product not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.FetchStock(context.Background(), 7)
	assert.ErrorIs(t, err, types.ErrProductNotFound)
}

func TestFetchStockServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.FetchStock(context.Background(), 7)
	assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
}

func TestFetchStockTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "")
	_, err := client.FetchStock(context.Background(), 7)
	assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
}

func TestFetchStockEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":null}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.FetchStock(context.Background(), 7)
	assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
}

func TestApplyStock(t *testing.T) {
	var received types.StockWrite
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/7", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"id":7,"stock":30}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	expected := 42
	require.NoError(t, client.ApplyStock(context.Background(), 7, 30, &expected))

	assert.Equal(t, 30, received.Stock)
	require.NotNil(t, received.ExpectedStock)
	assert.Equal(t, 42, *received.ExpectedStock)
}

func TestApplyStockUnconditional(t *testing.T) {
	var received types.StockWrite
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"id":7,"stock":30}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	require.NoError(t, client.ApplyStock(context.Background(), 7, 30, nil))
	assert.Nil(t, received.ExpectedStock)
}

func TestApplyStockStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"conflict", http.StatusConflict, types.ErrStockConflict},
		{"missing product", http.StatusNotFound, types.ErrProductNotFound},
		{"server error", http.StatusInternalServerError, types.ErrRemoteUnavailable},
		{"bad gateway", http.StatusBadGateway, types.ErrRemoteUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(server.URL, "")
			err := client.ApplyStock(context.Background(), 7, 30, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
