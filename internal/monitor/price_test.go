package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpotPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bpi":{"USD":{"rate_float":94520.25}}}`))
	}))
	defer srv.Close()

	price, err := NewPriceAPI(srv.URL).SpotPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 94520.25, price, 1e-9)
}

func TestSpotPriceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewPriceAPI(srv.URL).SpotPrice(context.Background())
	assert.ErrorContains(t, err, "status 502")
}

func TestSpotPriceMissingRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bpi":{}}`))
	}))
	defer srv.Close()

	_, err := NewPriceAPI(srv.URL).SpotPrice(context.Background())
	assert.ErrorContains(t, err, "missing rate")
}
