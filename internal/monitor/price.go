package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PriceAPI fetches an external spot price, used as the macro-context fallback
// when the live exchange feed has no mid price yet.
type PriceAPI struct {
	url    string
	client *http.Client
}

// NewPriceAPI creates a client for a CoinDesk-style current-price endpoint.
func NewPriceAPI(url string) *PriceAPI {
	return &PriceAPI{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// SpotPrice returns the current USD spot price from the external index.
func (p *PriceAPI) SpotPrice(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("spot price fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("spot price fetch: status %d", resp.StatusCode)
	}

	var body struct {
		BPI struct {
			USD struct {
				RateFloat float64 `json:"rate_float"`
			} `json:"USD"`
		} `json:"bpi"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("spot price decode: %w", err)
	}
	if body.BPI.USD.RateFloat <= 0 {
		return 0, fmt.Errorf("spot price decode: missing rate")
	}
	return body.BPI.USD.RateFloat, nil
}
