package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/edgearb/edge/internal/types"
)

// CoinbaseAdapter implements ExchangeAdapter for Coinbase Advanced Trade
// spot markets. Coinbase exposes no perpetual funding rate; FetchFunding
// returns a validation error, matching an adapter that genuinely lacks the
// capability rather than silently fabricating data.
type CoinbaseAdapter struct{ h *httpAdapter }

func NewCoinbaseAdapter() *CoinbaseAdapter {
	spec := venueSpec{
		name:    "coinbase",
		baseURL: "https://api.exchange.coinbase.com",
		tickerPath: func(pair string) string {
			return "/products/" + toCoinbaseProductID(pair) + "/ticker"
		},
		volumePath: func(pair string) string {
			return "/products/" + toCoinbaseProductID(pair) + "/stats"
		},
		parseTicker: func(body []byte) (*tickerRaw, error) {
			var r struct {
				Price string `json:"price"`
				Bid   string `json:"bid"`
				Ask   string `json:"ask"`
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return nil, err
			}
			return &tickerRaw{Last: parseF(r.Price), Bid: parseF(r.Bid), Ask: parseF(r.Ask)}, nil
		},
		parseVolume: func(body []byte) (*volumeRaw, error) {
			var r struct {
				Volume string `json:"volume"`
				Last   string `json:"last"`
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return nil, err
			}
			base := parseF(r.Volume)
			return &volumeRaw{Base24: base, Quote24: base * parseF(r.Last)}, nil
		},
		sign: signCoinbase,
	}
	return &CoinbaseAdapter{h: newHTTPAdapter(spec)}
}

func (a *CoinbaseAdapter) Name() string { return a.h.Name() }

func (a *CoinbaseAdapter) FetchTicker(ctx context.Context, pair string, creds Credentials) (*types.PriceBlock, error) {
	r, err := a.h.FetchTicker(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.PriceBlock{Last: r.Last, Bid: r.Bid, Ask: r.Ask}, nil
}

func (a *CoinbaseAdapter) FetchFunding(ctx context.Context, pair string, creds Credentials) (*types.FundingBlock, error) {
	_, err := a.h.FetchFunding(ctx, pair, creds) // spec has no fundingPath -> validation error
	return nil, err
}

func (a *CoinbaseAdapter) FetchVolume(ctx context.Context, pair string, creds Credentials) (*types.VolumeBlock, error) {
	r, err := a.h.FetchVolume(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.VolumeBlock{Base24: r.Base24, Quote24: r.Quote24, TradeCount24: r.TradeCount24}, nil
}

func (a *CoinbaseAdapter) HealthCheck(ctx context.Context) HealthStatus { return a.h.HealthCheck(ctx) }

func toCoinbaseProductID(pair string) string {
	base, quote := splitPair(pair)
	return base + "-" + quote
}

func signCoinbase(req *http.Request, creds Credentials) {
	if creds.APISecret == "" {
		return
	}
	ts := time.Now().UTC().Unix()
	prehash := fmt.Sprintf("%d", ts) + req.Method + req.URL.Path
	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(prehash))
	req.Header.Set("CB-ACCESS-KEY", creds.APIKey)
	req.Header.Set("CB-ACCESS-SIGN", hex.EncodeToString(mac.Sum(nil)))
}
