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

// BybitAdapter implements ExchangeAdapter for Bybit USDT perpetuals.
type BybitAdapter struct{ h *httpAdapter }

func NewBybitAdapter() *BybitAdapter {
	spec := venueSpec{
		name:    "bybit",
		baseURL: "https://api.bybit.com",
		tickerPath: func(pair string) string {
			return "/v5/market/tickers?category=linear&symbol=" + toBinanceSymbol(pair)
		},
		fundingPath: func(pair string) string {
			return "/v5/market/tickers?category=linear&symbol=" + toBinanceSymbol(pair)
		},
		volumePath: func(pair string) string {
			return "/v5/market/tickers?category=linear&symbol=" + toBinanceSymbol(pair)
		},
		parseTicker: func(body []byte) (*tickerRaw, error) {
			r, err := decodeBybitTicker(body)
			if err != nil {
				return nil, err
			}
			return &tickerRaw{Last: parseF(r.LastPrice), Bid: parseF(r.Bid1Price), Ask: parseF(r.Ask1Price), High24: parseF(r.HighPrice24h), Low24: parseF(r.LowPrice24h), Change24Pct: parseF(r.Price24hPcnt) * 100}, nil
		},
		parseFunding: func(body []byte) (*fundingRaw, error) {
			r, err := decodeBybitTicker(body)
			if err != nil {
				return nil, err
			}
			rate := parseF(r.FundingRate)
			return &fundingRaw{Rate: rate, EstimatedRate: rate}, nil
		},
		parseVolume: func(body []byte) (*volumeRaw, error) {
			r, err := decodeBybitTicker(body)
			if err != nil {
				return nil, err
			}
			return &volumeRaw{Base24: parseF(r.Volume24h), Quote24: parseF(r.Turnover24h)}, nil
		},
		sign: signBybit,
	}
	return &BybitAdapter{h: newHTTPAdapter(spec)}
}

type bybitTickerEntry struct {
	LastPrice    string `json:"lastPrice"`
	Bid1Price    string `json:"bid1Price"`
	Ask1Price    string `json:"ask1Price"`
	HighPrice24h string `json:"highPrice24h"`
	LowPrice24h  string `json:"lowPrice24h"`
	Price24hPcnt string `json:"price24hPcnt"`
	FundingRate  string `json:"fundingRate"`
	Volume24h    string `json:"volume24h"`
	Turnover24h  string `json:"turnover24h"`
}

func decodeBybitTicker(body []byte) (*bybitTickerEntry, error) {
	var resp struct {
		Result struct {
			List []bybitTickerEntry `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result.List) == 0 {
		return nil, fmt.Errorf("bybit: empty ticker list")
	}
	return &resp.Result.List[0], nil
}

func (a *BybitAdapter) Name() string { return a.h.Name() }

func (a *BybitAdapter) FetchTicker(ctx context.Context, pair string, creds Credentials) (*types.PriceBlock, error) {
	r, err := a.h.FetchTicker(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.PriceBlock{Last: r.Last, Bid: r.Bid, Ask: r.Ask, High24: r.High24, Low24: r.Low24, Change24: r.Change24, Change24Pct: r.Change24Pct}, nil
}

func (a *BybitAdapter) FetchFunding(ctx context.Context, pair string, creds Credentials) (*types.FundingBlock, error) {
	r, err := a.h.FetchFunding(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.FundingBlock{Rate: r.Rate, EstimatedRate: r.EstimatedRate}, nil
}

func (a *BybitAdapter) FetchVolume(ctx context.Context, pair string, creds Credentials) (*types.VolumeBlock, error) {
	r, err := a.h.FetchVolume(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.VolumeBlock{Base24: r.Base24, Quote24: r.Quote24, TradeCount24: r.TradeCount24}, nil
}

func (a *BybitAdapter) HealthCheck(ctx context.Context) HealthStatus { return a.h.HealthCheck(ctx) }

func signBybit(req *http.Request, creds Credentials) {
	if creds.APISecret == "" {
		return
	}
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(ts + creds.APIKey + req.URL.RawQuery))
	req.Header.Set("X-BAPI-SIGN", hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("X-BAPI-API-KEY", creds.APIKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
}
