package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/edgearb/edge/internal/types"
)

// BinanceAdapter implements ExchangeAdapter for Binance USDT-margined futures.
type BinanceAdapter struct{ h *httpAdapter }

// NewBinanceAdapter creates a Binance exchange adapter.
func NewBinanceAdapter() *BinanceAdapter {
	spec := venueSpec{
		name:    "binance",
		baseURL: "https://fapi.binance.com",
		tickerPath: func(pair string) string {
			return "/fapi/v1/ticker/24hr?symbol=" + toBinanceSymbol(pair)
		},
		fundingPath: func(pair string) string {
			return "/fapi/v1/premiumIndex?symbol=" + toBinanceSymbol(pair)
		},
		volumePath: func(pair string) string {
			return "/fapi/v1/ticker/24hr?symbol=" + toBinanceSymbol(pair)
		},
		parseTicker: func(body []byte) (*tickerRaw, error) {
			var r struct {
				LastPrice, BidPrice, AskPrice, HighPrice, LowPrice, PriceChange, PriceChangePercent string
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return nil, err
			}
			return &tickerRaw{
				Last: parseF(r.LastPrice), Bid: parseF(r.BidPrice), Ask: parseF(r.AskPrice),
				High24: parseF(r.HighPrice), Low24: parseF(r.LowPrice),
				Change24: parseF(r.PriceChange), Change24Pct: parseF(r.PriceChangePercent),
			}, nil
		},
		parseFunding: func(body []byte) (*fundingRaw, error) {
			var r struct {
				LastFundingRate string `json:"lastFundingRate"`
				NextFundingTime int64  `json:"nextFundingTime"`
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return nil, err
			}
			rate := parseF(r.LastFundingRate)
			return &fundingRaw{Rate: rate, EstimatedRate: rate, NextFundingMs: r.NextFundingTime}, nil
		},
		parseVolume: func(body []byte) (*volumeRaw, error) {
			var r struct {
				Volume      string `json:"volume"`
				QuoteVolume string `json:"quoteVolume"`
				Count       int64  `json:"count"`
			}
			if err := json.Unmarshal(body, &r); err != nil {
				return nil, err
			}
			return &volumeRaw{Base24: parseF(r.Volume), Quote24: parseF(r.QuoteVolume), TradeCount24: r.Count}, nil
		},
		sign: signBinance,
	}
	return &BinanceAdapter{h: newHTTPAdapter(spec)}
}

func (a *BinanceAdapter) Name() string { return a.h.Name() }

func (a *BinanceAdapter) FetchTicker(ctx context.Context, pair string, creds Credentials) (*types.PriceBlock, error) {
	r, err := a.h.FetchTicker(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.PriceBlock{Last: r.Last, Bid: r.Bid, Ask: r.Ask, High24: r.High24, Low24: r.Low24, Change24: r.Change24, Change24Pct: r.Change24Pct}, nil
}

func (a *BinanceAdapter) FetchFunding(ctx context.Context, pair string, creds Credentials) (*types.FundingBlock, error) {
	r, err := a.h.FetchFunding(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.FundingBlock{Rate: r.Rate, EstimatedRate: r.EstimatedRate}, nil
}

func (a *BinanceAdapter) FetchVolume(ctx context.Context, pair string, creds Credentials) (*types.VolumeBlock, error) {
	r, err := a.h.FetchVolume(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.VolumeBlock{Base24: r.Base24, Quote24: r.Quote24, TradeCount24: r.TradeCount24}, nil
}

func (a *BinanceAdapter) HealthCheck(ctx context.Context) HealthStatus { return a.h.HealthCheck(ctx) }

func toBinanceSymbol(pair string) string {
	base, quote := splitPair(pair)
	return base + quote
}

func signBinance(req *http.Request, creds Credentials) {
	if creds.APISecret == "" {
		return
	}
	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(req.URL.RawQuery))
	sig := hex.EncodeToString(mac.Sum(nil))
	q := req.URL.Query()
	q.Set("signature", sig)
	req.URL.RawQuery = q.Encode()
	if creds.APIKey != "" {
		req.Header.Set("X-MBX-APIKEY", creds.APIKey)
	}
}

func splitPair(pair string) (base, quote string) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '-' {
			return pair[:i], pair[i+1:]
		}
	}
	return pair, "USDT"
}

func parseF(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
