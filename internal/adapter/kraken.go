package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/edgearb/edge/internal/types"
)

// KrakenAdapter implements ExchangeAdapter for Kraken Futures.
type KrakenAdapter struct{ h *httpAdapter }

func NewKrakenAdapter() *KrakenAdapter {
	spec := venueSpec{
		name:    "kraken",
		baseURL: "https://futures.kraken.com",
		tickerPath: func(pair string) string {
			return "/derivatives/api/v3/tickers/" + toKrakenSymbol(pair)
		},
		fundingPath: func(pair string) string {
			return "/derivatives/api/v3/tickers/" + toKrakenSymbol(pair)
		},
		volumePath: func(pair string) string {
			return "/derivatives/api/v3/tickers/" + toKrakenSymbol(pair)
		},
		parseTicker: func(body []byte) (*tickerRaw, error) {
			t, err := decodeKrakenTicker(body)
			if err != nil {
				return nil, err
			}
			return &tickerRaw{Last: t.Last, Bid: t.Bid, Ask: t.Ask, High24: t.High24H, Low24: t.Low24H, Change24Pct: t.Change24H}, nil
		},
		parseFunding: func(body []byte) (*fundingRaw, error) {
			t, err := decodeKrakenTicker(body)
			if err != nil {
				return nil, err
			}
			return &fundingRaw{Rate: t.FundingRate, EstimatedRate: t.FundingRatePrediction}, nil
		},
		parseVolume: func(body []byte) (*volumeRaw, error) {
			t, err := decodeKrakenTicker(body)
			if err != nil {
				return nil, err
			}
			return &volumeRaw{Base24: t.Vol24h, Quote24: t.Vol24h * t.Last}, nil
		},
		sign: signKraken,
	}
	return &KrakenAdapter{h: newHTTPAdapter(spec)}
}

type krakenTicker struct {
	Last                  float64 `json:"last"`
	Bid                   float64 `json:"bid"`
	Ask                   float64 `json:"ask"`
	High24H               float64 `json:"high24h"`
	Low24H                float64 `json:"low24h"`
	Change24H             float64 `json:"change24h"`
	Vol24h                float64 `json:"vol24h"`
	FundingRate           float64 `json:"fundingRate"`
	FundingRatePrediction float64 `json:"fundingRatePrediction"`
}

func decodeKrakenTicker(body []byte) (*krakenTicker, error) {
	var resp struct {
		Tickers []krakenTicker `json:"tickers"`
		Ticker  *krakenTicker  `json:"ticker"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Ticker != nil {
		return resp.Ticker, nil
	}
	if len(resp.Tickers) > 0 {
		return &resp.Tickers[0], nil
	}
	return nil, fmt.Errorf("kraken: no ticker data")
}

func (a *KrakenAdapter) Name() string { return a.h.Name() }

func (a *KrakenAdapter) FetchTicker(ctx context.Context, pair string, creds Credentials) (*types.PriceBlock, error) {
	r, err := a.h.FetchTicker(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.PriceBlock{Last: r.Last, Bid: r.Bid, Ask: r.Ask, High24: r.High24, Low24: r.Low24, Change24Pct: r.Change24Pct}, nil
}

func (a *KrakenAdapter) FetchFunding(ctx context.Context, pair string, creds Credentials) (*types.FundingBlock, error) {
	r, err := a.h.FetchFunding(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.FundingBlock{Rate: r.Rate, EstimatedRate: r.EstimatedRate}, nil
}

func (a *KrakenAdapter) FetchVolume(ctx context.Context, pair string, creds Credentials) (*types.VolumeBlock, error) {
	r, err := a.h.FetchVolume(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.VolumeBlock{Base24: r.Base24, Quote24: r.Quote24, TradeCount24: r.TradeCount24}, nil
}

func (a *KrakenAdapter) HealthCheck(ctx context.Context) HealthStatus { return a.h.HealthCheck(ctx) }

func toKrakenSymbol(pair string) string {
	base, quote := splitPair(pair)
	return "PF_" + base + quote
}

func signKraken(req *http.Request, creds Credentials) {
	if creds.APISecret == "" {
		return
	}
	nonce := fmt.Sprintf("%d", time.Now().UnixNano()/1_000_000)
	sha := sha256.Sum256([]byte(nonce + req.URL.RawQuery))
	secretDecoded, err := base64.StdEncoding.DecodeString(creds.APISecret)
	if err != nil {
		secretDecoded = []byte(creds.APISecret)
	}
	mac := hmac.New(sha512.New, secretDecoded)
	mac.Write(append([]byte(req.URL.Path), sha[:]...))
	req.Header.Set("APIKey", creds.APIKey)
	req.Header.Set("Authent", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	req.Header.Set("Nonce", nonce)
}
