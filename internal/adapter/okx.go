package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/edgearb/edge/internal/types"
)

// OKXAdapter implements ExchangeAdapter for OKX swaps.
type OKXAdapter struct{ h *httpAdapter }

func NewOKXAdapter() *OKXAdapter {
	spec := venueSpec{
		name:    "okx",
		baseURL: "https://www.okx.com",
		tickerPath: func(pair string) string {
			return "/api/v5/market/ticker?instId=" + toOKXInstID(pair)
		},
		fundingPath: func(pair string) string {
			return "/api/v5/public/funding-rate?instId=" + toOKXInstID(pair)
		},
		volumePath: func(pair string) string {
			return "/api/v5/market/ticker?instId=" + toOKXInstID(pair)
		},
		parseTicker: func(body []byte) (*tickerRaw, error) {
			e, err := decodeOKXData(body)
			if err != nil {
				return nil, err
			}
			last := parseF(e["last"])
			open24 := parseF(e["open24h"])
			change := last - open24
			changePct := 0.0
			if open24 != 0 {
				changePct = change / open24 * 100
			}
			return &tickerRaw{Last: last, Bid: parseF(e["bidPx"]), Ask: parseF(e["askPx"]), High24: parseF(e["high24h"]), Low24: parseF(e["low24h"]), Change24: change, Change24Pct: changePct}, nil
		},
		parseFunding: func(body []byte) (*fundingRaw, error) {
			e, err := decodeOKXData(body)
			if err != nil {
				return nil, err
			}
			rate := parseF(e["fundingRate"])
			return &fundingRaw{Rate: rate, EstimatedRate: parseF(e["nextFundingRate"])}, nil
		},
		parseVolume: func(body []byte) (*volumeRaw, error) {
			e, err := decodeOKXData(body)
			if err != nil {
				return nil, err
			}
			return &volumeRaw{Base24: parseF(e["vol24h"]), Quote24: parseF(e["volCcy24h"])}, nil
		},
		sign: signOKX,
	}
	return &OKXAdapter{h: newHTTPAdapter(spec)}
}

func decodeOKXData(body []byte) (map[string]string, error) {
	var resp struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("okx: empty data")
	}
	return resp.Data[0], nil
}

func (a *OKXAdapter) Name() string { return a.h.Name() }

func (a *OKXAdapter) FetchTicker(ctx context.Context, pair string, creds Credentials) (*types.PriceBlock, error) {
	r, err := a.h.FetchTicker(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.PriceBlock{Last: r.Last, Bid: r.Bid, Ask: r.Ask, High24: r.High24, Low24: r.Low24, Change24: r.Change24, Change24Pct: r.Change24Pct}, nil
}

func (a *OKXAdapter) FetchFunding(ctx context.Context, pair string, creds Credentials) (*types.FundingBlock, error) {
	r, err := a.h.FetchFunding(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.FundingBlock{Rate: r.Rate, EstimatedRate: r.EstimatedRate}, nil
}

func (a *OKXAdapter) FetchVolume(ctx context.Context, pair string, creds Credentials) (*types.VolumeBlock, error) {
	r, err := a.h.FetchVolume(ctx, pair, creds)
	if err != nil {
		return nil, err
	}
	return &types.VolumeBlock{Base24: r.Base24, Quote24: r.Quote24, TradeCount24: r.TradeCount24}, nil
}

func (a *OKXAdapter) HealthCheck(ctx context.Context) HealthStatus { return a.h.HealthCheck(ctx) }

func toOKXInstID(pair string) string {
	base, quote := splitPair(pair)
	return base + "-" + quote + "-SWAP"
}

func signOKX(req *http.Request, creds Credentials) {
	if creds.APISecret == "" {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	prehash := ts + req.Method + req.URL.Path
	if req.URL.RawQuery != "" {
		prehash += "?" + req.URL.RawQuery
	}
	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(prehash))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	req.Header.Set("OK-ACCESS-KEY", creds.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", sig)
	req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
}
