package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edgearb/edge/internal/apperr"
)

// venueSpec describes the per-venue REST surface; httpAdapter is shared by
// all five venue connectors, the same pooled-transport shape as the
// teacher's OpenAIProvider.
type venueSpec struct {
	name          string
	baseURL       string
	tickerPath    func(pair string) string
	fundingPath   func(pair string) string
	volumePath    func(pair string) string
	parseTicker   func(body []byte) (*tickerRaw, error)
	parseFunding  func(body []byte) (*fundingRaw, error)
	parseVolume   func(body []byte) (*volumeRaw, error)
	sign          func(req *http.Request, creds Credentials)
}

type tickerRaw struct {
	Last, Bid, Ask, High24, Low24, Change24, Change24Pct float64
}

type fundingRaw struct {
	Rate          float64
	EstimatedRate float64
	NextFundingMs int64
}

type volumeRaw struct {
	Base24       float64
	Quote24      float64
	TradeCount24 int64
}

type httpAdapter struct {
	spec   venueSpec
	client *http.Client
}

func newHTTPAdapter(spec venueSpec) *httpAdapter {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &httpAdapter{
		spec:   spec,
		client: &http.Client{Transport: transport, Timeout: 15 * time.Second},
	}
}

func (a *httpAdapter) Name() string { return a.spec.name }

func (a *httpAdapter) get(ctx context.Context, path string, creds Credentials) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.spec.baseURL+path, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.spec.sign != nil {
		a.spec.sign(req, creds)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, fmt.Sprintf("%s request failed", a.spec.name), err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperr.New(apperr.KindAuth, fmt.Sprintf("%s returned status %d", a.spec.name, resp.StatusCode))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperr.New(apperr.KindRateLimited, fmt.Sprintf("%s returned status %d", a.spec.name, resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return nil, apperr.New(apperr.KindNetwork, fmt.Sprintf("%s returned status %d", a.spec.name, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("%s returned status %d: %s", a.spec.name, resp.StatusCode, string(body)))
	}
	return body, nil
}

func (a *httpAdapter) FetchTicker(ctx context.Context, pair string, creds Credentials) (*PriceBlockResult, error) {
	body, err := a.get(ctx, a.spec.tickerPath(pair), creds)
	if err != nil {
		return nil, err
	}
	raw, err := a.spec.parseTicker(body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSerialization, "decode ticker", err)
	}
	return &PriceBlockResult{
		Last: raw.Last, Bid: raw.Bid, Ask: raw.Ask,
		High24: raw.High24, Low24: raw.Low24,
		Change24: raw.Change24, Change24Pct: raw.Change24Pct,
	}, nil
}

func (a *httpAdapter) FetchFunding(ctx context.Context, pair string, creds Credentials) (*FundingBlockResult, error) {
	if a.spec.fundingPath == nil {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("%s does not support funding rates", a.spec.name))
	}
	body, err := a.get(ctx, a.spec.fundingPath(pair), creds)
	if err != nil {
		return nil, err
	}
	raw, err := a.spec.parseFunding(body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSerialization, "decode funding", err)
	}
	return &FundingBlockResult{Rate: raw.Rate, EstimatedRate: raw.EstimatedRate, NextFundingMs: raw.NextFundingMs}, nil
}

func (a *httpAdapter) FetchVolume(ctx context.Context, pair string, creds Credentials) (*VolumeBlockResult, error) {
	body, err := a.get(ctx, a.spec.volumePath(pair), creds)
	if err != nil {
		return nil, err
	}
	raw, err := a.spec.parseVolume(body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSerialization, "decode volume", err)
	}
	return &VolumeBlockResult{Base24: raw.Base24, Quote24: raw.Quote24, TradeCount24: raw.TradeCount24}, nil
}

func (a *httpAdapter) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	_, err := a.get(ctx, a.spec.tickerPath("BTC-USDT"), Credentials{})
	latency := time.Since(start)
	if err != nil {
		return HealthStatus{Healthy: false, Latency: latency, LastCheck: time.Now(), Error: err.Error()}
	}
	return HealthStatus{Healthy: true, Latency: latency, LastCheck: time.Now()}
}

// Result types kept distinct from types.*Block so the parser layer can stay
// free of timestamp/provenance concerns the caller (C3) is responsible for.
type PriceBlockResult struct {
	Last, Bid, Ask, High24, Low24, Change24, Change24Pct float64
}

type FundingBlockResult struct {
	Rate          float64
	EstimatedRate float64
	NextFundingMs int64
}

type VolumeBlockResult struct {
	Base24       float64
	Quote24      float64
	TradeCount24 int64
}

func decodeJSON(body []byte, v interface{}) error {
	return json.Unmarshal(body, v)
}
