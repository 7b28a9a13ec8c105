package adapter

import "testing"

func TestNormalizePair(t *testing.T) {
	cases := map[string]string{
		"BTCUSDT":  "BTC-USDT",
		"BTC/USDT": "BTC-USDT",
		"BTC_USDT": "BTC-USDT",
		"ETHUSDC":  "ETH-USDC",
	}
	for in, want := range cases {
		if got := NormalizePair(in); got != want {
			t.Errorf("NormalizePair(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(NewBinanceAdapter())
	r.Register(NewBybitAdapter())

	if _, ok := r.Get("binance"); !ok {
		t.Fatalf("expected binance to be registered")
	}
	if len(r.List()) != 2 {
		t.Fatalf("expected 2 registered adapters, got %d", len(r.List()))
	}
}
