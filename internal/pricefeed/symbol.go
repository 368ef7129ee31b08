package pricefeed

import "strings"

// NormalizeSymbol turns chart-style instrument names such as "BINANCE:BTCUSDT",
// "btc-usdt" or "EUR/USD" into the feed's symbol form ("BTCUSDT", "EURUSD").
func NormalizeSymbol(instrument string) string {
	s := strings.TrimSpace(instrument)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.NewReplacer("-", "", "/", "", "_", "", " ", "").Replace(s)
	return strings.ToUpper(s)
}
